package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"

	mappingapp "program-mapping/internal/mapping/application"
	mapping "program-mapping/internal/mapping/domain"
	mappingpostgres "program-mapping/internal/mapping/infrastructure/postgres"
	"program-mapping/internal/mapping/interfaces"
)

type exportOptions struct {
	parentID  string
	format    string
	out       string
	anchor    int
	hasAnchor bool
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the reconciled mapping table of a program",
		Long: `Load the catalog and the stored mappings of a program, reconcile them over
the window and write the result. --format payload prints the save payload
the selected rows would produce.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.hasAnchor = cmd.Flags().Changed("anchor")
			if dsnFlag == "" {
				return errors.New("--dsn or DATABASE_URL required")
			}
			db, err := sql.Open("pgx", dsnFlag)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			catalog := mappingpostgres.NewCatalogRepository(db)
			repo := mappingpostgres.NewMappingRepository(db)
			loader, err := mappingapp.NewLoader(catalog, repo, catalog)
			if err != nil {
				return err
			}
			return runExport(cmd.Context(), cmd.OutOrStdout(), loader, catalog, opts)
		},
	}

	cmd.Flags().StringVar(&opts.parentID, "parent", "", "Program id")
	cmd.Flags().StringVar(&opts.format, "format", "table", "Export format: table, xlsx, pdf, payload")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output file (required for xlsx and pdf)")
	cmd.Flags().IntVar(&opts.anchor, "anchor", 0, "First financial year of the window")
	_ = cmd.MarkFlagRequired("parent")
	return cmd
}

func runExport(ctx context.Context, w io.Writer, loader *mappingapp.Loader, labels mappingapp.FieldLabelLookup, opts exportOptions) error {
	cfg, err := mappingapp.LoadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	fields := cfg.Fields.WithLabels(nil)
	if labels != nil {
		if found, err := labels.FieldLabels(ctx, cfg.LabelObject); err == nil {
			fields = cfg.Fields.WithLabels(found)
		}
	}

	session, err := mappingapp.NewSession("mappingctl", opts.parentID, fields, cfg.WindowSize, nil)
	if err != nil {
		return err
	}
	loaded, err := loader.Load(ctx, opts.parentID)
	if err != nil {
		return err
	}
	var anchor *int
	if opts.hasAnchor {
		anchor = &opts.anchor
	}
	orphans, err := session.Initialize(loaded, anchor)
	if err != nil {
		return err
	}
	if len(orphans) > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d mappings without catalog product: %s\n", len(orphans), strings.Join(orphans, ", "))
	}

	snap := session.Snapshot()
	switch strings.ToLower(opts.format) {
	case "xlsx", "pdf":
		if opts.out == "" {
			return fmt.Errorf("--out required for %s", opts.format)
		}
		var data []byte
		if strings.EqualFold(opts.format, "pdf") {
			data, err = interfaces.BuildMappingPDF(snap, snap.Rows)
		} else {
			data, err = interfaces.BuildMappingXLSX(snap, snap.Rows)
		}
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.out, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %d rows to %s\n", len(snap.Rows), opts.out)
		return nil
	case "payload":
		payload, err := mapping.Project(snap.Rows, snap.Fields)
		if err != nil {
			return err
		}
		return printOutput(w, outputJSON, payload, nil, nil)
	case "table", "":
		rows := make([][]string, 0, len(snap.Rows))
		for _, row := range snap.Rows {
			rows = append(rows, interfaces.Record(row, snap.Window, snap.Fields))
		}
		return printTable(w, interfaces.Header(snap.Window, snap.Fields), rows)
	default:
		return fmt.Errorf("unsupported export format %q (supported: table, xlsx, pdf, payload)", opts.format)
	}
}
