package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	mapping "program-mapping/internal/mapping/domain"
)

func newWindowCmd() *cobra.Command {
	var (
		anchor int
		size   int
	)

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Print the financial-year window",
		Long: `Print the rolling window of financial years. Without --anchor the window
starts at the current financial year (years start in April).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			var window mapping.Window
			if cmd.Flags().Changed("anchor") {
				window, err = mapping.GenerateWindow(anchor, size)
			} else {
				window, err = mapping.CurrentWindow(time.Now(), size)
			}
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(window))
			for _, p := range window {
				rows = append(rows, []string{p.ID, strconv.Itoa(p.StartYear)})
			}
			return printOutput(cmd.OutOrStdout(), format, window, []string{"PERIOD", "START YEAR"}, rows)
		},
	}

	cmd.Flags().IntVar(&anchor, "anchor", 0, "First financial year of the window")
	cmd.Flags().IntVar(&size, "size", mapping.DefaultWindowSize, "Number of years in the window")
	return cmd
}
