package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	mapping "program-mapping/internal/mapping/domain"
)

const (
	defaultMappingsTable = "product_program_mappings"
	defaultYearsTable    = "product_program_years"
	defaultProgramsTable = "programs"

	mappingIDPrefix = "a0M"
	yearIDPrefix    = "a0Y"
)

// MappingRepository stores product program mappings and their year rows.
type MappingRepository struct {
	db            *sql.DB
	mappingsTable string
	yearsTable    string
	programsTable string
}

// MappingOption configures the repository.
type MappingOption func(*MappingRepository)

// WithMappingTables overrides the mapping and year table names.
func WithMappingTables(mappings, years string) MappingOption {
	return func(repo *MappingRepository) {
		if mappings != "" {
			repo.mappingsTable = mappings
		}
		if years != "" {
			repo.yearsTable = years
		}
	}
}

// NewMappingRepository constructs a repository.
func NewMappingRepository(db *sql.DB, opts ...MappingOption) *MappingRepository {
	repo := &MappingRepository{
		db:            db,
		mappingsTable: defaultMappingsTable,
		yearsTable:    defaultYearsTable,
		programsTable: defaultProgramsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// GetProgram loads a parent program, or nil when it does not exist.
func (r *MappingRepository) GetProgram(ctx context.Context, id string) (*mapping.Program, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("mapping repo: nil db")
	}
	if id == "" {
		return nil, errors.New("mapping repo: empty program id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, name
FROM %s
WHERE id = $1
LIMIT 1`, r.programsTable)

	var program mapping.Program
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&program.ID, &program.TenantID, &program.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &program, nil
}

// ListByParent loads the mappings of a program keyed by product name.
func (r *MappingRepository) ListByParent(ctx context.Context, parentID string) (map[string]mapping.PersistedMapping, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("mapping repo: nil db")
	}
	if parentID == "" {
		return nil, errors.New("mapping repo: empty parent id")
	}

	query := fmt.Sprintf(`
SELECT m.id, m.product_name, m.price, m.current_status, y.id, y.period_id, y.field_values
FROM %s m
LEFT JOIN %s y ON y.mapping_id = m.id
WHERE m.program_id = $1
ORDER BY m.product_name ASC, y.start_year ASC`, r.mappingsTable, r.yearsTable)

	rows, err := r.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]mapping.PersistedMapping)
	for rows.Next() {
		var (
			mappingID   string
			name        string
			price       decimal.NullDecimal
			status      string
			yearID      sql.NullString
			periodID    sql.NullString
			fieldValues []byte
		)
		if err := rows.Scan(&mappingID, &name, &price, &status, &yearID, &periodID, &fieldValues); err != nil {
			return nil, err
		}
		key := mapping.ProductKey(name)
		current, ok := result[key]
		if !ok {
			current = mapping.PersistedMapping{
				MappingID:     mappingID,
				Name:          name,
				Price:         mapping.AmountFromNull(price),
				CurrentStatus: status,
			}
		}
		if yearID.Valid {
			values, err := decodeFieldValues(fieldValues)
			if err != nil {
				return nil, fmt.Errorf("mapping repo: year %s: %w", yearID.String, err)
			}
			current.PeriodRows = append(current.PeriodRows, mapping.PersistedPeriodRow{
				PeriodID:   periodID.String,
				ChildRowID: yearID.String,
				Values:     values,
			})
		}
		result[key] = current
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveMappings upserts the payload in one transaction. Rows and years with an
// id are updated in place. Those without one are inserted under a new id, or
// merged into the stored row with the same product name or period.
func (r *MappingRepository) SaveMappings(ctx context.Context, parentID string, payload mapping.SavePayload) error {
	if r == nil || r.db == nil {
		return errors.New("mapping repo: nil db")
	}
	if parentID == "" {
		return errors.New("mapping repo: empty parent id")
	}
	if len(payload) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	updateMappingQuery := fmt.Sprintf(`
INSERT INTO %s (
	id,
	program_id,
	product_name,
	price,
	current_status
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (id)
DO UPDATE SET
	product_name = EXCLUDED.product_name,
	price = EXCLUDED.price,
	current_status = EXCLUDED.current_status,
	updated_at = NOW()
WHERE %s.program_id = EXCLUDED.program_id`, r.mappingsTable, r.mappingsTable)

	insertMappingQuery := fmt.Sprintf(`
INSERT INTO %s (
	id,
	program_id,
	product_name,
	price,
	current_status
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (program_id, product_name)
DO UPDATE SET
	price = EXCLUDED.price,
	current_status = EXCLUDED.current_status,
	updated_at = NOW()
RETURNING id`, r.mappingsTable)

	updateYearQuery := fmt.Sprintf(`
INSERT INTO %s (
	id,
	mapping_id,
	period_id,
	start_year,
	field_values
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (id)
DO UPDATE SET
	period_id = EXCLUDED.period_id,
	start_year = EXCLUDED.start_year,
	field_values = EXCLUDED.field_values,
	updated_at = NOW()
WHERE %s.mapping_id = EXCLUDED.mapping_id`, r.yearsTable, r.yearsTable)

	insertYearQuery := fmt.Sprintf(`
INSERT INTO %s (
	id,
	mapping_id,
	period_id,
	start_year,
	field_values
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (mapping_id, period_id)
DO UPDATE SET
	start_year = EXCLUDED.start_year,
	field_values = EXCLUDED.field_values,
	updated_at = NOW()`, r.yearsTable)

	for _, row := range payload {
		var mappingID string
		if row.ID != nil && mapping.IsRecordID(*row.ID) {
			mappingID = *row.ID
			if _, err := tx.ExecContext(ctx, updateMappingQuery,
				mappingID,
				parentID,
				row.Name,
				row.Price.NullDecimal(),
				row.CurrentStatus,
			); err != nil {
				return fmt.Errorf("mapping repo: save %q: %w", row.Name, err)
			}
		} else if err := tx.QueryRowContext(ctx, insertMappingQuery,
			mapping.NewRecordID(mappingIDPrefix),
			parentID,
			row.Name,
			row.Price.NullDecimal(),
			row.CurrentStatus,
		).Scan(&mappingID); err != nil {
			return fmt.Errorf("mapping repo: save %q: %w", row.Name, err)
		}

		for _, period := range row.PeriodData {
			startYear, err := mapping.ParsePeriodID(period.PeriodID)
			if err != nil {
				return err
			}
			values, err := encodeFieldValues(period.Values)
			if err != nil {
				return err
			}
			query, yearID := insertYearQuery, mapping.NewRecordID(yearIDPrefix)
			if period.ChildRowID != nil && mapping.IsRecordID(*period.ChildRowID) {
				query, yearID = updateYearQuery, *period.ChildRowID
			}
			if _, err := tx.ExecContext(ctx, query,
				yearID,
				mappingID,
				period.PeriodID,
				startYear,
				values,
			); err != nil {
				return fmt.Errorf("mapping repo: save %q %s: %w", row.Name, period.PeriodID, err)
			}
		}
	}
	return tx.Commit()
}

func encodeFieldValues(values []mapping.FieldValue) ([]byte, error) {
	obj := make(map[string]mapping.Amount, len(values))
	for _, v := range values {
		obj[v.Key] = v.Value
	}
	return json.Marshal(obj)
}

func decodeFieldValues(data []byte) (map[string]mapping.Amount, error) {
	values := make(map[string]mapping.Amount)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}
