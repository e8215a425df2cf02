package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	mapping "program-mapping/internal/mapping/domain"
)

const (
	mappingIDPrefix = "a0M"
	yearIDPrefix    = "a0Y"
)

// Store is an in-memory catalog and mapping store for demo/testing.
// It implements every loader and the persistence sink.
type Store struct {
	mu       sync.RWMutex
	products []mapping.ProductMasterRecord
	facets   mapping.Facets
	labels   map[string]map[string]string
	mappings map[string]map[string]mapping.PersistedMapping
	programs map[string]mapping.Program
	saves    []SaveCall

	// Injected failures, checked on every call when set.
	CatalogErr error
	MappingErr error
	FacetErr   error
	SaveErr    error
	LabelErr   error
}

// SaveCall records one SaveMappings invocation.
type SaveCall struct {
	ParentID string
	Payload  mapping.SavePayload
}

// NewStore constructs a store seeded with products. Facets default to the
// distinct power and segment values of the products.
func NewStore(products []mapping.ProductMasterRecord) *Store {
	s := &Store{
		products: append([]mapping.ProductMasterRecord(nil), products...),
		labels:   make(map[string]map[string]string),
		mappings: make(map[string]map[string]mapping.PersistedMapping),
		programs: make(map[string]mapping.Program),
	}
	s.facets = distinctFacets(products)
	return s
}

// SetFacets overrides the facet values.
func (s *Store) SetFacets(facets mapping.Facets) {
	s.mu.Lock()
	s.facets = facets
	s.mu.Unlock()
}

// SetLabels sets the field labels of an object.
func (s *Store) SetLabels(object string, labels map[string]string) {
	s.mu.Lock()
	s.labels[object] = labels
	s.mu.Unlock()
}

// PutProgram registers a parent program.
func (s *Store) PutProgram(program mapping.Program) {
	s.mu.Lock()
	s.programs[program.ID] = program
	s.mu.Unlock()
}

// GetProgram returns a registered program, or nil when unknown.
func (s *Store) GetProgram(ctx context.Context, id string) (*mapping.Program, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	program, ok := s.programs[id]
	if !ok {
		return nil, nil
	}
	return &program, nil
}

// PutMapping seeds a persisted mapping for a parent.
func (s *Store) PutMapping(parentID string, m mapping.PersistedMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mappings[parentID] == nil {
		s.mappings[parentID] = make(map[string]mapping.PersistedMapping)
	}
	s.mappings[parentID][mapping.ProductKey(m.Name)] = cloneMapping(m)
}

// ListProducts returns the catalog in insertion order.
func (s *Store) ListProducts(ctx context.Context) ([]mapping.ProductMasterRecord, error) {
	_ = ctx
	if s.CatalogErr != nil {
		return nil, s.CatalogErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]mapping.ProductMasterRecord(nil), s.products...), nil
}

// ListByParent returns the mappings stored for a parent.
func (s *Store) ListByParent(ctx context.Context, parentID string) (map[string]mapping.PersistedMapping, error) {
	_ = ctx
	if s.MappingErr != nil {
		return nil, s.MappingErr
	}
	if parentID == "" {
		return nil, errors.New("memory store: empty parent id")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]mapping.PersistedMapping, len(s.mappings[parentID]))
	for name, m := range s.mappings[parentID] {
		out[name] = cloneMapping(m)
	}
	return out, nil
}

// ListFacets returns the facet values.
func (s *Store) ListFacets(ctx context.Context) (mapping.Facets, error) {
	_ = ctx
	if s.FacetErr != nil {
		return mapping.Facets{}, s.FacetErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mapping.Facets{
		Power:   append([]string(nil), s.facets.Power...),
		Segment: append([]string(nil), s.facets.Segment...),
	}, nil
}

// FieldLabels returns the labels registered for object.
func (s *Store) FieldLabels(ctx context.Context, object string) (map[string]string, error) {
	_ = ctx
	if s.LabelErr != nil {
		return nil, s.LabelErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.labels[object]))
	for k, v := range s.labels[object] {
		out[k] = v
	}
	return out, nil
}

// SaveMappings upserts the payload. Rows are matched by id then by name and
// years by id then by period; unmatched ones are created with a fresh id.
func (s *Store) SaveMappings(ctx context.Context, parentID string, payload mapping.SavePayload) error {
	_ = ctx
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if parentID == "" {
		return errors.New("memory store: empty parent id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves = append(s.saves, SaveCall{ParentID: parentID, Payload: payload})
	stored := s.mappings[parentID]
	if stored == nil {
		stored = make(map[string]mapping.PersistedMapping)
		s.mappings[parentID] = stored
	}

	for _, row := range payload {
		key := mapping.ProductKey(row.Name)
		current, ok := stored[key]
		if row.ID != nil {
			if byID, found := findByID(stored, *row.ID); found {
				current, ok = byID, true
			}
		}
		if !ok {
			current = mapping.PersistedMapping{MappingID: mapping.NewRecordID(mappingIDPrefix)}
		}
		current.Name = row.Name
		current.Price = row.Price
		current.CurrentStatus = row.CurrentStatus

		for _, period := range row.PeriodData {
			values := make(map[string]mapping.Amount, len(period.Values))
			for _, v := range period.Values {
				values[v.Key] = v.Value
			}
			idx := findPeriodRow(current.PeriodRows, period)
			if idx < 0 {
				current.PeriodRows = append(current.PeriodRows, mapping.PersistedPeriodRow{
					PeriodID:   period.PeriodID,
					ChildRowID: mapping.NewRecordID(yearIDPrefix),
					Values:     values,
				})
				continue
			}
			current.PeriodRows[idx].PeriodID = period.PeriodID
			current.PeriodRows[idx].Values = values
		}
		stored[key] = current
	}
	return nil
}

// Saves returns the recorded save calls.
func (s *Store) Saves() []SaveCall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SaveCall(nil), s.saves...)
}

// findPeriodRow matches a stored year by child id, then by period.
func findPeriodRow(rows []mapping.PersistedPeriodRow, period mapping.PayloadPeriod) int {
	if period.ChildRowID != nil {
		for i, existing := range rows {
			if existing.ChildRowID == *period.ChildRowID {
				return i
			}
		}
	}
	for i, existing := range rows {
		if existing.PeriodID == period.PeriodID {
			return i
		}
	}
	return -1
}

func findByID(stored map[string]mapping.PersistedMapping, id string) (mapping.PersistedMapping, bool) {
	for _, m := range stored {
		if m.MappingID == id {
			return m, true
		}
	}
	return mapping.PersistedMapping{}, false
}

func cloneMapping(m mapping.PersistedMapping) mapping.PersistedMapping {
	rows := make([]mapping.PersistedPeriodRow, len(m.PeriodRows))
	for i, r := range m.PeriodRows {
		values := make(map[string]mapping.Amount, len(r.Values))
		for k, v := range r.Values {
			values[k] = v
		}
		r.Values = values
		rows[i] = r
	}
	m.PeriodRows = rows
	return m
}

func distinctFacets(products []mapping.ProductMasterRecord) mapping.Facets {
	powers := make(map[string]struct{})
	segments := make(map[string]struct{})
	for _, p := range products {
		if p.Power != "" {
			powers[p.Power] = struct{}{}
		}
		if p.Segment != "" {
			segments[p.Segment] = struct{}{}
		}
	}
	return mapping.Facets{Power: sortedKeys(powers), Segment: sortedKeys(segments)}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
