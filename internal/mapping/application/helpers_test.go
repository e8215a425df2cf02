package application

import (
	"context"
	"sync"
	"testing"
	"time"

	mapping "program-mapping/internal/mapping/domain"
	"program-mapping/internal/mapping/infrastructure/memory"
)

const (
	testParent    = "prog-1"
	testMappingID = "a0M000000000000001"
	testYearID    = "a0Y000000000000001"
)

var testFields = mapping.FieldSet{
	{Key: "applications", Label: "Applications"},
	{Key: "sob", Label: "SOB"},
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testStore() *memory.Store {
	store := memory.NewStore([]mapping.ProductMasterRecord{
		{ProductID: "p1", Name: "Alpha", Power: "High", Segment: "Retail"},
		{ProductID: "p2", Name: "Beta", Power: "Low", Segment: "Wholesale"},
		{ProductID: "p3", Name: "Gamma", Power: "High", Segment: "Wholesale"},
	})
	store.PutMapping(testParent, mapping.PersistedMapping{
		MappingID:     testMappingID,
		Name:          "Beta",
		Price:         mapping.AmountFromInt(42),
		CurrentStatus: "Active",
		PeriodRows: []mapping.PersistedPeriodRow{{
			PeriodID:   "2024-25",
			ChildRowID: testYearID,
			Values:     map[string]mapping.Amount{"applications": mapping.AmountFromInt(3)},
		}},
	})
	return store
}

// loadedSession returns a session over 2024-25..2026-27 built from testStore.
func loadedSession(t *testing.T) *Session {
	t.Helper()
	store := testStore()
	products, err := store.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	mappings, err := store.ListByParent(context.Background(), testParent)
	if err != nil {
		t.Fatalf("list mappings: %v", err)
	}
	facets, err := store.ListFacets(context.Background())
	if err != nil {
		t.Fatalf("list facets: %v", err)
	}
	session, err := NewSession("s-1", testParent, testFields, 3, newFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	anchor := 2024
	if _, err := session.Initialize(LoadResult{Products: products, Mappings: mappings, Facets: facets}, &anchor); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return session
}

func mustAmount(t *testing.T, raw string) mapping.Amount {
	t.Helper()
	a, err := mapping.ParseAmount(raw)
	if err != nil {
		t.Fatalf("parse amount %q: %v", raw, err)
	}
	return a
}
