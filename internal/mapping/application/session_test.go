package application

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	mapping "program-mapping/internal/mapping/domain"
)

func TestSessionNotReady(t *testing.T) {
	session, err := NewSession("s-1", testParent, testFields, 3, nil)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if session.Ready() {
		t.Fatalf("expected not ready")
	}
	if _, err := session.SetSelected("Alpha", true); !errors.Is(err, ErrSessionNotReady) {
		t.Fatalf("expected ErrSessionNotReady, got %v", err)
	}
	if _, err := session.Visible(); !errors.Is(err, ErrSessionNotReady) {
		t.Fatalf("expected ErrSessionNotReady, got %v", err)
	}
	if len(session.Rows()) != 0 {
		t.Fatalf("expected no rows before load")
	}
}

func TestNewSessionRejectsBadFields(t *testing.T) {
	fields := mapping.FieldSet{{Key: "price", Label: "Price"}}
	if _, err := NewSession("s-1", testParent, fields, 3, nil); err == nil {
		t.Fatalf("expected reserved field key to be rejected")
	}
}

func TestInitializeWithoutAnchorUsesClock(t *testing.T) {
	session, err := NewSession("s-1", testParent, testFields, 2, newFakeClock(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := session.Initialize(LoadResult{}, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := strings.Join(session.Window().IDs(), ","); got != "2024-25,2025-26" {
		t.Fatalf("unexpected window %s", got)
	}
}

func TestInitializeReportsOrphans(t *testing.T) {
	session, err := NewSession("s-1", testParent, testFields, 3, nil)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	load := LoadResult{
		Products: []mapping.ProductMasterRecord{{Name: "Alpha"}},
		Mappings: map[string]mapping.PersistedMapping{
			"Alpha":   {Name: "Alpha"},
			"Retired": {Name: "Retired"},
		},
	}
	orphans, err := session.Initialize(load, nil)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(orphans) != 1 || orphans[0] != "Retired" {
		t.Fatalf("unexpected orphans %v", orphans)
	}
	if len(session.Rows()) != 1 {
		t.Fatalf("expected orphan to be dropped from rows")
	}
}

func TestEditPeriodFieldTouchesOnlyTarget(t *testing.T) {
	session := loadedSession(t)
	before := session.Rows()

	row, err := session.EditPeriodField("Beta", "2025-26", "sob", "9")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !row.PeriodData[1].Value("sob").Equal(mustAmount(t, "9")) {
		t.Fatalf("returned row not updated: %+v", row.PeriodData[1])
	}

	after := session.Rows()
	for i := range before {
		if before[i].Name != "Beta" {
			if !reflect.DeepEqual(before[i], after[i]) {
				t.Fatalf("row %s changed", before[i].Name)
			}
			continue
		}
		want := before[i].Clone()
		want.PeriodData[1].Values["sob"] = mustAmount(t, "9")
		if !reflect.DeepEqual(want, after[i]) {
			t.Fatalf("unexpected Beta row:\n got %+v\nwant %+v", after[i], want)
		}
	}
}

func TestEditReturnsCopy(t *testing.T) {
	session := loadedSession(t)
	row, err := session.EditScalar("Alpha", mapping.FieldCurrentStatus, "Pilot")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	row.CurrentStatus = "tampered"
	row.PeriodData[0].Values["sob"] = mustAmount(t, "1")

	stored := session.Rows()[0]
	if stored.CurrentStatus != "Pilot" {
		t.Fatalf("session row changed through returned copy: %q", stored.CurrentStatus)
	}
	if !stored.PeriodData[0].Value("sob").IsEmpty() {
		t.Fatalf("session period changed through returned copy")
	}
}

func TestEditScalarPrice(t *testing.T) {
	session := loadedSession(t)
	row, err := session.EditScalar("Alpha", mapping.FieldPrice, "19.99")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if row.Price.String() != "19.99" {
		t.Fatalf("unexpected price %s", row.Price)
	}
	if _, err := session.EditScalar("Alpha", mapping.FieldPrice, "cheap"); !errors.Is(err, mapping.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := session.EditScalar("Alpha", "margin", "1"); !errors.Is(err, mapping.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestVersionBumpsOnMutationOnly(t *testing.T) {
	session := loadedSession(t)
	v0 := session.Version()

	if _, err := session.SetSelected("Alpha", true); err != nil {
		t.Fatalf("select: %v", err)
	}
	if session.Version() != v0+1 {
		t.Fatalf("expected version %d, got %d", v0+1, session.Version())
	}
	if _, err := session.ApplyFilter(mapping.FilterState{SearchText: "a"}); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if session.Version() != v0+1 {
		t.Fatalf("filter must not bump version")
	}
	if _, err := session.SetSelected("Omega", true); !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if session.Version() != v0+1 {
		t.Fatalf("failed edit must not bump version")
	}
}

func TestEditUnknownPeriodIsNoop(t *testing.T) {
	session := loadedSession(t)
	before := session.Snapshot()

	row, err := session.EditPeriodField("Alpha", "1999-00", "sob", "5")
	if !errors.Is(err, mapping.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if row.Name != "Alpha" {
		t.Fatalf("expected unchanged row back, got %+v", row)
	}
	after := session.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("session changed on unknown period")
	}
}

func TestApplyFilterDoesNotMutate(t *testing.T) {
	session := loadedSession(t)
	before := session.Rows()
	filter := mapping.FilterState{Powers: []string{"High"}}

	first, err := session.ApplyFilter(filter)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	second, err := session.ApplyFilter(filter)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("filter not idempotent")
	}
	if len(first) != 2 || first[0].Name != "Alpha" || first[1].Name != "Gamma" {
		t.Fatalf("unexpected filter result %+v", first)
	}
	if !reflect.DeepEqual(before, session.Rows()) {
		t.Fatalf("filter mutated rows")
	}
}

func TestVisibleReflectsEdits(t *testing.T) {
	session := loadedSession(t)
	if _, err := session.ApplyFilter(mapping.FilterState{Segments: []string{"Retail"}}); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if _, err := session.SetSelected("Alpha", true); err != nil {
		t.Fatalf("select: %v", err)
	}
	visible, err := session.Visible()
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if len(visible) != 1 || !visible[0].Selected {
		t.Fatalf("unexpected visible rows %+v", visible)
	}
}

func TestShiftWindowCarriesOverlap(t *testing.T) {
	session := loadedSession(t)
	if _, err := session.EditPeriodField("Beta", "2025-26", "sob", "8"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	snap, dropped, err := session.ShiftWindow(2025)
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != "2024-25" {
		t.Fatalf("unexpected dropped %v", dropped)
	}
	if got := strings.Join(snap.Window.IDs(), ","); got != "2025-26,2026-27,2027-28" {
		t.Fatalf("unexpected window %s", got)
	}
	beta := snap.Rows[1]
	if beta.Name != "Beta" || beta.MappingID != testMappingID || !beta.Selected {
		t.Fatalf("scalar fields changed: %+v", beta)
	}
	if !beta.PeriodData[0].Value("sob").Equal(mustAmount(t, "8")) {
		t.Fatalf("overlapping edit lost: %+v", beta.PeriodData[0])
	}
	if beta.PeriodData[2].ChildRowID != "" || !beta.PeriodData[2].Value("sob").IsEmpty() {
		t.Fatalf("new period not empty: %+v", beta.PeriodData[2])
	}

	if _, _, err := session.ShiftWindow(10); !errors.Is(err, mapping.ErrInvalidAnchor) {
		t.Fatalf("expected ErrInvalidAnchor, got %v", err)
	}
}

func TestResetYearAdvancesAnchor(t *testing.T) {
	session := loadedSession(t)
	snap, dropped, err := session.ResetYear()
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if snap.Window.Anchor() != 2025 {
		t.Fatalf("expected anchor 2025, got %d", snap.Window.Anchor())
	}
	if len(dropped) != 1 {
		t.Fatalf("expected one dropped period, got %v", dropped)
	}
}

func TestEditScalarTouchesOnlyPrice(t *testing.T) {
	session := loadedSession(t)
	before := session.Rows()

	if _, err := session.EditScalar("Gamma", mapping.FieldPrice, "7.25"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	after := session.Rows()
	for i := range before {
		want := before[i]
		if want.Name == "Gamma" {
			want = want.Clone()
			want.Price = mustAmount(t, "7.25")
		}
		if !reflect.DeepEqual(want, after[i]) {
			t.Fatalf("row %s:\n got %+v\nwant %+v", want.Name, after[i], want)
		}
	}
}

func TestSessionConcurrentResetYearAdvancesEveryCall(t *testing.T) {
	session := loadedSession(t)
	const calls = 8
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := session.ResetYear(); err != nil {
				t.Errorf("reset year: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := session.Window().Anchor(); got != 2024+calls {
		t.Fatalf("expected anchor %d, got %d", 2024+calls, got)
	}
}
