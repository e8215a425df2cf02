package mapping

import "testing"

var unitsOnly = FieldSet{{Key: "units", Label: "Units"}}

func mustWindow(t *testing.T, anchor, size int) Window {
	t.Helper()
	window, err := GenerateWindow(anchor, size)
	if err != nil {
		t.Fatalf("generate window: %v", err)
	}
	return window
}

func assertEntry(t *testing.T, e PeriodEntry, periodID, childID string, units Amount) {
	t.Helper()
	if e.PeriodID != periodID {
		t.Fatalf("expected period %s, got %s", periodID, e.PeriodID)
	}
	if e.ChildRowID != childID {
		t.Fatalf("period %s: expected child %q, got %q", periodID, childID, e.ChildRowID)
	}
	if !e.Value("units").Equal(units) {
		t.Fatalf("period %s: expected units %q, got %q", periodID, units, e.Value("units"))
	}
}
