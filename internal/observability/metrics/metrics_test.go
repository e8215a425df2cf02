package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveBeforeInitIsSafe(t *testing.T) {
	if loadTotal != nil {
		t.Skip("metrics already registered")
	}
	ObserveLoad(ResultSuccess, time.Millisecond)
	ObserveSave(ResultError, time.Millisecond)
	ObserveExport("pdf", ResultSuccess, time.Millisecond)
	IncEdit("scalar", ResultSuccess)
	ObserveWindowShift(2)
	AddOrphanMappings(1)
	SetActiveSessions(3)
}

func TestCountersAfterInit(t *testing.T) {
	Init(nil, nil)

	before := testutil.ToFloat64(saveTotal.WithLabelValues(ResultNoRows))
	ObserveSave(ResultNoRows, 5*time.Millisecond)
	if got := testutil.ToFloat64(saveTotal.WithLabelValues(ResultNoRows)); got != before+1 {
		t.Fatalf("expected save counter %v, got %v", before+1, got)
	}

	shifts := testutil.ToFloat64(windowShifts)
	dropped := testutil.ToFloat64(droppedPeriods)
	ObserveWindowShift(2)
	if got := testutil.ToFloat64(windowShifts); got != shifts+1 {
		t.Fatalf("expected %v shifts, got %v", shifts+1, got)
	}
	if got := testutil.ToFloat64(droppedPeriods); got != dropped+2 {
		t.Fatalf("expected %v dropped periods, got %v", dropped+2, got)
	}

	SetActiveSessions(4)
	if got := testutil.ToFloat64(activeSessions); got != 4 {
		t.Fatalf("expected 4 active sessions, got %v", got)
	}
}

func TestStoreCollectorWithoutDB(t *testing.T) {
	if n := testutil.CollectAndCount(newStoreCollector(nil, nil)); n != 0 {
		t.Fatalf("expected no samples without a db, got %d", n)
	}
}
