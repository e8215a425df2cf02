package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	mapping "program-mapping/internal/mapping/domain"
	"program-mapping/internal/mapping/infrastructure/memory"
)

type blockingSink struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) SaveMappings(ctx context.Context, parentID string, payload mapping.SavePayload) error {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestService(t *testing.T, store *memory.Store, sink PersistenceSink, logs *bytes.Buffer) *Service {
	t.Helper()
	cfg := Config{WindowSize: 3, SessionTTL: time.Hour, LabelObject: "product_program_mapping", Fields: testFields}
	loader, err := NewLoader(store, store, store)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	if sink == nil {
		sink = store
	}
	var out bytes.Buffer
	if logs == nil {
		logs = &out
	}
	clock := newFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	service, err := NewService(loader, sink, NewRegistry(cfg.SessionTTL, clock), cfg,
		WithLabelLookup(store),
		WithLogger(log.New(logs, "", 0)),
		WithClock(clock),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func openSession(t *testing.T, service *Service) *Session {
	t.Helper()
	session, err := service.Open(context.Background(), testParent, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return session
}

func TestServiceOpenUsesCurrentFinancialYear(t *testing.T) {
	service := newTestService(t, testStore(), nil, nil)
	session := openSession(t, service)
	if got := strings.Join(session.Window().IDs(), ","); got != "2024-25,2025-26,2026-27" {
		t.Fatalf("unexpected window %s", got)
	}
	if _, err := service.Session(session.ID()); err != nil {
		t.Fatalf("expected session registered, got %v", err)
	}
}

func TestServiceOpenLogsOrphans(t *testing.T) {
	store := testStore()
	store.PutMapping(testParent, mapping.PersistedMapping{MappingID: "a0M000000000000009", Name: "Discontinued"})
	var logs bytes.Buffer
	service := newTestService(t, store, nil, &logs)

	session := openSession(t, service)
	if len(session.Rows()) != 3 {
		t.Fatalf("expected orphan to be dropped")
	}
	if !strings.Contains(logs.String(), "Discontinued") {
		t.Fatalf("expected orphan to be logged, got %q", logs.String())
	}
}

func TestServiceOpenLoadFailure(t *testing.T) {
	store := testStore()
	store.CatalogErr = errors.New("catalog offline")
	service := newTestService(t, store, nil, nil)

	if _, err := service.Open(context.Background(), testParent, nil); !errors.Is(err, mapping.ErrLoadFailure) {
		t.Fatalf("expected ErrLoadFailure, got %v", err)
	}
}

func TestServiceFieldsUseLabelLookup(t *testing.T) {
	store := testStore()
	store.SetLabels("product_program_mapping", map[string]string{"applications": "Apps"})
	service := newTestService(t, store, nil, nil)

	fields := service.Fields(context.Background())
	if fields[0].Label != "Apps" || fields[1].Label != "SOB" {
		t.Fatalf("unexpected labels %+v", fields)
	}

	store.LabelErr = errors.New("describe failed")
	fields = service.Fields(context.Background())
	if fields[0].Label != "Applications" {
		t.Fatalf("expected configured label on lookup failure, got %+v", fields)
	}
}

func TestServiceSaveNoRowsSelected(t *testing.T) {
	store := testStore()
	service := newTestService(t, store, nil, nil)
	session := openSession(t, service)
	if _, err := session.SetSelected("Beta", false); err != nil {
		t.Fatalf("deselect: %v", err)
	}

	if _, err := service.Save(context.Background(), session.ID()); !errors.Is(err, mapping.ErrNoRowsSelected) {
		t.Fatalf("expected ErrNoRowsSelected, got %v", err)
	}
	if n := len(store.Saves()); n != 0 {
		t.Fatalf("expected no sink call, got %d", n)
	}
}

func TestServiceSaveFailureLeavesSessionUntouched(t *testing.T) {
	store := testStore()
	store.SaveErr = errors.New("write timeout")
	service := newTestService(t, store, nil, nil)
	session := openSession(t, service)
	if _, err := session.EditScalar("Beta", mapping.FieldPrice, "50"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	before := session.Snapshot()

	_, err := service.Save(context.Background(), session.ID())
	if !errors.Is(err, mapping.ErrSaveFailure) || !errors.Is(err, store.SaveErr) {
		t.Fatalf("expected ErrSaveFailure wrapping cause, got %v", err)
	}
	if !reflect.DeepEqual(before, session.Snapshot()) {
		t.Fatalf("session changed after failed save")
	}
	if _, err := service.Session(session.ID()); err != nil {
		t.Fatalf("session must stay open after failed save: %v", err)
	}

	store.SaveErr = nil
	result, err := service.Save(context.Background(), session.ID())
	if err != nil {
		t.Fatalf("retry save: %v", err)
	}
	if result.Rows != 1 || result.Updated != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestServiceSaveSuccess(t *testing.T) {
	store := testStore()
	service := newTestService(t, store, nil, nil)
	session := openSession(t, service)
	if _, err := session.SetSelected("Gamma", true); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := session.EditPeriodField("Gamma", "2024-25", "sob", "2"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	result, err := service.Save(context.Background(), session.ID())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if result.Rows != 2 || result.Created != 1 || result.Updated != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := service.Session(session.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session closed after save, got %v", err)
	}

	saves := store.Saves()
	if len(saves) != 1 || saves[0].ParentID != testParent {
		t.Fatalf("unexpected saves %+v", saves)
	}
	payload := saves[0].Payload
	if payload[0].Name != "Beta" || payload[1].Name != "Gamma" {
		t.Fatalf("payload not in row order: %s, %s", payload[0].Name, payload[1].Name)
	}
	beta := payload[0]
	if beta.PeriodData[0].ChildRowID == nil || *beta.PeriodData[0].ChildRowID != testYearID {
		t.Fatalf("expected persisted child id on Beta 2024-25")
	}
	if beta.PeriodData[1].ChildRowID != nil {
		t.Fatalf("expected null child id on new period")
	}

	reloaded, err := store.ListByParent(context.Background(), testParent)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	gamma, ok := reloaded["Gamma"]
	if !ok || !mapping.IsRecordID(gamma.MappingID) {
		t.Fatalf("expected Gamma to be persisted with a record id, got %+v", gamma)
	}
	if row, ok := gamma.PeriodRow("2024-25"); !ok || !row.Values["sob"].Equal(mustAmount(t, "2")) {
		t.Fatalf("unexpected Gamma 2024-25 row %+v", row)
	}
}

func TestServiceRejectsOverlappingSave(t *testing.T) {
	store := testStore()
	sink := &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
	service := newTestService(t, store, sink, nil)
	session := openSession(t, service)

	done := make(chan error, 1)
	go func() {
		_, err := service.Save(context.Background(), session.ID())
		done <- err
	}()
	select {
	case <-sink.entered:
	case err := <-done:
		t.Fatalf("first save returned before reaching the sink: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the first save")
	}

	if _, err := service.Save(context.Background(), session.ID()); !errors.Is(err, ErrSaveInProgress) {
		t.Fatalf("expected ErrSaveInProgress, got %v", err)
	}
	close(sink.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first save: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the first save to finish")
	}
}

func TestServiceRegistryFollowsServiceClock(t *testing.T) {
	store := testStore()
	cfg := Config{WindowSize: 3, SessionTTL: time.Hour, LabelObject: "product_program_mapping", Fields: testFields}
	loader, err := NewLoader(store, store, store)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	clock := newFakeClock(time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC))
	service, err := NewService(loader, store, NewRegistry(cfg.SessionTTL, nil), cfg,
		WithLogger(log.New(io.Discard, "", 0)),
		WithClock(clock),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	session := openSession(t, service)
	if _, err := service.Session(session.ID()); err != nil {
		t.Fatalf("expected session live on the service clock, got %v", err)
	}
	clock.Advance(2 * time.Hour)
	if _, err := service.Session(session.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session expired on the service clock, got %v", err)
	}
}

func TestServiceSaveUnknownSession(t *testing.T) {
	service := newTestService(t, testStore(), nil, nil)
	if _, err := service.Save(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceSaveAfterShiftBackKeepsStoredYear(t *testing.T) {
	store := testStore()
	service := newTestService(t, store, nil, nil)
	anchor := 2025
	session, err := service.Open(context.Background(), testParent, &anchor)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := session.ShiftWindow(2024); err != nil {
		t.Fatalf("shift: %v", err)
	}
	if _, err := session.EditPeriodField("Beta", "2024-25", "applications", "7"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if _, err := service.Save(context.Background(), session.ID()); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopenAt := 2024
	reopened, err := service.Open(context.Background(), testParent, &reopenAt)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var beta mapping.Row
	for _, row := range reopened.Rows() {
		if row.Name == "Beta" {
			beta = row
		}
	}
	idx := beta.EntryIndex("2024-25")
	if idx < 0 {
		t.Fatalf("expected 2024-25 on reopened Beta")
	}
	entry := beta.PeriodData[idx]
	if entry.ChildRowID != testYearID {
		t.Fatalf("expected stored year %s reused, got %q", testYearID, entry.ChildRowID)
	}
	if !entry.Value("applications").Equal(mustAmount(t, "7")) {
		t.Fatalf("saved value lost: %s", entry.Value("applications"))
	}
}
