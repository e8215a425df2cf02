package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	mapping "program-mapping/internal/mapping/domain"
	"program-mapping/internal/observability/metrics"
)

// SaveResult describes a completed save.
type SaveResult struct {
	SessionID string
	ParentID  string
	Rows      int
	Created   int
	Updated   int
	Payload   mapping.SavePayload
}

// Service opens edit sessions and saves them.
type Service struct {
	loader   *Loader
	sink     PersistenceSink
	registry *Registry
	labels   FieldLabelLookup
	cfg      Config
	logger   *log.Logger
	clock    Clock
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithLabelLookup sets the field label collaborator.
func WithLabelLookup(labels FieldLabelLookup) ServiceOption {
	return func(s *Service) {
		s.labels = labels
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs the service.
func NewService(loader *Loader, sink PersistenceSink, registry *Registry, cfg Config, opts ...ServiceOption) (*Service, error) {
	if loader == nil {
		return nil, errors.New("mapping service: nil loader")
	}
	if sink == nil {
		return nil, errors.New("mapping service: nil persistence sink")
	}
	if registry == nil {
		return nil, errors.New("mapping service: nil registry")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		loader:   loader,
		sink:     sink,
		registry: registry,
		cfg:      cfg,
		logger:   log.Default(),
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	registry.adoptClock(s.clock)
	return s, nil
}

// Open loads the datasets of parentID and registers a new session over the
// window at anchor, or the current financial year when anchor is nil.
func (s *Service) Open(ctx context.Context, parentID string, anchor *int) (*Session, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveLoad(result, time.Since(start))
	}()

	if parentID == "" {
		result = metrics.ResultError
		return nil, errors.New("mapping service: parent id required")
	}
	session, err := NewSession(uuid.NewString(), parentID, s.Fields(ctx), s.cfg.WindowSize, s.clock)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	loaded, err := s.loader.Load(ctx, parentID)
	if err != nil {
		result = metrics.ResultLoadFailed
		s.logger.Printf("mapping load failed: parent=%s err=%v", parentID, err)
		return nil, err
	}
	orphans, err := session.Initialize(loaded, anchor)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if len(orphans) > 0 {
		metrics.AddOrphanMappings(len(orphans))
		s.logger.Printf("mapping load: parent=%s skipped %d mappings without catalog product: %v", parentID, len(orphans), orphans)
	}

	s.registry.Add(session)
	metrics.SetActiveSessions(s.registry.Len())
	return session, nil
}

// Session returns a registered session.
func (s *Service) Session(id string) (*Session, error) {
	return s.registry.Get(id)
}

// Close drops a session.
func (s *Service) Close(id string) {
	s.registry.Remove(id)
	metrics.SetActiveSessions(s.registry.Len())
}

// Fields returns the configured year fields with labels from the lookup
// collaborator when one is set. Lookup failures keep the configured labels.
func (s *Service) Fields(ctx context.Context) mapping.FieldSet {
	fields := append(mapping.FieldSet(nil), s.cfg.Fields...)
	if s.labels == nil {
		return fields.WithLabels(nil)
	}
	labels, err := s.labels.FieldLabels(ctx, s.cfg.LabelObject)
	if err != nil {
		s.logger.Printf("mapping field labels: object=%s err=%v", s.cfg.LabelObject, err)
		return fields.WithLabels(nil)
	}
	return fields.WithLabels(labels)
}

// Facets returns the current filter picklist values.
func (s *Service) Facets(ctx context.Context) (mapping.Facets, error) {
	facets, err := s.loader.facets.ListFacets(ctx)
	if err != nil {
		return mapping.Facets{}, fmt.Errorf("%w: %w", mapping.ErrLoadFailure, err)
	}
	return facets, nil
}

// Save projects the selected rows of a session and hands them to the sink.
// A failed save leaves the session as it was so the operator can retry; a
// successful save closes the session.
func (s *Service) Save(ctx context.Context, sessionID string) (SaveResult, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSave(result, time.Since(start))
	}()

	session, err := s.registry.Get(sessionID)
	if err != nil {
		result = metrics.ResultNotFound
		return SaveResult{}, err
	}
	payload, err := session.beginSave()
	if err != nil {
		if errors.Is(err, mapping.ErrNoRowsSelected) {
			result = metrics.ResultNoRows
		} else {
			result = metrics.ResultError
		}
		return SaveResult{}, err
	}
	defer session.endSave()

	if err := s.sink.SaveMappings(ctx, session.ParentID(), payload); err != nil {
		result = metrics.ResultError
		s.logger.Printf("mapping save failed: session=%s parent=%s rows=%d err=%v", sessionID, session.ParentID(), len(payload), err)
		return SaveResult{}, fmt.Errorf("%w: %w", mapping.ErrSaveFailure, err)
	}

	out := SaveResult{
		SessionID: sessionID,
		ParentID:  session.ParentID(),
		Rows:      len(payload),
		Payload:   payload,
	}
	for _, row := range payload {
		if row.ID == nil {
			out.Created++
		} else {
			out.Updated++
		}
	}
	metrics.AddSavedRows(out.Rows)
	s.Close(sessionID)
	return out, nil
}

// SweepExpired removes idle sessions.
func (s *Service) SweepExpired() int {
	removed := s.registry.Sweep()
	if removed > 0 {
		s.logger.Printf("mapping sessions: expired %d", removed)
	}
	metrics.SetActiveSessions(s.registry.Len())
	return removed
}

// RunSweeper sweeps idle sessions every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired()
		}
	}
}
