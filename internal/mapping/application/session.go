package application

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mapping "program-mapping/internal/mapping/domain"
)

// Snapshot is a versioned copy of a session's state.
type Snapshot struct {
	SessionID string           `json:"sessionId"`
	ParentID  string           `json:"parentId"`
	Version   uint64           `json:"version"`
	Window    mapping.Window   `json:"window"`
	Fields    mapping.FieldSet `json:"fields"`
	Facets    mapping.Facets   `json:"facets"`
	Rows      []mapping.Row    `json:"rows"`
}

// Session is the edit buffer of one operator. Every mutation touches a single
// row or field, bumps the version and returns a copy of what changed.
type Session struct {
	mu         sync.Mutex
	id         string
	parentID   string
	fields     mapping.FieldSet
	windowSize int
	clock      Clock

	window    mapping.Window
	rows      []mapping.Row
	index     map[string]int
	facets    mapping.Facets
	filter    mapping.FilterState
	version   uint64
	ready     bool
	saving    bool
	touchedAt time.Time
}

// NewSession constructs an empty, not yet loaded session.
func NewSession(id, parentID string, fields mapping.FieldSet, windowSize int, clock Clock) (*Session, error) {
	if id == "" {
		return nil, errors.New("mapping session: empty id")
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if windowSize <= 0 {
		windowSize = mapping.DefaultWindowSize
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Session{
		id:         id,
		parentID:   parentID,
		fields:     append(mapping.FieldSet(nil), fields...),
		windowSize: windowSize,
		clock:      clock,
		touchedAt:  clock.Now(),
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ParentID returns the parent record the session edits mappings for.
func (s *Session) ParentID() string { return s.parentID }

// Fields returns the year field set.
func (s *Session) Fields() mapping.FieldSet {
	return append(mapping.FieldSet(nil), s.fields...)
}

// Initialize reconciles loaded data into rows over the window at anchor, or
// the current financial year when anchor is nil. It returns the names of
// persisted mappings that have no catalog product.
func (s *Session) Initialize(load LoadResult, anchor *int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		window mapping.Window
		err    error
	)
	if anchor != nil {
		window, err = mapping.GenerateWindow(*anchor, s.windowSize)
	} else {
		window, err = mapping.CurrentWindow(s.clock.Now(), s.windowSize)
	}
	if err != nil {
		return nil, err
	}

	s.window = window
	s.rows = mapping.Reconcile(load.Products, load.Mappings, window, s.fields)
	s.index = make(map[string]int, len(s.rows))
	for i, r := range s.rows {
		if _, dup := s.index[r.Key()]; !dup {
			s.index[r.Key()] = i
		}
	}
	s.facets = load.Facets
	s.filter = mapping.FilterState{}
	s.ready = true
	s.bump()
	return mapping.Orphans(load.Products, load.Mappings), nil
}

// Ready reports whether rows have been loaded.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// ApplyFilter stores f and returns the rows it lets through.
func (s *Session) ApplyFilter(f mapping.FilterState) ([]mapping.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, ErrSessionNotReady
	}
	s.filter = f.Clone()
	s.touch()
	return mapping.ApplyFilter(s.rows, s.filter), nil
}

// Visible re-evaluates the stored filter over the current rows.
func (s *Session) Visible() ([]mapping.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, ErrSessionNotReady
	}
	return mapping.ApplyFilter(s.rows, s.filter), nil
}

// Filter returns the stored filter.
func (s *Session) Filter() mapping.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.Clone()
}

// SetSelected includes or excludes a product from the next save.
func (s *Session) SetSelected(key string, selected bool) (mapping.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.lookup(key)
	if err != nil {
		return mapping.Row{}, err
	}
	s.rows[idx].Selected = selected
	s.bump()
	return s.rows[idx].Clone(), nil
}

// EditScalar sets price or currentStatus on a row.
func (s *Session) EditScalar(key, field, value string) (mapping.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.lookup(key)
	if err != nil {
		return mapping.Row{}, err
	}
	switch field {
	case mapping.FieldPrice:
		price, err := mapping.ParseAmount(value)
		if err != nil {
			return mapping.Row{}, err
		}
		s.rows[idx].Price = price
	case mapping.FieldCurrentStatus:
		s.rows[idx].CurrentStatus = value
	default:
		return mapping.Row{}, fmt.Errorf("%w: %q", mapping.ErrUnknownField, field)
	}
	s.bump()
	return s.rows[idx].Clone(), nil
}

// EditPeriodField sets one year field of one period on a row. An unknown
// period leaves the row untouched and reports mapping.ErrNotFound.
func (s *Session) EditPeriodField(key, periodID, field, value string) (mapping.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.lookup(key)
	if err != nil {
		return mapping.Row{}, err
	}
	if !s.fields.Has(field) {
		return mapping.Row{}, fmt.Errorf("%w: %q", mapping.ErrUnknownField, field)
	}
	amount, err := mapping.ParseAmount(value)
	if err != nil {
		return mapping.Row{}, err
	}
	row := &s.rows[idx]
	entry := row.EntryIndex(periodID)
	if entry < 0 {
		return row.Clone(), fmt.Errorf("%w: period %q", mapping.ErrNotFound, periodID)
	}
	row.PeriodData[entry].Values[field] = amount
	s.bump()
	return row.Clone(), nil
}

// ShiftWindow moves the window to start at anchor and re-projects every row.
// It returns the ids of the periods whose data was discarded.
func (s *Session) ShiftWindow(anchor int) (Snapshot, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return Snapshot{}, nil, ErrSessionNotReady
	}
	return s.shiftLocked(anchor)
}

// ResetYear advances the window by one financial year.
func (s *Session) ResetYear() (Snapshot, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return Snapshot{}, nil, ErrSessionNotReady
	}
	return s.shiftLocked(s.window.Anchor() + 1)
}

func (s *Session) shiftLocked(anchor int) (Snapshot, []string, error) {
	window, err := mapping.GenerateWindow(anchor, s.windowSize)
	if err != nil {
		return Snapshot{}, nil, err
	}
	dropped := mapping.DroppedPeriods(s.window, window)
	s.rows = mapping.ShiftRows(s.rows, window, s.fields)
	s.window = window
	s.bump()
	return s.snapshotLocked(), dropped, nil
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Version returns the number of mutations applied so far.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Rows returns a copy of every row, ignoring the filter.
func (s *Session) Rows() []mapping.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mapping.CloneRows(s.rows)
}

// Window returns the current window.
func (s *Session) Window() mapping.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Clone()
}

// beginSave projects the selected rows and marks a save as outstanding.
func (s *Session) beginSave() (mapping.SavePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, ErrSessionNotReady
	}
	if s.saving {
		return nil, ErrSaveInProgress
	}
	payload, err := mapping.Project(s.rows, s.fields)
	if err != nil {
		return nil, err
	}
	s.saving = true
	s.touch()
	return payload, nil
}

func (s *Session) endSave() {
	s.mu.Lock()
	s.saving = false
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

func (s *Session) lookup(key string) (int, error) {
	if !s.ready {
		return 0, ErrSessionNotReady
	}
	idx, ok := s.index[mapping.ProductKey(key)]
	if !ok {
		return 0, fmt.Errorf("%w: product %q", mapping.ErrNotFound, key)
	}
	return idx, nil
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: s.id,
		ParentID:  s.parentID,
		Version:   s.version,
		Window:    s.window.Clone(),
		Fields:    append(mapping.FieldSet(nil), s.fields...),
		Facets: mapping.Facets{
			Power:   append([]string(nil), s.facets.Power...),
			Segment: append([]string(nil), s.facets.Segment...),
		},
		Rows: mapping.CloneRows(s.rows),
	}
}

func (s *Session) bump() {
	s.version++
	s.touch()
}

func (s *Session) touch() {
	s.touchedAt = s.clock.Now()
}
