package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions recorded against mapping programs.
const (
	ActionMappingSave   = "mapping.save"
	ActionMappingExport = "mapping.export"
	ActionMappingWindow = "mapping.window"

	ResourceMappingSession = "mapping_session"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	TenantID      string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	ParentID      string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// DefaultListLimit caps a trail query without an explicit limit.
const DefaultListLimit = 50

// Query selects the trail of one program, newest first. An empty TenantID
// matches every tenant.
type Query struct {
	TenantID string
	ParentID string
	Limit    int
}

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > 500 {
		return DefaultListLimit
	}
	return q.Limit
}

// Trail writes entries and reads them back per program.
type Trail interface {
	Logger
	List(ctx context.Context, q Query) ([]Entry, error)
}

func prepare(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(entry.Metadata) == 0 {
		entry.Metadata = json.RawMessage(`{}`)
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	return entry
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Recorder keeps entries in memory. Used in demo mode and tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Log appends an entry.
func (r *Recorder) Log(_ context.Context, entry Entry) error {
	entry = prepare(entry)
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

// List returns the entries matching q, newest first.
func (r *Recorder) List(_ context.Context, q Query) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for i := len(r.entries) - 1; i >= 0 && len(out) < q.limit(); i-- {
		e := r.entries[i]
		if e.ParentID != q.ParentID || (q.TenantID != "" && e.TenantID != q.TenantID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
