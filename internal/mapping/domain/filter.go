package mapping

import (
	"strings"

	"golang.org/x/text/cases"
)

// FilterState narrows the visible rows. Empty facet sets match everything.
type FilterState struct {
	SearchText string   `json:"searchText"`
	Powers     []string `json:"powers"`
	Segments   []string `json:"segments"`
}

// IsZero reports whether the filter lets every row through.
func (f FilterState) IsZero() bool {
	return f.SearchText == "" && len(f.Powers) == 0 && len(f.Segments) == 0
}

// Clone returns an independent copy.
func (f FilterState) Clone() FilterState {
	f.Powers = append([]string(nil), f.Powers...)
	f.Segments = append([]string(nil), f.Segments...)
	return f
}

// ApplyFilter returns copies of the rows matching f, in input order.
func ApplyFilter(rows []Row, f FilterState) []Row {
	m := newMatcher(f)
	visible := make([]Row, 0, len(rows))
	for _, r := range rows {
		if m.matches(r) {
			visible = append(visible, r.Clone())
		}
	}
	return visible
}

type matcher struct {
	fold     cases.Caser
	search   string
	powers   map[string]struct{}
	segments map[string]struct{}
}

func newMatcher(f FilterState) *matcher {
	fold := cases.Fold()
	return &matcher{
		fold:     fold,
		search:   fold.String(f.SearchText),
		powers:   toSet(f.Powers),
		segments: toSet(f.Segments),
	}
}

func (m *matcher) matches(r Row) bool {
	if m.search != "" && !strings.Contains(m.fold.String(r.Name), m.search) {
		return false
	}
	if len(m.powers) > 0 {
		if _, ok := m.powers[r.Power]; !ok {
			return false
		}
	}
	if len(m.segments) > 0 {
		if _, ok := m.segments[r.Segment]; !ok {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
