package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultWindowSize is the number of financial years shown at once.
	DefaultWindowSize = 5
	// FinancialYearStartMonth is the first month of a financial year.
	FinancialYearStartMonth = time.April

	minAnchorYear = 1000
	maxEndYear    = 9998
)

// Period describes one financial year inside a window.
type Period struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	StartYear int    `json:"startYear"`
}

// Window is an ordered run of contiguous financial years.
type Window []Period

// PeriodID formats the identity of the financial year starting in startYear, e.g. "2024-25".
func PeriodID(startYear int) string {
	return fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100)
}

// ParsePeriodID returns the start year encoded in a period id.
func ParsePeriodID(id string) (int, error) {
	start, end, ok := strings.Cut(id, "-")
	if !ok || len(end) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriodID, id)
	}
	year, err := strconv.Atoi(start)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriodID, id)
	}
	if PeriodID(year) != id {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriodID, id)
	}
	return year, nil
}

// FinancialYearAnchor returns the start year of the financial year containing now.
func FinancialYearAnchor(now time.Time) int {
	if now.Month() >= FinancialYearStartMonth {
		return now.Year()
	}
	return now.Year() - 1
}

// GenerateWindow builds size consecutive periods starting at anchor.
func GenerateWindow(anchor, size int) (Window, error) {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if anchor < minAnchorYear || anchor+size-1 > maxEndYear {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAnchor, anchor)
	}
	window := make(Window, 0, size)
	for i := 0; i < size; i++ {
		start := anchor + i
		id := PeriodID(start)
		window = append(window, Period{ID: id, Label: id, StartYear: start})
	}
	return window, nil
}

// CurrentWindow builds the window anchored on the financial year containing now.
func CurrentWindow(now time.Time, size int) (Window, error) {
	return GenerateWindow(FinancialYearAnchor(now), size)
}

// Anchor returns the start year of the first period, or 0 for an empty window.
func (w Window) Anchor() int {
	if len(w) == 0 {
		return 0
	}
	return w[0].StartYear
}

// IDs returns the period ids in window order.
func (w Window) IDs() []string {
	ids := make([]string, 0, len(w))
	for _, p := range w {
		ids = append(ids, p.ID)
	}
	return ids
}

// Index returns the position of the period with the given id, or -1.
func (w Window) Index(id string) int {
	for i, p := range w {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns an independent copy of the window.
func (w Window) Clone() Window {
	if w == nil {
		return nil
	}
	out := make(Window, len(w))
	copy(out, w)
	return out
}
