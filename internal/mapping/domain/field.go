package mapping

import "fmt"

// Scalar fields editable on every row.
const (
	FieldPrice         = "price"
	FieldCurrentStatus = "currentStatus"
)

// Keys used by period entries on the wire; year fields may not reuse them.
const (
	keyPeriodID   = "periodId"
	keyChildRowID = "childRowId"
)

// FieldSpec names one numeric year field.
type FieldSpec struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
}

// FieldSet is the ordered list of year fields carried by every period entry.
type FieldSet []FieldSpec

// Validate checks that keys are present, unique and not reserved.
func (fs FieldSet) Validate() error {
	if len(fs) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidFieldSet)
	}
	seen := make(map[string]struct{}, len(fs))
	for _, f := range fs {
		switch f.Key {
		case "":
			return fmt.Errorf("%w: empty key", ErrInvalidFieldSet)
		case keyPeriodID, keyChildRowID, FieldPrice, FieldCurrentStatus:
			return fmt.Errorf("%w: reserved key %q", ErrInvalidFieldSet, f.Key)
		}
		if _, ok := seen[f.Key]; ok {
			return fmt.Errorf("%w: duplicate key %q", ErrInvalidFieldSet, f.Key)
		}
		seen[f.Key] = struct{}{}
	}
	return nil
}

// Keys returns the field keys in order.
func (fs FieldSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for _, f := range fs {
		keys = append(keys, f.Key)
	}
	return keys
}

// Has reports whether key belongs to the set.
func (fs FieldSet) Has(key string) bool {
	for _, f := range fs {
		if f.Key == key {
			return true
		}
	}
	return false
}

// WithLabels returns a copy whose labels are replaced by the given lookup
// where it has an entry. Blank labels fall back to the key.
func (fs FieldSet) WithLabels(labels map[string]string) FieldSet {
	out := make(FieldSet, len(fs))
	for i, f := range fs {
		if label, ok := labels[f.Key]; ok && label != "" {
			f.Label = label
		}
		if f.Label == "" {
			f.Label = f.Key
		}
		out[i] = f
	}
	return out
}
