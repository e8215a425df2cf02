package mapping

import (
	"bytes"
	"encoding/json"
	"sort"
)

// ProductMasterRecord is a catalog product.
type ProductMasterRecord struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Power     string `json:"power"`
	Segment   string `json:"segment"`
}

// PersistedPeriodRow is a stored per-year child record.
type PersistedPeriodRow struct {
	PeriodID   string
	ChildRowID string
	Values     map[string]Amount
}

// PersistedMapping is a stored parent record for one product.
type PersistedMapping struct {
	MappingID     string
	Name          string
	Price         Amount
	CurrentStatus string
	PeriodRows    []PersistedPeriodRow
}

// PeriodRow returns the stored row for periodID.
func (m PersistedMapping) PeriodRow(periodID string) (PersistedPeriodRow, bool) {
	for _, row := range m.PeriodRows {
		if row.PeriodID == periodID {
			return row, true
		}
	}
	return PersistedPeriodRow{}, false
}

// Facets lists the values available for the power and segment filters.
type Facets struct {
	Power   []string `json:"power"`
	Segment []string `json:"segment"`
}

// PeriodEntry holds the year field values of one row for one period.
type PeriodEntry struct {
	PeriodID   string
	ChildRowID string
	Values     map[string]Amount
}

// EmptyPeriodEntry returns an entry with every field empty and no child record.
func EmptyPeriodEntry(periodID string, fields FieldSet) PeriodEntry {
	values := make(map[string]Amount, len(fields))
	for _, f := range fields {
		values[f.Key] = EmptyAmount()
	}
	return PeriodEntry{PeriodID: periodID, Values: values}
}

// Value returns the value of a field; missing fields are empty.
func (e PeriodEntry) Value(key string) Amount {
	return e.Values[key]
}

// Clone returns a deep copy.
func (e PeriodEntry) Clone() PeriodEntry {
	values := make(map[string]Amount, len(e.Values))
	for k, v := range e.Values {
		values[k] = v
	}
	e.Values = values
	return e
}

// MarshalJSON writes periodId, childRowId and the field values in key order.
func (e PeriodEntry) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(e.Values))
	for k := range e.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]FieldValue, 0, len(keys))
	for _, k := range keys {
		values = append(values, FieldValue{Key: k, Value: e.Values[k]})
	}
	var child *string
	if e.ChildRowID != "" {
		child = &e.ChildRowID
	}
	return marshalPeriod(e.PeriodID, child, values)
}

// Row is the editable, per-product unit of a session.
type Row struct {
	ProductID     string        `json:"productId"`
	Name          string        `json:"name"`
	Price         Amount        `json:"price"`
	CurrentStatus string        `json:"currentStatus"`
	MappingID     string        `json:"mappingId,omitempty"`
	Selected      bool          `json:"selected"`
	PeriodData    []PeriodEntry `json:"periodData"`
	Power         string        `json:"power"`
	Segment       string        `json:"segment"`
}

// Key returns the product key of the row.
func (r Row) Key() string {
	return ProductKey(r.Name)
}

// EntryIndex returns the position of the entry for periodID, or -1.
func (r Row) EntryIndex(periodID string) int {
	for i, e := range r.PeriodData {
		if e.PeriodID == periodID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy.
func (r Row) Clone() Row {
	if r.PeriodData != nil {
		data := make([]PeriodEntry, len(r.PeriodData))
		for i, e := range r.PeriodData {
			data[i] = e.Clone()
		}
		r.PeriodData = data
	}
	return r
}

// CloneRows deep-copies a slice of rows.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// FieldValue is one keyed year field value.
type FieldValue struct {
	Key   string
	Value Amount
}

func marshalPeriod(periodID string, childRowID *string, values []FieldValue) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, keyPeriodID, periodID); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeMember(&buf, keyChildRowID, childRowID); err != nil {
		return nil, err
	}
	for _, v := range values {
		buf.WriteByte(',')
		if err := writeMember(&buf, v.Key, v.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// Program is the parent record whose product mappings are edited.
type Program struct {
	ID       string
	TenantID string
	Name     string
}
