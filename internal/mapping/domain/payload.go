package mapping

// SavePayload is the body handed to the persistence sink.
type SavePayload []PayloadRow

// PayloadRow is one selected product. A nil ID asks for a new parent record.
type PayloadRow struct {
	Name          string          `json:"name"`
	Price         Amount          `json:"price"`
	CurrentStatus string          `json:"currentStatus"`
	ID            *string         `json:"id"`
	PeriodData    []PayloadPeriod `json:"periodData"`
}

// PayloadPeriod is one year of a selected product. A nil ChildRowID asks for
// a new child record.
type PayloadPeriod struct {
	PeriodID   string
	ChildRowID *string
	Values     []FieldValue
}

// Value returns the value of key, or an empty amount.
func (p PayloadPeriod) Value(key string) Amount {
	for _, v := range p.Values {
		if v.Key == key {
			return v.Value
		}
	}
	return EmptyAmount()
}

// MarshalJSON writes periodId, childRowId and then each field in field-set order.
func (p PayloadPeriod) MarshalJSON() ([]byte, error) {
	return marshalPeriod(p.PeriodID, p.ChildRowID, p.Values)
}

// Project builds the save payload from the selected rows, in row order.
func Project(rows []Row, fields FieldSet) (SavePayload, error) {
	payload := make(SavePayload, 0, len(rows))
	for _, r := range rows {
		if !r.Selected {
			continue
		}
		periods := make([]PayloadPeriod, 0, len(r.PeriodData))
		for _, e := range r.PeriodData {
			values := make([]FieldValue, 0, len(fields))
			for _, f := range fields {
				values = append(values, FieldValue{Key: f.Key, Value: e.Value(f.Key)})
			}
			periods = append(periods, PayloadPeriod{
				PeriodID:   e.PeriodID,
				ChildRowID: ValidOrNull(e.ChildRowID),
				Values:     values,
			})
		}
		payload = append(payload, PayloadRow{
			Name:          r.Name,
			Price:         r.Price,
			CurrentStatus: r.CurrentStatus,
			ID:            ValidOrNull(r.MappingID),
			PeriodData:    periods,
		})
	}
	if len(payload) == 0 {
		return nil, ErrNoRowsSelected
	}
	return payload, nil
}
