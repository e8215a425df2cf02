package mapping

// ShiftRows re-projects every row onto window. Entries for periods present in
// both the old and new windows are carried over with their child id; periods
// new to the window get empty entries; periods that fall out are discarded.
// The input rows are not modified.
func ShiftRows(rows []Row, window Window, fields FieldSet) []Row {
	shifted := make([]Row, len(rows))
	for i, r := range rows {
		data := make([]PeriodEntry, 0, len(window))
		for _, p := range window {
			if idx := r.EntryIndex(p.ID); idx >= 0 {
				data = append(data, r.PeriodData[idx].Clone())
				continue
			}
			data = append(data, EmptyPeriodEntry(p.ID, fields))
		}
		next := r
		next.PeriodData = data
		shifted[i] = next
	}
	return shifted
}

// DroppedPeriods returns the ids of from that are absent in to.
func DroppedPeriods(from, to Window) []string {
	var dropped []string
	for _, p := range from {
		if to.Index(p.ID) < 0 {
			dropped = append(dropped, p.ID)
		}
	}
	return dropped
}
