package mapping

import "sort"

// Reconcile joins the catalog with the persisted mappings over window.
//
// One row is produced per master record, in master order. A product with a
// persisted mapping starts selected and carries its stored price, status,
// mapping id and the stored period rows that fall inside the window. Periods
// with no stored row get empty values and no child id.
func Reconcile(master []ProductMasterRecord, persisted map[string]PersistedMapping, window Window, fields FieldSet) []Row {
	rows := make([]Row, 0, len(master))
	for _, m := range master {
		existing, found := persisted[ProductKey(m.Name)]

		data := make([]PeriodEntry, 0, len(window))
		for _, p := range window {
			entry := EmptyPeriodEntry(p.ID, fields)
			if found {
				if prior, ok := existing.PeriodRow(p.ID); ok {
					entry.ChildRowID = prior.ChildRowID
					for _, f := range fields {
						entry.Values[f.Key] = prior.Values[f.Key]
					}
				}
			}
			data = append(data, entry)
		}

		row := Row{
			ProductID:  m.ProductID,
			Name:       m.Name,
			Price:      AmountFromInt(0),
			PeriodData: data,
			Power:      m.Power,
			Segment:    m.Segment,
		}
		if found {
			row.Price = existing.Price.Or(AmountFromInt(0))
			row.CurrentStatus = existing.CurrentStatus
			row.MappingID = existing.MappingID
			row.Selected = true
		}
		rows = append(rows, row)
	}
	return rows
}

// Orphans lists persisted mapping names that have no catalog product. They
// are left out of Reconcile; callers may report them.
func Orphans(master []ProductMasterRecord, persisted map[string]PersistedMapping) []string {
	known := make(map[string]struct{}, len(master))
	for _, m := range master {
		known[ProductKey(m.Name)] = struct{}{}
	}
	var orphans []string
	for name := range persisted {
		if _, ok := known[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	return orphans
}
