package roadmap

import (
	"sort"
	"strings"

	"CrashRadar/internal/model"
)

// catalog holds the historical crashes a roadmap can be compared against.
// It is never modified after initialization; readers get copies.
var catalog = map[string]model.Crisis{
	"1929": {ID: "1929", Name: "1929", Description: "Great Depression",
		CrashDate: model.MustDate("1929-10-01"), BottomDate: model.MustDate("1932-06-01"), Color: "#e74c3c"},
	"1962": {ID: "1962", Name: "1962", Description: "Flash Crash",
		CrashDate: model.MustDate("1962-05-01"), BottomDate: model.MustDate("1962-06-01"), Color: "#9b59b6"},
	"1973": {ID: "1973", Name: "1973", Description: "Oil Crisis / Stagflation",
		CrashDate: model.MustDate("1973-01-01"), BottomDate: model.MustDate("1974-10-01"), Color: "#e67e22"},
	"1980": {ID: "1980", Name: "1980", Description: "Double-Dip Recession",
		CrashDate: model.MustDate("1980-11-01"), BottomDate: model.MustDate("1982-08-01"), Color: "#16a085"},
	"1987": {ID: "1987", Name: "1987", Description: "Black Monday",
		CrashDate: model.MustDate("1987-10-01"), BottomDate: model.MustDate("1987-12-01"), Color: "#34495e"},
	"2001": {ID: "2001", Name: "2001", Description: "Dot-com Bubble",
		CrashDate: model.MustDate("2000-03-01"), BottomDate: model.MustDate("2002-10-01"), Color: "#3498db"},
	"2008": {ID: "2008", Name: "2008", Description: "Financial Crisis",
		CrashDate: model.MustDate("2008-09-01"), BottomDate: model.MustDate("2009-03-01"), Color: "#f39c12"},
}

// LookupCrisis returns the catalog entry for id.
func LookupCrisis(id string) (model.Crisis, bool) {
	c, ok := catalog[id]
	return c, ok
}

// CrisisIDs returns the catalog ids in chronological order.
func CrisisIDs() []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AvailableCrises lists the catalog for UI population.
func AvailableCrises() []model.Crisis {
	ids := CrisisIDs()
	out := make([]model.Crisis, len(ids))
	for i, id := range ids {
		out[i] = catalog[id]
	}
	return out
}

func availableList() string {
	return strings.Join(CrisisIDs(), ", ")
}
