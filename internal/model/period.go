package model

import "time"

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths shifts the month of t by n, returning a first-of-month date.
func AddMonths(t time.Time, n int) time.Time {
	t = MonthStart(t)
	return time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween returns the number of whole calendar months from a to b.
func MonthsBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// MustDate parses a YYYY-MM-DD literal and panics on failure. Only for static tables.
func MustDate(s string) time.Time {
	t, err := time.Parse(PeriodLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParsePeriod parses YYYY-MM-DD or YYYY-MM into a first-of-month date.
func ParsePeriod(s string) (time.Time, error) {
	layout := PeriodLayout
	if len(s) == len(MonthLayout) {
		layout = MonthLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, err
	}
	return MonthStart(t), nil
}

const (
	// PeriodLayout is the wire and storage format for periods.
	PeriodLayout = "2006-01-02"
	// MonthLayout is accepted for query ranges.
	MonthLayout = "2006-01"
	// LabelLayout renders axis labels such as "Oct 1929".
	LabelLayout = "Jan 2006"
)

// FormatLabel renders a human-readable month label for chart axes.
func FormatLabel(t time.Time) string {
	return t.UTC().Format(LabelLayout)
}
