package notifier

import (
	"fmt"
	"strings"
	"time"

	"CrashRadar/internal/calculator"
	"CrashRadar/internal/model"
)

// FormatUpdateSummary formats the outcome of a scheduled update run.
func FormatUpdateSummary(runs []model.IngestionRun, skipped []string) string {
	var b strings.Builder
	ok, failed := 0, 0
	for _, r := range runs {
		if r.Status == "success" {
			ok++
		} else {
			failed++
		}
	}

	icon := "✅"
	if failed > 0 {
		icon = "⚠️"
	}
	b.WriteString(fmt.Sprintf("%s <b>CrashRadar update</b> | %s\n\n", icon, time.Now().Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Succeeded: %d | Failed: %d | Skipped: %d\n\n", ok, failed, len(skipped)))

	for _, r := range runs {
		if r.Status == "success" {
			b.WriteString(fmt.Sprintf("  %s: +%d rows\n", r.Slug, r.RowsUpserted))
		} else {
			b.WriteString(fmt.Sprintf("  %s: ❌ %s\n", r.Slug, escape(r.ErrorMessage)))
		}
	}
	for _, slug := range skipped {
		b.WriteString(fmt.Sprintf("  %s: inactive\n", slug))
	}
	return b.String()
}

// FormatRoadmapDigest summarizes a roadmap for a chat message.
func FormatRoadmapDigest(r *model.Roadmap) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📉 <b>Crash roadmap</b> | %s vs %s (%s)\n\n",
		strings.ToUpper(string(r.Meta.Metric)), r.Crisis.Name, escape(r.Crisis.Description)))

	values := calculator.Values(r.CurrentSeries)
	if len(values) > 0 {
		last := values[len(values)-1]
		b.WriteString(fmt.Sprintf("Latest (%s): %.2f\n", r.LastPeriod.Format(model.MonthLayout), last))
		if sma, err := calculator.CalculateSMA(values, 10); err == nil && sma > 0 {
			b.WriteString(fmt.Sprintf("10-month average: %.2f (%+.1f%%)\n", sma, (last-sma)/sma*100))
		}
	}

	a := r.Alignment
	b.WriteString(fmt.Sprintf("\nCorrelation: %.3f\n", a.Correlation))
	b.WriteString(fmt.Sprintf("Scale factor: %.3f\n", a.ScaleFactor))
	b.WriteString(fmt.Sprintf("Months to crash: %d\n", a.MonthsToCrash))
	b.WriteString(fmt.Sprintf("Months to bottom: %d\n", a.MonthsToBottom))
	b.WriteString(fmt.Sprintf("\nWindow: %d months, comparison %d months", r.Meta.WindowMonths, a.ComparisonWindowSize))
	return b.String()
}

// FormatSeriesStatus lists stored coverage per series.
func FormatSeriesStatus(series []model.SeriesInfo, stats map[string]model.PointStats) string {
	var b strings.Builder
	b.WriteString("📦 <b>Series status</b>\n\n")
	if len(series) == 0 {
		b.WriteString("No series defined.\n")
		return b.String()
	}
	for _, s := range series {
		st := stats[s.Slug]
		b.WriteString(fmt.Sprintf("<b>%s</b> (%s)\n", s.Slug, s.Status))
		if st.TotalPoints == 0 {
			b.WriteString("  no data\n")
		} else {
			b.WriteString(fmt.Sprintf("  %d points, %s to %s\n", st.TotalPoints,
				st.FirstPeriod.Format(model.MonthLayout), st.LastPeriod.Format(model.MonthLayout)))
		}
		if !s.LastSuccessAt.IsZero() {
			b.WriteString(fmt.Sprintf("  last success: %s\n", s.LastSuccessAt.Format("2006-01-02 15:04")))
		}
	}
	return b.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return htmlEscaper.Replace(s) }
