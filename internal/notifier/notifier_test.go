package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"CrashRadar/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	mu       sync.Mutex
	messages []map[string]string
	status   int
}

func (f *fakeTelegram) handler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
		http.NotFound(w, r)
		return
	}
	var payload map[string]string
	_ = json.NewDecoder(r.Body).Decode(&payload)
	f.mu.Lock()
	f.messages = append(f.messages, payload)
	f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func newTestNotifier(t *testing.T, fake *fakeTelegram) *TelegramNotifier {
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)
	tn := NewTelegramNotifier("token", "42", "")
	tn.APIURL = srv.URL
	return tn
}

func TestSend(t *testing.T) {
	fake := &fakeTelegram{}
	tn := newTestNotifier(t, fake)

	require.NoError(t, tn.Send(context.Background(), "<b>hi</b>"))
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "42", fake.messages[0]["chat_id"])
	assert.Equal(t, "HTML", fake.messages[0]["parse_mode"])
	assert.Equal(t, "<b>hi</b>", fake.messages[0]["text"])
}

func TestSendWithRetryGivesUp(t *testing.T) {
	fake := &fakeTelegram{status: http.StatusBadRequest}
	tn := newTestNotifier(t, fake)

	err := tn.SendWithRetry(context.Background(), "x", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
	assert.Len(t, fake.messages, 1)
}

func TestSendWithRetryHonorsContext(t *testing.T) {
	fake := &fakeTelegram{status: http.StatusInternalServerError}
	tn := newTestNotifier(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := tn.SendWithRetry(ctx, "x", 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnabled(t *testing.T) {
	assert.False(t, (*TelegramNotifier)(nil).Enabled())
	assert.False(t, NewTelegramNotifier("", "", "").Enabled())
	assert.True(t, NewTelegramNotifier("t", "c", "").Enabled())
}

func TestDispatchRepliesAndAdvancesOffset(t *testing.T) {
	fake := &fakeTelegram{}
	tn := newTestNotifier(t, fake)

	var updates []telegramUpdate
	require.NoError(t, json.Unmarshal([]byte(`[
		{"update_id": 7, "message": {"text": " /status "}},
		{"update_id": 8},
		{"update_id": 9, "message": {"text": "/quiet"}}
	]`), &updates))

	var seen []string
	next := tn.dispatch(context.Background(), updates, 0, func(_ context.Context, cmd string) string {
		seen = append(seen, cmd)
		if cmd == "/quiet" {
			return ""
		}
		return "reply to " + cmd
	})

	assert.Equal(t, 10, next)
	assert.Equal(t, []string{"/status", "/quiet"}, seen)
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "reply to /status", fake.messages[0]["text"])
}

func TestFormatUpdateSummary(t *testing.T) {
	msg := FormatUpdateSummary([]model.IngestionRun{
		{Slug: "spx_price_monthly", Status: "success", RowsUpserted: 1},
		{Slug: "spx_pe_monthly", Status: "fail", ErrorMessage: "status 500 <html>"},
	}, []string{"old_series"})

	assert.Contains(t, msg, "Succeeded: 1 | Failed: 1 | Skipped: 1")
	assert.Contains(t, msg, "spx_price_monthly: +1 rows")
	assert.Contains(t, msg, "&lt;html&gt;")
	assert.Contains(t, msg, "old_series: inactive")
}

func TestFormatRoadmapDigest(t *testing.T) {
	start := model.MustDate("2024-01-01")
	var current []model.Point
	for i := 0; i < 12; i++ {
		current = append(current, model.Point{Period: model.AddMonths(start, i), Value: float64(100 + i)})
	}
	r := &model.Roadmap{
		Crisis:        model.Crisis{ID: "2008", Name: "2008", Description: "Financial Crisis"},
		CurrentSeries: current,
		LastPeriod:    current[11].Period,
		Alignment:     model.RoadmapAlignment{MonthsToBottom: 20, MonthsToCrash: 14, ScaleFactor: 4.5, Correlation: 0.8123, ComparisonWindowSize: 30},
		Meta:          model.RoadmapMeta{Metric: model.MetricPrice, WindowMonths: 120},
	}

	msg := FormatRoadmapDigest(r)
	assert.Contains(t, msg, "PRICE vs 2008")
	assert.Contains(t, msg, "Latest (2024-12): 111.00")
	// Average of 102..111 is 106.5.
	assert.Contains(t, msg, "10-month average: 106.50")
	assert.Contains(t, msg, "Correlation: 0.812")
	assert.Contains(t, msg, "Months to crash: 14")
}

func TestFormatSeriesStatus(t *testing.T) {
	msg := FormatSeriesStatus([]model.SeriesInfo{
		{Slug: "spx_price_monthly", Status: "active"},
		{Slug: "spx_pe_monthly", Status: "active"},
	}, map[string]model.PointStats{
		"spx_price_monthly": {FirstPeriod: model.MustDate("1871-01-01"), LastPeriod: model.MustDate("2024-12-01"), TotalPoints: 1848},
	})
	assert.Contains(t, msg, "1848 points, 1871-01 to 2024-12")
	assert.Contains(t, msg, "no data")
}
