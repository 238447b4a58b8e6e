package collector

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"CrashRadar/internal/model"

	"github.com/go-resty/resty/v2"
)

// StooqFetcher reads monthly S&P 500 closes from Stooq's CSV export. It only serves price.
type StooqFetcher struct {
	URL    string
	Client *resty.Client
}

// NewStooqFetcher creates a fetcher for the CSV at url.
func NewStooqFetcher(url string, opts ClientOptions) *StooqFetcher {
	return &StooqFetcher{URL: url, Client: newClient(opts)}
}

func (f *StooqFetcher) Name() string { return "stooq" }

func (f *StooqFetcher) FetchMonthly(ctx context.Context, metric model.Metric) ([]model.Point, error) {
	if metric != model.MetricPrice {
		return nil, fmt.Errorf("stooq only supports price, got %q", metric)
	}
	log.Printf("[INFO] downloading stooq csv from %s", f.URL)
	body, err := download(ctx, f.Client, f.Name(), f.URL)
	if err != nil {
		return nil, err
	}
	points, err := ParseStooqCSV(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] stooq price: %d points", len(points))
	return points, nil
}

// ParseStooqCSV parses Date,Open,High,Low,Close[,Volume] rows into month-start points.
func ParseStooqCSV(r io.Reader) ([]model.Point, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("stooq: csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("stooq read header: %w", err)
	}

	dateCol, closeCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("stooq: unexpected csv header: %s", strings.Join(header, ","))
	}

	byPeriod := make(map[time.Time]model.Point)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stooq read row: %w", err)
		}
		if dateCol >= len(rec) || closeCol >= len(rec) {
			continue
		}
		day, err := time.Parse(model.PeriodLayout, strings.TrimSpace(rec[dateCol]))
		if err != nil {
			continue
		}
		value, ok := number(rec[closeCol])
		if !ok {
			continue
		}
		period := model.MonthStart(day)
		byPeriod[period] = model.Point{Period: period, Value: value, Source: "stooq"}
	}
	if len(byPeriod) == 0 {
		return nil, errors.New("stooq: csv has no data rows")
	}

	points := make([]model.Point, 0, len(byPeriod))
	for _, p := range byPeriod {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period.Before(points[j].Period) })
	return points, nil
}
