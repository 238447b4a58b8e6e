package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"CrashRadar/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/xuri/excelize/v2"
)

const (
	shillerSheet = "Data"

	colDate     = 0
	colPrice    = 1
	colEarnings = 3
	colCAPE     = 10

	// The data block starts within the first rows, after the title and header lines.
	headerScanRows = 20
)

// ShillerFetcher reads Robert Shiller's monthly S&P dataset workbook.
type ShillerFetcher struct {
	URL    string
	Client *resty.Client
}

// NewShillerFetcher creates a fetcher for the workbook at url.
func NewShillerFetcher(url string, opts ClientOptions) *ShillerFetcher {
	return &ShillerFetcher{URL: url, Client: newClient(opts)}
}

func (f *ShillerFetcher) Name() string { return "shiller" }

func (f *ShillerFetcher) FetchMonthly(ctx context.Context, metric model.Metric) ([]model.Point, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("shiller: unsupported metric %q", metric)
	}
	log.Printf("[INFO] downloading shiller workbook from %s", f.URL)
	body, err := download(ctx, f.Client, f.Name(), f.URL)
	if err != nil {
		return nil, err
	}

	var points []model.Point
	if bytes.HasPrefix(body, oleMagic) {
		points, err = ParseShillerLegacyWorkbook(body, metric)
	} else {
		points, err = ParseShillerWorkbook(bytes.NewReader(body), metric)
	}
	if err != nil {
		return nil, err
	}
	if len(points) > 0 {
		log.Printf("[INFO] shiller %s: %d points, %s to %s", metric, len(points),
			points[0].Period.Format(model.MonthLayout), points[len(points)-1].Period.Format(model.MonthLayout))
	}
	return points, nil
}

// ParseShillerWorkbook extracts the metric column from the Data sheet of an .xlsx workbook.
func ParseShillerWorkbook(r io.Reader, metric model.Metric) ([]model.Point, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("shiller open workbook: %w", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(shillerSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("shiller read sheet %s: %w", shillerSheet, err)
	}
	return shillerPoints(rows, metric)
}

// ParseShillerLegacyWorkbook extracts the metric column from a BIFF8 (.xls)
// copy of the workbook, the format the dataset is published in.
func ParseShillerLegacyWorkbook(body []byte, metric model.Metric) ([]model.Point, error) {
	rows, err := legacySheetRows(body, shillerSheet)
	if err != nil {
		return nil, fmt.Errorf("shiller read legacy workbook: %w", err)
	}
	return shillerPoints(rows, metric)
}

func shillerPoints(rows [][]string, metric model.Metric) ([]model.Point, error) {
	start := -1
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		if _, ok := shillerPeriod(cell(rows[i], colDate)); ok {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, errors.New("shiller: could not find data start row")
	}

	var points []model.Point
	for _, row := range rows[start:] {
		period, ok := shillerPeriod(cell(row, colDate))
		if !ok {
			continue
		}
		value, ok := shillerValue(row, metric)
		if !ok {
			continue
		}
		points = append(points, model.Point{Period: period, Value: value, Source: "shiller"})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Period.Before(points[j].Period) })
	return points, nil
}

func shillerValue(row []string, metric model.Metric) (float64, bool) {
	if metric == model.MetricPrice {
		return number(cell(row, colPrice))
	}
	if v, ok := number(cell(row, colCAPE)); ok {
		return v, true
	}
	price, okP := number(cell(row, colPrice))
	earnings, okE := number(cell(row, colEarnings))
	if okP && okE && price != 0 && earnings > 0 {
		return price / earnings, true
	}
	return 0, false
}

// shillerPeriod decodes YYYY.MM dates, where 1871.1 means October 1871.
func shillerPeriod(raw string) (time.Time, bool) {
	v, ok := number(raw)
	if !ok || v <= 1800 || v >= 2100 {
		return time.Time{}, false
	}
	year := math.Floor(v)
	month := int(math.Round((v - year) * 100))
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(int(year), time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func number(s string) (float64, bool) {
	if s == "" || strings.EqualFold(s, "NA") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
