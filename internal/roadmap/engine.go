package roadmap

import (
	"context"
	"fmt"
	"log"
	"time"

	"CrashRadar/internal/calculator"
	"CrashRadar/internal/model"

	"github.com/google/uuid"
)

// State is a step of a roadmap computation.
type State string

const (
	StateIdle           State = "idle"
	StateFetchingInputs State = "fetching_inputs"
	StateWindowing      State = "windowing"
	StateSearching      State = "searching"
	StateAssembled      State = "assembled"
	StateFailed         State = "failed"
)

const (
	// DefaultComparisonWindow caps the comparison window in months.
	DefaultComparisonWindow = 30
	// MinHistoricalPoints is the smallest historical window worth correlating.
	MinHistoricalPoints = 20
)

// SeriesSlugs maps a metric to the stored series it reads.
var SeriesSlugs = map[model.Metric]string{
	model.MetricPrice: "spx_price_monthly",
	model.MetricPE:    "spx_pe_monthly",
}

// PointSource supplies the stored monthly points of a series.
type PointSource interface {
	Points(ctx context.Context, slug string) ([]model.Point, error)
}

// Request identifies one roadmap computation.
type Request struct {
	Metric         model.Metric
	CrisisID       string
	WindowMonths   int
	MaxShiftMonths int
}

// Engine assembles roadmaps from stored series. It holds no per-request state.
type Engine struct {
	Source           PointSource
	ComparisonWindow int
	Now              func() time.Time
}

// NewEngine creates an Engine reading from source.
func NewEngine(source PointSource, comparisonWindow int) *Engine {
	if comparisonWindow <= 0 {
		comparisonWindow = DefaultComparisonWindow
	}
	return &Engine{Source: source, ComparisonWindow: comparisonWindow, Now: time.Now}
}

// run tracks the state of a single computation.
type run struct {
	req   Request
	state State
}

func (r *run) advance(next State) {
	r.state = next
}

func (r *run) fail(err error) error {
	stage := r.state
	r.state = StateFailed
	log.Printf("[WARN] roadmap %s/%s failed while %s: %v", r.req.Metric, r.req.CrisisID, stage, err)
	return &StageError{Stage: stage, Err: err}
}

// Compute runs Idle -> FetchingInputs -> Windowing -> Searching -> Assembled.
// Any precondition violation ends in Failed and returns a *StageError.
func (e *Engine) Compute(ctx context.Context, req Request) (*model.Roadmap, error) {
	r := &run{req: req, state: StateIdle}

	crisis, ok := LookupCrisis(req.CrisisID)
	if !ok {
		return nil, r.fail(&InvalidCrisisError{ID: req.CrisisID})
	}
	slug, ok := SeriesSlugs[req.Metric]
	if !ok {
		return nil, r.fail(fmt.Errorf("%w: %q", ErrInvalidMetric, req.Metric))
	}

	r.advance(StateFetchingInputs)
	points, err := e.Source.Points(ctx, slug)
	if err != nil {
		return nil, r.fail(fmt.Errorf("load series %s: %w", slug, err))
	}
	if len(points) == 0 {
		return nil, r.fail(&InsufficientDataError{Reason: "no data found for series " + slug})
	}
	log.Printf("[INFO] roadmap %s/%s: %d points, %s to %s", req.Metric, req.CrisisID, len(points),
		points[0].Period.Format(model.PeriodLayout), points[len(points)-1].Period.Format(model.PeriodLayout))

	r.advance(StateWindowing)
	current, err := calculator.ExtractCurrentWindow(points, req.WindowMonths)
	if err != nil {
		return nil, r.fail(err)
	}
	if len(current) == 0 {
		return nil, r.fail(&InsufficientDataError{Reason: "current window is empty"})
	}
	historical := calculator.ExtractHistoricalWindow(points, crisis.BottomDate, req.WindowMonths)
	if len(historical) < MinHistoricalPoints {
		return nil, r.fail(&InsufficientDataError{
			Reason: fmt.Sprintf("not enough historical data for crisis %s (%d points, need %d)",
				crisis.ID, len(historical), MinHistoricalPoints),
		})
	}

	r.advance(StateSearching)
	comparison := min(e.ComparisonWindow, req.WindowMonths/2)
	alignment, err := FindBestAlignment(calculator.Values(current), calculator.Values(historical), comparison)
	if err != nil {
		return nil, r.fail(err)
	}
	log.Printf("[INFO] roadmap %s/%s: %d months to bottom, scale=%.2f, corr=%.3f, window=%d",
		req.Metric, req.CrisisID, alignment.MonthsToBottom, alignment.ScaleFactor,
		alignment.Correlation, alignment.ComparisonWindowSize)

	frame := BuildTimeline(historical, current, alignment, crisis.CrashDate)
	r.advance(StateAssembled)

	return &model.Roadmap{
		Crisis:        crisis,
		CurrentSeries: current,
		LastPeriod:    current[len(current)-1].Period,
		Alignment: model.RoadmapAlignment{
			MonthsToBottom:       alignment.MonthsToBottom,
			MonthsToCrash:        frame.MonthsToCrash,
			ScaleFactor:          alignment.ScaleFactor,
			Correlation:          alignment.Correlation,
			ComparisonWindowSize: alignment.ComparisonWindowSize,
		},
		Chart: frame,
		Meta: model.RoadmapMeta{
			ID:             uuid.NewString(),
			Metric:         req.Metric,
			WindowMonths:   req.WindowMonths,
			MaxShiftMonths: req.MaxShiftMonths,
			ComputedAt:     e.Now().UTC(),
		},
	}, nil
}
