package roadmap

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCrisis matches every InvalidCrisisError.
	ErrInvalidCrisis = errors.New("invalid crisis")
	// ErrInsufficientData matches every InsufficientDataError.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidMetric is returned for metrics other than price and pe.
	ErrInvalidMetric = errors.New("invalid metric")
)

// InvalidCrisisError reports an id missing from the crisis catalog.
type InvalidCrisisError struct {
	ID string
}

func (e *InvalidCrisisError) Error() string {
	return fmt.Sprintf("unknown crisis: %s. Available: %s", e.ID, availableList())
}

func (e *InvalidCrisisError) Is(target error) bool { return target == ErrInvalidCrisis }

// InsufficientDataError reports a window too small to fit. More data may fix it later.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return "insufficient data: " + e.Reason
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// StageError records the assembler state in which a roadmap computation failed.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("roadmap %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the state a computation failed in, if err came from the assembler.
func FailedStage(err error) (State, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return StateIdle, false
}
