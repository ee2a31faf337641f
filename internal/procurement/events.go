package procurement

import (
	"errors"
	"time"
)

// Completion outcomes reported to a CompletionObserver.
const (
	OutcomeCompleted            = "completed"
	OutcomeNotFound             = "not_found"
	OutcomeInvalidState         = "invalid_state"
	OutcomeMissingConfiguration = "missing_configuration"
	OutcomeBusy                 = "busy"
	OutcomeError                = "error"
)

// CompletionObserver receives completion outcomes, e.g. for metrics.
type CompletionObserver interface {
	ObserveCompletion(outcome string, elapsed time.Duration)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidState):
		return OutcomeInvalidState
	case errors.Is(err, ErrMissingConfiguration):
		return OutcomeMissingConfiguration
	case errors.Is(err, ErrBusy):
		return OutcomeBusy
	default:
		return OutcomeError
	}
}
