package rails

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVerdict is the cause recorded when a rail returns an
	// unknown outcome or an out-of-range score.
	ErrInvalidVerdict = errors.New("invalid verdict")
	ErrRailTimeout    = errors.New("rail timed out")
)

// EvaluationError is a runtime failure of a single rail. The chain turns it
// into a pass or a block depending on the failure policy.
type EvaluationError struct {
	Rail    string
	Err     error
	Timeout bool
}

func NewEvaluationError(rail string, err error) *EvaluationError {
	return &EvaluationError{
		Rail:    rail,
		Err:     err,
		Timeout: errors.Is(err, ErrRailTimeout),
	}
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rail %s evaluation failed: %v", e.Rail, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
