package runner

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedTestData = errors.New("malformed test data")
	ErrMissingSession    = errors.New("missing session")
	ErrNotRunning        = errors.New("test is not in progress")
	ErrSubmitPending     = errors.New("submission already in flight")
	ErrAlreadySubmitted  = errors.New("question already submitted")
	ErrInvalidOption     = errors.New("option index out of range")
	ErrEndInProgress     = errors.New("test is already being finalized")

	ErrSnapshotMissing  = errors.New("no saved progress for this test")
	ErrSnapshotDiverged = errors.New("saved progress does not match the server")
	ErrSessionClosed    = errors.New("test session is already closed")
)

// DecisionRequiredError is returned by End in ask mode while questions are unanswered.
// The caller must choose between submitting as-is and filling unanswered as skipped.
type DecisionRequiredError struct {
	Unanswered []string
}

func (e *DecisionRequiredError) Error() string {
	return fmt.Sprintf("%d question(s) unanswered: choose submit as-is or fill as skipped", len(e.Unanswered))
}

// SubmitFailure is one failed submission of a batch.
type SubmitFailure struct {
	QuestionID string `json:"questionId"`
	Err        error  `json:"-"`
	Message    string `json:"message"`
}

// BatchResult aggregates a concurrent submission batch.
type BatchResult struct {
	Succeeded []string        `json:"succeeded"`
	Failed    []SubmitFailure `json:"failed"`
}

// AllSucceeded reports whether no submission failed.
func (b BatchResult) AllSucceeded() bool {
	return len(b.Failed) == 0
}

// BatchError aborts finalization after a partial batch failure.
type BatchError struct {
	Result BatchResult
}

func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Result.Failed))
	for _, f := range e.Result.Failed {
		ids = append(ids, f.QuestionID)
	}
	return fmt.Sprintf("%d of %d submission(s) failed (%s); test not finalized",
		len(e.Result.Failed), len(e.Result.Failed)+len(e.Result.Succeeded), strings.Join(ids, ", "))
}

// Unwrap exposes the individual failures to errors.Is / errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Result.Failed))
	for _, f := range e.Result.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}
