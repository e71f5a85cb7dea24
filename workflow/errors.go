package workflow

import (
	"errors"
	"fmt"
)

// ErrUserRejected signals that the user declined the wallet signature prompt.
// It is the single sentinel for cancellation: submitters must return it
// instead of a nil receipt, so every call site classifies rejection the same
// way. A rejected signature halts auto-progression so the wallet is not
// re-prompted in a loop.
var ErrUserRejected = errors.New("signature request rejected by user")

// ErrDependencyTimeout is returned when a step's cross-step dependency (the
// upload CID the publish step needs) does not materialize within the bounded
// wait window.
var ErrDependencyTimeout = errors.New("timed out waiting for step dependency")

// UploadError wraps a media upload failure (network or size).
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload failed: %v", e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// SubmissionError wraps a transaction construction or send failure.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return fmt.Sprintf("submission failed: %v", e.Err) }
func (e *SubmissionError) Unwrap() error { return e.Err }

// TransactionFailure is a submission that produced a receipt whose result is
// not SUCCESS.
type TransactionFailure struct {
	TransactionID string
	Result        string
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("transaction %s failed with result %s", e.TransactionID, e.Result)
}

// IsUserRejection reports whether err is (or wraps) the user-rejection
// sentinel.
func IsUserRejection(err error) bool {
	return errors.Is(err, ErrUserRejected)
}
