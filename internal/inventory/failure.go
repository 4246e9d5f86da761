package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Operation names used in failures, logs and metrics.
const (
	OpList      = "list"
	OpCount     = "count"
	OpTerminate = "terminate"
)

// Failure codes that are not AWS error codes.
const (
	CodeTimeout  = "timeout"
	CodeCanceled = "canceled"
	CodeUnknown  = "unknown"
)

// ErrNoInstances is returned when a terminate call is made with no ids.
var ErrNoInstances = errors.New("no instance ids to terminate")

// Failure is a failed inventory call. Partial failures of a bulk call are
// not distinguished from total ones.
type Failure struct {
	Op     string
	Region string
	Code   string
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s instances in %s (%s): %v", f.Op, f.Region, f.Code, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(op, region string, err error) *Failure {
	return &Failure{Op: op, Region: region, Code: classify(err), Err: err}
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CodeCanceled
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		return apiErr.ErrorCode()
	}
	return CodeUnknown
}
