package fetch

import (
	"context"
	"errors"
	"fmt"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/integrations"
	"github.com/matzehuels/wheelwright/pkg/metadata"
)

// FetchError reports a request that could not be answered, after retries
// where the failure was transient.
type FetchError struct {
	Name     string
	Version  string // Empty for listing requests
	Attempts int    // Index attempts made; 0 when answered from a negative cache entry
	Err      error
}

func (e *FetchError) Error() string {
	target := e.Name
	if e.Version != "" {
		target = e.Name + "==" + e.Version
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("fetch %s: after %d attempts: %v", target, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", target, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NotFound reports whether the index said the project or release does not exist.
func (e *FetchError) NotFound() bool { return errors.Is(e.Err, metadata.ErrNotFound) }

// Code classifies the failure for exit codes and API responses.
func (e *FetchError) Code() wwerrors.Code {
	var rl *wwerrors.RateLimitedError
	switch {
	case e.NotFound():
		return wwerrors.ErrCodePackageNotFound
	case errors.Is(e.Err, context.Canceled):
		return wwerrors.ErrCodeCanceled
	case errors.As(e.Err, &rl):
		return wwerrors.ErrCodeRateLimited
	case errors.Is(e.Err, integrations.ErrTimeout), errors.Is(e.Err, context.DeadlineExceeded):
		return wwerrors.ErrCodeTimeout
	default:
		return wwerrors.ErrCodeFetchFailed
	}
}
