package feed

import (
	"context"
	"errors"
)

var (
	// ErrStaleResponse marks a response whose generation was superseded before it arrived
	ErrStaleResponse = errors.New("stale response")
	// ErrCancelledRequest marks a request aborted because a newer reset replaced it
	ErrCancelledRequest = errors.New("request cancelled")
)

// DefaultErrorMessage is shown when a current fetch fails
const DefaultErrorMessage = "Failed to load news. Server might be unavailable."

// classify maps the outcome of a fetch to the error taxonomy. A nil return
// means the result may be applied.
func classify(current bool, err error) error {
	switch {
	case !current:
		return ErrStaleResponse
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return ErrCancelledRequest
	default:
		return err
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrStaleResponse):
		return "stale"
	case errors.Is(err, ErrCancelledRequest):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}
