package compact

import (
	"context"
	"errors"
)

var (
	// ErrModelUnavailable means no model is configured or no API key could
	// be resolved for it; the orchestrator emits the fallback artifact
	// without attempting summarization.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrModelCallFailed wraps a failure raised by the model client.
	ErrModelCallFailed = errors.New("model call failed")

	// ErrNoMessages means a summarization stage was invoked with nothing to
	// summarize.
	ErrNoMessages = errors.New("no messages to summarize")
)

// IsCancelled reports whether err is cooperative cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
