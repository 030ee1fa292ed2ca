package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/api"

	"github.com/stellarlinkco/recall/internal/compact"
)

// Runtime is the slice of the agent runtime the completer needs; the
// concrete implementation is *api.Runtime.
type Runtime interface {
	Run(ctx context.Context, req api.Request) (*api.Response, error)
}

// RuntimeCompleter satisfies compact.Completer on top of an agent
// runtime, so compaction can reuse the session's own model wiring
// instead of a separate HTTP client.
type RuntimeCompleter struct {
	runtime   Runtime
	sessionID string
}

func NewRuntimeCompleter(rt Runtime, sessionID string) *RuntimeCompleter {
	return &RuntimeCompleter{runtime: rt, sessionID: sessionID}
}

func (c *RuntimeCompleter) Complete(ctx context.Context, req compact.CompleteRequest) (string, error) {
	resp, err := c.runtime.Run(ctx, api.Request{
		Prompt:    req.Prompt,
		SessionID: c.sessionID,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", compact.ErrModelCallFailed, err)
	}
	if resp == nil || resp.Result == nil {
		return "", fmt.Errorf("%w: empty runtime result", compact.ErrModelCallFailed)
	}
	out := strings.TrimSpace(resp.Result.Output)
	if out == "" {
		return "", fmt.Errorf("%w: empty runtime output", compact.ErrModelCallFailed)
	}
	return out, nil
}
