package session

import (
	"context"
	"log"

	"github.com/stellarlinkco/recall/internal/compact"
)

// BeforeCompactEvent carries everything the host knows at the moment it
// decides to compact a session.
type BeforeCompactEvent struct {
	SessionID           string
	MessagesToSummarize []compact.Message
	TurnPrefixMessages  []compact.Message
	IsSplitTurn         bool
	FirstKeptEntryID    string
	TokensBefore        int
	PreviousSummary     string
	ReserveTokens       int
	CustomInstructions  string
	FileOps             compact.FileOps
}

// ModelResolver supplies the model name and credential for a session.
type ModelResolver interface {
	ModelFor(sessionID string) (model, apiKey string)
}

// StaticModel is a ModelResolver that answers the same model for every
// session.
type StaticModel struct {
	Model  string
	APIKey string
}

func (s StaticModel) ModelFor(string) (string, string) { return s.Model, s.APIKey }

// Compactor glues the per-session knob registry to the compaction
// orchestrator. It is the handler for the host's before-compact hook.
type Compactor struct {
	registry *Registry
	orch     *compact.Orchestrator
	models   ModelResolver
}

func NewCompactor(registry *Registry, client compact.Completer, models ModelResolver) *Compactor {
	return &Compactor{
		registry: registry,
		orch:     compact.NewOrchestrator(client),
		models:   models,
	}
}

// OnBeforeCompact resolves the session's knobs and runs the compaction
// state machine. It always returns an artifact.
func (c *Compactor) OnBeforeCompact(ctx context.Context, ev BeforeCompactEvent) compact.Artifact {
	settings := c.registry.Resolve(ev.SessionID)
	if c.models != nil {
		settings.Model, settings.APIKey = c.models.ModelFor(ev.SessionID)
	}
	if settings.Model == "" || settings.APIKey == "" {
		log.Printf("[session] no model configured for session %s, compaction will use fallback summary", ev.SessionID)
	}

	return c.orch.Compact(ctx, compact.Request{
		MessagesToSummarize: ev.MessagesToSummarize,
		TurnPrefixMessages:  ev.TurnPrefixMessages,
		IsSplitTurn:         ev.IsSplitTurn,
		FirstKeptEntryID:    ev.FirstKeptEntryID,
		TokensBefore:        ev.TokensBefore,
		PreviousSummary:     ev.PreviousSummary,
		ReserveTokens:       ev.ReserveTokens,
		CustomInstructions:  ev.CustomInstructions,
		FileOps:             ev.FileOps,
	}, settings)
}
