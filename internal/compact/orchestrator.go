package compact

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Request is one compaction request: the history to fold into a summary,
// the split-turn prefix if the cut fell inside a turn, and session facts
// carried into the artifact.
type Request struct {
	MessagesToSummarize []Message
	TurnPrefixMessages  []Message
	IsSplitTurn         bool
	FirstKeptEntryID    string
	// TokensBefore is the session's total context size before compaction;
	// zero means unknown.
	TokensBefore       int
	PreviousSummary    string
	ReserveTokens      int
	CustomInstructions string
	FileOps            FileOps
}

// ArtifactDetails carries the file-op lists of the compacted span.
// ReadFiles never overlaps ModifiedFiles.
type ArtifactDetails struct {
	ReadFiles     []string `json:"readFiles"`
	ModifiedFiles []string `json:"modifiedFiles"`
}

// Artifact is the compaction result. Compaction always produces one, even
// when summarization fails.
type Artifact struct {
	Summary          string          `json:"summary"`
	FirstKeptEntryID string          `json:"firstKeptEntryId"`
	TokensBefore     int             `json:"tokensBefore"`
	Details          ArtifactDetails `json:"details"`
}

// Settings are the per-request knobs the orchestrator runs under, already
// resolved from session runtime config (see session.Registry).
type Settings struct {
	Model                  string
	APIKey                 string
	ContextWindowTokens    int
	RecentTurnsPreserve    int
	QualityGuardEnabled    bool
	QualityGuardMaxRetries int
	MaxHistoryShare        float64
}

// DefaultSettings returns orchestrator settings with every knob at its
// documented default; Model and APIKey remain empty.
func DefaultSettings() Settings {
	return Settings{
		ContextWindowTokens:    defaultContextWindow,
		RecentTurnsPreserve:    defaultRecentTurns,
		QualityGuardEnabled:    true,
		QualityGuardMaxRetries: defaultGuardRetries,
		MaxHistoryShare:        defaultHistoryShare,
	}
}

func (s Settings) normalized() Settings {
	if s.ContextWindowTokens <= 0 {
		s.ContextWindowTokens = defaultContextWindow
	}
	if s.RecentTurnsPreserve < 0 {
		s.RecentTurnsPreserve = 0
	}
	if s.RecentTurnsPreserve > maxRecentTurns {
		s.RecentTurnsPreserve = maxRecentTurns
	}
	if s.QualityGuardMaxRetries < 0 {
		s.QualityGuardMaxRetries = 0
	}
	if s.QualityGuardMaxRetries > maxGuardRetries {
		s.QualityGuardMaxRetries = maxGuardRetries
	}
	if s.MaxHistoryShare <= 0 || s.MaxHistoryShare > 1 {
		s.MaxHistoryShare = defaultHistoryShare
	}
	return s
}

// Orchestrator drives prune, staged summarization, quality auditing and
// artifact assembly for compaction requests.
type Orchestrator struct {
	client Completer
}

// NewOrchestrator wires the orchestrator to a model client.
func NewOrchestrator(client Completer) *Orchestrator {
	return &Orchestrator{client: client}
}

// Compact runs the whole compaction state machine. It never fails: on any
// summarization error it emits the fallback artifact carrying the tool
// failure digest and file-op lists.
func (o *Orchestrator) Compact(ctx context.Context, req Request, settings Settings) Artifact {
	settings = settings.normalized()

	readFiles, modifiedFiles := fileOpLists(req.FileOps)
	allMessages := append(append([]Message(nil), req.MessagesToSummarize...), req.TurnPrefixMessages...)
	toolFailureSection := buildToolFailureSection(allMessages)
	fileOpsSection := buildFileOpsSection(readFiles, modifiedFiles)

	artifact := Artifact{
		FirstKeptEntryID: req.FirstKeptEntryID,
		TokensBefore:     req.TokensBefore,
		Details:          ArtifactDetails{ReadFiles: readFiles, ModifiedFiles: modifiedFiles},
	}

	if settings.Model == "" || settings.APIKey == "" {
		artifact.Summary = FallbackSummary + toolFailureSection + fileOpsSection
		return artifact
	}

	summary, err := o.summarize(ctx, req, settings)
	if err != nil {
		log.Printf("[compact] summarization failed, emitting fallback artifact: %v", err)
		artifact.Summary = FallbackSummary + toolFailureSection + fileOpsSection
		return artifact
	}

	artifact.Summary = summary + toolFailureSection + fileOpsSection + buildWorkspaceRulesSection()
	return artifact
}

func (o *Orchestrator) summarize(ctx context.Context, req Request, settings Settings) (string, error) {
	window := settings.ContextWindowTokens
	structured := BuildStructureInstructions(req.CustomInstructions)

	// PRUNE: when the verbatim new content alone would exceed its share of
	// the window, drop the oldest half of the summarizable history and fold
	// it into a preliminary summary.
	summarizable := req.MessagesToSummarize
	droppedSummary := ""
	if req.TokensBefore > 0 {
		summarizableTokens := EstimateMessagesTokens(summarizable) + EstimateMessagesTokens(req.TurnPrefixMessages)
		newContentTokens := req.TokensBefore - summarizableTokens
		if newContentTokens < 0 {
			newContentTokens = 0
		}
		limit := int(float64(window) * settings.MaxHistoryShare * safetyMargin)
		if newContentTokens > limit {
			pruned := PruneHistoryForContextShare(PruneInput{
				Messages:         summarizable,
				MaxContextTokens: window,
				MaxHistoryShare:  settings.MaxHistoryShare,
				Parts:            2,
			})
			if pruned.DroppedChunks > 0 {
				log.Printf("[compact] pruned %d history chunk(s) (%d message(s)) to protect new content",
					pruned.DroppedChunks, len(pruned.Dropped))
				summarizable = pruned.Messages
				if len(pruned.Dropped) > 0 {
					ds, err := o.summarizeSegmented(ctx, pruned.Dropped, settings, structured, "")
					if err != nil {
						if IsCancelled(err) {
							return "", err
						}
						log.Printf("[compact] dropped-history summarization failed, continuing without it: %v", err)
					} else {
						droppedSummary = ds
					}
				}
			}
		}
	}

	// PRESERVE_TAIL: peel off the most recent user/assistant turns.
	summarizable, preserved := splitPreservedRecentTurns(summarizable, settings.RecentTurnsPreserve)
	preservedSection := buildPreservedTailSection(preserved)

	// SUMMARIZE: audit seeds, adaptive chunking, bounded retry loop.
	ordered := append(append(append([]Message(nil), summarizable...), preserved...), req.TurnPrefixMessages...)
	latestAsk := lastUserText(ordered)

	seedSource := summarizable
	if len(seedSource) > 10 {
		seedSource = seedSource[len(seedSource)-10:]
	}
	seedText := messagesText(seedSource) + "\n" + messagesText(preserved)
	identifiers := ExtractOpaqueIdentifiers(seedText)

	ratioInput := append(append([]Message(nil), summarizable...), req.TurnPrefixMessages...)
	ratio := ComputeAdaptiveChunkRatio(ratioInput, window)
	maxChunkTokens := int(float64(window) * ratio)
	if maxChunkTokens < 1 {
		maxChunkTokens = 1
	}

	effectivePrevious := droppedSummary
	if effectivePrevious == "" {
		effectivePrevious = req.PreviousSummary
	}

	totalAttempts := 1
	if settings.QualityGuardEnabled {
		totalAttempts = settings.QualityGuardMaxRetries + 1
	}

	instructions := structured
	summary := ""
	for attempt := 0; attempt < totalAttempts; attempt++ {
		historySummary := effectivePrevious
		if len(summarizable) > 0 {
			hs, err := SummarizeInStages(ctx, o.client, StagedInput{
				Messages:           summarizable,
				Model:              settings.Model,
				APIKey:             settings.APIKey,
				ReserveTokens:      req.ReserveTokens,
				MaxChunkTokens:     maxChunkTokens,
				ContextWindow:      window,
				CustomInstructions: instructions,
				PreviousSummary:    effectivePrevious,
			})
			if err != nil {
				return "", err
			}
			historySummary = hs
		}

		summary = historySummary
		if req.IsSplitTurn && len(req.TurnPrefixMessages) > 0 {
			prefixSummary, err := SummarizeInStages(ctx, o.client, StagedInput{
				Messages:           req.TurnPrefixMessages,
				Model:              settings.Model,
				APIKey:             settings.APIKey,
				ReserveTokens:      req.ReserveTokens,
				MaxChunkTokens:     maxChunkTokens,
				ContextWindow:      window,
				CustomInstructions: turnPrefixInstructions + "\n\n" + instructions,
			})
			if err != nil {
				return "", err
			}
			summary = historySummary + "\n\n---\n\n**Turn Context (split turn):**\n\n" + prefixSummary
		}
		summary += preservedSection

		if !settings.QualityGuardEnabled || attempt == totalAttempts-1 {
			break
		}
		audit := AuditSummaryQuality(AuditInput{Summary: summary, Identifiers: identifiers, LatestAsk: latestAsk})
		if audit.OK {
			break
		}
		log.Printf("[compact] summary failed quality audit (attempt %d): %s",
			attempt+1, strings.Join(audit.Reasons, "; "))
		instructions = structured + fmt.Sprintf(
			"\n\nPrevious summary failed quality checks (%s). Fix all issues and include every required section with exact identifiers preserved.",
			strings.Join(audit.Reasons, ", "))
	}

	if strings.TrimSpace(summary) == "" {
		return "", fmt.Errorf("%w: nothing to summarize", ErrNoMessages)
	}
	return summary, nil
}

// summarizeSegmented runs a staged summarization over an ad-hoc message
// list, sizing chunks adaptively for that list.
func (o *Orchestrator) summarizeSegmented(ctx context.Context, msgs []Message, settings Settings, instructions, previous string) (string, error) {
	window := settings.ContextWindowTokens
	maxChunk := int(float64(window) * ComputeAdaptiveChunkRatio(msgs, window))
	if maxChunk < 1 {
		maxChunk = 1
	}
	return SummarizeInStages(ctx, o.client, StagedInput{
		Messages:           msgs,
		Model:              settings.Model,
		APIKey:             settings.APIKey,
		MaxChunkTokens:     maxChunk,
		ContextWindow:      window,
		CustomInstructions: instructions,
		PreviousSummary:    previous,
	})
}
