package compact

// Compaction knobs and caps. The ratio constants bound how much of the
// context window a single summarization chunk may consume.
const (
	// charsPerToken is the estimator's calibration constant: roughly four
	// characters of transcript text per model token.
	charsPerToken = 4

	// messageOverhead accounts for per-message framing the estimator cannot
	// see in the raw text.
	messageOverhead = 3

	baseChunkRatio = 0.4
	minChunkRatio  = 0.15

	// safetyMargin pads token estimates before comparing them to hard
	// window limits.
	safetyMargin = 1.2

	maxToolFailures      = 8
	maxToolFailureChars  = 240
	maxRecentTurnChars   = 600
	maxSummaryCtxChars   = 2000
	maxExtractedIdents   = 12
	defaultRecentTurns   = 3
	defaultGuardRetries  = 1
	defaultHistoryShare  = 0.5
	defaultContextWindow = 200000
)

// Clamp ceilings for per-session overrides.
const (
	MaxRecentTurnsPreserve = 12
	MaxQualityGuardRetries = 3
)

const (
	maxRecentTurns  = MaxRecentTurnsPreserve
	maxGuardRetries = MaxQualityGuardRetries
)

// FallbackSummary replaces the structured summary when no model is
// available or every summarization attempt failed.
const FallbackSummary = "Conversation history was compacted automatically. " +
	"A structured summary could not be generated; earlier turns were dropped."

// requiredSummarySections must all appear, in order, in a well-formed
// compaction summary.
var requiredSummarySections = []string{
	"## Decisions",
	"## Open TODOs",
	"## Constraints/Rules",
	"## Pending user asks",
	"## Exact identifiers",
}

const turnPrefixInstructions = "The messages below are the beginning of a turn that is still in progress. " +
	"Summarize what this turn set out to do, what has been done so far, and the immediate next step, " +
	"so the turn can continue seamlessly after compaction."
