package compact

import (
	"regexp"
	"strings"
)

// identifierRegex matches opaque identifiers worth preserving verbatim:
// URLs, Windows and absolute POSIX paths, host:port pairs, long hex runs,
// and long integer runs. Alternative order matters: the URL branch must win
// so path fragments inside URLs are not extracted twice.
var identifierRegex = regexp.MustCompile(
	`https?://\S+` +
		`|[A-Za-z]:\\\S+` +
		`|/[A-Za-z0-9._\-]+(?:/[A-Za-z0-9._\-]+)+` +
		`|\b[A-Za-z0-9.\-]+:\d{1,5}\b` +
		`|\b[0-9a-fA-F]{8,}\b` +
		`|\b\d{6,}\b`,
)

var asciiWordRegex = regexp.MustCompile(`[a-z0-9]+`)

const (
	identifierLeadingWrap  = "(\"'`[{<"
	identifierTrailingWrap = ")]\"'`,;:.!?<>"
)

// BuildStructureInstructions returns the summarization header that forces
// the model into the required section structure. customInstructions, when
// non-blank, is appended as an additional-focus block.
func BuildStructureInstructions(customInstructions string) string {
	var sb strings.Builder
	sb.WriteString("Produce a structured continuation summary with exactly these markdown sections, in this order:\n")
	for _, section := range requiredSummarySections {
		sb.WriteString(section)
		sb.WriteString("\n")
	}
	sb.WriteString("\nPreserve file paths, URLs, hashes, ports and other literal identifiers verbatim under ")
	sb.WriteString("## Exact identifiers")
	sb.WriteString(".\n")
	sb.WriteString("Do not omit unresolved user asks; list them under ")
	sb.WriteString("## Pending user asks")
	sb.WriteString(".")
	if custom := strings.TrimSpace(customInstructions); custom != "" {
		sb.WriteString("\n\nAdditional focus:\n")
		sb.WriteString(custom)
	}
	return sb.String()
}

// ExtractOpaqueIdentifiers pulls literal identifiers out of transcript text
// so the quality audit can verify the summary kept them. Wrapping
// punctuation is stripped, duplicates removed preserving first occurrence,
// entries shorter than four characters discarded, and the result capped.
func ExtractOpaqueIdentifiers(text string) []string {
	matches := identifierRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, maxExtractedIdents)
	for _, raw := range matches {
		candidate := strings.TrimLeft(raw, identifierLeadingWrap)
		candidate = strings.TrimRight(candidate, identifierTrailingWrap)
		if len(candidate) < 4 {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
		if len(out) >= maxExtractedIdents {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// AuditInput is one quality-audit invocation.
type AuditInput struct {
	Summary     string
	Identifiers []string
	LatestAsk   string
}

// AuditResult reports whether a summary passed and why it did not.
type AuditResult struct {
	OK      bool
	Reasons []string
}

// AuditSummaryQuality checks a produced summary against structural and
// content predicates: every required section present, every seed identifier
// carried verbatim, and the latest user ask reflected.
func AuditSummaryQuality(in AuditInput) AuditResult {
	reasons := make([]string, 0, 4)

	for _, section := range requiredSummarySections {
		if !strings.Contains(in.Summary, section) {
			reasons = append(reasons, "missing_section:"+section)
		}
	}

	missing := make([]string, 0, 3)
	for _, id := range in.Identifiers {
		if !strings.Contains(in.Summary, id) {
			missing = append(missing, id)
			if len(missing) == 3 {
				break
			}
		}
	}
	if len(missing) > 0 {
		reasons = append(reasons, "missing_identifiers:"+strings.Join(missing, ","))
	}

	if tokens := askTokens(in.LatestAsk); len(tokens) > 0 {
		lower := strings.ToLower(in.Summary)
		found := false
		for _, token := range tokens {
			if strings.Contains(lower, token) {
				found = true
				break
			}
		}
		if !found {
			reasons = append(reasons, "latest_user_ask_not_reflected")
		}
	}

	return AuditResult{OK: len(reasons) == 0, Reasons: reasons}
}

// askTokens tokenizes a user ask to its first eight lowercase alphanumeric
// tokens of length five or more.
func askTokens(ask string) []string {
	if strings.TrimSpace(ask) == "" {
		return nil
	}
	raw := asciiWordRegex.FindAllString(strings.ToLower(ask), -1)
	tokens := make([]string, 0, 8)
	for _, t := range raw {
		if len(t) < 5 {
			continue
		}
		tokens = append(tokens, t)
		if len(tokens) == 8 {
			break
		}
	}
	return tokens
}
