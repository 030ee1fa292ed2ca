package compact

import (
	"fmt"
	"strings"
	"testing"
)

func TestExtractOpaqueIdentifiers(t *testing.T) {
	text := "See https://example.com/docs/a#frag and /srv/app/config.yaml, " +
		"commit deadbeefcafe1234 on host db-primary:5432, ticket 1234567."
	ids := ExtractOpaqueIdentifiers(text)

	want := []string{
		"https://example.com/docs/a#frag",
		"/srv/app/config.yaml",
		"deadbeefcafe1234",
		"db-primary:5432",
		"1234567",
	}
	for _, w := range want {
		found := false
		for _, id := range ids {
			if id == w {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("identifier %q not extracted, got %v", w, ids)
		}
	}
}

func TestExtractOpaqueIdentifiersIgnoresShortNumbers(t *testing.T) {
	ids := ExtractOpaqueIdentifiers("we saw 42 errors and 12345 warnings")
	for _, id := range ids {
		if id == "42" || id == "12345" {
			t.Fatalf("bare short integer %q should not be an identifier", id)
		}
	}
}

func TestExtractOpaqueIdentifiersStripsWrapping(t *testing.T) {
	ids := ExtractOpaqueIdentifiers("(see /var/log/app.log), then `deadbeef1234`.")
	for _, id := range ids {
		if strings.ContainsAny(id, "()`,") {
			t.Fatalf("wrapping punctuation survived: %q", id)
		}
	}
	if len(ids) != 2 {
		t.Fatalf("got %v, want two identifiers", ids)
	}
}

func TestExtractOpaqueIdentifiersDedupeAndCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "/path/to/file%02d.go ", i)
	}
	sb.WriteString("/path/to/file00.go")
	ids := ExtractOpaqueIdentifiers(sb.String())
	if len(ids) != maxExtractedIdents {
		t.Fatalf("got %d identifiers, want cap %d", len(ids), maxExtractedIdents)
	}
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate identifier %q", id)
		}
		seen[id] = struct{}{}
	}
	if ids[0] != "/path/to/file00.go" {
		t.Fatalf("first occurrence order broken: %q", ids[0])
	}
}

func TestExtractOpaqueIdentifiersEmpty(t *testing.T) {
	if ids := ExtractOpaqueIdentifiers("nothing literal in here"); ids != nil {
		t.Fatalf("expected nil, got %v", ids)
	}
}

func wellFormedSummary(extra string) string {
	return strings.Join([]string{
		"## Decisions\n- use sqlite",
		"## Open TODOs\n- none",
		"## Constraints/Rules\n- keep tests green",
		"## Pending user asks\n- refactor the parser module",
		"## Exact identifiers\n" + extra,
	}, "\n\n")
}

func TestAuditSummaryQualityPasses(t *testing.T) {
	res := AuditSummaryQuality(AuditInput{
		Summary:     wellFormedSummary("- /srv/app/config.yaml"),
		Identifiers: []string{"/srv/app/config.yaml"},
		LatestAsk:   "please refactor the parser",
	})
	if !res.OK {
		t.Fatalf("expected pass, reasons=%v", res.Reasons)
	}
}

func TestAuditSummaryQualityMissingSection(t *testing.T) {
	summary := strings.ReplaceAll(wellFormedSummary("- x"), "## Open TODOs", "## Todo list")
	res := AuditSummaryQuality(AuditInput{Summary: summary})
	if res.OK {
		t.Fatal("expected failure")
	}
	found := false
	for _, r := range res.Reasons {
		if r == "missing_section:## Open TODOs" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing_section reason absent: %v", res.Reasons)
	}
}

func TestAuditSummaryQualityMissingIdentifiers(t *testing.T) {
	res := AuditSummaryQuality(AuditInput{
		Summary:     wellFormedSummary("- none"),
		Identifiers: []string{"/a/b/c", "/d/e/f", "/g/h/i", "/j/k/l"},
	})
	if res.OK {
		t.Fatal("expected failure")
	}
	want := "missing_identifiers:/a/b/c,/d/e/f,/g/h/i"
	found := false
	for _, r := range res.Reasons {
		if r == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasons=%v, want %q (capped at three)", res.Reasons, want)
	}
}

func TestAuditSummaryQualityLatestAsk(t *testing.T) {
	res := AuditSummaryQuality(AuditInput{
		Summary:   wellFormedSummary("- none"),
		LatestAsk: "investigate the flaky deployment pipeline",
	})
	if res.OK {
		t.Fatal("expected failure")
	}
	found := false
	for _, r := range res.Reasons {
		if r == "latest_user_ask_not_reflected" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ask reason absent: %v", res.Reasons)
	}

	// Short-token asks have nothing to check against.
	res = AuditSummaryQuality(AuditInput{
		Summary:   wellFormedSummary("- none"),
		LatestAsk: "do it now",
	})
	if !res.OK {
		t.Fatalf("short-token ask should not fail the audit: %v", res.Reasons)
	}
}

func TestBuildStructureInstructions(t *testing.T) {
	base := BuildStructureInstructions("")
	for _, section := range requiredSummarySections {
		if !strings.Contains(base, section) {
			t.Fatalf("instructions missing %q", section)
		}
	}
	if strings.Contains(base, "Additional focus:") {
		t.Fatal("blank custom instructions should not add a focus block")
	}

	custom := BuildStructureInstructions("track migration progress")
	if !strings.Contains(custom, "Additional focus:\ntrack migration progress") {
		t.Fatal("custom instructions not appended")
	}
}
