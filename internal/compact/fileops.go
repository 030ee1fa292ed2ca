package compact

import (
	"sort"
	"strings"
)

// FileOps records which workspace files the session touched, split into
// three disjoint intent sets.
type FileOps struct {
	Read    []string `json:"read,omitempty"`
	Edited  []string `json:"edited,omitempty"`
	Written []string `json:"written,omitempty"`
}

// fileOpLists computes the artifact's sorted, deduplicated path lists.
// A path that was also modified is excluded from the read list.
func fileOpLists(ops FileOps) (readFiles, modifiedFiles []string) {
	modified := make(map[string]struct{}, len(ops.Edited)+len(ops.Written))
	for _, p := range ops.Edited {
		modified[p] = struct{}{}
	}
	for _, p := range ops.Written {
		modified[p] = struct{}{}
	}

	modifiedFiles = make([]string, 0, len(modified))
	for p := range modified {
		modifiedFiles = append(modifiedFiles, p)
	}
	sort.Strings(modifiedFiles)

	seen := make(map[string]struct{}, len(ops.Read))
	readFiles = make([]string, 0, len(ops.Read))
	for _, p := range ops.Read {
		if _, isModified := modified[p]; isModified {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		readFiles = append(readFiles, p)
	}
	sort.Strings(readFiles)
	return readFiles, modifiedFiles
}

// buildFileOpsSection renders the read/modified path lists as XML-like
// blocks. Empty sets are omitted; the whole block is "" when both are empty.
func buildFileOpsSection(readFiles, modifiedFiles []string) string {
	if len(readFiles) == 0 && len(modifiedFiles) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n")
	if len(readFiles) > 0 {
		sb.WriteString("<read-files>\n")
		sb.WriteString(strings.Join(readFiles, "\n"))
		sb.WriteString("\n</read-files>")
	}
	if len(modifiedFiles) > 0 {
		if len(readFiles) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("<modified-files>\n")
		sb.WriteString(strings.Join(modifiedFiles, "\n"))
		sb.WriteString("\n</modified-files>")
	}
	return sb.String()
}
