package pipeline

import (
	"fmt"
	"strings"

	"prmerit/internal/domain/scoring"
	"prmerit/internal/ports"
)

const (
	unknownAuthor    = "unknown"
	noDescription    = "no description provided"
	diffNotAvailable = "diff not available"
	diffTruncated    = "[diff truncated]"
)

// BuildPRContext renders the pull request into the text block handed to the
// classifier: title, author, description, and a bounded slice of the diff.
// Missing pieces are stated explicitly so the classifier never sees an
// empty section.
func BuildPRContext(rec ports.PullRequestRecord, author string, files []ports.ChangedFile, filesCap int, diffCharLimit int) string {
	var b strings.Builder

	if strings.TrimSpace(author) == "" {
		author = unknownAuthor
	}

	fmt.Fprintf(&b, "Pull request #%d: %s\n", rec.Number, rec.Title)
	fmt.Fprintf(&b, "Author: %s\n", author)
	fmt.Fprintf(&b, "Merged at: %s\n", rec.MergedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Size: +%d/-%d across %d files\n\n", rec.Additions, rec.Deletions, rec.ChangedFiles)

	b.WriteString("Description:\n")
	if body := strings.TrimSpace(rec.Body); body != "" {
		b.WriteString(body)
	} else {
		b.WriteString(noDescription)
	}
	b.WriteString("\n\n")

	b.WriteString("Changed files:\n")
	if len(files) == 0 {
		b.WriteString(diffNotAvailable)
		b.WriteString("\n")
		return b.String()
	}

	shown := files
	if filesCap > 0 && len(shown) > filesCap {
		shown = shown[:filesCap]
	}

	budget := diffCharLimit
	truncated := len(files) > len(shown)
	for _, f := range shown {
		fmt.Fprintf(&b, "--- %s (+%d/-%d)\n", f.Filename, f.Additions, f.Deletions)
		patch := f.Patch
		if patch == "" {
			continue
		}
		if budget <= 0 {
			truncated = true
			break
		}
		if len(patch) > budget {
			patch = patch[:budget]
			truncated = true
		}
		budget -= len(patch)
		b.WriteString(patch)
		b.WriteString("\n")
	}
	if truncated {
		b.WriteString(diffTruncated)
		b.WriteString("\n")
	}
	return b.String()
}

// BuildClassifierPrompt combines the organization's scoring catalog with the
// rendered pull request context. The catalog tables give the classifier the
// exact keys it is allowed to answer with.
func BuildClassifierPrompt(catalog scoring.Catalog, prContext string) string {
	var b strings.Builder

	b.WriteString("Component catalog (answer with one key):\n")
	for _, comp := range catalog.Components {
		fmt.Fprintf(&b, "- %s: %s (multiplier %g)\n", comp.Key, comp.Name, comp.Multiplier)
	}

	b.WriteString("\nSeverity catalog (answer with one key):\n")
	for _, sev := range catalog.Severities {
		fmt.Fprintf(&b, "- %s: %s (%g base points)\n", sev.Key, sev.Name, sev.BasePoints)
	}

	b.WriteString("\n")
	b.WriteString(prContext)
	return b.String()
}
