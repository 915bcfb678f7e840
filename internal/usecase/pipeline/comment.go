package pipeline

import (
	"fmt"
	"strings"

	"prmerit/internal/ports"
)

func checkbox(ok bool) string {
	if ok {
		return "x"
	}
	return " "
}

// formatScoreComment renders the evaluation as the markdown comment posted
// back on the pull request.
func formatScoreComment(rec ports.EvaluationRecord) string {
	var b strings.Builder

	b.WriteString("## Contribution score\n\n")
	fmt.Fprintf(&b, "**%.0f points** (%s, %s)\n\n", rec.FinalScore, rec.ComponentKey, rec.SeverityKey)
	fmt.Fprintf(&b, "- [%s] linked issue\n", checkbox(rec.IssueLinked))
	fmt.Fprintf(&b, "- [%s] fix implemented\n", checkbox(rec.FixImplemented))
	fmt.Fprintf(&b, "- [%s] documented\n", checkbox(rec.Documented))
	fmt.Fprintf(&b, "- [%s] tests\n", checkbox(rec.Tested))

	if !rec.IsEligible {
		b.WriteString("\nNot eligible for bounty scoring: every check above must pass.\n")
	}
	if reason := strings.TrimSpace(rec.EligibilityReason); reason != "" {
		fmt.Fprintf(&b, "\n> %s\n", reason)
	}
	return b.String()
}
