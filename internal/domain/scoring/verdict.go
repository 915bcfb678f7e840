package scoring

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnparseableVerdictError reports oracle output that could not be decoded.
// The raw text is preserved for diagnosis; the evaluation fails rather than
// guessing a default verdict.
type UnparseableVerdictError struct {
	Raw string
	Err error
}

func (e *UnparseableVerdictError) Error() string {
	return fmt.Sprintf("classification unparseable: %v", e.Err)
}

func (e *UnparseableVerdictError) Unwrap() error { return e.Err }

type verdictPayload struct {
	PrimaryComponentKey string `json:"primary_component_key"`
	SeverityKey         string `json:"severity_key"`
	Eligibility         struct {
		Issue             bool `json:"issue"`
		FixImplementation bool `json:"fix_implementation"`
		PRLinked          bool `json:"pr_linked"`
		Tests             bool `json:"tests"`
	} `json:"eligibility"`
	ComponentJustification   string `json:"component_justification"`
	SeverityJustification    string `json:"severity_justification"`
	EligibilityJustification string `json:"eligibility_justification"`
}

// ParseVerdict decodes raw oracle output into a Verdict. Markdown code
// fences around the JSON are stripped first; anything that still fails to
// decode yields an UnparseableVerdictError carrying the raw text.
func ParseVerdict(raw string) (Verdict, error) {
	body := stripCodeFence(raw)

	var payload verdictPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Verdict{}, &UnparseableVerdictError{Raw: raw, Err: err}
	}

	return Verdict{
		ComponentKey: strings.TrimSpace(payload.PrimaryComponentKey),
		SeverityKey:  strings.TrimSpace(payload.SeverityKey),
		Eligibility: Eligibility{
			IssueLinked:    payload.Eligibility.Issue,
			FixImplemented: payload.Eligibility.FixImplementation,
			Documented:     payload.Eligibility.PRLinked,
			Tested:         payload.Eligibility.Tests,
		},
		ComponentReason:   strings.TrimSpace(payload.ComponentJustification),
		SeverityReason:    strings.TrimSpace(payload.SeverityJustification),
		EligibilityReason: strings.TrimSpace(payload.EligibilityJustification),
	}, nil
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (for example "json").
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
