package scoring

// Eligibility is the four-check gate a pull request must fully pass to earn
// a nonzero score.
type Eligibility struct {
	IssueLinked    bool
	FixImplemented bool
	Documented     bool
	Tested         bool
}

func (e Eligibility) Eligible() bool {
	return e.IssueLinked && e.FixImplemented && e.Documented && e.Tested
}

// Verdict is the structured classification of one pull request as proposed
// by the oracle, before catalog resolution.
type Verdict struct {
	ComponentKey string
	SeverityKey  string
	Eligibility  Eligibility

	ComponentReason   string
	SeverityReason    string
	EligibilityReason string
}

// Score is the deterministic scoring outcome for one verdict under one
// catalog.
type Score struct {
	Component  Component
	Severity   SeverityLevel
	Eligible   bool
	BasePoints float64
	Multiplier float64
	Final      float64
}

// Evaluate converts a verdict into a score. It is a pure function: no I/O,
// no AI, replayable from the persisted verdict at any time. It fails only
// when the catalog itself is unusable.
func Evaluate(catalog Catalog, v Verdict) (Score, error) {
	component, err := catalog.ResolveComponent(v.ComponentKey)
	if err != nil {
		return Score{}, err
	}
	severity, err := catalog.ResolveSeverity(v.SeverityKey)
	if err != nil {
		return Score{}, err
	}

	score := Score{
		Component:  component,
		Severity:   severity,
		Eligible:   v.Eligibility.Eligible(),
		BasePoints: severity.BasePoints,
		Multiplier: component.Multiplier,
	}
	if score.Eligible {
		score.Final = severity.BasePoints * component.Multiplier
	}
	return score, nil
}
