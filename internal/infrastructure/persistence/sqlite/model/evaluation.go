package model

import "time"

type Evaluation struct {
	EvaluationID  uint64 `gorm:"column:evaluation_id;primaryKey;autoIncrement"`
	PullRequestID uint64 `gorm:"column:pull_request_id;not null;uniqueIndex:idx_evaluations_pr_ruleset"`
	RulesetID     uint64 `gorm:"column:ruleset_id;not null;uniqueIndex:idx_evaluations_pr_ruleset"`

	ComponentKey string `gorm:"column:component_key;type:text;not null"`
	SeverityKey  string `gorm:"column:severity_key;type:text;not null"`

	IssueLinked    bool `gorm:"column:issue_linked;not null"`
	FixImplemented bool `gorm:"column:fix_implemented;not null"`
	Documented     bool `gorm:"column:documented;not null"`
	Tested         bool `gorm:"column:tested;not null"`
	IsEligible     bool `gorm:"column:is_eligible;not null;index"`

	BasePoints float64 `gorm:"column:base_points;not null"`
	Multiplier float64 `gorm:"column:multiplier;not null"`
	FinalScore float64 `gorm:"column:final_score;not null"`

	ComponentReason   string `gorm:"column:component_reason;type:text;not null"`
	SeverityReason    string `gorm:"column:severity_reason;type:text;not null"`
	EligibilityReason string `gorm:"column:eligibility_reason;type:text;not null"`
	RawVerdict        string `gorm:"column:raw_verdict;type:text;not null"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Evaluation) TableName() string {
	return "pr_evaluations"
}
