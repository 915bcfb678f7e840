package model

import "time"

type Ruleset struct {
	RulesetID uint64    `gorm:"column:ruleset_id;primaryKey;autoIncrement"`
	OrgID     uint64    `gorm:"column:org_id;not null;index"`
	Key       string    `gorm:"column:key;type:text;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Active    bool      `gorm:"column:active;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Ruleset) TableName() string {
	return "rulesets"
}
