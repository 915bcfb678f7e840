package model

import "time"

type BountyReward struct {
	RewardID    uint64    `gorm:"column:reward_id;primaryKey;autoIncrement"`
	ProgramID   uint64    `gorm:"column:program_id;not null;uniqueIndex:idx_rewards_program_developer"`
	DeveloperID uint64    `gorm:"column:developer_id;not null;uniqueIndex:idx_rewards_program_developer"`
	FinalScore  float64   `gorm:"column:final_score;not null"`
	Rank        int       `gorm:"column:rank;not null"`
	Tier        string    `gorm:"column:tier;type:text;not null"`
	Amount      float64   `gorm:"column:amount;not null"`
	Currency    string    `gorm:"column:currency;type:text;not null"`
	Status      string    `gorm:"column:status;type:text;not null;index"`
	ComputedAt  time.Time `gorm:"column:computed_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (BountyReward) TableName() string {
	return "bounty_rewards"
}
