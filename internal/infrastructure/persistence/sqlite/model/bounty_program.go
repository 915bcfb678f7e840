package model

import "time"

type BountyProgram struct {
	ProgramID uint64    `gorm:"column:program_id;primaryKey;autoIncrement"`
	OrgID     uint64    `gorm:"column:org_id;not null;index"`
	Key       string    `gorm:"column:key;type:text;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Type      string    `gorm:"column:program_type;type:text;not null"`
	StartsAt  time.Time `gorm:"column:starts_at;not null"`
	EndsAt    time.Time `gorm:"column:ends_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (BountyProgram) TableName() string {
	return "bounty_programs"
}

type BountyRankReward struct {
	RankRewardID uint64  `gorm:"column:rank_reward_id;primaryKey;autoIncrement"`
	ProgramID    uint64  `gorm:"column:program_id;not null;uniqueIndex:idx_rank_rewards_program_rank"`
	Rank         int     `gorm:"column:rank;not null;uniqueIndex:idx_rank_rewards_program_rank"`
	Amount       float64 `gorm:"column:amount;not null"`
	Currency     string  `gorm:"column:currency;type:text;not null"`
}

func (BountyRankReward) TableName() string {
	return "bounty_rank_rewards"
}

type BountyTier struct {
	TierID    uint64   `gorm:"column:tier_id;primaryKey;autoIncrement"`
	ProgramID uint64   `gorm:"column:program_id;not null;index"`
	Name      string   `gorm:"column:name;type:text;not null"`
	MinScore  float64  `gorm:"column:min_score;not null"`
	MaxScore  *float64 `gorm:"column:max_score"`
	Amount    float64  `gorm:"column:amount;not null"`
	Currency  string   `gorm:"column:currency;type:text;not null"`
}

func (BountyTier) TableName() string {
	return "bounty_tiers"
}
