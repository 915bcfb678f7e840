package ports

import (
	"context"
	"errors"
	"time"

	"prmerit/internal/domain/reward"
)

var (
	ErrProgramNotFound = errors.New("bounty program not found")
	ErrRewardNotFound  = errors.New("bounty reward not found")
)

type BountyProgram struct {
	ProgramID uint64
	OrgID     uint64
	Key       string
	Name      string
	Type      reward.ProgramType
	StartsAt  time.Time
	EndsAt    time.Time

	RankRewards []reward.RankReward
	Tiers       []reward.Tier
}

type BountyRewardRecord struct {
	RewardID    uint64
	ProgramID   uint64
	DeveloperID uint64
	FinalScore  float64
	Rank        int
	Tier        string
	Amount      float64
	Currency    string
	Status      reward.Status
	ComputedAt  time.Time
	UpdatedAt   time.Time
}

type BountyRepository interface {
	// CreateProgram stores the program together with its reward policy
	// (rank list or tier buckets) in one transaction.
	CreateProgram(ctx context.Context, program BountyProgram) (BountyProgram, error)
	GetProgram(ctx context.Context, programID uint64) (BountyProgram, error)

	// UpsertReward inserts or overwrites on (program_id, developer_id).
	// Status is written on insert only; for an existing row the stored
	// status wins, so recommits never undo lifecycle transitions.
	UpsertReward(ctx context.Context, rec BountyRewardRecord) (BountyRewardRecord, error)
	GetReward(ctx context.Context, rewardID uint64) (BountyRewardRecord, error)
	ListRewards(ctx context.Context, programID uint64) ([]BountyRewardRecord, error)
	UpdateRewardStatus(ctx context.Context, rewardID uint64, status reward.Status, updatedAt time.Time) error
}
