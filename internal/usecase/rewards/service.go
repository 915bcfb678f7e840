package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"prmerit/internal/bootstrap/logging"
	"prmerit/internal/domain/reward"
	"prmerit/internal/errs"
	"prmerit/internal/ports"
)

// Service manages bounty programs on top of persisted evaluations: program
// creation, payout projection, commit, and the payout lifecycle.
type Service struct {
	bounty   ports.BountyRepository
	pipeline ports.PipelineRepository
	uow      ports.UnitOfWork

	now func() time.Time
}

func NewService(bounty ports.BountyRepository, pipeline ports.PipelineRepository, uow ports.UnitOfWork) (*Service, error) {
	if bounty == nil {
		return nil, errors.New("bounty repository is required")
	}
	if pipeline == nil {
		return nil, errors.New("pipeline repository is required")
	}
	if uow == nil {
		return nil, errors.New("unit of work is required")
	}
	return &Service{
		bounty:   bounty,
		pipeline: pipeline,
		uow:      uow,
		now:      time.Now,
	}, nil
}

// CreateProgramInput carries everything needed to open a program. Exactly
// one of RankRewards or Tiers must match the declared type.
type CreateProgramInput struct {
	OrgID       uint64
	Name        string
	Type        reward.ProgramType
	StartsAt    time.Time
	EndsAt      time.Time
	RankRewards []reward.RankReward
	Tiers       []reward.Tier
}

// CreateProgram validates the reward policy up front; a malformed policy
// never reaches the database.
func (s *Service) CreateProgram(ctx context.Context, input CreateProgramInput) (ports.BountyProgram, error) {
	if strings.TrimSpace(input.Name) == "" {
		return ports.BountyProgram{}, errors.New("program name is required")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return ports.BountyProgram{}, errors.New("program window must end after it starts")
	}
	if _, err := s.pipeline.GetOrganization(ctx, input.OrgID); err != nil {
		return ports.BountyProgram{}, err
	}

	switch input.Type {
	case reward.ProgramTypeRanking:
		if len(input.Tiers) > 0 {
			return ports.BountyProgram{}, errors.New("ranking program cannot carry tiers")
		}
		if err := reward.ValidateRankRewards(input.RankRewards); err != nil {
			return ports.BountyProgram{}, err
		}
	case reward.ProgramTypeTier:
		if len(input.RankRewards) > 0 {
			return ports.BountyProgram{}, errors.New("tier program cannot carry rank rewards")
		}
		if err := reward.ValidateTiers(input.Tiers); err != nil {
			return ports.BountyProgram{}, err
		}
	default:
		return ports.BountyProgram{}, fmt.Errorf("%w: %q", reward.ErrUnknownProgramType, input.Type)
	}

	program, err := s.bounty.CreateProgram(ctx, ports.BountyProgram{
		OrgID:       input.OrgID,
		Key:         uuid.NewString(),
		Name:        strings.TrimSpace(input.Name),
		Type:        input.Type,
		StartsAt:    input.StartsAt.UTC(),
		EndsAt:      input.EndsAt.UTC(),
		RankRewards: input.RankRewards,
		Tiers:       input.Tiers,
	})
	if err != nil {
		return ports.BountyProgram{}, errs.Wrap(err, "create program")
	}

	logging.Info(ctx, "bounty program created",
		slog.Uint64("program_id", program.ProgramID),
		slog.String("type", string(program.Type)),
	)
	return program, nil
}

func (s *Service) GetProgram(ctx context.Context, programID uint64) (ports.BountyProgram, error) {
	return s.bounty.GetProgram(ctx, programID)
}

// ComputeRewards projects payouts for the program window from eligible
// evaluations under the organization's active ruleset. It is read-only and
// deterministic: the same evaluations produce the same assignments.
func (s *Service) ComputeRewards(ctx context.Context, programID uint64) ([]reward.Assignment, error) {
	program, err := s.bounty.GetProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	ruleset, err := s.pipeline.ActiveRuleset(ctx, program.OrgID)
	if err != nil {
		return nil, errs.Wrapf(err, "organization %d", program.OrgID)
	}

	scores, err := s.pipeline.ListEligibleScores(ctx, program.OrgID, ruleset.RulesetID, program.StartsAt, program.EndsAt)
	if err != nil {
		return nil, errs.Wrap(err, "list eligible scores")
	}

	evaluations := make([]reward.EvaluationScore, 0, len(scores))
	for _, score := range scores {
		evaluations = append(evaluations, reward.EvaluationScore{
			DeveloperID: score.DeveloperID,
			Login:       score.Login,
			FinalScore:  score.FinalScore,
		})
	}
	totals := reward.AggregateScores(evaluations)

	switch program.Type {
	case reward.ProgramTypeRanking:
		return reward.ComputeRanking(totals, program.RankRewards), nil
	case reward.ProgramTypeTier:
		return reward.ComputeTiers(totals, program.Tiers), nil
	default:
		return nil, fmt.Errorf("%w: %q", reward.ErrUnknownProgramType, program.Type)
	}
}

// CommitRewards recomputes the projection and persists one pending reward
// row per developer total, including zero-amount rows for unrewarded
// developers. Recommitting converges on the same rows and refreshes the
// computed figures without touching the lifecycle status of rows that an
// admin has already moved past pending.
func (s *Service) CommitRewards(ctx context.Context, programID uint64) ([]ports.BountyRewardRecord, error) {
	assignments, err := s.ComputeRewards(ctx, programID)
	if err != nil {
		return nil, err
	}

	computedAt := s.now().UTC()
	committed := make([]ports.BountyRewardRecord, 0, len(assignments))
	err = s.uow.WithTx(ctx, func(ctx context.Context) error {
		for _, a := range assignments {
			rec, err := s.bounty.UpsertReward(ctx, ports.BountyRewardRecord{
				ProgramID:   programID,
				DeveloperID: a.DeveloperID,
				FinalScore:  a.Total,
				Rank:        a.Rank,
				Tier:        a.Tier,
				Amount:      a.Amount,
				Currency:    a.Currency,
				Status:      reward.StatusPending,
				ComputedAt:  computedAt,
			})
			if err != nil {
				return errs.Wrapf(err, "commit reward for developer %d", a.DeveloperID)
			}
			committed = append(committed, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info(ctx, "rewards committed",
		slog.Uint64("program_id", programID),
		slog.Int("rewards", len(committed)),
	)
	return committed, nil
}

func (s *Service) ListRewards(ctx context.Context, programID uint64) ([]ports.BountyRewardRecord, error) {
	return s.bounty.ListRewards(ctx, programID)
}

// TransitionReward applies one admin lifecycle step to a committed reward.
func (s *Service) TransitionReward(ctx context.Context, rewardID uint64, to reward.Status) (ports.BountyRewardRecord, error) {
	rec, err := s.bounty.GetReward(ctx, rewardID)
	if err != nil {
		return ports.BountyRewardRecord{}, err
	}
	if err := reward.Transition(rec.Status, to); err != nil {
		return ports.BountyRewardRecord{}, err
	}
	if err := s.bounty.UpdateRewardStatus(ctx, rewardID, to, s.now().UTC()); err != nil {
		return ports.BountyRewardRecord{}, errs.Wrap(err, "update reward status")
	}

	logging.Info(ctx, "reward status changed",
		slog.Uint64("reward_id", rewardID),
		slog.String("from", string(rec.Status)),
		slog.String("to", string(to)),
	)
	rec.Status = to
	return rec, nil
}

// ApproveReward, PayReward and RejectReward are the named admin operations
// over TransitionReward.
func (s *Service) ApproveReward(ctx context.Context, rewardID uint64) (ports.BountyRewardRecord, error) {
	return s.TransitionReward(ctx, rewardID, reward.StatusApproved)
}

func (s *Service) PayReward(ctx context.Context, rewardID uint64) (ports.BountyRewardRecord, error) {
	return s.TransitionReward(ctx, rewardID, reward.StatusPaid)
}

func (s *Service) RejectReward(ctx context.Context, rewardID uint64) (ports.BountyRewardRecord, error) {
	return s.TransitionReward(ctx, rewardID, reward.StatusRejected)
}
