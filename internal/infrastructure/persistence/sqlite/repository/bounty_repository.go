package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prmerit/internal/domain/reward"
	"prmerit/internal/errs"
	"prmerit/internal/infrastructure/persistence/sqlite/model"
	"prmerit/internal/ports"
)

type BountyRepository struct {
	db *gorm.DB
}

var _ ports.BountyRepository = (*BountyRepository)(nil)

func NewBountyRepository(db *gorm.DB) *BountyRepository {
	return &BountyRepository{db: db}
}

func (r *BountyRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *BountyRepository) CreateProgram(ctx context.Context, program ports.BountyProgram) (ports.BountyProgram, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.BountyProgram{}, err
	}

	row := model.BountyProgram{
		OrgID:     program.OrgID,
		Key:       strings.TrimSpace(program.Key),
		Name:      strings.TrimSpace(program.Name),
		Type:      string(program.Type),
		StartsAt:  program.StartsAt.UTC(),
		EndsAt:    program.EndsAt.UTC(),
		CreatedAt: nowUTC(),
	}
	if row.Key == "" {
		return ports.BountyProgram{}, errors.New("program key is required")
	}
	if row.Name == "" {
		return ports.BountyProgram{}, errors.New("program name is required")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return errs.Wrap(err, "create bounty program")
		}
		for _, rr := range program.RankRewards {
			rankRow := model.BountyRankReward{
				ProgramID: row.ProgramID,
				Rank:      rr.Rank,
				Amount:    rr.Amount,
				Currency:  rr.Currency,
			}
			if err := tx.Create(&rankRow).Error; err != nil {
				return errs.Wrap(err, "create rank reward")
			}
		}
		for _, tier := range program.Tiers {
			tierRow := model.BountyTier{
				ProgramID: row.ProgramID,
				Name:      tier.Name,
				MinScore:  tier.MinScore,
				MaxScore:  tier.MaxScore,
				Amount:    tier.Amount,
				Currency:  tier.Currency,
			}
			if err := tx.Create(&tierRow).Error; err != nil {
				return errs.Wrap(err, "create tier")
			}
		}
		return nil
	})
	if err != nil {
		return ports.BountyProgram{}, err
	}

	return r.GetProgram(ctx, row.ProgramID)
}

func (r *BountyRepository) GetProgram(ctx context.Context, programID uint64) (ports.BountyProgram, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.BountyProgram{}, err
	}

	var row model.BountyProgram
	if err := db.Where("program_id = ?", programID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.BountyProgram{}, ports.ErrProgramNotFound
		}
		return ports.BountyProgram{}, errs.Wrap(err, "query bounty program")
	}

	program := ports.BountyProgram{
		ProgramID: row.ProgramID,
		OrgID:     row.OrgID,
		Key:       row.Key,
		Name:      row.Name,
		Type:      reward.ProgramType(row.Type),
		StartsAt:  row.StartsAt,
		EndsAt:    row.EndsAt,
	}

	var rankRows []model.BountyRankReward
	if err := db.Where("program_id = ?", programID).Order("rank asc").Find(&rankRows).Error; err != nil {
		return ports.BountyProgram{}, errs.Wrap(err, "query rank rewards")
	}
	for _, rr := range rankRows {
		program.RankRewards = append(program.RankRewards, reward.RankReward{
			Rank:     rr.Rank,
			Amount:   rr.Amount,
			Currency: rr.Currency,
		})
	}

	var tierRows []model.BountyTier
	if err := db.Where("program_id = ?", programID).Order("min_score desc").Find(&tierRows).Error; err != nil {
		return ports.BountyProgram{}, errs.Wrap(err, "query tiers")
	}
	for _, tier := range tierRows {
		program.Tiers = append(program.Tiers, reward.Tier{
			Name:     tier.Name,
			MinScore: tier.MinScore,
			MaxScore: tier.MaxScore,
			Amount:   tier.Amount,
			Currency: tier.Currency,
		})
	}

	return program, nil
}

func (r *BountyRepository) UpsertReward(ctx context.Context, rec ports.BountyRewardRecord) (ports.BountyRewardRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.BountyRewardRecord{}, err
	}

	now := nowUTC()
	row := model.BountyReward{
		ProgramID:   rec.ProgramID,
		DeveloperID: rec.DeveloperID,
		FinalScore:  rec.FinalScore,
		Rank:        rec.Rank,
		Tier:        rec.Tier,
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		Status:      string(rec.Status),
		ComputedAt:  rec.ComputedAt.UTC(),
		UpdatedAt:   now,
	}
	// Status is written on insert only. Once a reward leaves pending the
	// lifecycle transitions own it; a recommit refreshes the computed
	// figures without touching it.
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "program_id"}, {Name: "developer_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"final_score": row.FinalScore,
			"rank":        row.Rank,
			"tier":        row.Tier,
			"amount":      row.Amount,
			"currency":    row.Currency,
			"computed_at": row.ComputedAt,
			"updated_at":  now,
		}),
	}).Create(&row).Error; err != nil {
		return ports.BountyRewardRecord{}, errs.Wrap(err, "upsert bounty reward")
	}

	var stored model.BountyReward
	if err := db.Where("program_id = ? AND developer_id = ?", rec.ProgramID, rec.DeveloperID).Take(&stored).Error; err != nil {
		return ports.BountyRewardRecord{}, errs.Wrap(err, "reload upserted reward")
	}
	return mapBountyReward(stored), nil
}

func (r *BountyRepository) GetReward(ctx context.Context, rewardID uint64) (ports.BountyRewardRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.BountyRewardRecord{}, err
	}

	var row model.BountyReward
	if err := db.Where("reward_id = ?", rewardID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.BountyRewardRecord{}, ports.ErrRewardNotFound
		}
		return ports.BountyRewardRecord{}, errs.Wrap(err, "query bounty reward")
	}
	return mapBountyReward(row), nil
}

func (r *BountyRepository) ListRewards(ctx context.Context, programID uint64) ([]ports.BountyRewardRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.BountyReward
	if err := db.Where("program_id = ?", programID).
		Order("final_score desc, developer_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query bounty rewards")
	}

	records := make([]ports.BountyRewardRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, mapBountyReward(row))
	}
	return records, nil
}

func (r *BountyRepository) UpdateRewardStatus(ctx context.Context, rewardID uint64, status reward.Status, updatedAt time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.BountyReward{}).
		Where("reward_id = ?", rewardID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": updatedAt.UTC(),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update reward status")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRewardNotFound
	}
	return nil
}

func mapBountyReward(row model.BountyReward) ports.BountyRewardRecord {
	return ports.BountyRewardRecord{
		RewardID:    row.RewardID,
		ProgramID:   row.ProgramID,
		DeveloperID: row.DeveloperID,
		FinalScore:  row.FinalScore,
		Rank:        row.Rank,
		Tier:        row.Tier,
		Amount:      row.Amount,
		Currency:    row.Currency,
		Status:      reward.Status(row.Status),
		ComputedAt:  row.ComputedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
