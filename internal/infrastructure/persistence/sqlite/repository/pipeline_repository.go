package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prmerit/internal/domain/scoring"
	"prmerit/internal/errs"
	"prmerit/internal/infrastructure/persistence/sqlite/model"
	"prmerit/internal/ports"
)

type PipelineRepository struct {
	db *gorm.DB
}

var _ ports.PipelineRepository = (*PipelineRepository)(nil)

func NewPipelineRepository(db *gorm.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

func (r *PipelineRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *PipelineRepository) CreateOrganization(ctx context.Context, org ports.Organization) (ports.Organization, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Organization{}, err
	}

	row := model.Organization{
		Name:           strings.TrimSpace(org.Name),
		InstallationID: org.InstallationID,
		CreatedAt:      nowUTC(),
	}
	if row.Name == "" {
		return ports.Organization{}, errors.New("organization name is required")
	}
	if row.InstallationID <= 0 {
		return ports.Organization{}, errors.New("installation id is required")
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Organization{}, errs.Wrap(err, "create organization")
	}
	return mapOrganization(row), nil
}

func (r *PipelineRepository) GetOrganization(ctx context.Context, orgID uint64) (ports.Organization, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Organization{}, err
	}

	var row model.Organization
	if err := db.Where("org_id = ?", orgID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Organization{}, ports.ErrOrgNotFound
		}
		return ports.Organization{}, errs.Wrap(err, "query organization")
	}
	return mapOrganization(row), nil
}

func (r *PipelineRepository) GetOrganizationByInstallation(ctx context.Context, installationID int64) (ports.Organization, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Organization{}, err
	}

	var row model.Organization
	if err := db.Where("installation_id = ?", installationID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Organization{}, ports.ErrOrgNotFound
		}
		return ports.Organization{}, errs.Wrap(err, "query organization by installation")
	}
	return mapOrganization(row), nil
}

func (r *PipelineRepository) CreateRepo(ctx context.Context, repo ports.TrackedRepo) (ports.TrackedRepo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.TrackedRepo{}, err
	}

	row := model.TrackedRepo{
		OrgID:     repo.OrgID,
		FullName:  strings.TrimSpace(repo.FullName),
		CreatedAt: nowUTC(),
	}
	if row.FullName == "" {
		return ports.TrackedRepo{}, errors.New("repository full name is required")
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.TrackedRepo{}, errs.Wrap(err, "create tracked repo")
	}
	return mapTrackedRepo(row), nil
}

func (r *PipelineRepository) GetRepo(ctx context.Context, repoID uint64) (ports.TrackedRepo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.TrackedRepo{}, err
	}

	var row model.TrackedRepo
	if err := db.Where("repo_id = ?", repoID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.TrackedRepo{}, ports.ErrRepoNotTracked
		}
		return ports.TrackedRepo{}, errs.Wrap(err, "query tracked repo")
	}
	return mapTrackedRepo(row), nil
}

func (r *PipelineRepository) GetRepoByFullName(ctx context.Context, orgID uint64, fullName string) (ports.TrackedRepo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.TrackedRepo{}, err
	}

	var row model.TrackedRepo
	if err := db.Where("org_id = ? AND full_name = ?", orgID, strings.TrimSpace(fullName)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.TrackedRepo{}, ports.ErrRepoNotTracked
		}
		return ports.TrackedRepo{}, errs.Wrap(err, "query tracked repo by full name")
	}
	return mapTrackedRepo(row), nil
}

func (r *PipelineRepository) CreateRuleset(ctx context.Context, ruleset ports.Ruleset) (ports.Ruleset, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Ruleset{}, err
	}

	row := model.Ruleset{
		OrgID:     ruleset.OrgID,
		Key:       strings.TrimSpace(ruleset.Key),
		Name:      strings.TrimSpace(ruleset.Name),
		Active:    true,
		CreatedAt: nowUTC(),
	}
	if row.Key == "" {
		return ports.Ruleset{}, errors.New("ruleset key is required")
	}

	// The newest ruleset becomes the active one; only one ruleset is active
	// per organization at a time.
	if err := db.Model(&model.Ruleset{}).
		Where("org_id = ?", row.OrgID).
		Update("active", false).Error; err != nil {
		return ports.Ruleset{}, errs.Wrap(err, "deactivate previous rulesets")
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Ruleset{}, errs.Wrap(err, "create ruleset")
	}
	return mapRuleset(row), nil
}

func (r *PipelineRepository) ActiveRuleset(ctx context.Context, orgID uint64) (ports.Ruleset, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Ruleset{}, err
	}

	var row model.Ruleset
	if err := db.Where("org_id = ? AND active = ?", orgID, true).
		Order("ruleset_id desc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Ruleset{}, ports.ErrRulesetNotFound
		}
		return ports.Ruleset{}, errs.Wrap(err, "query active ruleset")
	}
	return mapRuleset(row), nil
}

func (r *PipelineRepository) CreateComponent(ctx context.Context, orgID uint64, component scoring.Component) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	key := strings.ToLower(strings.TrimSpace(component.Key))
	if key == "" {
		return errors.New("component key is required")
	}
	if component.Multiplier < 0 {
		return errors.New("component multiplier must be non-negative")
	}

	row := model.Component{
		OrgID:      orgID,
		Key:        key,
		Name:       strings.TrimSpace(component.Name),
		Multiplier: component.Multiplier,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":       row.Name,
			"multiplier": row.Multiplier,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert component")
	}
	return nil
}

func (r *PipelineRepository) CreateSeverity(ctx context.Context, orgID uint64, severity scoring.SeverityLevel) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	key := strings.ToLower(strings.TrimSpace(severity.Key))
	if key == "" {
		return errors.New("severity key is required")
	}
	if severity.BasePoints < 0 {
		return errors.New("severity base points must be non-negative")
	}

	row := model.SeverityLevel{
		OrgID:      orgID,
		Key:        key,
		Name:       strings.TrimSpace(severity.Name),
		BasePoints: severity.BasePoints,
		Rank:       severity.Rank,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":        row.Name,
			"base_points": row.BasePoints,
			"rank":        row.Rank,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert severity level")
	}
	return nil
}

func (r *PipelineRepository) ListComponents(ctx context.Context, orgID uint64) ([]scoring.Component, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Component
	if err := db.Where("org_id = ?", orgID).Order("key asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query components")
	}

	components := make([]scoring.Component, 0, len(rows))
	for _, row := range rows {
		components = append(components, scoring.Component{
			Key:        row.Key,
			Name:       row.Name,
			Multiplier: row.Multiplier,
		})
	}
	return components, nil
}

func (r *PipelineRepository) ListSeverities(ctx context.Context, orgID uint64) ([]scoring.SeverityLevel, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.SeverityLevel
	if err := db.Where("org_id = ?", orgID).Order("rank asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query severity levels")
	}

	severities := make([]scoring.SeverityLevel, 0, len(rows))
	for _, row := range rows {
		severities = append(severities, scoring.SeverityLevel{
			Key:        row.Key,
			Name:       row.Name,
			BasePoints: row.BasePoints,
			Rank:       row.Rank,
		})
	}
	return severities, nil
}

func (r *PipelineRepository) ResolveDeveloper(ctx context.Context, dev ports.Developer) (ports.Developer, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Developer{}, err
	}

	login := strings.TrimSpace(dev.Login)
	if login == "" {
		return ports.Developer{}, errors.New("developer login is required")
	}

	// Exact, case-sensitive login match is the primary key; sqlite text
	// comparison is case-sensitive by default.
	var row model.DeveloperIdentity
	err = db.Where("login = ?", login).Take(&row).Error
	if err == nil {
		return mapDeveloper(row), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.Developer{}, errs.Wrap(err, "query developer by login")
	}

	// The platform user id is globally unique; a known account that changed
	// its login is updated rather than duplicated.
	if dev.PlatformUserID > 0 {
		err = db.Where("platform_user_id = ?", dev.PlatformUserID).Take(&row).Error
		if err == nil {
			row.Login = login
			row.AvatarURL = dev.AvatarURL
			row.UpdatedAt = nowUTC()
			if err := db.Save(&row).Error; err != nil {
				return ports.Developer{}, errs.Wrap(err, "update developer login")
			}
			return mapDeveloper(row), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Developer{}, errs.Wrap(err, "query developer by platform user id")
		}
	}

	now := nowUTC()
	row = model.DeveloperIdentity{
		PlatformUserID: dev.PlatformUserID,
		Login:          login,
		AvatarURL:      dev.AvatarURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Developer{}, errs.Wrap(err, "create developer identity")
	}
	return mapDeveloper(row), nil
}

func (r *PipelineRepository) GetDeveloper(ctx context.Context, developerID uint64) (ports.Developer, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Developer{}, err
	}

	var row model.DeveloperIdentity
	if err := db.Where("developer_id = ?", developerID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Developer{}, ports.ErrDeveloperNotFound
		}
		return ports.Developer{}, errs.Wrap(err, "query developer")
	}
	return mapDeveloper(row), nil
}

func (r *PipelineRepository) UpsertPullRequest(ctx context.Context, rec ports.PullRequestRecord) (ports.PullRequestRecord, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.PullRequestRecord{}, false, err
	}

	var existing int64
	if err := db.Model(&model.PullRequest{}).
		Where("org_id = ? AND platform_pr_id = ?", rec.OrgID, rec.PlatformID).
		Count(&existing).Error; err != nil {
		return ports.PullRequestRecord{}, false, errs.Wrap(err, "count existing pull request")
	}

	row := model.PullRequest{
		OrgID:        rec.OrgID,
		RepoID:       rec.RepoID,
		PlatformPRID: rec.PlatformID,
		Number:       rec.Number,
		Title:        rec.Title,
		Body:         rec.Body,
		AuthorID:     rec.AuthorID,
		MergedAt:     rec.MergedAt.UTC(),
		Additions:    rec.Additions,
		Deletions:    rec.Deletions,
		ChangedFiles: rec.ChangedFiles,
		HeadSHA:      rec.HeadSHA,
		BaseSHA:      rec.BaseSHA,
		HTMLURL:      rec.HTMLURL,
		LastSyncedAt: rec.LastSyncedAt.UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "platform_pr_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"repo_id":        row.RepoID,
			"number":         row.Number,
			"title":          row.Title,
			"body":           row.Body,
			"author_id":      row.AuthorID,
			"merged_at":      row.MergedAt,
			"additions":      row.Additions,
			"deletions":      row.Deletions,
			"changed_files":  row.ChangedFiles,
			"head_sha":       row.HeadSHA,
			"base_sha":       row.BaseSHA,
			"html_url":       row.HTMLURL,
			"last_synced_at": row.LastSyncedAt,
		}),
	}).Create(&row).Error; err != nil {
		return ports.PullRequestRecord{}, false, errs.Wrap(err, "upsert pull request")
	}

	// The conflict path does not report the surviving primary key, so read
	// the row back by its natural key.
	var stored model.PullRequest
	if err := db.Where("org_id = ? AND platform_pr_id = ?", rec.OrgID, rec.PlatformID).Take(&stored).Error; err != nil {
		return ports.PullRequestRecord{}, false, errs.Wrap(err, "reload upserted pull request")
	}
	return mapPullRequest(stored), existing == 0, nil
}

func (r *PipelineRepository) GetPullRequestByPlatformID(ctx context.Context, orgID uint64, platformID int64) (ports.PullRequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.PullRequestRecord{}, err
	}

	var row model.PullRequest
	if err := db.Where("org_id = ? AND platform_pr_id = ?", orgID, platformID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.PullRequestRecord{}, ports.ErrPullRequestNotFound
		}
		return ports.PullRequestRecord{}, errs.Wrap(err, "query pull request")
	}
	return mapPullRequest(row), nil
}

func (r *PipelineRepository) ListUnevaluated(ctx context.Context, orgID uint64, repoID uint64, rulesetID uint64) ([]ports.PullRequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	evaluated := db.Model(&model.Evaluation{}).
		Select("pull_request_id").
		Where("ruleset_id = ?", rulesetID)

	query := db.Model(&model.PullRequest{}).
		Where("org_id = ?", orgID).
		Where("pull_request_id NOT IN (?)", evaluated)
	if repoID != 0 {
		query = query.Where("repo_id = ?", repoID)
	}

	var rows []model.PullRequest
	if err := query.Order("pull_request_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query unevaluated pull requests")
	}

	records := make([]ports.PullRequestRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, mapPullRequest(row))
	}
	return records, nil
}

func (r *PipelineRepository) UpsertEvaluation(ctx context.Context, rec ports.EvaluationRecord) (ports.EvaluationRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.EvaluationRecord{}, err
	}

	now := nowUTC()
	row := model.Evaluation{
		PullRequestID:     rec.PullRequestID,
		RulesetID:         rec.RulesetID,
		ComponentKey:      rec.ComponentKey,
		SeverityKey:       rec.SeverityKey,
		IssueLinked:       rec.IssueLinked,
		FixImplemented:    rec.FixImplemented,
		Documented:        rec.Documented,
		Tested:            rec.Tested,
		IsEligible:        rec.IsEligible,
		BasePoints:        rec.BasePoints,
		Multiplier:        rec.Multiplier,
		FinalScore:        rec.FinalScore,
		ComponentReason:   rec.ComponentReason,
		SeverityReason:    rec.SeverityReason,
		EligibilityReason: rec.EligibilityReason,
		RawVerdict:        rec.RawVerdict,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pull_request_id"}, {Name: "ruleset_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"component_key":      row.ComponentKey,
			"severity_key":       row.SeverityKey,
			"issue_linked":       row.IssueLinked,
			"fix_implemented":    row.FixImplemented,
			"documented":         row.Documented,
			"tested":             row.Tested,
			"is_eligible":        row.IsEligible,
			"base_points":        row.BasePoints,
			"multiplier":         row.Multiplier,
			"final_score":        row.FinalScore,
			"component_reason":   row.ComponentReason,
			"severity_reason":    row.SeverityReason,
			"eligibility_reason": row.EligibilityReason,
			"raw_verdict":        row.RawVerdict,
			"updated_at":         now,
		}),
	}).Create(&row).Error; err != nil {
		return ports.EvaluationRecord{}, errs.Wrap(err, "upsert evaluation")
	}

	var stored model.Evaluation
	if err := db.Where("pull_request_id = ? AND ruleset_id = ?", rec.PullRequestID, rec.RulesetID).Take(&stored).Error; err != nil {
		return ports.EvaluationRecord{}, errs.Wrap(err, "reload upserted evaluation")
	}
	return mapEvaluation(stored), nil
}

func (r *PipelineRepository) GetEvaluation(ctx context.Context, pullRequestID uint64, rulesetID uint64) (ports.EvaluationRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.EvaluationRecord{}, err
	}

	var row model.Evaluation
	if err := db.Where("pull_request_id = ? AND ruleset_id = ?", pullRequestID, rulesetID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.EvaluationRecord{}, ports.ErrEvaluationNotFound
		}
		return ports.EvaluationRecord{}, errs.Wrap(err, "query evaluation")
	}
	return mapEvaluation(row), nil
}

func (r *PipelineRepository) ListEligibleScores(ctx context.Context, orgID uint64, rulesetID uint64, start, end time.Time) ([]ports.EligibleScore, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		DeveloperID uint64
		Login       string
		FinalScore  float64
		MergedAt    time.Time
	}
	if err := db.Model(&model.Evaluation{}).
		Select("developer_identities.developer_id as developer_id, developer_identities.login as login, pr_evaluations.final_score as final_score, pull_requests.merged_at as merged_at").
		Joins("JOIN pull_requests ON pull_requests.pull_request_id = pr_evaluations.pull_request_id").
		Joins("JOIN developer_identities ON developer_identities.developer_id = pull_requests.author_id").
		Where("pr_evaluations.ruleset_id = ?", rulesetID).
		Where("pr_evaluations.is_eligible = ?", true).
		Where("pull_requests.org_id = ?", orgID).
		Where("pull_requests.merged_at >= ? AND pull_requests.merged_at <= ?", start.UTC(), end.UTC()).
		Order("pull_requests.merged_at asc").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query eligible scores")
	}

	scores := make([]ports.EligibleScore, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, ports.EligibleScore{
			DeveloperID: row.DeveloperID,
			Login:       row.Login,
			FinalScore:  row.FinalScore,
			MergedAt:    row.MergedAt,
		})
	}
	return scores, nil
}
