package ports

import (
	"context"
	"errors"
	"time"

	"prmerit/internal/domain/scoring"
)

var (
	ErrOrgNotFound         = errors.New("organization not found")
	ErrRepoNotTracked      = errors.New("repository not tracked")
	ErrRulesetNotFound     = errors.New("no active ruleset")
	ErrDeveloperNotFound   = errors.New("developer identity not found")
	ErrPullRequestNotFound = errors.New("pull request not found")
	ErrEvaluationNotFound  = errors.New("evaluation not found")
)

type Organization struct {
	OrgID          uint64
	Name           string
	InstallationID int64
}

type TrackedRepo struct {
	RepoID   uint64
	OrgID    uint64
	FullName string
}

// Ruleset is a named, versioned scoring configuration. Evaluations are
// keyed per ruleset so re-scoring under a new ruleset never overwrites
// history.
type Ruleset struct {
	RulesetID uint64
	OrgID     uint64
	Key       string
	Name      string
	Active    bool
}

type Developer struct {
	DeveloperID    uint64
	PlatformUserID int64
	Login          string
	AvatarURL      string
}

type PullRequestRecord struct {
	PullRequestID uint64
	OrgID         uint64
	RepoID        uint64
	PlatformID    int64
	Number        int
	Title         string
	Body          string
	AuthorID      uint64
	MergedAt      time.Time
	Additions     int
	Deletions     int
	ChangedFiles  int
	HeadSHA       string
	BaseSHA       string
	HTMLURL       string
	LastSyncedAt  time.Time
}

type EvaluationRecord struct {
	EvaluationID  uint64
	PullRequestID uint64
	RulesetID     uint64

	ComponentKey string
	SeverityKey  string

	IssueLinked    bool
	FixImplemented bool
	Documented     bool
	Tested         bool
	IsEligible     bool

	BasePoints float64
	Multiplier float64
	FinalScore float64

	ComponentReason   string
	SeverityReason    string
	EligibilityReason string
	RawVerdict        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EligibleScore is the reward calculator's read model: one eligible
// evaluation joined with its author and merge time.
type EligibleScore struct {
	DeveloperID uint64
	Login       string
	FinalScore  float64
	MergedAt    time.Time
}

// PipelineRepository persists everything the scoring pipeline touches.
// Upsert methods are the pipeline's idempotency boundary: concurrent
// triggers for the same pull request converge on one row.
type PipelineRepository interface {
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	GetOrganization(ctx context.Context, orgID uint64) (Organization, error)
	GetOrganizationByInstallation(ctx context.Context, installationID int64) (Organization, error)

	CreateRepo(ctx context.Context, repo TrackedRepo) (TrackedRepo, error)
	GetRepo(ctx context.Context, repoID uint64) (TrackedRepo, error)
	GetRepoByFullName(ctx context.Context, orgID uint64, fullName string) (TrackedRepo, error)

	CreateRuleset(ctx context.Context, ruleset Ruleset) (Ruleset, error)
	ActiveRuleset(ctx context.Context, orgID uint64) (Ruleset, error)

	CreateComponent(ctx context.Context, orgID uint64, component scoring.Component) error
	CreateSeverity(ctx context.Context, orgID uint64, severity scoring.SeverityLevel) error
	ListComponents(ctx context.Context, orgID uint64) ([]scoring.Component, error)
	ListSeverities(ctx context.Context, orgID uint64) ([]scoring.SeverityLevel, error)

	// ResolveDeveloper finds the identity by exact login, falls back to the
	// platform user id (login changes on the platform), and creates the
	// identity on first sighting.
	ResolveDeveloper(ctx context.Context, dev Developer) (Developer, error)
	GetDeveloper(ctx context.Context, developerID uint64) (Developer, error)

	// UpsertPullRequest inserts or updates on (org_id, platform_pr_id) and
	// reports whether a new row was created.
	UpsertPullRequest(ctx context.Context, rec PullRequestRecord) (PullRequestRecord, bool, error)
	GetPullRequestByPlatformID(ctx context.Context, orgID uint64, platformID int64) (PullRequestRecord, error)

	// ListUnevaluated returns recorded merged pull requests that have no
	// evaluation under the given ruleset. repoID zero means all tracked
	// repositories of the organization.
	ListUnevaluated(ctx context.Context, orgID uint64, repoID uint64, rulesetID uint64) ([]PullRequestRecord, error)

	// UpsertEvaluation inserts or overwrites in place on
	// (pull_request_id, ruleset_id); it never appends a duplicate.
	UpsertEvaluation(ctx context.Context, rec EvaluationRecord) (EvaluationRecord, error)
	GetEvaluation(ctx context.Context, pullRequestID uint64, rulesetID uint64) (EvaluationRecord, error)

	ListEligibleScores(ctx context.Context, orgID uint64, rulesetID uint64, start time.Time, end time.Time) ([]EligibleScore, error)
}
