package pipeline

import (
	"errors"
	"time"

	"prmerit/internal/ports"
)

// Config tunes the scoring pipeline. Zero values fall back to the defaults
// below at construction time.
type Config struct {
	// PageSize is the per-page size for closed pull request listings.
	PageSize int
	// MaxPages caps one sync run; the run reports how far it got.
	MaxPages int
	// LookbackMonths is the sync cutoff when the caller does not pass one.
	LookbackMonths int
	// FilesCap limits how many changed files enter the classifier context.
	FilesCap int
	// DiffCharLimit bounds the total patch text in the classifier context.
	DiffCharLimit int
	// ItemDelay spaces out sequential backfill evaluations.
	ItemDelay time.Duration
	// CacheTTL bounds how long a classification is reused for an unchanged
	// head commit.
	CacheTTL time.Duration
	// PostComments enables the best-effort score comment on evaluated pull
	// requests.
	PostComments bool
}

const (
	defaultPageSize       = 50
	defaultMaxPages       = 20
	defaultLookbackMonths = 6
	defaultFilesCap       = 30
	defaultDiffCharLimit  = 20000
	defaultCacheTTL       = 24 * time.Hour
)

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.LookbackMonths <= 0 {
		c.LookbackMonths = defaultLookbackMonths
	}
	if c.FilesCap <= 0 {
		c.FilesCap = defaultFilesCap
	}
	if c.DiffCharLimit <= 0 {
		c.DiffCharLimit = defaultDiffCharLimit
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	return c
}

// Service drives the merged-pull-request scoring pipeline: webhook intake,
// historical sync, backfill evaluation, and the single-pull-request
// evaluate path they all share.
type Service struct {
	repo   ports.PipelineRepository
	uow    ports.UnitOfWork
	tokens ports.TokenSource
	host   ports.CodeHost
	oracle ports.Oracle
	cache  ports.Cache
	cfg    Config

	now   func() time.Time
	sleep DelayFunc
}

func NewService(
	repo ports.PipelineRepository,
	uow ports.UnitOfWork,
	tokens ports.TokenSource,
	host ports.CodeHost,
	oracle ports.Oracle,
	cache ports.Cache,
	cfg Config,
) (*Service, error) {
	if repo == nil {
		return nil, errors.New("pipeline repository is required")
	}
	if uow == nil {
		return nil, errors.New("unit of work is required")
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}
	if host == nil {
		return nil, errors.New("code host is required")
	}
	if oracle == nil {
		return nil, errors.New("oracle is required")
	}
	if cache == nil {
		return nil, errors.New("cache is required")
	}

	return &Service{
		repo:   repo,
		uow:    uow,
		tokens: tokens,
		host:   host,
		oracle: oracle,
		cache:  cache,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}
