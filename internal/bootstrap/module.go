package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"prmerit/internal/bootstrap/config"
	"prmerit/internal/bootstrap/database"
	"prmerit/internal/bootstrap/logging"
	cacheinfra "prmerit/internal/infrastructure/cache"
	githubinfra "prmerit/internal/infrastructure/github"
	oracleinfra "prmerit/internal/infrastructure/oracle"
	sqliterepo "prmerit/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "prmerit/internal/infrastructure/persistence/sqlite/uow"
	"prmerit/internal/ports"
	"prmerit/internal/usecase/pipeline"
	"prmerit/internal/usecase/rewards"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewPipelineRepository,
			fx.As(new(ports.PipelineRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewBountyRepository,
			fx.As(new(ports.BountyRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideTokenSource,
			fx.As(new(ports.TokenSource)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideCodeHost,
			fx.As(new(ports.CodeHost)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideOracle,
			fx.As(new(ports.Oracle)),
		),
	),
	fx.Provide(providePipelineService),
	fx.Provide(rewards.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideTokenSource(cfg config.Config) (*githubinfra.AppTokenSource, error) {
	return githubinfra.NewAppTokenSource(cfg.GitHub.AppID, cfg.GitHub.PrivateKeyPath, cfg.GitHub.APIBaseURL)
}

func provideCodeHost(cfg config.Config) *githubinfra.Client {
	return githubinfra.NewClient(cfg.GitHub.APIBaseURL)
}

func provideOracle(cfg config.Config) (*oracleinfra.OpenAIOracle, error) {
	return oracleinfra.NewOpenAIOracle(oracleinfra.Config{
		APIKey:  cfg.Oracle.APIKey,
		BaseURL: cfg.Oracle.BaseURL,
		Model:   cfg.Oracle.Model,
		Timeout: time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
	})
}

func providePipelineService(
	cfg config.Config,
	repo ports.PipelineRepository,
	uow ports.UnitOfWork,
	tokens ports.TokenSource,
	host ports.CodeHost,
	oracle ports.Oracle,
	cache ports.Cache,
) (*pipeline.Service, error) {
	return pipeline.NewService(repo, uow, tokens, host, oracle, cache, pipeline.Config{
		PageSize:       cfg.Pipeline.PageSize,
		MaxPages:       cfg.Pipeline.MaxPages,
		LookbackMonths: cfg.Pipeline.LookbackMonths,
		FilesCap:       cfg.Pipeline.FilesCap,
		DiffCharLimit:  cfg.Pipeline.DiffCharLimit,
		ItemDelay:      time.Duration(cfg.Pipeline.ItemDelayMS) * time.Millisecond,
		CacheTTL:       time.Duration(cfg.Pipeline.CacheTTLHours) * time.Hour,
		PostComments:   cfg.Pipeline.PostComments,
	})
}
