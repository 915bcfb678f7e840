package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"prmerit/internal/bootstrap/logging"
	"prmerit/internal/domain/scoring"
	"prmerit/internal/errs"
	"prmerit/internal/ports"
)

// ErrNotMerged rejects pull requests that were closed without merging; the
// pipeline scores merged work only.
var ErrNotMerged = errors.New("pull request was not merged")

// ProcessPullRequest runs the full pipeline for one merged pull request:
// record the author and the pull request, classify, score, and persist the
// evaluation. Calling it again for the same pull request and ruleset
// overwrites the evaluation in place.
func (s *Service) ProcessPullRequest(
	ctx context.Context,
	org ports.Organization,
	repo ports.TrackedRepo,
	ruleset ports.Ruleset,
	info ports.PullRequestInfo,
) (ports.EvaluationRecord, error) {
	if !info.Merged || info.MergedAt == nil {
		return ports.EvaluationRecord{}, ErrNotMerged
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("repo", repo.FullName),
		slog.Int("pr", info.Number),
	)

	rec, err := s.recordPullRequest(ctx, org, repo, info)
	if err != nil {
		return ports.EvaluationRecord{}, err
	}

	return s.evaluateRecorded(ctx, org, repo, ruleset, rec)
}

// recordPullRequest resolves the author identity and upserts the pull
// request row. This is the record-only half used by sync.
func (s *Service) recordPullRequest(
	ctx context.Context,
	org ports.Organization,
	repo ports.TrackedRepo,
	info ports.PullRequestInfo,
) (ports.PullRequestRecord, error) {
	dev, err := s.repo.ResolveDeveloper(ctx, ports.Developer{
		PlatformUserID: info.AuthorID,
		Login:          info.AuthorLogin,
		AvatarURL:      info.AuthorAvatarURL,
	})
	if err != nil {
		return ports.PullRequestRecord{}, errs.Wrap(err, "resolve developer")
	}

	rec, inserted, err := s.repo.UpsertPullRequest(ctx, ports.PullRequestRecord{
		OrgID:        org.OrgID,
		RepoID:       repo.RepoID,
		PlatformID:   info.PlatformID,
		Number:       info.Number,
		Title:        info.Title,
		Body:         info.Body,
		AuthorID:     dev.DeveloperID,
		MergedAt:     info.MergedAt.UTC(),
		Additions:    info.Additions,
		Deletions:    info.Deletions,
		ChangedFiles: info.ChangedFiles,
		HeadSHA:      info.HeadSHA,
		BaseSHA:      info.BaseSHA,
		HTMLURL:      info.HTMLURL,
		LastSyncedAt: s.now().UTC(),
	})
	if err != nil {
		return ports.PullRequestRecord{}, errs.Wrap(err, "upsert pull request")
	}
	if inserted {
		logging.Info(ctx, "pull request recorded", slog.Uint64("pull_request_id", rec.PullRequestID))
	}
	return rec, nil
}

// evaluateRecorded classifies and scores an already-recorded pull request
// under the given ruleset.
func (s *Service) evaluateRecorded(
	ctx context.Context,
	org ports.Organization,
	repo ports.TrackedRepo,
	ruleset ports.Ruleset,
	rec ports.PullRequestRecord,
) (ports.EvaluationRecord, error) {
	repoRef, err := ports.ParseRepoFullName(repo.FullName)
	if err != nil {
		return ports.EvaluationRecord{}, err
	}

	token, err := s.tokens.Token(ctx, org.InstallationID)
	if err != nil {
		return ports.EvaluationRecord{}, errs.Wrap(err, "acquire installation token")
	}

	// A missing diff degrades the classifier context; it does not abort the
	// evaluation.
	files, err := s.host.ListChangedFiles(ctx, token.Value, repoRef, rec.Number)
	if err != nil {
		logging.Warn(ctx, "changed files unavailable", slog.Any("err", errs.Loggable(err)))
		files = nil
	}

	catalog, err := s.loadCatalog(ctx, org.OrgID)
	if err != nil {
		return ports.EvaluationRecord{}, err
	}

	author, err := s.repo.GetDeveloper(ctx, rec.AuthorID)
	if err != nil {
		return ports.EvaluationRecord{}, errs.Wrap(err, "resolve author")
	}

	prompt := BuildClassifierPrompt(catalog, BuildPRContext(rec, author.Login, files, s.cfg.FilesCap, s.cfg.DiffCharLimit))

	raw, err := s.classify(ctx, org.OrgID, ruleset.RulesetID, rec, prompt)
	if err != nil {
		return ports.EvaluationRecord{}, err
	}

	verdict, err := scoring.ParseVerdict(raw)
	if err != nil {
		return ports.EvaluationRecord{}, err
	}
	score, err := scoring.Evaluate(catalog, verdict)
	if err != nil {
		return ports.EvaluationRecord{}, err
	}

	evaluation := ports.EvaluationRecord{
		PullRequestID: rec.PullRequestID,
		RulesetID:     ruleset.RulesetID,

		ComponentKey: score.Component.Key,
		SeverityKey:  score.Severity.Key,

		IssueLinked:    verdict.Eligibility.IssueLinked,
		FixImplemented: verdict.Eligibility.FixImplemented,
		Documented:     verdict.Eligibility.Documented,
		Tested:         verdict.Eligibility.Tested,
		IsEligible:     score.Eligible,

		BasePoints: score.BasePoints,
		Multiplier: score.Multiplier,
		FinalScore: score.Final,

		ComponentReason:   verdict.ComponentReason,
		SeverityReason:    verdict.SeverityReason,
		EligibilityReason: verdict.EligibilityReason,
		RawVerdict:        raw,
	}

	var stored ports.EvaluationRecord
	err = s.uow.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		stored, txErr = s.repo.UpsertEvaluation(ctx, evaluation)
		return txErr
	})
	if err != nil {
		return ports.EvaluationRecord{}, errs.Wrap(err, "persist evaluation")
	}

	logging.Info(ctx, "pull request evaluated",
		slog.String("component", stored.ComponentKey),
		slog.String("severity", stored.SeverityKey),
		slog.Bool("eligible", stored.IsEligible),
		slog.Float64("score", stored.FinalScore),
	)

	// The comment is best effort: a host failure here must not fail an
	// already-persisted evaluation.
	if s.cfg.PostComments {
		if err := s.host.CreateComment(ctx, token.Value, repoRef, rec.Number, formatScoreComment(stored)); err != nil {
			logging.Warn(ctx, "score comment failed", slog.Any("err", errs.Loggable(err)))
		}
	}

	return stored, nil
}

func (s *Service) loadCatalog(ctx context.Context, orgID uint64) (scoring.Catalog, error) {
	components, err := s.repo.ListComponents(ctx, orgID)
	if err != nil {
		return scoring.Catalog{}, errs.Wrap(err, "list components")
	}
	severities, err := s.repo.ListSeverities(ctx, orgID)
	if err != nil {
		return scoring.Catalog{}, errs.Wrap(err, "list severities")
	}
	return scoring.Catalog{Components: components, Severities: severities}, nil
}

// classify returns the oracle's raw answer, reusing the cached answer when
// the same head commit was already classified under this ruleset.
func (s *Service) classify(ctx context.Context, orgID uint64, rulesetID uint64, rec ports.PullRequestRecord, prompt string) (string, error) {
	key := fmt.Sprintf("verdict:%d:%d:%d:%s", orgID, rec.PlatformID, rulesetID, rec.HeadSHA)

	if cached, found, err := s.cache.Get(ctx, key); err != nil {
		logging.Warn(ctx, "verdict cache read failed", slog.Any("err", errs.Loggable(err)))
	} else if found {
		logging.Info(ctx, "verdict served from cache")
		return cached, nil
	}

	raw, err := s.oracle.Classify(ctx, prompt)
	if err != nil {
		return "", errs.Wrap(err, "classify pull request")
	}

	if err := s.cache.Set(ctx, key, raw, s.cfg.CacheTTL); err != nil {
		logging.Warn(ctx, "verdict cache write failed", slog.Any("err", errs.Loggable(err)))
	}
	return raw, nil
}
