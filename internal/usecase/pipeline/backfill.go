package pipeline

import (
	"context"
	"log/slog"

	"prmerit/internal/bootstrap/logging"
	"prmerit/internal/errs"
	"prmerit/internal/ports"
)

// BackfillItem records the outcome for one pull request in a backfill run.
type BackfillItem struct {
	PullRequestID uint64  `json:"pull_request_id"`
	Number        int     `json:"number"`
	Score         float64 `json:"score"`
	Err           string  `json:"error,omitempty"`
}

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Total     int            `json:"total"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Items     []BackfillItem `json:"items"`
}

// Backfill evaluates every recorded merged pull request that has no
// evaluation under the active ruleset yet. repoID zero covers all tracked
// repositories. Items run sequentially with a configurable delay between
// oracle calls; one failed item is reported and skipped, it does not stop
// the run.
func (s *Service) Backfill(ctx context.Context, orgID uint64, repoID uint64) (BackfillResult, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return BackfillResult{}, err
	}
	ruleset, err := s.repo.ActiveRuleset(ctx, orgID)
	if err != nil {
		return BackfillResult{}, errs.Wrapf(err, "organization %d", orgID)
	}

	pending, err := s.repo.ListUnevaluated(ctx, orgID, repoID, ruleset.RulesetID)
	if err != nil {
		return BackfillResult{}, errs.Wrap(err, "list unevaluated")
	}

	result := BackfillResult{Total: len(pending)}
	repos := make(map[uint64]ports.TrackedRepo)

	for i, rec := range pending {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.ItemDelay); err != nil {
				return result, err
			}
		}

		repo, ok := repos[rec.RepoID]
		if !ok {
			repo, err = s.repo.GetRepo(ctx, rec.RepoID)
			if err != nil {
				return result, errs.Wrapf(err, "repo %d", rec.RepoID)
			}
			repos[rec.RepoID] = repo
		}

		item := BackfillItem{PullRequestID: rec.PullRequestID, Number: rec.Number}
		evaluation, err := s.evaluateRecorded(ctx, org, repo, ruleset, rec)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			item.Err = err.Error()
			result.Failed++
			logging.Warn(ctx, "backfill item failed",
				slog.Int("pr", rec.Number),
				slog.Any("err", errs.Loggable(err)),
			)
		} else {
			item.Score = evaluation.FinalScore
			result.Processed++
		}
		result.Items = append(result.Items, item)
	}

	logging.Info(ctx, "backfill finished",
		slog.Int("total", result.Total),
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
