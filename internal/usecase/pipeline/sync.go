package pipeline

import (
	"context"
	"log/slog"

	"prmerit/internal/bootstrap/logging"
	"prmerit/internal/errs"
	"prmerit/internal/ports"
)

// SyncResult summarizes one historical sync run over a tracked repository.
type SyncResult struct {
	Pages    int `json:"pages"`
	Fetched  int `json:"fetched"`
	Matched  int `json:"matched"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// SyncRepo walks the repository's closed pull requests newest-first and
// records every one merged within the lookback window. It records only;
// evaluation is backfill's job. The walk stops once a page yields no
// qualifying items and is not full-sized, or at the page ceiling.
// lookbackMonths <= 0 falls back to the configured default.
func (s *Service) SyncRepo(ctx context.Context, orgID uint64, repoID uint64, lookbackMonths int) (SyncResult, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return SyncResult{}, err
	}
	repo, err := s.repo.GetRepo(ctx, repoID)
	if err != nil {
		return SyncResult{}, err
	}
	repoRef, err := ports.ParseRepoFullName(repo.FullName)
	if err != nil {
		return SyncResult{}, err
	}

	token, err := s.tokens.Token(ctx, org.InstallationID)
	if err != nil {
		return SyncResult{}, errs.Wrap(err, "acquire installation token")
	}

	if lookbackMonths <= 0 {
		lookbackMonths = s.cfg.LookbackMonths
	}
	cutoff := s.now().UTC().AddDate(0, -lookbackMonths, 0)

	ctx = logging.WithAttrs(ctx, slog.String("repo", repo.FullName))

	var result SyncResult
	for page := 1; page <= s.cfg.MaxPages; page++ {
		infos, err := s.host.ListClosedPullRequests(ctx, token.Value, repoRef, page, s.cfg.PageSize)
		if err != nil {
			return result, errs.Wrapf(err, "sync page %d", page)
		}
		result.Pages++
		result.Fetched += len(infos)

		matchedOnPage := 0
		for _, info := range infos {
			if !info.Merged || info.MergedAt == nil {
				continue
			}
			if info.MergedAt.Before(cutoff) {
				continue
			}
			matchedOnPage++
			result.Matched++

			_, inserted, err := s.upsertSynced(ctx, org, repo, info)
			if err != nil {
				return result, errs.Wrapf(err, "record pull request #%d", info.Number)
			}
			if inserted {
				result.Inserted++
			} else {
				result.Updated++
			}
		}

		if matchedOnPage == 0 && len(infos) < s.cfg.PageSize {
			break
		}
	}

	logging.Info(ctx, "sync finished",
		slog.Int("pages", result.Pages),
		slog.Int("fetched", result.Fetched),
		slog.Int("merged", result.Matched),
		slog.Int("inserted", result.Inserted),
		slog.Int("updated", result.Updated),
	)
	return result, nil
}

func (s *Service) upsertSynced(ctx context.Context, org ports.Organization, repo ports.TrackedRepo, info ports.PullRequestInfo) (ports.PullRequestRecord, bool, error) {
	dev, err := s.repo.ResolveDeveloper(ctx, ports.Developer{
		PlatformUserID: info.AuthorID,
		Login:          info.AuthorLogin,
		AvatarURL:      info.AuthorAvatarURL,
	})
	if err != nil {
		return ports.PullRequestRecord{}, false, errs.Wrap(err, "resolve developer")
	}

	return s.repo.UpsertPullRequest(ctx, ports.PullRequestRecord{
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
}
