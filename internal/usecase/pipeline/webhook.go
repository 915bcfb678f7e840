package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"prmerit/internal/errs"
	"prmerit/internal/ports"
)

// webhookPayload mirrors the fields of the pull_request event the pipeline
// cares about.
type webhookPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		ID     int64  `json:"id"`
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		User   struct {
			ID        int64  `json:"id"`
			Login     string `json:"login"`
			AvatarURL string `json:"avatar_url"`
		} `json:"user"`
		Merged       bool       `json:"merged"`
		MergedAt     *time.Time `json:"merged_at"`
		Additions    int        `json:"additions"`
		Deletions    int        `json:"deletions"`
		ChangedFiles int        `json:"changed_files"`
		Head         struct {
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			SHA string `json:"sha"`
		} `json:"base"`
		HTMLURL string `json:"html_url"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

// WebhookResult reports what the webhook intake did with one delivery.
// Ignored deliveries are a success: unmerged closes and non-close actions
// are expected traffic.
type WebhookResult struct {
	Ignored    bool
	Reason     string
	Evaluation ports.EvaluationRecord
}

// HandleWebhook processes one pull_request event delivery. Only
// action=closed with merged=true triggers the pipeline; everything else is
// acknowledged and dropped. Unknown installations and untracked
// repositories are errors: they indicate a delivery we should not receive.
func (s *Service) HandleWebhook(ctx context.Context, body []byte) (WebhookResult, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookResult{}, errs.Wrap(err, "decode webhook payload")
	}

	if payload.Action != "closed" {
		return WebhookResult{Ignored: true, Reason: "action is not closed"}, nil
	}
	if !payload.PullRequest.Merged || payload.PullRequest.MergedAt == nil {
		return WebhookResult{Ignored: true, Reason: "pull request closed without merging"}, nil
	}

	org, err := s.repo.GetOrganizationByInstallation(ctx, payload.Installation.ID)
	if err != nil {
		return WebhookResult{}, errs.Wrapf(err, "installation %d", payload.Installation.ID)
	}
	repo, err := s.repo.GetRepoByFullName(ctx, org.OrgID, payload.Repository.FullName)
	if err != nil {
		return WebhookResult{}, errs.Wrapf(err, "repository %s", payload.Repository.FullName)
	}
	ruleset, err := s.repo.ActiveRuleset(ctx, org.OrgID)
	if err != nil {
		return WebhookResult{}, errs.Wrapf(err, "organization %d", org.OrgID)
	}

	info := ports.PullRequestInfo{
		PlatformID:      payload.PullRequest.ID,
		Number:          payload.PullRequest.Number,
		Title:           payload.PullRequest.Title,
		Body:            payload.PullRequest.Body,
		AuthorLogin:     payload.PullRequest.User.Login,
		AuthorID:        payload.PullRequest.User.ID,
		AuthorAvatarURL: payload.PullRequest.User.AvatarURL,
		Merged:          true,
		MergedAt:        payload.PullRequest.MergedAt,
		Additions:       payload.PullRequest.Additions,
		Deletions:       payload.PullRequest.Deletions,
		ChangedFiles:    payload.PullRequest.ChangedFiles,
		HeadSHA:         payload.PullRequest.Head.SHA,
		BaseSHA:         payload.PullRequest.Base.SHA,
		HTMLURL:         payload.PullRequest.HTMLURL,
	}

	evaluation, err := s.ProcessPullRequest(ctx, org, repo, ruleset, info)
	if err != nil {
		return WebhookResult{}, err
	}
	return WebhookResult{Evaluation: evaluation}, nil
}
