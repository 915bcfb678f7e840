package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"prmerit/internal/errs"
	"prmerit/internal/ports"
)

const (
	// filesPageSize keeps a single list-files call bounded; the context
	// builder applies its own tighter cap on top.
	filesPageSize = 100
	maxFilesPages = 3

	callTimeout = 30 * time.Second
)

// Client implements ports.CodeHost against the GitHub REST API. It holds no
// credential of its own: every call receives a short-lived installation
// token and never retries internally.
type Client struct {
	apiBaseURL string
}

var _ ports.CodeHost = (*Client)(nil)

func NewClient(apiBaseURL string) *Client {
	return &Client{apiBaseURL: apiBaseURL}
}

func (c *Client) api(ctx context.Context, token string) (*gh.Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = callTimeout

	client := gh.NewClient(httpClient)
	if c.apiBaseURL == "" {
		return client, nil
	}
	client, err := client.WithEnterpriseURLs(c.apiBaseURL, c.apiBaseURL)
	if err != nil {
		return nil, errs.Wrap(err, "configure github base url")
	}
	return client, nil
}

func (c *Client) ListClosedPullRequests(ctx context.Context, token string, repo ports.RepoRef, page int, perPage int) ([]ports.PullRequestInfo, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if token == "" {
		return nil, ports.ErrNoActiveConnection
	}

	client, err := c.api(ctx, token)
	if err != nil {
		return nil, err
	}

	prs, _, err := client.PullRequests.List(ctx, repo.Owner, repo.Name, &gh.PullRequestListOptions{
		State:     "closed",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	})
	if err != nil {
		return nil, errs.Wrapf(err, "list closed pull requests %s page %d", repo, page)
	}

	infos := make([]ports.PullRequestInfo, 0, len(prs))
	for _, pr := range prs {
		infos = append(infos, mapPullRequest(pr))
	}
	return infos, nil
}

func (c *Client) ListChangedFiles(ctx context.Context, token string, repo ports.RepoRef, number int) ([]ports.ChangedFile, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if token == "" {
		return nil, ports.ErrNoActiveConnection
	}

	client, err := c.api(ctx, token)
	if err != nil {
		return nil, err
	}

	var files []ports.ChangedFile
	for page := 1; page <= maxFilesPages; page++ {
		batch, resp, err := client.PullRequests.ListFiles(ctx, repo.Owner, repo.Name, number, &gh.ListOptions{
			Page:    page,
			PerPage: filesPageSize,
		})
		if err != nil {
			return nil, errs.Wrapf(err, "list changed files %s#%d", repo, number)
		}
		for _, f := range batch {
			files = append(files, ports.ChangedFile{
				Filename:  f.GetFilename(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
	}
	return files, nil
}

func (c *Client) CreateComment(ctx context.Context, token string, repo ports.RepoRef, number int, body string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if token == "" {
		return ports.ErrNoActiveConnection
	}

	client, err := c.api(ctx, token)
	if err != nil {
		return err
	}

	_, _, err = client.Issues.CreateComment(ctx, repo.Owner, repo.Name, number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return errs.Wrapf(err, "create comment on %s#%d", repo, number)
	}
	return nil
}

func mapPullRequest(pr *gh.PullRequest) ports.PullRequestInfo {
	info := ports.PullRequestInfo{
		PlatformID:      pr.GetID(),
		Number:          pr.GetNumber(),
		Title:           pr.GetTitle(),
		Body:            pr.GetBody(),
		AuthorLogin:     pr.GetUser().GetLogin(),
		AuthorID:        pr.GetUser().GetID(),
		AuthorAvatarURL: pr.GetUser().GetAvatarURL(),
		Additions:       pr.GetAdditions(),
		Deletions:       pr.GetDeletions(),
		ChangedFiles:    pr.GetChangedFiles(),
		HeadSHA:         pr.GetHead().GetSHA(),
		BaseSHA:         pr.GetBase().GetSHA(),
		HTMLURL:         pr.GetHTMLURL(),
	}
	// The list endpoint does not populate the merged flag, only merged_at.
	if pr.MergedAt != nil {
		t := pr.GetMergedAt().Time
		info.MergedAt = &t
		info.Merged = true
	}
	return info
}

// String implements a compact description for error messages.
func (c *Client) String() string {
	if c.apiBaseURL == "" {
		return "github.com"
	}
	return fmt.Sprintf("github(%s)", c.apiBaseURL)
}
