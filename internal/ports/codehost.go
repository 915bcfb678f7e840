package ports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoActiveConnection signals that no usable code-host credential exists
// for the organization (revoked installation, unreachable token endpoint).
// It is fatal for the current pipeline run.
var ErrNoActiveConnection = errors.New("no active code host connection")

// Token is a short-lived installation-scoped credential. Callers never
// persist it beyond a single pipeline run.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

type TokenSource interface {
	Token(ctx context.Context, installationID int64) (Token, error)
}

type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

func ParseRepoFullName(fullName string) (RepoRef, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || name == "" {
		return RepoRef{}, fmt.Errorf("invalid repository full name %q", fullName)
	}
	return RepoRef{Owner: owner, Name: name}, nil
}

// PullRequestInfo is the code host's view of a pull request, as returned by
// the list API or carried by a webhook payload.
type PullRequestInfo struct {
	PlatformID      int64
	Number          int
	Title           string
	Body            string
	AuthorLogin     string
	AuthorID        int64
	AuthorAvatarURL string
	Merged          bool
	MergedAt        *time.Time
	Additions       int
	Deletions       int
	ChangedFiles    int
	HeadSHA         string
	BaseSHA         string
	HTMLURL         string
}

type ChangedFile struct {
	Filename  string
	Additions int
	Deletions int
	Patch     string
}

// CodeHost is the typed surface the pipeline needs from the hosting
// platform. Operations do not retry internally; retry policy belongs to
// the caller.
type CodeHost interface {
	ListClosedPullRequests(ctx context.Context, token string, repo RepoRef, page int, perPage int) ([]PullRequestInfo, error)
	ListChangedFiles(ctx context.Context, token string, repo RepoRef, number int) ([]ChangedFile, error)
	CreateComment(ctx context.Context, token string, repo RepoRef, number int, body string) error
}
