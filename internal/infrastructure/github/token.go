package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gh "github.com/google/go-github/v68/github"

	"prmerit/internal/ports"
)

// expiryMargin keeps us from handing out a token that dies mid-request.
const expiryMargin = time.Minute

// AppTokenSource exchanges a GitHub App installation id for a short-lived
// installation token. Tokens are cached in memory until shortly before
// expiry and never persisted.
type AppTokenSource struct {
	apps *gh.Client

	mu     sync.Mutex
	cached map[int64]ports.Token
	now    func() time.Time
}

var _ ports.TokenSource = (*AppTokenSource)(nil)

// NewAppTokenSource builds a token source authenticated as the App itself
// via a JWT-signing transport.
func NewAppTokenSource(appID int64, privateKeyPath string, apiBaseURL string) (*AppTokenSource, error) {
	if appID <= 0 {
		return nil, errors.New("github app id is required")
	}
	if privateKeyPath == "" {
		return nil, errors.New("github private key path is required")
	}

	transport, err := ghinstallation.NewAppsTransportKeyFromFile(http.DefaultTransport, appID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load github app key: %w", err)
	}

	client := gh.NewClient(&http.Client{Transport: transport, Timeout: 30 * time.Second})
	if apiBaseURL != "" {
		transport.BaseURL = apiBaseURL
		client, err = client.WithEnterpriseURLs(apiBaseURL, apiBaseURL)
		if err != nil {
			return nil, fmt.Errorf("configure github base url: %w", err)
		}
	}

	return &AppTokenSource{
		apps:   client,
		cached: make(map[int64]ports.Token),
		now:    time.Now,
	}, nil
}

func (s *AppTokenSource) Token(ctx context.Context, installationID int64) (ports.Token, error) {
	if ctx == nil {
		return ports.Token{}, errors.New("context is required")
	}
	if installationID <= 0 {
		return ports.Token{}, fmt.Errorf("%w: installation id %d", ports.ErrNoActiveConnection, installationID)
	}

	s.mu.Lock()
	cached, ok := s.cached[installationID]
	s.mu.Unlock()
	if ok && s.now().Before(cached.ExpiresAt.Add(-expiryMargin)) {
		return cached, nil
	}

	issued, _, err := s.apps.Apps.CreateInstallationToken(ctx, installationID, &gh.InstallationTokenOptions{})
	if err != nil {
		return ports.Token{}, fmt.Errorf("%w: exchange installation %d: %v", ports.ErrNoActiveConnection, installationID, err)
	}
	if issued.GetToken() == "" {
		return ports.Token{}, fmt.Errorf("%w: empty token for installation %d", ports.ErrNoActiveConnection, installationID)
	}

	token := ports.Token{
		Value:     issued.GetToken(),
		ExpiresAt: issued.GetExpiresAt().Time,
	}
	s.mu.Lock()
	s.cached[installationID] = token
	s.mu.Unlock()
	return token, nil
}
