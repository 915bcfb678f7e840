package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"prmerit/internal/domain/scoring"
	"prmerit/internal/ports"
)

// memRepo is an in-memory PipelineRepository for usecase tests.
type memRepo struct {
	mu sync.Mutex

	orgs       []ports.Organization
	repos      []ports.TrackedRepo
	rulesets   []ports.Ruleset
	components map[uint64][]scoring.Component
	severities map[uint64][]scoring.SeverityLevel
	developers []ports.Developer
	prs        []ports.PullRequestRecord
	evals      []ports.EvaluationRecord

	nextID uint64
}

func newMemRepo() *memRepo {
	return &memRepo{
		components: make(map[uint64][]scoring.Component),
		severities: make(map[uint64][]scoring.SeverityLevel),
	}
}

func (m *memRepo) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) CreateOrganization(_ context.Context, org ports.Organization) (ports.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org.OrgID = m.id()
	m.orgs = append(m.orgs, org)
	return org, nil
}

func (m *memRepo) GetOrganization(_ context.Context, orgID uint64) (ports.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, org := range m.orgs {
		if org.OrgID == orgID {
			return org, nil
		}
	}
	return ports.Organization{}, ports.ErrOrgNotFound
}

func (m *memRepo) GetOrganizationByInstallation(_ context.Context, installationID int64) (ports.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, org := range m.orgs {
		if org.InstallationID == installationID {
			return org, nil
		}
	}
	return ports.Organization{}, ports.ErrOrgNotFound
}

func (m *memRepo) CreateRepo(_ context.Context, repo ports.TrackedRepo) (ports.TrackedRepo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo.RepoID = m.id()
	m.repos = append(m.repos, repo)
	return repo, nil
}

func (m *memRepo) GetRepo(_ context.Context, repoID uint64) (ports.TrackedRepo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, repo := range m.repos {
		if repo.RepoID == repoID {
			return repo, nil
		}
	}
	return ports.TrackedRepo{}, ports.ErrRepoNotTracked
}

func (m *memRepo) GetRepoByFullName(_ context.Context, orgID uint64, fullName string) (ports.TrackedRepo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, repo := range m.repos {
		if repo.OrgID == orgID && repo.FullName == fullName {
			return repo, nil
		}
	}
	return ports.TrackedRepo{}, ports.ErrRepoNotTracked
}

func (m *memRepo) CreateRuleset(_ context.Context, ruleset ports.Ruleset) (ports.Ruleset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rulesets {
		if m.rulesets[i].OrgID == ruleset.OrgID {
			m.rulesets[i].Active = false
		}
	}
	ruleset.RulesetID = m.id()
	ruleset.Active = true
	m.rulesets = append(m.rulesets, ruleset)
	return ruleset, nil
}

func (m *memRepo) ActiveRuleset(_ context.Context, orgID uint64) (ports.Ruleset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ruleset := range m.rulesets {
		if ruleset.OrgID == orgID && ruleset.Active {
			return ruleset, nil
		}
	}
	return ports.Ruleset{}, ports.ErrRulesetNotFound
}

func (m *memRepo) CreateComponent(_ context.Context, orgID uint64, component scoring.Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[orgID] = append(m.components[orgID], component)
	return nil
}

func (m *memRepo) CreateSeverity(_ context.Context, orgID uint64, severity scoring.SeverityLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.severities[orgID] = append(m.severities[orgID], severity)
	return nil
}

func (m *memRepo) ListComponents(_ context.Context, orgID uint64) ([]scoring.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scoring.Component(nil), m.components[orgID]...), nil
}

func (m *memRepo) ListSeverities(_ context.Context, orgID uint64) ([]scoring.SeverityLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scoring.SeverityLevel(nil), m.severities[orgID]...), nil
}

func (m *memRepo) ResolveDeveloper(_ context.Context, dev ports.Developer) (ports.Developer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.developers {
		if m.developers[i].Login == dev.Login {
			return m.developers[i], nil
		}
	}
	for i := range m.developers {
		if m.developers[i].PlatformUserID == dev.PlatformUserID {
			m.developers[i].Login = dev.Login
			return m.developers[i], nil
		}
	}
	dev.DeveloperID = m.id()
	m.developers = append(m.developers, dev)
	return dev, nil
}

func (m *memRepo) GetDeveloper(_ context.Context, developerID uint64) (ports.Developer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dev := range m.developers {
		if dev.DeveloperID == developerID {
			return dev, nil
		}
	}
	return ports.Developer{}, ports.ErrDeveloperNotFound
}

func (m *memRepo) UpsertPullRequest(_ context.Context, rec ports.PullRequestRecord) (ports.PullRequestRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.prs {
		if m.prs[i].OrgID == rec.OrgID && m.prs[i].PlatformID == rec.PlatformID {
			rec.PullRequestID = m.prs[i].PullRequestID
			m.prs[i] = rec
			return rec, false, nil
		}
	}
	rec.PullRequestID = m.id()
	m.prs = append(m.prs, rec)
	return rec, true, nil
}

func (m *memRepo) GetPullRequestByPlatformID(_ context.Context, orgID uint64, platformID int64) (ports.PullRequestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.prs {
		if rec.OrgID == orgID && rec.PlatformID == platformID {
			return rec, nil
		}
	}
	return ports.PullRequestRecord{}, ports.ErrPullRequestNotFound
}

func (m *memRepo) ListUnevaluated(_ context.Context, orgID uint64, repoID uint64, rulesetID uint64) ([]ports.PullRequestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evaluated := make(map[uint64]bool)
	for _, eval := range m.evals {
		if eval.RulesetID == rulesetID {
			evaluated[eval.PullRequestID] = true
		}
	}
	var out []ports.PullRequestRecord
	for _, rec := range m.prs {
		if rec.OrgID != orgID {
			continue
		}
		if repoID != 0 && rec.RepoID != repoID {
			continue
		}
		if !evaluated[rec.PullRequestID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertEvaluation(_ context.Context, rec ports.EvaluationRecord) (ports.EvaluationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.evals {
		if m.evals[i].PullRequestID == rec.PullRequestID && m.evals[i].RulesetID == rec.RulesetID {
			rec.EvaluationID = m.evals[i].EvaluationID
			rec.CreatedAt = m.evals[i].CreatedAt
			m.evals[i] = rec
			return rec, nil
		}
	}
	rec.EvaluationID = m.id()
	m.evals = append(m.evals, rec)
	return rec, nil
}

func (m *memRepo) GetEvaluation(_ context.Context, pullRequestID uint64, rulesetID uint64) (ports.EvaluationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, eval := range m.evals {
		if eval.PullRequestID == pullRequestID && eval.RulesetID == rulesetID {
			return eval, nil
		}
	}
	return ports.EvaluationRecord{}, ports.ErrEvaluationNotFound
}

func (m *memRepo) ListEligibleScores(_ context.Context, orgID uint64, rulesetID uint64, start time.Time, end time.Time) ([]ports.EligibleScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := make(map[uint64]ports.PullRequestRecord)
	for _, rec := range m.prs {
		byID[rec.PullRequestID] = rec
	}
	var out []ports.EligibleScore
	for _, eval := range m.evals {
		if eval.RulesetID != rulesetID || !eval.IsEligible {
			continue
		}
		rec, ok := byID[eval.PullRequestID]
		if !ok || rec.OrgID != orgID {
			continue
		}
		if rec.MergedAt.Before(start) || rec.MergedAt.After(end) {
			continue
		}
		out = append(out, ports.EligibleScore{
			DeveloperID: rec.AuthorID,
			FinalScore:  eval.FinalScore,
			MergedAt:    rec.MergedAt,
		})
	}
	return out, nil
}

func (m *memRepo) evaluationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.evals)
}

func (m *memRepo) pullRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prs)
}

// passthroughUOW runs the callback without a real transaction.
type passthroughUOW struct{}

func (passthroughUOW) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubTokens struct {
	err   error
	calls int
}

func (s *stubTokens) Token(_ context.Context, installationID int64) (ports.Token, error) {
	s.calls++
	if s.err != nil {
		return ports.Token{}, s.err
	}
	return ports.Token{
		Value:     fmt.Sprintf("token-%d", installationID),
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

type stubHost struct {
	mu sync.Mutex

	pages      [][]ports.PullRequestInfo
	listCalls  int
	files      []ports.ChangedFile
	filesErr   error
	comments   []string
	commentErr error
}

func (s *stubHost) ListClosedPullRequests(_ context.Context, _ string, _ ports.RepoRef, page int, _ int) ([]ports.PullRequestInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if page < 1 || page > len(s.pages) {
		return nil, nil
	}
	return s.pages[page-1], nil
}

func (s *stubHost) ListChangedFiles(_ context.Context, _ string, _ ports.RepoRef, _ int) ([]ports.ChangedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filesErr != nil {
		return nil, s.filesErr
	}
	return s.files, nil
}

func (s *stubHost) CreateComment(_ context.Context, _ string, _ ports.RepoRef, _ int, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commentErr != nil {
		return s.commentErr
	}
	s.comments = append(s.comments, body)
	return nil
}

// stubOracle replays canned responses; errOn fails the nth call (1-based).
type stubOracle struct {
	response string
	err      error
	errOn    int
	calls    int
	prompts  []string
}

func (s *stubOracle) Classify(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil && (s.errOn == 0 || s.errOn == s.calls) {
		return "", s.err
	}
	return s.response, nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, found := c.entries[key]
	return value, found, nil
}

func (c *memCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

const eligibleVerdict = `{"primary_component_key":"api","severity_key":"p0",` +
	`"eligibility":{"issue":true,"fix_implementation":true,"pr_linked":true,"tests":true},` +
	`"component_justification":"touches the http layer",` +
	`"severity_justification":"fixes a crash",` +
	`"eligibility_justification":"all checks pass"}`

const ineligibleVerdict = `{"primary_component_key":"api","severity_key":"p0",` +
	`"eligibility":{"issue":true,"fix_implementation":true,"pr_linked":true,"tests":false},` +
	`"eligibility_justification":"no tests in the diff"}`

type testEnv struct {
	svc     *Service
	repo    *memRepo
	host    *stubHost
	oracle  *stubOracle
	tokens  *stubTokens
	cache   *memCache
	org     ports.Organization
	tracked ports.TrackedRepo
	ruleset ports.Ruleset
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	ctx := context.Background()

	repo := newMemRepo()
	org, err := repo.CreateOrganization(ctx, ports.Organization{Name: "acme", InstallationID: 101})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	tracked, err := repo.CreateRepo(ctx, ports.TrackedRepo{OrgID: org.OrgID, FullName: "acme/widgets"})
	if err != nil {
		t.Fatalf("create repo: %v", err)
	}
	ruleset, err := repo.CreateRuleset(ctx, ports.Ruleset{OrgID: org.OrgID, Key: "default", Name: "Default"})
	if err != nil {
		t.Fatalf("create ruleset: %v", err)
	}

	for _, comp := range []scoring.Component{
		{Key: "api", Name: "API", Multiplier: 2},
		{Key: "other", Name: "Other", Multiplier: 1},
	} {
		if err := repo.CreateComponent(ctx, org.OrgID, comp); err != nil {
			t.Fatalf("create component: %v", err)
		}
	}
	for _, sev := range []scoring.SeverityLevel{
		{Key: "p0", Name: "Critical", BasePoints: 500, Rank: 0},
		{Key: "p2", Name: "Minor", BasePoints: 100, Rank: 2},
	} {
		if err := repo.CreateSeverity(ctx, org.OrgID, sev); err != nil {
			t.Fatalf("create severity: %v", err)
		}
	}

	host := &stubHost{files: []ports.ChangedFile{{Filename: "api/server.go", Additions: 10, Deletions: 2, Patch: "@@ -1 +1 @@"}}}
	oracle := &stubOracle{response: eligibleVerdict}
	tokens := &stubTokens{}
	cache := newMemCache()

	svc, err := NewService(repo, passthroughUOW{}, tokens, host, oracle, cache, cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.now = func() time.Time { return time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC) }
	svc.sleep = func(context.Context, time.Duration) error { return nil }

	return &testEnv{
		svc:     svc,
		repo:    repo,
		host:    host,
		oracle:  oracle,
		tokens:  tokens,
		cache:   cache,
		org:     org,
		tracked: tracked,
		ruleset: ruleset,
	}
}

func mergedPR(platformID int64, number int, login string) ports.PullRequestInfo {
	mergedAt := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	return ports.PullRequestInfo{
		PlatformID:  platformID,
		Number:      number,
		Title:       fmt.Sprintf("Fix bug #%d", number),
		Body:        "Closes #1",
		AuthorLogin: login,
		AuthorID:    int64(1000 + number),
		Merged:      true,
		MergedAt:    &mergedAt,
		HeadSHA:     fmt.Sprintf("sha-%d", number),
		HTMLURL:     fmt.Sprintf("https://github.test/acme/widgets/pull/%d", number),
	}
}
