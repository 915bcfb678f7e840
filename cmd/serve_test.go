package cmd

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"prmerit/internal/domain/scoring"
	cacheinfra "prmerit/internal/infrastructure/cache"
	"prmerit/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "prmerit/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "prmerit/internal/infrastructure/persistence/sqlite/uow"
	"prmerit/internal/ports"
	"prmerit/internal/usecase/pipeline"
	"prmerit/internal/usecase/rewards"
)

const testWebhookSecret = "test-secret"

type serveStubTokens struct{}

func (serveStubTokens) Token(context.Context, int64) (ports.Token, error) {
	return ports.Token{Value: "token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type serveStubHost struct{}

func (serveStubHost) ListClosedPullRequests(context.Context, string, ports.RepoRef, int, int) ([]ports.PullRequestInfo, error) {
	return nil, nil
}

func (serveStubHost) ListChangedFiles(context.Context, string, ports.RepoRef, int) ([]ports.ChangedFile, error) {
	return []ports.ChangedFile{{Filename: "api/server.go", Patch: "@@ -1 +1 @@"}}, nil
}

func (serveStubHost) CreateComment(context.Context, string, ports.RepoRef, int, string) error {
	return nil
}

type serveStubOracle struct{}

func (serveStubOracle) Classify(context.Context, string) (string, error) {
	return `{"primary_component_key":"other","severity_key":"p1",` +
		`"eligibility":{"issue":true,"fix_implementation":true,"pr_linked":true,"tests":true},` +
		`"eligibility_justification":"all checks pass"}`, nil
}

type serveFixture struct {
	handler http.Handler
	store   ports.PipelineRepository
	org     ports.Organization
}

func setupServer(t *testing.T) *serveFixture {
	t.Helper()
	ctx := context.Background()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "serve_test.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Organization{},
		&model.TrackedRepo{},
		&model.Ruleset{},
		&model.Component{},
		&model.SeverityLevel{},
		&model.DeveloperIdentity{},
		&model.PullRequest{},
		&model.Evaluation{},
		&model.BountyProgram{},
		&model.BountyRankReward{},
		&model.BountyTier{},
		&model.BountyReward{},
		&model.CacheEntry{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := sqliterepo.NewPipelineRepository(db)
	bounty := sqliterepo.NewBountyRepository(db)
	uow := sqliteuow.NewUnitOfWork(db)
	cache := cacheinfra.NewSQLiteCache(db)

	pipelineSvc, err := pipeline.NewService(store, uow, serveStubTokens{}, serveStubHost{}, serveStubOracle{}, cache, pipeline.Config{})
	if err != nil {
		t.Fatalf("new pipeline service: %v", err)
	}
	rewardsSvc, err := rewards.NewService(bounty, store, uow)
	if err != nil {
		t.Fatalf("new rewards service: %v", err)
	}

	org, err := store.CreateOrganization(ctx, ports.Organization{Name: "acme", InstallationID: 101})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	if _, err := store.CreateRepo(ctx, ports.TrackedRepo{OrgID: org.OrgID, FullName: "acme/widgets"}); err != nil {
		t.Fatalf("create repo: %v", err)
	}
	if _, err := store.CreateRuleset(ctx, ports.Ruleset{OrgID: org.OrgID, Key: "default", Name: "Default"}); err != nil {
		t.Fatalf("create ruleset: %v", err)
	}
	if err := store.CreateComponent(ctx, org.OrgID, scoring.Component{Key: "other", Name: "Other", Multiplier: 1}); err != nil {
		t.Fatalf("create component: %v", err)
	}
	if err := store.CreateSeverity(ctx, org.OrgID, scoring.SeverityLevel{Key: "p1", Name: "Major", BasePoints: 300, Rank: 1}); err != nil {
		t.Fatalf("create severity: %v", err)
	}

	return &serveFixture{
		handler: newServerHandler(pipelineSvc, rewardsSvc, testWebhookSecret),
		store:   store,
		org:     org,
	}
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func mergedWebhookBody(t *testing.T, action string, merged bool) []byte {
	t.Helper()

	payload := map[string]any{
		"action": action,
		"pull_request": map[string]any{
			"id":     9001,
			"number": 42,
			"title":  "Fix crash in parser",
			"body":   "Closes #7",
			"user":   map[string]any{"id": 1042, "login": "alice"},
			"merged": merged,
			"head":   map[string]any{"sha": "abc123"},
		},
		"repository":   map[string]any{"full_name": "acme/widgets"},
		"installation": map[string]any{"id": 101},
	}
	if merged {
		payload["pull_request"].(map[string]any)["merged_at"] = "2026-06-15T09:00:00Z"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

func postWebhook(fixture *serveFixture, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "pull_request")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAcceptsSignedMergedClose(t *testing.T) {
	fixture := setupServer(t)

	body := mergedWebhookBody(t, "closed", true)
	rec := postWebhook(fixture, body, signPayload(testWebhookSecret, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var ack webhookAck
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Status != "evaluated" {
		t.Fatalf("status = %q (%s), want evaluated", ack.Status, ack.Reason)
	}
	if ack.Score != 300 {
		t.Fatalf("score = %v, want 300", ack.Score)
	}

	stored, err := fixture.store.GetPullRequestByPlatformID(context.Background(), fixture.org.OrgID, 9001)
	if err != nil {
		t.Fatalf("pull request not recorded: %v", err)
	}
	if stored.Number != 42 {
		t.Fatalf("number = %d, want 42", stored.Number)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	fixture := setupServer(t)
	body := mergedWebhookBody(t, "closed", true)

	cases := []struct {
		name      string
		signature string
	}{
		{name: "missing", signature: ""},
		{name: "wrong secret", signature: signPayload("wrong-secret", body)},
		{name: "malformed", signature: "sha256=zz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postWebhook(fixture, body, tc.signature)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}

	// Flipping one bit of a valid signature must also fail.
	valid := signPayload(testWebhookSecret, body)
	tampered := []byte(valid)
	last := tampered[len(tampered)-1]
	if last == 'a' {
		tampered[len(tampered)-1] = 'b'
	} else {
		tampered[len(tampered)-1] = 'a'
	}
	if rec := postWebhook(fixture, body, string(tampered)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for tampered signature", rec.Code)
	}

	if _, err := fixture.store.GetPullRequestByPlatformID(context.Background(), fixture.org.OrgID, 9001); err == nil {
		t.Fatal("unauthenticated delivery was recorded")
	}
}

func TestWebhookIgnoresNonActionableDeliveries(t *testing.T) {
	fixture := setupServer(t)

	cases := []struct {
		name   string
		action string
		merged bool
	}{
		{name: "opened", action: "opened", merged: false},
		{name: "closed without merge", action: "closed", merged: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := mergedWebhookBody(t, tc.action, tc.merged)
			rec := postWebhook(fixture, body, signPayload(testWebhookSecret, body))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var ack webhookAck
			if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
				t.Fatalf("decode ack: %v", err)
			}
			if ack.Status != "ignored" {
				t.Fatalf("status = %q, want ignored", ack.Status)
			}
		})
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	fixture := setupServer(t)

	body := []byte(`{"zen":"Keep it logically awesome."}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", signPayload(testWebhookSecret, body))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ack webhookAck
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Status != "ignored" {
		t.Fatalf("status = %q, want ignored", ack.Status)
	}
}

func TestWebhookUntrackedRepositoryIs404(t *testing.T) {
	fixture := setupServer(t)

	body := bytes.Replace(mergedWebhookBody(t, "closed", true), []byte("acme/widgets"), []byte("acme/secret"), 1)
	rec := postWebhook(fixture, body, signPayload(testWebhookSecret, body))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestBackfillEndpoint(t *testing.T) {
	fixture := setupServer(t)

	// An org with nothing recorded backfills zero items.
	reqBody := fmt.Sprintf(`{"org_id":%d}`, fixture.org.OrgID)
	req := httptest.NewRequest(http.MethodPost, "/api/backfill", bytes.NewReader([]byte(reqBody)))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result pipeline.BackfillResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Total != 0 {
		t.Fatalf("total = %d, want 0", result.Total)
	}
}

func TestComputeEndpointUnknownProgramIs404(t *testing.T) {
	fixture := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/programs/999/compute", nil)
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}
