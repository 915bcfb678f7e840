package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedSyncedPRs(t *testing.T, env *testEnv, n int) {
	t.Helper()
	env.host.pages = pagesOf(n, 50, 1)
	if _, err := env.svc.SyncRepo(context.Background(), env.org.OrgID, env.tracked.RepoID, 0); err != nil {
		t.Fatalf("seed sync: %v", err)
	}
}

func TestBackfillEvaluatesOnlyUnevaluated(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	seedSyncedPRs(t, env, 10)

	// Pre-evaluate three of the ten through the normal path.
	for _, number := range []int{1, 2, 3} {
		if _, err := env.svc.ProcessPullRequest(ctx, env.org, env.tracked, env.ruleset, mergedPR(int64(9000+number), number, "alice")); err != nil {
			t.Fatalf("pre-evaluate #%d: %v", number, err)
		}
	}
	callsBefore := env.oracle.calls

	result, err := env.svc.Backfill(ctx, env.org.OrgID, 0)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}

	if result.Total != 7 || result.Processed != 7 || result.Failed != 0 {
		t.Fatalf("total/processed/failed = %d/%d/%d, want 7/7/0", result.Total, result.Processed, result.Failed)
	}
	if env.repo.evaluationCount() != 10 {
		t.Fatalf("evaluations = %d, want 10", env.repo.evaluationCount())
	}
	if got := env.oracle.calls - callsBefore; got != 7 {
		t.Fatalf("oracle calls = %d, want 7", got)
	}
}

func TestBackfillRerunIsANoOp(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	seedSyncedPRs(t, env, 5)

	if _, err := env.svc.Backfill(ctx, env.org.OrgID, 0); err != nil {
		t.Fatalf("first backfill: %v", err)
	}
	second, err := env.svc.Backfill(ctx, env.org.OrgID, 0)
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if second.Total != 0 {
		t.Fatalf("total = %d, want 0 on rerun", second.Total)
	}
	if env.repo.evaluationCount() != 5 {
		t.Fatalf("evaluations = %d, want 5", env.repo.evaluationCount())
	}
}

func TestBackfillContinuesPastFailedItems(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	seedSyncedPRs(t, env, 5)

	// Second oracle call fails; the other four items must still land.
	env.oracle.err = errors.New("rate limited")
	env.oracle.errOn = 2

	result, err := env.svc.Backfill(ctx, env.org.OrgID, 0)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Total != 5 || result.Processed != 4 || result.Failed != 1 {
		t.Fatalf("total/processed/failed = %d/%d/%d, want 5/4/1", result.Total, result.Processed, result.Failed)
	}

	var failed int
	for _, item := range result.Items {
		if item.Err != "" {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("failed items = %d, want 1", failed)
	}
	if env.repo.evaluationCount() != 4 {
		t.Fatalf("evaluations = %d, want 4", env.repo.evaluationCount())
	}
}

func TestBackfillSpacesOutOracleCalls(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{ItemDelay: 250 * time.Millisecond})
	ctx := context.Background()
	seedSyncedPRs(t, env, 4)

	var delays int
	env.svc.sleep = func(_ context.Context, d time.Duration) error {
		if d != 250*time.Millisecond {
			t.Fatalf("delay = %v, want 250ms", d)
		}
		delays++
		return nil
	}

	if _, err := env.svc.Backfill(ctx, env.org.OrgID, 0); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if delays != 3 {
		t.Fatalf("delays = %d, want 3 (between items, not before the first)", delays)
	}
}

func TestBackfillStopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{ItemDelay: time.Millisecond})
	seedSyncedPRs(t, env, 5)

	ctx, cancel := context.WithCancel(context.Background())
	env.svc.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if _, err := env.svc.Backfill(ctx, env.org.OrgID, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
