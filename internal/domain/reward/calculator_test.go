package reward

import (
	"errors"
	"testing"
)

func TestAggregateScoresSumsPerDeveloper(t *testing.T) {
	t.Parallel()

	totals := AggregateScores([]EvaluationScore{
		{DeveloperID: 1, Login: "alice", FinalScore: 200},
		{DeveloperID: 2, Login: "bob", FinalScore: 100},
		{DeveloperID: 1, Login: "alice", FinalScore: 100},
	})
	if len(totals) != 2 {
		t.Fatalf("totals = %d, want 2", len(totals))
	}

	byID := make(map[uint64]float64, len(totals))
	for _, total := range totals {
		byID[total.DeveloperID] = total.Total
	}
	if byID[1] != 300 {
		t.Fatalf("alice total = %v, want 300", byID[1])
	}
	if byID[2] != 100 {
		t.Fatalf("bob total = %v, want 100", byID[2])
	}
}

func TestComputeRankingTieBreakAndCutoff(t *testing.T) {
	t.Parallel()

	totals := []DeveloperTotal{
		{DeveloperID: 3, Login: "carol", Total: 100},
		{DeveloperID: 2, Login: "bob", Total: 300},
		{DeveloperID: 1, Login: "alice", Total: 300},
	}
	rewards := []RankReward{
		{Rank: 1, Amount: 500, Currency: "USD"},
		{Rank: 2, Amount: 300, Currency: "USD"},
	}

	assignments := ComputeRanking(totals, rewards)
	if len(assignments) != 3 {
		t.Fatalf("assignments = %d, want 3", len(assignments))
	}

	// Equal totals break ties on developer id, so alice (1) outranks bob (2).
	if assignments[0].Login != "alice" || assignments[0].Rank != 1 || assignments[0].Amount != 500 {
		t.Fatalf("rank 1 = %+v, want alice with 500", assignments[0])
	}
	if assignments[1].Login != "bob" || assignments[1].Rank != 2 || assignments[1].Amount != 300 {
		t.Fatalf("rank 2 = %+v, want bob with 300", assignments[1])
	}
	if assignments[2].Login != "carol" || assignments[2].Rewarded {
		t.Fatalf("rank 3 = %+v, want carol without reward", assignments[2])
	}
}

func TestComputeRankingIsDeterministicAcrossRuns(t *testing.T) {
	t.Parallel()

	totals := []DeveloperTotal{
		{DeveloperID: 2, Login: "bob", Total: 300},
		{DeveloperID: 1, Login: "alice", Total: 300},
	}
	rewards := []RankReward{{Rank: 1, Amount: 500, Currency: "USD"}}

	first := ComputeRanking(totals, rewards)
	second := ComputeRanking(totals, rewards)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("run mismatch at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestComputeTiersBoundaries(t *testing.T) {
	t.Parallel()

	silverMax := 499.0
	tiers := []Tier{
		{Name: "Gold", MinScore: 500, Amount: 1000, Currency: "USD"},
		{Name: "Silver", MinScore: 200, MaxScore: &silverMax, Amount: 400, Currency: "USD"},
	}

	cases := []struct {
		name     string
		total    float64
		tier     string
		rewarded bool
	}{
		{"exact gold minimum", 500, "Gold", true},
		{"inside silver", 250, "Silver", true},
		{"silver upper bound", 499, "Silver", true},
		{"below every tier", 199, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assignments := ComputeTiers([]DeveloperTotal{{DeveloperID: 7, Login: "dev", Total: tc.total}}, tiers)
			if len(assignments) != 1 {
				t.Fatalf("assignments = %d, want 1", len(assignments))
			}
			got := assignments[0]
			if got.Tier != tc.tier {
				t.Fatalf("tier = %q, want %q", got.Tier, tc.tier)
			}
			if got.Rewarded != tc.rewarded {
				t.Fatalf("rewarded = %v, want %v", got.Rewarded, tc.rewarded)
			}
		})
	}
}

func TestValidateTiersRejectsOverlap(t *testing.T) {
	t.Parallel()

	silverMax := 600.0
	err := ValidateTiers([]Tier{
		{Name: "Gold", MinScore: 500, Amount: 1000},
		{Name: "Silver", MinScore: 200, MaxScore: &silverMax, Amount: 400},
	})
	if !errors.Is(err, ErrOverlappingTiers) {
		t.Fatalf("err = %v, want ErrOverlappingTiers", err)
	}

	// An open-ended lower tier swallows everything above it.
	err = ValidateTiers([]Tier{
		{Name: "Gold", MinScore: 500, Amount: 1000},
		{Name: "Silver", MinScore: 200, Amount: 400},
	})
	if !errors.Is(err, ErrOverlappingTiers) {
		t.Fatalf("err = %v, want ErrOverlappingTiers for open-ended lower tier", err)
	}
}

func TestValidateTiersAcceptsDisjointRanges(t *testing.T) {
	t.Parallel()

	silverMax := 499.0
	bronzeMax := 199.0
	err := ValidateTiers([]Tier{
		{Name: "Bronze", MinScore: 50, MaxScore: &bronzeMax, Amount: 100},
		{Name: "Gold", MinScore: 500, Amount: 1000},
		{Name: "Silver", MinScore: 200, MaxScore: &silverMax, Amount: 400},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRankRewards(t *testing.T) {
	t.Parallel()

	if err := ValidateRankRewards(nil); !errors.Is(err, ErrNoRewardPolicy) {
		t.Fatalf("err = %v, want ErrNoRewardPolicy", err)
	}
	if err := ValidateRankRewards([]RankReward{{Rank: 0, Amount: 10}}); err == nil {
		t.Fatal("err = nil, want invalid rank error")
	}
	if err := ValidateRankRewards([]RankReward{{Rank: 1, Amount: 10}, {Rank: 1, Amount: 5}}); err == nil {
		t.Fatal("err = nil, want duplicate rank error")
	}
	if err := ValidateRankRewards([]RankReward{{Rank: 1, Amount: 10}, {Rank: 2, Amount: 5}}); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusApproved, StatusPaid, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusRejected, true},
		{StatusPending, StatusPaid, false},
		{StatusPaid, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusPaid, StatusApproved, false},
	}

	for _, tc := range cases {
		err := Transition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s: %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s: err = %v, want ErrInvalidTransition", tc.from, tc.to, err)
		}
	}
}
