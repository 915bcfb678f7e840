package reward

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ProgramType string

const (
	ProgramTypeRanking ProgramType = "ranking"
	ProgramTypeTier    ProgramType = "tier"
)

var (
	ErrUnknownProgramType = errors.New("unknown bounty program type")
	ErrNoRewardPolicy     = errors.New("bounty program has no reward policy")
	ErrOverlappingTiers   = errors.New("bounty tiers overlap")
)

func ParseProgramType(raw string) (ProgramType, error) {
	switch ProgramType(strings.ToLower(strings.TrimSpace(raw))) {
	case ProgramTypeRanking:
		return ProgramTypeRanking, nil
	case ProgramTypeTier:
		return ProgramTypeTier, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProgramType, raw)
	}
}

// RankReward maps one leaderboard rank to a payout.
type RankReward struct {
	Rank     int
	Amount   float64
	Currency string
}

// Tier is a score bucket [MinScore, MaxScore]. A nil MaxScore means the
// bucket is open-ended upward.
type Tier struct {
	Name     string
	MinScore float64
	MaxScore *float64
	Amount   float64
	Currency string
}

// ValidateRankRewards checks a ranking policy at program-creation time:
// ranks are positive and unique.
func ValidateRankRewards(rewards []RankReward) error {
	if len(rewards) == 0 {
		return ErrNoRewardPolicy
	}

	seen := make(map[int]bool, len(rewards))
	for _, r := range rewards {
		if r.Rank < 1 {
			return fmt.Errorf("rank %d is invalid, ranks start at 1", r.Rank)
		}
		if seen[r.Rank] {
			return fmt.Errorf("rank %d configured twice", r.Rank)
		}
		seen[r.Rank] = true
	}
	return nil
}

// ValidateTiers checks a tier policy at program-creation time, never at
// calculation time: ranges are well-formed and pairwise non-overlapping.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return ErrNoRewardPolicy
	}

	sorted := SortTiers(tiers)
	for _, tier := range sorted {
		if strings.TrimSpace(tier.Name) == "" {
			return errors.New("tier name is required")
		}
		if tier.MaxScore != nil && *tier.MaxScore < tier.MinScore {
			return fmt.Errorf("tier %q has max_score below min_score", tier.Name)
		}
	}

	for i := 0; i < len(sorted)-1; i++ {
		upper := sorted[i]
		lower := sorted[i+1]
		if lower.MinScore == upper.MinScore {
			return fmt.Errorf("%w: %q and %q share min_score", ErrOverlappingTiers, upper.Name, lower.Name)
		}
		if lower.MaxScore == nil || *lower.MaxScore >= upper.MinScore {
			return fmt.Errorf("%w: %q reaches into %q", ErrOverlappingTiers, lower.Name, upper.Name)
		}
	}
	return nil
}

// SortTiers returns the tiers ordered by descending MinScore, which is the
// lookup order the calculator uses.
func SortTiers(tiers []Tier) []Tier {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinScore > sorted[j].MinScore
	})
	return sorted
}
