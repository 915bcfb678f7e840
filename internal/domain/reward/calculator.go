package reward

import "sort"

// EvaluationScore is one eligible evaluation's contribution to a program
// window, already filtered by merge time and eligibility.
type EvaluationScore struct {
	DeveloperID uint64
	Login       string
	FinalScore  float64
}

// DeveloperTotal is one developer's summed score over a program window.
type DeveloperTotal struct {
	DeveloperID uint64
	Login       string
	Total       float64
}

// Assignment is one developer's computed reward projection. Rewarded is
// false for developers who rank beyond the configured list or score below
// every tier minimum.
type Assignment struct {
	DeveloperID uint64
	Login       string
	Total       float64
	Rank        int
	Tier        string
	Amount      float64
	Currency    string
	Rewarded    bool
}

// AggregateScores is a pure reduction of evaluations into per-developer
// totals. Sorting is a separate, explicit step in the compute functions.
func AggregateScores(scores []EvaluationScore) []DeveloperTotal {
	byDeveloper := make(map[uint64]*DeveloperTotal, len(scores))
	order := make([]uint64, 0, len(scores))

	for _, s := range scores {
		total, ok := byDeveloper[s.DeveloperID]
		if !ok {
			total = &DeveloperTotal{DeveloperID: s.DeveloperID, Login: s.Login}
			byDeveloper[s.DeveloperID] = total
			order = append(order, s.DeveloperID)
		}
		total.Total += s.FinalScore
	}

	totals := make([]DeveloperTotal, 0, len(order))
	for _, id := range order {
		totals = append(totals, *byDeveloper[id])
	}
	return totals
}

// sortTotals orders developers by summed score descending with a stable
// tie-break on developer id, so repeated runs produce identical rankings.
func sortTotals(totals []DeveloperTotal) []DeveloperTotal {
	sorted := make([]DeveloperTotal, len(totals))
	copy(sorted, totals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Total != sorted[j].Total {
			return sorted[i].Total > sorted[j].Total
		}
		return sorted[i].DeveloperID < sorted[j].DeveloperID
	})
	return sorted
}

// ComputeRanking assigns ranks 1..N by descending total and maps each rank
// to its configured reward. Developers beyond the reward list keep their
// rank but receive no reward.
func ComputeRanking(totals []DeveloperTotal, rewards []RankReward) []Assignment {
	byRank := make(map[int]RankReward, len(rewards))
	for _, r := range rewards {
		byRank[r.Rank] = r
	}

	sorted := sortTotals(totals)
	assignments := make([]Assignment, 0, len(sorted))
	for i, total := range sorted {
		a := Assignment{
			DeveloperID: total.DeveloperID,
			Login:       total.Login,
			Total:       total.Total,
			Rank:        i + 1,
		}
		if r, ok := byRank[a.Rank]; ok {
			a.Amount = r.Amount
			a.Currency = r.Currency
			a.Rewarded = true
		}
		assignments = append(assignments, a)
	}
	return assignments
}

// ComputeTiers assigns each developer the highest-min_score tier whose
// range contains their total. Tiers are non-overlapping by construction;
// a developer below every minimum receives no reward.
func ComputeTiers(totals []DeveloperTotal, tiers []Tier) []Assignment {
	sorted := sortTotals(totals)
	ordered := SortTiers(tiers)

	assignments := make([]Assignment, 0, len(sorted))
	for _, total := range sorted {
		a := Assignment{
			DeveloperID: total.DeveloperID,
			Login:       total.Login,
			Total:       total.Total,
		}
		for _, tier := range ordered {
			if total.Total < tier.MinScore {
				continue
			}
			if tier.MaxScore != nil && total.Total > *tier.MaxScore {
				continue
			}
			a.Tier = tier.Name
			a.Amount = tier.Amount
			a.Currency = tier.Currency
			a.Rewarded = true
			break
		}
		assignments = append(assignments, a)
	}
	return assignments
}
