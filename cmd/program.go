package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"prmerit/internal/domain/reward"
	"prmerit/internal/errs"
	"prmerit/internal/usecase/rewards"
)

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Manage bounty programs",
}

var programCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a bounty program with a ranking or tier reward policy",
	Long: `Create a bounty program over a time window.

Ranking policies take repeated --rank flags of the form "rank:amount".
Tier policies take repeated --tier flags of the form "name:min:max:amount",
where an empty max means the tier is open-ended upward.`,
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		orgID, _ := cmd.Flags().GetUint64("org-id")
		name, _ := cmd.Flags().GetString("name")
		rawType, _ := cmd.Flags().GetString("type")
		rawStarts, _ := cmd.Flags().GetString("starts")
		rawEnds, _ := cmd.Flags().GetString("ends")
		currency, _ := cmd.Flags().GetString("currency")
		rawRanks, _ := cmd.Flags().GetStringSlice("rank")
		rawTiers, _ := cmd.Flags().GetStringSlice("tier")

		if orgID == 0 {
			return fmt.Errorf("--org-id is required")
		}
		programType, err := reward.ParseProgramType(rawType)
		if err != nil {
			return err
		}
		startsAt, err := parseDay(rawStarts)
		if err != nil {
			return errs.Wrap(err, "parse --starts")
		}
		endsAt, err := parseDay(rawEnds)
		if err != nil {
			return errs.Wrap(err, "parse --ends")
		}

		input := rewards.CreateProgramInput{
			OrgID:    orgID,
			Name:     name,
			Type:     programType,
			StartsAt: startsAt,
			// The end day is inclusive.
			EndsAt: endsAt.Add(24*time.Hour - time.Nanosecond),
		}
		for _, raw := range rawRanks {
			rankReward, err := parseRankReward(raw, currency)
			if err != nil {
				return err
			}
			input.RankRewards = append(input.RankRewards, rankReward)
		}
		for _, raw := range rawTiers {
			tier, err := parseTier(raw, currency)
			if err != nil {
				return err
			}
			input.Tiers = append(input.Tiers, tier)
		}

		program, err := svcs.Rewards.CreateProgram(cmd.Context(), input)
		if err != nil {
			return errs.Wrap(err, "create program")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "program %d (%s) created\n", program.ProgramID, program.Type)
		return nil
	}),
}

var programComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Project payouts for a program without persisting anything",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		programID, _ := cmd.Flags().GetUint64("program-id")
		if programID == 0 {
			return fmt.Errorf("--program-id is required")
		}

		assignments, err := svcs.Rewards.ComputeRewards(cmd.Context(), programID)
		if err != nil {
			return errs.Wrap(err, "compute rewards")
		}

		out := cmd.OutOrStdout()
		for _, a := range assignments {
			label := "-"
			if a.Rewarded {
				label = fmt.Sprintf("%.2f %s", a.Amount, a.Currency)
			}
			switch {
			case a.Rank > 0:
				fmt.Fprintf(out, "#%d %s total=%.0f reward=%s\n", a.Rank, a.Login, a.Total, label)
			case a.Tier != "":
				fmt.Fprintf(out, "%s %s total=%.0f reward=%s\n", a.Tier, a.Login, a.Total, label)
			default:
				fmt.Fprintf(out, "-- %s total=%.0f reward=%s\n", a.Login, a.Total, label)
			}
		}
		return nil
	}),
}

var programCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Compute and persist pending rewards for a program",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		programID, _ := cmd.Flags().GetUint64("program-id")
		if programID == 0 {
			return fmt.Errorf("--program-id is required")
		}

		committed, err := svcs.Rewards.CommitRewards(cmd.Context(), programID)
		if err != nil {
			return errs.Wrap(err, "commit rewards")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d rewards committed\n", len(committed))
		return nil
	}),
}

func parseDay(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(raw))
}

// parseRankReward decodes "rank:amount", e.g. "1:500".
func parseRankReward(raw string, currency string) (reward.RankReward, error) {
	left, right, ok := strings.Cut(raw, ":")
	if !ok {
		return reward.RankReward{}, fmt.Errorf("invalid --rank %q, want rank:amount", raw)
	}
	rank, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return reward.RankReward{}, fmt.Errorf("invalid rank in %q", raw)
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if err != nil {
		return reward.RankReward{}, fmt.Errorf("invalid amount in %q", raw)
	}
	return reward.RankReward{Rank: rank, Amount: amount, Currency: currency}, nil
}

// parseTier decodes "name:min:max:amount", e.g. "Gold:500::1000" for an
// open-ended top tier.
func parseTier(raw string, currency string) (reward.Tier, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return reward.Tier{}, fmt.Errorf("invalid --tier %q, want name:min:max:amount", raw)
	}

	tier := reward.Tier{Name: strings.TrimSpace(parts[0]), Currency: currency}

	min, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return reward.Tier{}, fmt.Errorf("invalid min score in %q", raw)
	}
	tier.MinScore = min

	if rawMax := strings.TrimSpace(parts[2]); rawMax != "" {
		max, err := strconv.ParseFloat(rawMax, 64)
		if err != nil {
			return reward.Tier{}, fmt.Errorf("invalid max score in %q", raw)
		}
		tier.MaxScore = &max
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return reward.Tier{}, fmt.Errorf("invalid amount in %q", raw)
	}
	tier.Amount = amount
	return tier, nil
}

func init() {
	rootCmd.AddCommand(programCmd)
	programCmd.AddCommand(programCreateCmd)
	programCmd.AddCommand(programComputeCmd)
	programCmd.AddCommand(programCommitCmd)

	programCreateCmd.Flags().Uint64("org-id", 0, "Organization id")
	programCreateCmd.Flags().String("name", "", "Program name")
	programCreateCmd.Flags().String("type", "ranking", "Program type: ranking or tier")
	programCreateCmd.Flags().String("starts", "", "Window start day (YYYY-MM-DD)")
	programCreateCmd.Flags().String("ends", "", "Window end day (YYYY-MM-DD, inclusive)")
	programCreateCmd.Flags().String("currency", "USD", "Reward currency")
	programCreateCmd.Flags().StringSlice("rank", nil, `Rank reward "rank:amount", repeatable`)
	programCreateCmd.Flags().StringSlice("tier", nil, `Tier "name:min:max:amount", repeatable`)

	programComputeCmd.Flags().Uint64("program-id", 0, "Program id")
	programCommitCmd.Flags().Uint64("program-id", 0, "Program id")
}
