package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"prmerit/internal/errs"
	"prmerit/internal/ports"
)

var rewardCmd = &cobra.Command{
	Use:   "reward",
	Short: "Drive the payout lifecycle of committed rewards",
}

func rewardTransitionCmd(use string, short string, apply func(svcs services, cmd *cobra.Command, rewardID uint64) (ports.BountyRewardRecord, error)) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withApp(func(cmd *cobra.Command, svcs services) error {
			rewardID, _ := cmd.Flags().GetUint64("reward-id")
			if rewardID == 0 {
				return fmt.Errorf("--reward-id is required")
			}

			rec, err := apply(svcs, cmd, rewardID)
			if err != nil {
				return errs.Wrapf(err, "%s reward %d", use, rewardID)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "reward %d is now %s\n", rec.RewardID, rec.Status)
			return nil
		}),
	}
	c.Flags().Uint64("reward-id", 0, "Reward id")
	return c
}

var rewardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed rewards of a program",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		programID, _ := cmd.Flags().GetUint64("program-id")
		if programID == 0 {
			return fmt.Errorf("--program-id is required")
		}

		recs, err := svcs.Rewards.ListRewards(cmd.Context(), programID)
		if err != nil {
			return errs.Wrap(err, "list rewards")
		}

		out := cmd.OutOrStdout()
		for _, rec := range recs {
			fmt.Fprintf(out, "reward=%d developer=%d score=%.0f amount=%.2f %s status=%s\n",
				rec.RewardID, rec.DeveloperID, rec.FinalScore, rec.Amount, rec.Currency, rec.Status)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(rewardCmd)

	rewardCmd.AddCommand(rewardTransitionCmd("approve", "Approve a pending reward",
		func(svcs services, cmd *cobra.Command, rewardID uint64) (ports.BountyRewardRecord, error) {
			return svcs.Rewards.ApproveReward(cmd.Context(), rewardID)
		}))
	rewardCmd.AddCommand(rewardTransitionCmd("pay", "Mark an approved reward as paid",
		func(svcs services, cmd *cobra.Command, rewardID uint64) (ports.BountyRewardRecord, error) {
			return svcs.Rewards.PayReward(cmd.Context(), rewardID)
		}))
	rewardCmd.AddCommand(rewardTransitionCmd("reject", "Reject a pending or approved reward",
		func(svcs services, cmd *cobra.Command, rewardID uint64) (ports.BountyRewardRecord, error) {
			return svcs.Rewards.RejectReward(cmd.Context(), rewardID)
		}))

	rewardCmd.AddCommand(rewardListCmd)
	rewardListCmd.Flags().Uint64("program-id", 0, "Program id")
}
