package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"prmerit/internal/bootstrap/logging"
	"prmerit/internal/domain/scoring"
	"prmerit/internal/errs"
	"prmerit/internal/ports"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register an organization, its tracked repositories, and a default ruleset",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := cmd.Context()

		orgName, _ := cmd.Flags().GetString("org")
		installationID, _ := cmd.Flags().GetInt64("installation-id")
		repoNames, _ := cmd.Flags().GetStringSlice("repo")

		orgName = strings.TrimSpace(orgName)
		if orgName == "" {
			return fmt.Errorf("--org is required")
		}
		if installationID <= 0 {
			return fmt.Errorf("--installation-id is required")
		}
		if len(repoNames) == 0 {
			return fmt.Errorf("at least one --repo is required")
		}

		org, err := svcs.Store.CreateOrganization(ctx, ports.Organization{
			Name:           orgName,
			InstallationID: installationID,
		})
		if err != nil {
			return errs.Wrap(err, "create organization")
		}

		for _, fullName := range repoNames {
			if _, err := ports.ParseRepoFullName(fullName); err != nil {
				return err
			}
			if _, err := svcs.Store.CreateRepo(ctx, ports.TrackedRepo{
				OrgID:    org.OrgID,
				FullName: strings.TrimSpace(fullName),
			}); err != nil {
				return errs.Wrapf(err, "track repository %s", fullName)
			}
		}

		ruleset, err := svcs.Store.CreateRuleset(ctx, ports.Ruleset{
			OrgID: org.OrgID,
			Key:   uuid.NewString(),
			Name:  "Default ruleset",
		})
		if err != nil {
			return errs.Wrap(err, "create ruleset")
		}

		if err := seedCatalog(cmd, svcs.Store, org.OrgID); err != nil {
			return err
		}

		logging.Info(ctx, "setup completed",
			slog.Uint64("org_id", org.OrgID),
			slog.Uint64("ruleset_id", ruleset.RulesetID),
			slog.Int("repos", len(repoNames)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "organization %d ready with ruleset %d\n", org.OrgID, ruleset.RulesetID)
		return nil
	}),
}

// seedCatalog writes the default severity ladder and the sentinel component.
// Further components come from `component add`.
func seedCatalog(cmd *cobra.Command, store ports.PipelineRepository, orgID uint64) error {
	ctx := cmd.Context()

	severities := []scoring.SeverityLevel{
		{Key: "p0", Name: "Critical", BasePoints: 500, Rank: 0},
		{Key: "p1", Name: "Major", BasePoints: 300, Rank: 1},
		{Key: "p2", Name: "Minor", BasePoints: 100, Rank: 2},
		{Key: "p3", Name: "Trivial", BasePoints: 50, Rank: 3},
	}
	for _, sev := range severities {
		if err := store.CreateSeverity(ctx, orgID, sev); err != nil {
			return errs.Wrapf(err, "seed severity %s", sev.Key)
		}
	}

	if err := store.CreateComponent(ctx, orgID, scoring.Component{
		Key:        scoring.SentinelComponentKey,
		Name:       "Other",
		Multiplier: 1,
	}); err != nil {
		return errs.Wrap(err, "seed sentinel component")
	}
	return nil
}

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Manage the component catalog",
}

var componentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scoring component to an organization's catalog",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := cmd.Context()

		orgID, _ := cmd.Flags().GetUint64("org-id")
		key, _ := cmd.Flags().GetString("key")
		name, _ := cmd.Flags().GetString("name")
		multiplier, _ := cmd.Flags().GetFloat64("multiplier")

		if orgID == 0 || strings.TrimSpace(key) == "" || strings.TrimSpace(name) == "" {
			return fmt.Errorf("--org-id, --key and --name are required")
		}
		if multiplier <= 0 {
			return fmt.Errorf("--multiplier must be positive")
		}

		if _, err := svcs.Store.GetOrganization(ctx, orgID); err != nil {
			return err
		}
		if err := svcs.Store.CreateComponent(ctx, orgID, scoring.Component{
			Key:        key,
			Name:       name,
			Multiplier: multiplier,
		}); err != nil {
			return errs.Wrapf(err, "add component %s", key)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "component %s added\n", strings.ToLower(strings.TrimSpace(key)))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().String("org", "", "Organization name")
	setupCmd.Flags().Int64("installation-id", 0, "GitHub App installation id")
	setupCmd.Flags().StringSlice("repo", nil, "Repository full name (owner/name), repeatable")

	rootCmd.AddCommand(componentCmd)
	componentCmd.AddCommand(componentAddCmd)
	componentAddCmd.Flags().Uint64("org-id", 0, "Organization id")
	componentAddCmd.Flags().String("key", "", "Component key")
	componentAddCmd.Flags().String("name", "", "Component display name")
	componentAddCmd.Flags().Float64("multiplier", 1, "Score multiplier")
}
