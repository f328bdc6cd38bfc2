package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/callgrind-analysis/internal/repository"
	"github.com/callgrind-analysis/pkg/config"
	"github.com/callgrind-analysis/pkg/model"
)

func newProfilesCmd(a *app) *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect profiles stored by the database exporter",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent stored profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepositories(cmd.Context(), a.cfg, func(repos *repository.Repositories) error {
				records, err := repos.Profiles.ListProfiles(cmd.Context(), limit)
				if err != nil {
					return err
				}
				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"ID", "Created", "Source", "Command", "Functions", "Diagnostics"})
				table.SetAutoFormatHeaders(false)
				for _, r := range records {
					table.Append([]string{
						r.UUID,
						r.CreatedAt.Format("2006-01-02 15:04:05"),
						r.Source,
						truncate(r.Command, 40),
						strconv.Itoa(r.Functions),
						strconv.Itoa(r.Diagnostics),
					})
				}
				table.Render()
				return nil
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of profiles")

	var top int
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the top functions of a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepositories(cmd.Context(), a.cfg, func(repos *repository.Repositories) error {
				profile, err := repos.Profiles.GetProfile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				functions, err := repos.Profiles.TopFunctions(cmd.Context(), profile.ID, top)
				if err != nil {
					return err
				}

				var events []string
				_ = profile.Events.Decode(&events)
				first := "cost"
				if len(events) > 0 {
					first = events[0]
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Profile %s: %s (%d functions)\n", profile.UUID, profile.Source, profile.Functions)

				table := tablewriter.NewWriter(out)
				table.SetHeader([]string{"#", "Self " + first, "Inclusive " + first, "Function", "Object"})
				table.SetAutoFormatHeaders(false)
				for i, f := range functions {
					table.Append([]string{
						strconv.Itoa(i + 1),
						strconv.FormatInt(f.PrimarySelf, 10),
						strconv.FormatInt(f.PrimaryInclusive, 10),
						truncate(f.Name, 60),
						truncate(f.Object, 40),
					})
				}
				table.Render()
				return nil
			})
		},
	}
	showCmd.Flags().IntVarP(&top, "top", "n", 20, "Number of functions")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepositories(cmd.Context(), a.cfg, func(repos *repository.Repositories) error {
				if err := repos.Profiles.DeleteProfile(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}

	profilesCmd.AddCommand(listCmd, showCmd, deleteCmd)
	return profilesCmd
}

// withRepositories opens and migrates the configured database for fn.
func withRepositories(ctx context.Context, cfg *config.Config, fn func(*repository.Repositories) error) error {
	db, err := repository.NewGormDB(&cfg.Database)
	if err != nil {
		return err
	}
	repos := repository.NewRepositories(db, 0)
	defer repos.Close()

	if err := repos.Migrate(ctx); err != nil {
		return err
	}
	return fn(repos)
}

func loadStoredSummary(ctx context.Context, cfg *config.Config, id string) (*model.ProfileSummary, error) {
	var summary *model.ProfileSummary
	err := withRepositories(ctx, cfg, func(repos *repository.Repositories) error {
		var err error
		summary, err = repos.Profiles.LoadSummary(ctx, id)
		return err
	})
	return summary, err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
