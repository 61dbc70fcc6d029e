package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

type stageFunc func(r *pipeline.Runner, ctx context.Context) (*pipeline.StageResult, error)

// stageCmd builds a flagless command that runs one stage.
func stageCmd(use, short string, n need, run stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := initStages(ctx, n)
			if err != nil {
				return err
			}
			defer env.Close()
			defer pushMetrics(ctx)

			_, err = run(env.Runner, ctx)
			return err
		},
	}
}

var scrapeCmd = stageCmd("scrape", "Scrape reactions on due posts",
	need{scraper: true}, (*pipeline.Runner).Scrape)

var enrichPostsCmd = stageCmd("enrich-posts", "Fill media details of unenriched posts",
	need{scraper: true}, (*pipeline.Runner).EnrichPosts)

var enrichContactsCmd = stageCmd("enrich-contacts", "Promote engagers and fill company, title and audience",
	need{profiles: true, classify: true}, (*pipeline.Runner).EnrichContacts)

var syncCRMCmd = stageCmd("sync-crm", "Push new contacts to the CRM and reconcile fields",
	need{crm: true}, (*pipeline.Runner).SyncCRM)

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every stage in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initStages(ctx, needAll)
		if err != nil {
			return err
		}
		defer env.Close()
		defer pushMetrics(ctx)

		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}
		_, err = env.Runner.RunAll(ctx)
		return err
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd, enrichPostsCmd, enrichContactsCmd, syncCRMCmd, runAllCmd)
}
