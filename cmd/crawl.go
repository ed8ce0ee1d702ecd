package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/scheduler"
)

func newCrawlCmd() *cobra.Command {
	var (
		all     bool
		maxURLs int
	)
	cmd := &cobra.Command{
		Use:   "crawl [target]",
		Short: "Run one crawl and print the summary",
		Long: `Crawls a single configured target, or every enabled target with --all
(capped at each target's max_pages), and prints the run summaries as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if all {
				if _, err := a.HealthCheck(cmd.Context()); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.FullCrawl(cmd.Context()))
			}
			if len(args) != 1 {
				return errors.New("a target name is required unless --all is set")
			}
			if _, err := a.HealthCheck(cmd.Context()); err != nil {
				return err
			}
			sum, runErr := a.Scheduler.RunTarget(cmd.Context(), args[0], scheduler.RunOptions{MaxURLs: maxURLs})
			if sum.RunID != "" {
				if err := printJSON(cmd.OutOrStdout(), sum); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "crawl every enabled target up to max_pages")
	cmd.Flags().IntVar(&maxURLs, "max-urls", 0, "override crawler.max_urls_per_run for this run")
	return cmd
}
