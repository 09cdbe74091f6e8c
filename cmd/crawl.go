package cmd

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psdocs/doc-harvester/internal/harvest"
)

func newCrawlCmd() *cobra.Command {
	var (
		seedURL  string
		maxPages int
		maxDepth int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs a single crawl and prints the result",
		Long: `Crawls a documentation site from the given seed URL on the calling
terminal, blocking until the crawl finishes, and prints the terminal job
record as JSON. Interrupting the command cancels the crawl.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := buildComponents(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer c.close()

			if maxPages == 0 {
				maxPages = c.cfg.Crawler.MaxPagesDefault
			}
			if maxDepth < 0 {
				maxDepth = c.cfg.Crawler.MaxDepthDefault
			}

			job, err := c.jobs.RunBlocking(ctx, harvest.JobConfig{
				SeedURL:  seedURL,
				MaxPages: maxPages,
				MaxDepth: maxDepth,
			})
			if err != nil {
				return fmt.Errorf("run crawl: %w", err)
			}

			out, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			cmd.Println(string(out))
			if job.Status == harvest.JobStatusError {
				return fmt.Errorf("crawl failed: %s", job.ErrorText)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&seedURL, "url", "", "seed URL to crawl")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages to save (0 uses the configured default)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", -1, "maximum link depth (-1 uses the configured default)")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
