package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-crawler/internal/app"
	"github.com/JakeFAU/job-listing-crawler/internal/crawler"
)

func newCrawlCmd() *cobra.Command {
	var (
		keywords   []string
		fullReport bool
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl and prints the listings as JSON",
		Long: `Searches every configured source for each keyword, prints the
deduplicated listings to stdout and delivers them to the configured outputs.
Keywords given with --keyword replace crawler.keywords from the config.
With --dry-run the listings are only printed.`,
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			if len(crawler.NormalizeKeywords(keywords)) == 0 {
				keywords = a.Config().Crawler.Keywords
			}
			if len(crawler.NormalizeKeywords(keywords)) == 0 {
				return errors.New("no keywords: pass --keyword or set crawler.keywords")
			}
			if dryRun && fullReport {
				return errors.New("--report cannot be combined with --dry-run")
			}

			if dryRun {
				return writeJSON(cmd, a.Engine().Listings(cmd.Context(), keywords))
			}

			report, runErr := a.Pipeline().Run(cmd.Context(), keywords)
			if report.ID == "" {
				return fmt.Errorf("run crawl: %w", runErr)
			}
			if runErr != nil {
				a.Logger().Warn("crawl delivered with errors", zap.Error(runErr))
			}

			var payload any = report.Listings
			if fullReport {
				payload = report
			}
			if err := writeJSON(cmd, payload); err != nil {
				return err
			}
			if report.Err != "" {
				return fmt.Errorf("crawl failed: %s", report.Err)
			}
			return nil
		}),
	}
	cmd.Flags().StringSliceVarP(&keywords, "keyword", "k", nil, "keyword to search for (repeatable)")
	cmd.Flags().BoolVar(&fullReport, "report", false, "print the full crawl report instead of only the listings")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the listings without archiving, storing or publishing them")
	return cmd
}

func writeJSON(cmd *cobra.Command, payload any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("write listings: %w", err)
	}
	return nil
}
