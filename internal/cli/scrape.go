package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/monitoring"
	"github.com/spf13/cobra"
)

// ScrapeOptions holds flags for the scrape command.
type ScrapeOptions struct {
	*RootOptions
	All      bool
	Backfill bool
	NoReport bool
}

// NewScrapeCommand creates the scrape command.
func NewScrapeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScrapeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one ingestion pass",
		Long: `Fetch every configured community once, classify and store the posts,
then fetch comments for posts with mentions.

Only posts created today (UTC) are kept unless --all is given.

Examples:
  tracker scrape
  tracker scrape --all --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "keep all fetched posts, not just today's")
	cmd.Flags().BoolVar(&opts.Backfill, "backfill", true, "re-annotate stored posts before fetching")
	cmd.Flags().BoolVar(&opts.NoReport, "no-report", false, "do not send the notification report")

	return cmd
}

func runScrape(ctx context.Context, opts *ScrapeOptions, w io.Writer) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	runOpts := monitoring.RunOptions{Backfill: opts.Backfill, SkipReport: opts.NoReport}
	if !opts.All {
		runOpts.Since = time.Now().UTC().Truncate(24 * time.Hour)
	}

	summary, err := a.monitoring.RunIngestion(ctx, runOpts)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if opts.Format != "text" {
		return writeStructured(w, opts.Format, summary)
	}
	writeSummaryText(w, summary)
	return nil
}

func writeSummaryText(w io.Writer, s *models.IngestionSummary) {
	fmt.Fprintf(w, "Run %s finished in %s\n", s.RunID, s.Duration)
	fmt.Fprintf(w, "  Posts fetched : %d (%d new)\n", s.ItemsSeen, s.ItemsNew)
	fmt.Fprintf(w, "  New comments  : %d\n", s.CommentsNew)
	fmt.Fprintf(w, "  Errors        : %d\n", s.ErrorCount)

	counts := sortCounts(s.CategoryCounts)
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(w, "\n  Mentions found:")
	for _, c := range counts {
		fmt.Fprintf(w, "  %-25s %d\n", c.Category, c.Count)
	}
}
