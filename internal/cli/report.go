package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leolhan1425/bc-tracker/internal/classify"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/store"
	"github.com/spf13/cobra"
)

const (
	barWidth        = 30
	reportEffects   = 15
	reportDays      = 10
	reportDayTopN   = 5
	reportRuleWidth = 70
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Days int
	CSV  string
}

// Report is the aggregate view printed by the report command.
type Report struct {
	GeneratedAt   time.Time                  `json:"generated_at" yaml:"generated_at"`
	Days          int                        `json:"days,omitempty" yaml:"days,omitempty"`
	Stats         *models.Stats              `json:"stats" yaml:"stats"`
	MentionCounts []models.CategoryCount     `json:"mention_counts" yaml:"mention_counts"`
	Sentiment     []models.CategorySentiment `json:"sentiment" yaml:"sentiment"`
	SideEffects   []models.CategoryCount     `json:"side_effects" yaml:"side_effects"`
	Daily         models.DailySeries         `json:"daily" yaml:"daily"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a summary of stored mentions",
		Long: `Print mention counts, sentiment by contraceptive, top side effects and
a daily breakdown from the local store.

Examples:
  tracker report
  tracker report --days 7 --format yaml
  tracker report --csv report.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.Days, "days", 0, "only include the last N days (0 for all)")
	cmd.Flags().StringVar(&opts.CSV, "csv", "", "also write the daily breakdown to this CSV file")

	return cmd
}

func runReport(ctx context.Context, opts *ReportOptions, w io.Writer) error {
	if opts.Days < 0 {
		return fmt.Errorf("--days must not be negative")
	}
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	// Stored posts are re-annotated so the report reflects the current patterns.
	if _, err := st.Backfill(ctx, classify.NewDefault()); err != nil {
		return err
	}

	report, err := buildReport(ctx, st, opts.Days, time.Now().UTC())
	if err != nil {
		return err
	}

	if report.Stats.TotalPosts == 0 {
		fmt.Fprintln(w, "No data yet. Run `tracker scrape` first.")
		return nil
	}

	if opts.Format == "text" {
		writeReportText(w, report)
	} else if err := writeStructured(w, opts.Format, report); err != nil {
		return err
	}

	if opts.CSV != "" {
		if err := writeDailyCSV(opts.CSV, report.Daily); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "CSV exported to %s\n", opts.CSV)
	}
	return nil
}

// reportQuerier is the part of the store a report reads.
type reportQuerier interface {
	Stats(ctx context.Context) (*models.Stats, error)
	CategoryCounts(ctx context.Context, f store.Filter) ([]models.CategoryCount, error)
	DailySeries(ctx context.Context, f store.Filter) (models.DailySeries, error)
	SentimentByCategory(ctx context.Context, f store.Filter) ([]models.CategorySentiment, error)
	SideEffectCounts(ctx context.Context, f store.Filter, category string) ([]models.CategoryCount, error)
}

func buildReport(ctx context.Context, q reportQuerier, days int, now time.Time) (*Report, error) {
	var f store.Filter
	if days > 0 {
		start := now.Add(-time.Duration(days) * 24 * time.Hour)
		f.Start = &start
	}

	r := &Report{GeneratedAt: now, Days: days}
	var err error
	if r.Stats, err = q.Stats(ctx); err != nil {
		return nil, err
	}
	if r.MentionCounts, err = q.CategoryCounts(ctx, f); err != nil {
		return nil, err
	}
	if r.Sentiment, err = q.SentimentByCategory(ctx, f); err != nil {
		return nil, err
	}
	if r.SideEffects, err = q.SideEffectCounts(ctx, f, ""); err != nil {
		return nil, err
	}
	if r.Daily, err = q.DailySeries(ctx, f); err != nil {
		return nil, err
	}
	return r, nil
}

func sortedDays(daily models.DailySeries) []string {
	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

func writeReportText(w io.Writer, r *Report) {
	rule := strings.Repeat("=", reportRuleWidth)
	days := sortedDays(r.Daily)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Contraceptive Mention Tracker - Multi-Community Report")
	fmt.Fprintln(w, rule)
	if len(days) > 0 {
		fmt.Fprintf(w, "  Period       : %s to %s (%d day(s))\n", days[0], days[len(days)-1], len(days))
	}
	fmt.Fprintf(w, "  Posts        : %d\n", r.Stats.TotalPosts)
	fmt.Fprintf(w, "  Comments     : %d\n", r.Stats.TotalComments)
	fmt.Fprintf(w, "  Runs         : %d\n", r.Stats.TotalRuns)
	if r.Stats.AvgSentiment != nil {
		fmt.Fprintf(w, "  Avg sentiment: %.3f\n", *r.Stats.AvgSentiment)
	} else {
		fmt.Fprintln(w, "  Avg sentiment: n/a")
	}
	if r.Stats.LastRun != "" {
		fmt.Fprintf(w, "  Last run     : %s\n", r.Stats.LastRun)
	}
	if r.Stats.ErrorCount24h > 0 {
		fmt.Fprintf(w, "  WARNING      : %d ingestion errors in the last 24h, figures may be stale\n", r.Stats.ErrorCount24h)
	}
	fmt.Fprintln(w, strings.Repeat("-", reportRuleWidth))

	if len(r.MentionCounts) > 0 {
		top := r.MentionCounts[0].Count
		fmt.Fprintf(w, "\n  %-25s %5s  Distribution\n", "Contraceptive", "Count")
		fmt.Fprintf(w, "  %s %s  %s\n", strings.Repeat("-", 25), strings.Repeat("-", 5), strings.Repeat("-", barWidth))
		for _, c := range r.MentionCounts {
			bar := strings.Repeat("#", c.Count*barWidth/top)
			fmt.Fprintf(w, "  %-25s %5d  %s\n", c.Category, c.Count, bar)
		}
	}

	if len(r.Sentiment) > 0 {
		fmt.Fprintf(w, "\n  %-25s %9s  %5s\n", "Contraceptive", "Sentiment", "Posts")
		fmt.Fprintf(w, "  %s %s  %s\n", strings.Repeat("-", 25), strings.Repeat("-", 9), strings.Repeat("-", 5))
		for _, s := range r.Sentiment {
			fmt.Fprintf(w, "  %-25s %+9.3f  %5d\n", s.Category, s.Mean, s.Count)
		}
	}

	if len(r.SideEffects) > 0 {
		fmt.Fprintln(w, "\n  Top Side Effects / Worries:")
		fmt.Fprintf(w, "  %s\n", strings.Repeat("-", 40))
		for i, e := range r.SideEffects {
			if i >= reportEffects {
				break
			}
			fmt.Fprintf(w, "  %-30s %5d mentions\n", e.Category, e.Count)
		}
	}

	if len(days) > 0 {
		fmt.Fprintf(w, "\n  Daily breakdown (top %d per day):\n", reportDayTopN)
		fmt.Fprintf(w, "  %s\n", strings.Repeat("-", 50))
		for _, d := range days[max(0, len(days)-reportDays):] {
			counts := sortCounts(r.Daily[d])
			parts := make([]string, 0, reportDayTopN)
			for i, c := range counts {
				if i >= reportDayTopN {
					break
				}
				parts = append(parts, fmt.Sprintf("%s(%d)", c.Category, c.Count))
			}
			fmt.Fprintf(w, "  %s: %s\n", d, strings.Join(parts, ", "))
		}
	}

	fmt.Fprintln(w, rule)
}

// writeDailyCSV writes one row per day and category.
func writeDailyCSV(path string, daily models.DailySeries) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"date", "contraceptive", "mentions"}); err != nil {
		return err
	}
	for _, d := range sortedDays(daily) {
		names := make([]string, 0, len(daily[d]))
		for name := range daily[d] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := cw.Write([]string{d, name, strconv.Itoa(daily[d][name])}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}
