package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/leolhan1425/bc-tracker/internal/classify"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/sources"
	"github.com/spf13/cobra"
)

// ProbeResult is the outcome of fetching one listing page of a community.
type ProbeResult struct {
	Community    string `json:"community" yaml:"community"`
	Posts        int    `json:"posts" yaml:"posts"`
	WithMentions int    `json:"with_mentions" yaml:"with_mentions"`
	Sample       string `json:"sample,omitempty" yaml:"sample,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewProbeCommand creates the probe command.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that every configured community can be fetched",
		Long: `Fetch the first page of the new listing of every configured community and
classify it without storing anything. Useful to check connectivity, the user
agent and the community names before running a pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			fetcher := sources.NewRedditSource(sources.RedditOptions{
				BaseURL:         cfg.RedditBaseURL,
				UserAgent:       cfg.RedditUserAgent,
				RequestInterval: cfg.RequestInterval,
			})
			results := probe(ctx, fetcher, classify.NewDefault(), cfg.CommunityNames())

			if rootOpts.Format != "text" {
				return writeStructured(cmd.OutOrStdout(), rootOpts.Format, results)
			}
			writeProbeText(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall time limit")
	return cmd
}

func probe(ctx context.Context, f sources.Fetcher, c *classify.Classifier, communities []string) []ProbeResult {
	results := make([]ProbeResult, 0, len(communities))
	for _, name := range communities {
		res := ProbeResult{Community: name}
		listing, err := f.FetchListing(ctx, name, models.SortNew, "")
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		res.Posts = len(listing.Items)
		for _, ci := range c.ClassifyBatch(listing.Items) {
			if len(ci.Annotation.Entities) == 0 {
				continue
			}
			res.WithMentions++
			if res.Sample == "" {
				res.Sample = ci.Item.Title
			}
		}
		results = append(results, res)
	}
	return results
}

func writeProbeText(w io.Writer, results []ProbeResult) {
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "r/%-20s ERROR: %s\n", r.Community, r.Error)
			continue
		}
		fmt.Fprintf(w, "r/%-20s OK (%d posts, %d with mentions)\n", r.Community, r.Posts, r.WithMentions)
		if r.Sample != "" {
			fmt.Fprintf(w, "   Sample: %q\n", r.Sample)
		}
	}
}
