package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/leolhan1425/bc-tracker/internal/classify"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/spf13/cobra"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <text>",
		Short: "Show why a text is classified the way it is",
		Long: `Classify a piece of text and show every matched contraceptive and side
effect with its position, plus the token-by-token sentiment trace.

Examples:
  tracker explain "I switched to the Mirena and I love it, no cramping at all"
  tracker explain --format json "depo made me gain weight"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp := classify.NewDefault().Explain(strings.Join(args, " "))
			if rootOpts.Format != "text" {
				return writeStructured(cmd.OutOrStdout(), rootOpts.Format, exp)
			}
			writeExplanationText(cmd.OutOrStdout(), exp)
			return nil
		},
	}
}

func writeExplanationText(w io.Writer, exp *models.Explanation) {
	writeMatches(w, "Contraceptives", exp.Entities)
	writeMatches(w, "Side effects", exp.SideEffects)

	fmt.Fprintln(w, "Sentiment:")
	for _, step := range exp.Sentiment.Steps {
		if step.Role == models.RoleNeutral {
			continue
		}
		role := step.Role
		if step.Negated {
			role += " (negated)"
		}
		fmt.Fprintf(w, "  %-15s %-22s %+6.2f %+6.2f\n", step.Word, role, step.PosDelta, -step.NegDelta)
	}
	fmt.Fprintf(w, "  %s\n", exp.Sentiment.Summary)
}

func writeMatches(w io.Writer, title string, matches []models.Match) {
	if len(matches) == 0 {
		fmt.Fprintf(w, "%s: none\n", title)
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, m := range matches {
		fmt.Fprintf(w, "  %-25s %q at %d-%d\n", m.Category, m.Text, m.Start, m.End)
	}
}
