package cli

import (
	"fmt"
	"io"

	"github.com/hkmcoding/landie-next-sub000/internal/impact"
	"github.com/spf13/cobra"
)

var flagDays int

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show aggregated impact for a page",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePage(); err != nil {
			return err
		}
		engine, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer engine.Close()

		s, err := engine.Impact.GetImpactSummary(cmd.Context(), flagUser, flagPage)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), s, func(w io.Writer) { writeSummary(w, s) })
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Rank measured implementations for a page",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePage(); err != nil {
			return err
		}
		engine, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer engine.Close()

		c, err := engine.Impact.CompareImplementations(cmd.Context(), flagUser, flagPage)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), c, func(w io.Writer) { writeComparison(w, c) })
	},
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Classify a page's recent traffic and conversion trends",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePage(); err != nil {
			return err
		}
		engine, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer engine.Close()

		t, err := engine.Impact.GetPageTrends(cmd.Context(), flagUser, flagPage, flagDays)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), t, func(w io.Writer) { writeTrends(w, t) })
	},
}

func init() {
	trendsCmd.Flags().IntVar(&flagDays, "days", impact.DefaultTrendDays, "Number of days to analyze")
	rootCmd.AddCommand(summaryCmd, compareCmd, trendsCmd)
}

func writeSummary(w io.Writer, s *impact.Summary) {
	fmt.Fprintf(w, "Measured implementations: %d\n", s.MeasuredCount)
	fmt.Fprintf(w, "Pending measurements:     %d\n", s.PendingMeasurements)
	if s.MeasuredCount == 0 {
		return
	}
	fmt.Fprintf(w, "Average improvement:      %+.1f%%\n", s.AverageImprovement)
	fmt.Fprintf(w, "Best / worst:             %+.1f%% / %+.1f%%\n", s.BestImprovement, s.WorstImprovement)
	fmt.Fprintf(w, "Success rate:             %.0f%%\n", s.SuccessRate*100)
}

func writeComparison(w io.Writer, c *impact.Comparison) {
	section := func(title string, list []impact.ImplementationImpact) {
		fmt.Fprintf(w, "%s:\n", title)
		if len(list) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, imp := range list {
			fmt.Fprintf(w, "  %+7.1f%%  %s [%s, %s]\n", imp.Improvement.Overall, imp.SuggestionTitle, imp.SuggestionType, imp.Confidence)
		}
	}
	section("Best", c.Best)
	section("Worst", c.Worst)

	fmt.Fprintln(w, "By type:")
	for _, t := range c.ByType {
		fmt.Fprintf(w, "  %-12s %d measured, avg %+.1f%%, %.0f%% positive\n", t.SuggestionType, t.Count, t.AverageImprovement, t.SuccessRate*100)
	}
}

func writeTrends(w io.Writer, t *impact.PageTrendResult) {
	fmt.Fprintf(w, "Overall:         %s\n", t.Overall)
	fmt.Fprintf(w, "Page views:      %s (%+.1f%%)\n", t.PageViews.Direction, t.PageViews.ChangePct)
	fmt.Fprintf(w, "CTA clicks:      %s (%+.1f%%)\n", t.CTAClicks.Direction, t.CTAClicks.ChangePct)
	fmt.Fprintf(w, "Conversion rate: %s (%+.1f%%)\n", t.ConversionRate.Direction, t.ConversionRate.ChangePct)
}
