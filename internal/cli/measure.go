package cli

import (
	"fmt"
	"io"

	"github.com/hkmcoding/landie-next-sub000/internal/impact"
	"github.com/hkmcoding/landie-next-sub000/internal/notifications"
	"github.com/hkmcoding/landie-next-sub000/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	flagAll            bool
	flagNotify         bool
	flagImplementation string
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Measure the impact of implemented suggestions",
	Long: `Measure pending implementations for a user (optionally one page), a single
implementation by id, or with --all every page that has measurements due.`,
	RunE: runMeasure,
}

func init() {
	measureCmd.Flags().BoolVar(&flagAll, "all", false, "Measure every page with pending measurements")
	measureCmd.Flags().BoolVar(&flagNotify, "notify", false, "Send the impact digest after --all")
	measureCmd.Flags().StringVar(&flagImplementation, "implementation", "", "Measure a single implementation now")
	rootCmd.AddCommand(measureCmd)
}

func runMeasure(cmd *cobra.Command, args []string) error {
	if !flagAll && flagImplementation == "" {
		if err := requireUser(); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	engine, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := cmd.OutOrStdout()

	switch {
	case flagAll:
		var notifier notifications.Notifier
		if flagNotify && engine.Config.NotificationsEnabled() {
			notifier = notifications.NewService(engine.Config)
		}
		sched, err := scheduler.NewService(engine.Config, engine.Impact, notifier)
		if err != nil {
			return err
		}
		digest, err := sched.RunMeasurement(ctx)
		if err != nil {
			return err
		}
		return render(out, digest, func(w io.Writer) { writeDigest(w, digest) })

	case flagImplementation != "":
		m, err := engine.Impact.MeasureImplementationImpact(ctx, flagImplementation, flagUser)
		if err != nil {
			return err
		}
		return render(out, m, func(w io.Writer) { writeMeasurement(w, m) })

	default:
		result, err := engine.Impact.MeasurePendingImpacts(ctx, flagUser, flagPage)
		if err != nil {
			return err
		}
		return render(out, result, func(w io.Writer) { writeBatch(w, result) })
	}
}

func writeBatch(w io.Writer, result *impact.MeasureBatchResult) {
	fmt.Fprintf(w, "Measured: %d  Failed: %d\n", result.Measured, result.Failed)
	for _, d := range result.Details {
		if d.Success {
			fmt.Fprintf(w, "  ok    %s  %+.1f%%  %s confidence\n", d.ImplementationID, d.Improvement.Overall, d.Confidence)
		} else {
			fmt.Fprintf(w, "  fail  %s  %s\n", d.ImplementationID, d.Error)
		}
	}
}

func writeMeasurement(w io.Writer, m *impact.Measurement) {
	imp := m.Improvement
	fmt.Fprintf(w, "Implementation %s\n", m.Implementation.ID)
	fmt.Fprintf(w, "  Overall:          %+.1f%%\n", imp.Overall)
	fmt.Fprintf(w, "  Conversion rate:  %+.1f%%\n", imp.ConversionRate)
	fmt.Fprintf(w, "  CTA clicks:       %+.1f%%\n", imp.CTAClicks)
	fmt.Fprintf(w, "  Page views:       %+.1f%%\n", imp.PageViews)
	fmt.Fprintf(w, "  Session duration: %+.1f%%\n", imp.SessionDuration)
	fmt.Fprintf(w, "  Confidence:       %s (%d points)\n", m.Confidence, m.ConfidenceScore)
}

func writeDigest(w io.Writer, d *notifications.Digest) {
	fmt.Fprintf(w, "Pages: %d  Measured: %d  Failed: %d\n", d.Pages, d.Measured, d.Failed)
	for _, h := range d.Highlights {
		fmt.Fprintf(w, "  %+.1f%%  %s (page %s)\n", h.Overall, h.Title, h.LandingPageID)
	}
	for _, e := range d.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}
