package cli

import (
	"fmt"
	"io"

	"github.com/hkmcoding/landie-next-sub000/internal/archive"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/hkmcoding/landie-next-sub000/internal/suggestions"
	"github.com/spf13/cobra"
)

var (
	flagAnalysisType string
	flagSessionID    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Generate suggestions for a page",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePage(); err != nil {
			return err
		}
		if !suggestions.ValidAnalysisType(flagAnalysisType) {
			return fmt.Errorf("unknown analysis type %q", flagAnalysisType)
		}

		engine, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer engine.Close()

		result, err := engine.Suggestions.Analyze(cmd.Context(), suggestions.AnalyzeRequest{
			UserID:        flagUser,
			LandingPageID: flagPage,
			AnalysisType:  flagAnalysisType,
			TriggerEvent:  "cli",
		})
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), result, func(w io.Writer) {
			fmt.Fprintf(w, "Session %s: %d candidates, %d kept\n", result.Session.ID, result.Session.CandidatesGenerated, len(result.Suggestions))
			writeSuggestions(w, result.Suggestions)
		})
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show an archived analysis session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePage(); err != nil {
			return err
		}
		if flagSessionID == "" {
			return fmt.Errorf("--id is required")
		}

		engine, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer engine.Close()

		record, err := engine.Suggestions.ArchivedSession(cmd.Context(), flagUser, flagPage, flagSessionID)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), record, func(w io.Writer) { writeSession(w, record) })
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&flagAnalysisType, "type", suggestions.AnalysisComprehensive, "Analysis type: comprehensive, conversion, content or engagement")
	sessionCmd.Flags().StringVar(&flagSessionID, "id", "", "Analysis session id")
	rootCmd.AddCommand(analyzeCmd, sessionCmd)
}

func writeSuggestions(w io.Writer, list []models.Suggestion) {
	for i, s := range list {
		fmt.Fprintf(w, "%d. [%s/%s] %s\n", i+1, s.Priority, s.Section(), s.Title)
		fmt.Fprintf(w, "   %s\n", s.Description)
	}
}

func writeSession(w io.Writer, record *archive.SessionRecord) {
	s := record.Session
	fmt.Fprintf(w, "Session %s (%s, %s)\n", s.ID, s.AnalysisType, s.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Model %s, prompt %s, %d+%d tokens\n", s.AIModel, s.PromptVersion, s.PromptTokens, s.CompletionTokens)
	fmt.Fprintf(w, "Candidates %d, kept %d\n", s.CandidatesGenerated, s.SuggestionsGenerated)
	writeSuggestions(w, record.Suggestions)
}
