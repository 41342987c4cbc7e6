// Package cli contains the cobra command tree for impactctl.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hkmcoding/landie-next-sub000/internal/app"
	"github.com/hkmcoding/landie-next-sub000/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagJSON    bool
	flagVerbose bool
	flagUser    string
	flagPage    string
)

var rootCmd = &cobra.Command{
	Use:   "impactctl",
	Short: "Operate the suggestion and impact engine",
	Long: `impactctl runs suggestion analysis and impact measurement against the
engine's databases without going through the HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "User id that owns the page")
	rootCmd.PersistentFlags().StringVar(&flagPage, "page", "", "Landing page id")
}

// loadApp reads configuration and connects to the engine's backends
func loadApp(ctx context.Context) (*app.App, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	logrus.SetLevel(logrus.WarnLevel)
	if flagVerbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func requireUser() error {
	if flagUser == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func requirePage() error {
	if err := requireUser(); err != nil {
		return err
	}
	if flagPage == "" {
		return fmt.Errorf("--page is required")
	}
	return nil
}

// render prints v as JSON when --json is set, otherwise via text
func render(w io.Writer, v any, text func(io.Writer)) error {
	if flagJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
