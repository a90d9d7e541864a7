package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"beacon/internal/app"
	"beacon/internal/config"
	"beacon/internal/logging"
)

var (
	configPath  string
	dryRun      bool
	testScraper bool
	testLLM     bool
	testDiscord bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Personal news filter with LLM relevance scoring",
	Long: `Beacon scrapes configured news sources, filters out already-seen articles,
scores new ones against your preference profile with an LLM, and sends a
Discord notification for every article clearing the relevance threshold.

Each invocation is a single run; schedule repetition externally (cron, systemd
timers). Articles are processed and notified at most once, ever.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger := logging.New(cfg.Logging.Level, verbose)

		application, err := app.New(cfg, logger, dryRun)
		if err != nil {
			logger.Error("initialization failed", "error", err)
			return err
		}
		defer application.Close()

		ctx := context.Background()

		switch {
		case testScraper:
			return application.TestScraper(ctx)
		case testLLM:
			return application.TestLLM(ctx)
		case testDiscord:
			return application.TestDiscord(ctx)
		}

		application.Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "path to configuration file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "run without sending notifications")
	rootCmd.Flags().BoolVar(&testScraper, "test-scraper", false, "test the first configured source and exit")
	rootCmd.Flags().BoolVar(&testLLM, "test-llm", false, "test the language-model collaborator and exit")
	rootCmd.Flags().BoolVar(&testDiscord, "test-discord", false, "test the Discord webhook and exit")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
