package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/atmb-cli/internal/fetcher"
	"github.com/sells-group/atmb-cli/internal/model"
	"github.com/sells-group/atmb-cli/internal/pipeline"
	"github.com/sells-group/atmb-cli/internal/resilience"
)

var listInput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Scrape address listings for a state (or all states)",
	Long: `Scrape the mailbox directory's listing pages for one state, or every
state with --input all, writing one CSV per state under the output
directory. Re-running against an existing output file appends only
listings not already present.

Examples:
  atmb-cli list --input new-york
  atmb-cli list --input all`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		target, err := model.ValidateTarget(listInput)
		if err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "list"))
		log.Info("starting lister",
			zap.String("target", target),
			zap.String("output_dir", cfg.Lister.OutputDir),
		)

		lister := &pipeline.Lister{
			Fetcher:     siteFetcher(),
			BaseURL:     cfg.Site.BaseURL,
			OutputDir:   cfg.Lister.OutputDir,
			Retry:       retryConfig(),
			Concurrency: cfg.Lister.Concurrency,
		}

		sum, err := lister.Run(ctx, target)
		log.Info("lister complete", sum.Fields()...)
		if err != nil {
			return eris.Wrap(err, "list")
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listInput, "input", "", "state slug (e.g. new-york) or 'all' for every state")
	_ = listCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(listCmd)
}

// siteFetcher builds the directory-site HTTP fetcher from config.
func siteFetcher() *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		UserAgent:      cfg.Site.UserAgent,
		Timeout:        time.Duration(cfg.Site.TimeoutSecs) * time.Second,
		RequestsPerSec: cfg.Site.RequestsPerSec,
	})
}

// retryConfig builds the shared retry policy from config.
func retryConfig() resilience.RetryConfig {
	return resilience.FromConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
	)
}
