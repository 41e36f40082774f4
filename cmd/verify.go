package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/atmb-cli/internal/config"
	"github.com/sells-group/atmb-cli/internal/pipeline"
	"github.com/sells-group/atmb-cli/pkg/smarty"
)

var verifyInput string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify delivery classification via the Smarty API",
	Long: `Verify each row's address against the Smarty US Street API and write
RDI (Residential/Commercial) and CMRA (Yes/No) columns to
<name>_verified.csv. Rows carrying a Suite/Apartment value are verified
at unit level, the rest at street level. Credentials are read from the
configured auth_id=/auth_token= file before any API call.

Example:
  atmb-cli verify --input Public/new-york_detailed.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Fail fast on credentials, before opening the input.
		creds, err := config.LoadCredentials(cfg.Smarty.CredentialsFile)
		if err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "verify"))
		log.Info("starting verifier", zap.String("input", verifyInput))

		verifier := &pipeline.Verifier{
			Client: smarty.New(smarty.Options{
				BaseURL:        cfg.Smarty.BaseURL,
				AuthID:         creds.AuthID,
				AuthToken:      creds.AuthToken,
				Timeout:        time.Duration(cfg.Smarty.TimeoutSecs) * time.Second,
				RequestsPerSec: cfg.Smarty.RequestsPerSec,
			}),
			Retry: retryConfig(),
		}

		sum, err := verifier.Run(ctx, verifyInput)
		log.Info("verify complete", sum.Fields()...)
		if err != nil {
			return eris.Wrap(err, "verify")
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyInput, "input", "", "path to the input CSV (basic or detailed)")
	_ = verifyCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(verifyCmd)
}
