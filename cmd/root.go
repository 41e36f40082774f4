package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/atmb-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "atmb-cli",
	Short: "Mailbox address scraping and verification pipeline",
	Long:  "Scrapes mailbox-provider address listings by state, enriches them with suite/unit numbers from detail pages, and verifies residential/CMRA classification via the Smarty US Street API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
