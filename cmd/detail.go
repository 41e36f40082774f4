package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/atmb-cli/internal/pipeline"
)

var (
	detailInput  string
	detailFolder string
)

var detailCmd = &cobra.Command{
	Use:   "detail",
	Short: "Enrich listing CSVs with suite/unit numbers",
	Long: `Visit each listing's detail page and extract the suite/unit number
into a Suite/Apartment column, writing <name>_detailed.csv per input.
Rows already present in the output file are not re-fetched.

Examples:
  atmb-cli detail --input Public/new-york.csv
  atmb-cli detail --folder Public`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if (detailInput == "") == (detailFolder == "") {
			return eris.New("detail: exactly one of --input or --folder is required")
		}

		log := zap.L().With(zap.String("command", "detail"))

		enricher := &pipeline.Enricher{
			Fetcher: siteFetcher(),
			BaseURL: cfg.Site.BaseURL,
			Retry:   retryConfig(),
		}

		var (
			sum pipeline.Summary
			err error
		)
		if detailFolder != "" {
			sum, err = enricher.RunFolder(ctx, detailFolder)
		} else {
			sum, err = enricher.RunFile(ctx, detailInput)
		}

		log.Info("detail complete", sum.Fields()...)
		if err != nil {
			return eris.Wrap(err, "detail")
		}
		return nil
	},
}

func init() {
	detailCmd.Flags().StringVar(&detailInput, "input", "", "path to one input CSV")
	detailCmd.Flags().StringVar(&detailFolder, "folder", "", "folder of input CSVs to process independently")
	rootCmd.AddCommand(detailCmd)
}
