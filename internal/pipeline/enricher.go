package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atmb-cli/internal/csvio"
	"github.com/sells-group/atmb-cli/internal/fetcher"
	"github.com/sells-group/atmb-cli/internal/resilience"
	"github.com/sells-group/atmb-cli/internal/scrape"
)

// Enricher visits each listing's detail page and fills in the
// Suite/Apartment column.
type Enricher struct {
	Fetcher *fetcher.Fetcher
	BaseURL string
	Retry   resilience.RetryConfig
}

// DetailedPath returns the output path for an input CSV:
// <name>_detailed.csv next to the input.
func DetailedPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_detailed" + ext
}

// RunFolder enriches every eligible CSV in dir independently. Stage
// outputs (_detailed/_verified files) are skipped. A failure on one file
// is reported and does not abort the others.
func (e *Enricher) RunFolder(ctx context.Context, dir string) (Summary, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return Summary{}, eris.Wrapf(err, "enricher: glob %s", dir)
	}

	var inputs []string
	for _, p := range paths {
		name := filepath.Base(p)
		if strings.Contains(name, "_detailed") || strings.Contains(name, "_verified") {
			continue
		}
		inputs = append(inputs, p)
	}
	if len(inputs) == 0 {
		return Summary{}, eris.Errorf("enricher: no input CSVs in %s", dir)
	}
	zap.L().Info("processing folder", zap.String("dir", dir), zap.Int("files", len(inputs)))

	var total Summary
	var failed []string
	for _, input := range inputs {
		sum, runErr := e.RunFile(ctx, input)
		total.merge(sum)
		if runErr != nil {
			failed = append(failed, filepath.Base(input))
			zap.L().Error("file failed", zap.String("input", input), zap.Error(runErr))
		}
		if ctx.Err() != nil {
			return total, eris.Wrap(ctx.Err(), "enricher: cancelled")
		}
	}

	if len(failed) > 0 {
		return total, eris.Errorf("enricher: %d of %d files failed: %s",
			len(failed), len(inputs), strings.Join(failed, ", "))
	}
	return total, nil
}

// RunFile enriches one CSV. Every input row produces exactly one output
// row; per-row fetch failures leave the suite absent and are counted,
// never fatal to the batch.
func (e *Enricher) RunFile(ctx context.Context, input string) (Summary, error) {
	log := zap.L().With(zap.String("input", filepath.Base(input)))

	t, err := csvio.ReadTable(input)
	if err != nil {
		return Summary{}, err
	}

	outPath := DetailedPath(input)
	outHeader := csvio.WithSuiteColumn(t.Header)

	keys, err := csvio.LoadKeys(outPath)
	if err != nil {
		return Summary{}, err
	}

	w, resumed, err := csvio.OpenAppend(outPath, outHeader)
	if err != nil {
		return Summary{}, err
	}
	defer w.Close() //nolint:errcheck

	if resumed {
		log.Info("resuming into existing output", zap.Int("known_rows", len(keys)))
	}

	var sum Summary
	for _, row := range t.Rows {
		if ctx.Err() != nil {
			return sum, eris.Wrap(ctx.Err(), "enricher: cancelled")
		}

		rec := t.Record(row)
		if keys[rec.Key()] {
			sum.Skipped++
			continue
		}

		// Rows without a detail URL pass through with the suite absent;
		// values already present in the input are kept as-is.
		suite := rec.Suite
		if suite == "" && rec.DetailURL != "" {
			var fetchSum Summary
			suite, fetchSum = e.fetchSuite(ctx, rec.DetailURL)
			sum.merge(fetchSum)
		}

		out := csvio.BuildRow(outHeader, t, row, map[string]string{csvio.ColSuite: suite})
		if err := w.Write(out); err != nil {
			return sum, err
		}
		keys[rec.Key()] = true
		sum.Processed++
	}

	if err := w.Close(); err != nil {
		return sum, err
	}
	log.Info("file complete", sum.Fields()...)
	return sum, nil
}

// fetchSuite fetches the detail page and extracts the suite token.
func (e *Enricher) fetchSuite(ctx context.Context, pageURL string) (string, Summary) {
	cfg := e.Retry
	cfg.OnRetry = resilience.RetryLogger("enricher", "detail")
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*fetcher.Result, error) {
		return e.Fetcher.Get(ctx, pageURL)
	})
	if err != nil {
		zap.L().Warn("detail fetch failed", zap.String("url", pageURL), zap.Error(err))
		return "", Summary{Failed: 1}
	}

	if scrape.IsRedirectMiss(res.FinalURL, pageURL, e.BaseURL) {
		return "", Summary{ParseMisses: 1}
	}

	suite := scrape.ExtractSuite(res.Body)
	if suite == "" {
		return "", Summary{ParseMisses: 1}
	}
	return suite, Summary{}
}
