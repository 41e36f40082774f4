package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atmb-cli/internal/csvio"
	"github.com/sells-group/atmb-cli/internal/model"
	"github.com/sells-group/atmb-cli/internal/resilience"
	"github.com/sells-group/atmb-cli/pkg/smarty"
)

// Verifier classifies each row's delivery point through the Smarty API and
// fills in the RDI and CMRA columns.
type Verifier struct {
	Client *smarty.Client
	Retry  resilience.RetryConfig
}

// VerifiedPath returns the output path for an input CSV:
// <name>_verified.csv next to the input.
func VerifiedPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_verified" + ext
}

// Run verifies one CSV. The verification level is chosen per row: rows
// carrying a suite value get unit-level verification (secondary sent),
// rows without get street-level. Per-row API failures and non-matches are
// emitted as Unknown/Unknown, never dropped.
func (v *Verifier) Run(ctx context.Context, input string) (Summary, error) {
	log := zap.L().With(zap.String("input", filepath.Base(input)))

	t, err := csvio.ReadTable(input)
	if err != nil {
		return Summary{}, err
	}

	outPath := VerifiedPath(input)
	outHeader := csvio.WithVerifyColumns(t.Header)

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
			return sum, eris.Wrap(ctx.Err(), "verifier: cancelled")
		}

		rec := t.Record(row)
		if keys[rec.Key()] {
			sum.Skipped++
			continue
		}

		rdi, cmra, rowSum := v.verifyRow(ctx, rec)
		sum.merge(rowSum)

		out := csvio.BuildRow(outHeader, t, row, map[string]string{
			csvio.ColRDI:  string(rdi),
			csvio.ColCMRA: string(cmra),
		})
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

// verifyRow calls the API for one record with bounded retries. Exhausted
// retries, no-match, and ambiguous responses all come back Unknown.
func (v *Verifier) verifyRow(ctx context.Context, rec model.Enriched) (model.RDI, model.CMRA, Summary) {
	secondary := strings.TrimSpace(rec.Suite)
	if secondary == "#" {
		// A bare "#" is an empty unit placeholder, not a suite.
		secondary = ""
	}

	cfg := v.Retry
	cfg.OnRetry = resilience.RetryLogger("verifier", "street-address")
	result, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*smarty.Verification, error) {
		return v.Client.Verify(ctx, smarty.Lookup{
			Street:    rec.Street,
			City:      rec.City,
			State:     rec.State,
			ZipCode:   rec.Zip,
			Secondary: secondary,
		})
	})
	if err != nil {
		zap.L().Warn("verification failed",
			zap.String("street", rec.Street),
			zap.String("zip", rec.Zip),
			zap.Error(err),
		)
		return model.RDIUnknown, model.CMRAUnknown, Summary{Failed: 1}
	}

	if !result.Matched {
		return model.RDIUnknown, model.CMRAUnknown, Summary{ParseMisses: 1}
	}
	return model.ParseRDI(result.RDI), model.ParseCMRA(result.CMRA), Summary{}
}
