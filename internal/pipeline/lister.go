package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/atmb-cli/internal/csvio"
	"github.com/sells-group/atmb-cli/internal/fetcher"
	"github.com/sells-group/atmb-cli/internal/model"
	"github.com/sells-group/atmb-cli/internal/resilience"
	"github.com/sells-group/atmb-cli/internal/scrape"
)

// Lister scrapes state listing pages into one CSV per state.
type Lister struct {
	Fetcher     *fetcher.Fetcher
	BaseURL     string
	OutputDir   string
	Retry       resilience.RetryConfig
	Concurrency int
}

// Run processes a validated target: a single state slug, or the all-states
// sentinel which discovers slugs from the index page and fans out with
// bounded concurrency. Per-state failures in all-states mode are reported
// and do not abort sibling states.
func (l *Lister) Run(ctx context.Context, target string) (Summary, error) {
	if target != model.AllStates {
		return l.runState(ctx, target)
	}

	slugs, err := l.discoverStates(ctx)
	if err != nil {
		return Summary{}, err
	}
	zap.L().Info("discovered states", zap.Int("count", len(slugs)))

	concurrency := l.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var total Summary
	var failed []string

	for _, slug := range slugs {
		slug := slug
		g.Go(func() error {
			sum, runErr := l.runState(gCtx, slug)
			mu.Lock()
			defer mu.Unlock()
			total.merge(sum)
			if runErr != nil {
				failed = append(failed, slug)
				zap.L().Error("state failed", zap.String("state", slug), zap.Error(runErr))
			}
			return nil // don't abort sibling states
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return total, eris.Errorf("lister: %d of %d states failed: %s",
			len(failed), len(slugs), strings.Join(failed, ", "))
	}
	return total, nil
}

// discoverStates fetches the index page and extracts every state slug.
func (l *Lister) discoverStates(ctx context.Context) ([]string, error) {
	res, err := resilience.DoVal(ctx, l.retryConfig("index"), func(ctx context.Context) (*fetcher.Result, error) {
		return l.Fetcher.Get(ctx, scrape.IndexURL(l.BaseURL))
	})
	if err != nil {
		return nil, eris.Wrap(err, "lister: fetch state index")
	}

	slugs, err := scrape.ParseStateIndex(res.Body)
	if err != nil {
		return nil, err
	}
	if len(slugs) == 0 {
		return nil, eris.New("lister: no state links found on index page")
	}
	return slugs, nil
}

// runState paginates one state's listings into OutputDir/<slug>.csv,
// appending only listings not already present in the file.
func (l *Lister) runState(ctx context.Context, slug string) (Summary, error) {
	log := zap.L().With(zap.String("state", slug))

	if err := os.MkdirAll(l.OutputDir, 0o755); err != nil {
		return Summary{}, eris.Wrapf(err, "lister: create output dir %s", l.OutputDir)
	}
	outPath := filepath.Join(l.OutputDir, slug+".csv")

	keys, err := csvio.LoadKeys(outPath)
	if err != nil {
		return Summary{}, err
	}

	w, resumed, err := csvio.OpenAppend(outPath, csvio.BaseHeader)
	if err != nil {
		return Summary{}, err
	}
	defer w.Close() //nolint:errcheck

	if resumed {
		log.Info("resuming into existing output", zap.Int("known_rows", len(keys)))
	}

	var sum Summary
	emptyRetried := false
	page := 1
	for {
		res, err := resilience.DoVal(ctx, l.retryConfig(slug), func(ctx context.Context) (*fetcher.Result, error) {
			return l.Fetcher.Get(ctx, scrape.ListingURL(l.BaseURL, slug, page))
		})
		if err != nil {
			// Exhausted retries abort the whole target rather than
			// silently skipping the remaining pages.
			return sum, eris.Wrapf(err, "lister: fetch %s page %d", slug, page)
		}

		parsed, err := scrape.ParseListingPage(res.Body, l.BaseURL)
		if err != nil {
			return sum, err
		}
		sum.ParseMisses += parsed.Skipped

		if len(parsed.Listings) == 0 {
			// A transient empty page must not terminate pagination early;
			// refetch once before treating it as end of results.
			if !emptyRetried {
				emptyRetried = true
				log.Debug("empty page, confirming end of results", zap.Int("page", page))
				continue
			}
			break
		}
		emptyRetried = false

		for _, addr := range parsed.Listings {
			key := addr.Key()
			if keys[key] {
				sum.Skipped++
				continue
			}
			row := []string{addr.Street, addr.City, addr.State, addr.Zip, addr.DetailURL}
			if err := w.Write(row); err != nil {
				return sum, err
			}
			keys[key] = true
			sum.Processed++
		}
		page++
	}

	if err := w.Close(); err != nil {
		return sum, err
	}
	log.Info("state complete", sum.Fields()...)
	return sum, nil
}

func (l *Lister) retryConfig(operation string) resilience.RetryConfig {
	cfg := l.Retry
	cfg.OnRetry = resilience.RetryLogger("lister", operation)
	return cfg
}
