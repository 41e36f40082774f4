package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atmb-cli/internal/csvio"
	"github.com/sells-group/atmb-cli/internal/fetcher"
	"github.com/sells-group/atmb-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func testFetcher() *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{RequestsPerSec: 1000, Timeout: 5 * time.Second})
}

func listingItem(street, city, state, zip, slug string) string {
	return fmt.Sprintf(`<div class="theme-location-item">
<div class="t-addr">%s<br>%s, %s %s</div>
<a class="theme-button" href="/s/%s">Select Plan</a>
</div>`, street, city, state, zip, slug)
}

// listingServer serves listing pages per state; pages beyond the provided
// ones are empty. It records how often each page was requested.
type listingServer struct {
	mu       sync.Mutex
	pages    map[string][]string // slug -> page bodies (page 1 at index 0)
	requests map[string]int      // "slug/page" -> count
	srv      *httptest.Server
}

func newListingServer(pages map[string][]string) *listingServer {
	ls := &listingServer{pages: pages, requests: map[string]int{}}
	ls.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimPrefix(r.URL.Path, "/l/usa/")
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			page, _ = strconv.Atoi(p)
		}

		ls.mu.Lock()
		ls.requests[fmt.Sprintf("%s/%d", slug, page)]++
		bodies := ls.pages[slug]
		ls.mu.Unlock()

		if page <= len(bodies) {
			_, _ = fmt.Fprint(w, "<html><body>"+bodies[page-1]+"</body></html>")
			return
		}
		_, _ = fmt.Fprint(w, "<html><body><p>No locations found.</p></body></html>")
	}))
	return ls
}

func (ls *listingServer) count(slug string, page int) int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.requests[fmt.Sprintf("%s/%d", slug, page)]
}

func TestLister_PaginationTerminatesAfterConfirmedEmptyPage(t *testing.T) {
	ls := newListingServer(map[string][]string{
		"idaho": {
			listingItem("1 Main St", "Boise", "ID", "83702", "boise-1-main-st") +
				listingItem("2 Elm St", "Boise", "ID", "83702", "boise-2-elm-st"),
			listingItem("9 Oak Ave", "Nampa", "ID", "83651", "nampa-9-oak-ave"),
		},
	})
	defer ls.srv.Close()

	lister := &Lister{
		Fetcher:   testFetcher(),
		BaseURL:   ls.srv.URL,
		OutputDir: t.TempDir(),
		Retry:     fastRetry(),
	}

	sum, err := lister.Run(context.Background(), "idaho")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed) // listings from exactly 2 pages

	// The first empty page is refetched once to confirm end of results,
	// and pagination never probes past it.
	assert.Equal(t, 2, ls.count("idaho", 3))
	assert.Equal(t, 0, ls.count("idaho", 4))

	table, err := csvio.ReadTable(filepath.Join(lister.OutputDir, "idaho.csv"))
	require.NoError(t, err)
	assert.Equal(t, csvio.BaseHeader, table.Header)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "1 Main St", table.Col(table.Rows[0], csvio.ColStreet))
}

func TestLister_ResumeSkipsKnownListings(t *testing.T) {
	ls := newListingServer(map[string][]string{
		"idaho": {
			listingItem("1 Main St", "Boise", "ID", "83702", "boise-1-main-st") +
				listingItem("2 Elm St", "Boise", "ID", "83702", "boise-2-elm-st"),
		},
	})
	defer ls.srv.Close()

	lister := &Lister{
		Fetcher:   testFetcher(),
		BaseURL:   ls.srv.URL,
		OutputDir: t.TempDir(),
		Retry:     fastRetry(),
	}

	sum, err := lister.Run(context.Background(), "idaho")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)

	// Second run against the same output file appends nothing.
	sum, err = lister.Run(context.Background(), "idaho")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, 2, sum.Skipped)

	table, err := csvio.ReadTable(filepath.Join(lister.OutputDir, "idaho.csv"))
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestLister_IncompleteListingSkippedNotFatal(t *testing.T) {
	broken := `<div class="theme-location-item"><div class="t-addr">No City Line Rd</div></div>`
	ls := newListingServer(map[string][]string{
		"idaho": {listingItem("1 Main St", "Boise", "ID", "83702", "boise-1-main-st") + broken},
	})
	defer ls.srv.Close()

	lister := &Lister{
		Fetcher:   testFetcher(),
		BaseURL:   ls.srv.URL,
		OutputDir: t.TempDir(),
		Retry:     fastRetry(),
	}

	sum, err := lister.Run(context.Background(), "idaho")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.ParseMisses)
}

func TestLister_ExhaustedRetriesAbortTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	lister := &Lister{
		Fetcher:   testFetcher(),
		BaseURL:   srv.URL,
		OutputDir: t.TempDir(),
		Retry:     fastRetry(),
	}

	_, err := lister.Run(context.Background(), "idaho")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 1")
}

func TestLister_AllStatesFanOut(t *testing.T) {
	ls := newListingServer(map[string][]string{
		"idaho":   {listingItem("1 Main St", "Boise", "ID", "83702", "boise-1-main-st")},
		"wyoming": {listingItem("7 Peak Rd", "Cody", "WY", "82414", "cody-7-peak-rd")},
	})
	defer ls.srv.Close()

	// Extend the handler's routing with an index page.
	mux := http.NewServeMux()
	mux.HandleFunc("/l/usa", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body>
<a class="theme-loc-link" href="/l/usa/idaho">Idaho</a>
<a class="theme-loc-link" href="/l/usa/wyoming">Wyoming</a>
</body></html>`)
	})
	mux.Handle("/", ls.srv.Config.Handler)
	indexed := httptest.NewServer(mux)
	defer indexed.Close()

	outDir := t.TempDir()
	lister := &Lister{
		Fetcher:     testFetcher(),
		BaseURL:     indexed.URL,
		OutputDir:   outDir,
		Retry:       fastRetry(),
		Concurrency: 2,
	}

	sum, err := lister.Run(context.Background(), "all")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)

	for _, slug := range []string{"idaho", "wyoming"} {
		table, err := csvio.ReadTable(filepath.Join(outDir, slug+".csv"))
		require.NoError(t, err, slug)
		assert.Len(t, table.Rows, 1, slug)
	}
}
