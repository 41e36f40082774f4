package smarty

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atmb-cli/internal/resilience"
)

func newTestClient(baseURL string) *Client {
	return New(Options{
		BaseURL:        baseURL,
		AuthID:         "test-id",
		AuthToken:      "test-token",
		RequestsPerSec: 1000,
	})
}

func TestVerify_Match(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"metadata":{"rdi":"Residential"},"analysis":{"dpv_cmra":"N"}}]`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Verify(context.Background(), Lookup{
		Street:  "25 Smith St",
		City:    "Airmont",
		State:   "NY",
		ZipCode: "10901",
	})
	require.NoError(t, err)

	assert.True(t, res.Matched)
	assert.Equal(t, "Residential", res.RDI)
	assert.Equal(t, "N", res.CMRA)

	assert.Equal(t, []string{"test-id"}, gotQuery["auth-id"])
	assert.Equal(t, []string{"test-token"}, gotQuery["auth-token"])
	assert.Equal(t, []string{"25 Smith St"}, gotQuery["street"])
	assert.Equal(t, []string{"1"}, gotQuery["candidates"])
	assert.Equal(t, []string{"strict"}, gotQuery["match"])
	// Street-level lookup: no secondary parameter at all.
	_, hasSecondary := gotQuery["secondary"]
	assert.False(t, hasSecondary)
}

func TestVerify_SecondarySentForUnitLevel(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`[{"metadata":{"rdi":"Commercial"},"analysis":{"dpv_cmra":"Y"}}]`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Verify(context.Background(), Lookup{
		Street:    "25 Smith St",
		City:      "Airmont",
		State:     "NY",
		ZipCode:   "10901",
		Secondary: "Apt 4B",
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, []string{"Apt 4B"}, gotQuery["secondary"])
}

func TestVerify_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Verify(context.Background(), Lookup{Street: "nowhere"})
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestVerify_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Verify(context.Background(), Lookup{Street: "x"})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestVerify_UnauthorizedIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Verify(context.Background(), Lookup{Street: "x"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestVerify_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Verify(context.Background(), Lookup{Street: "x"})
	assert.Error(t, err)
}
