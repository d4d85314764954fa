package published

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestdash/internal/core"
	"harvestdash/internal/refresh"
)

var tabsCSV = map[string]string{
	"Sales":   "\ufeffCategory,Revenue\nRetail,\"₹1,000\"\nWholesale,\"₹2,500\"\n",
	"Batches": "BatchID,Expected Yield,Notes\nB1,500\nB2,700,late\n,,\n",
}

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.Equal(t, "out:csv", r.URL.Query().Get("tqx"))
		body, ok := tabsCSV[r.URL.Query().Get("sheet")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing url", Config{Tabs: []string{"A"}}, "missing PUBLISHED_BASE_URL"},
		{"relative url", Config{BaseURL: "/export", Tabs: []string{"A"}}, "invalid PUBLISHED_BASE_URL"},
		{"no tabs", Config{BaseURL: "https://example.com/x", Tabs: []string{" "}}, "missing PUBLISHED_SHEETS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFetch(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	c, err := New(Config{
		BaseURL: srv.URL + "/gviz/tq?tqx=out:csv",
		Tabs:    []string{"Sales", "Batches"},
	}, WithHTTPClient(srv.Client()), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, SourceName, snap.Source)
	assert.Equal(t, now, snap.FetchedAt)
	require.Len(t, snap.Sheets, 2)

	sales := snap.Sheets[0]
	assert.Equal(t, "Sales", sales.Name)
	assert.Equal(t, []string{"Category", "Revenue"}, sales.Headers)
	assert.Equal(t, "₹1,000", sales.Rows[0]["Revenue"])

	batches := snap.Sheets[1]
	assert.Equal(t, "Batches", batches.Name)
	require.Len(t, batches.Rows, 2, "blank row dropped")
	assert.Equal(t, "", batches.Rows[0]["Notes"])
	assert.Equal(t, "late", batches.Rows[1]["Notes"])
}

func TestFetch_MissingTabIsPermanent(t *testing.T) {
	srv := newServer(t, nil)
	c, err := New(Config{
		BaseURL: srv.URL + "/gviz/tq?tqx=out:csv",
		Tabs:    []string{"Sales", "Nope"},
	}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tab "Nope"`)
	assert.False(t, refresh.IsRetryable(err))
}

func TestFetch_HTMLIsNotPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>sign in</html>"))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Tabs: []string{"Sales"}}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	require.Error(t, err)
	assert.False(t, refresh.IsRetryable(err))
}

func TestFetch_ServerErrorRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Tabs: []string{"Sales"}}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, refresh.IsRetryable(err))
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestParseCSV_Empty(t *testing.T) {
	sh, err := ParseCSV("Empty", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, sh.Headers)
	assert.Empty(t, sh.Rows)
}
