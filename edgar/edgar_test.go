package edgar_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/abiiranathan/pdfmatch/alg"
	"github.com/abiiranathan/pdfmatch/edgar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const submissionsJSON = `{
  "cik": "320193",
  "name": "Apple Inc.",
  "filings": {"recent": {
    "accessionNumber": ["0000320193-25-000001", "0000320193-24-000123", "0000320193-24-000100", "0000320193-23-000106"],
    "filingDate":      ["2025-01-31",           "2024-11-01",           "2024-02-02",           "2023-11-03"],
    "form":            ["10-Q",                 "10-K",                 "10-K",                 "10-K"],
    "primaryDocument": ["q1.htm",               "aapl-20240928.htm",    "amend.htm",            "aapl-20230930.htm"]
  }}
}`

type agents struct {
	mu   sync.Mutex
	seen []string
}

func (a *agents) add(ua string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, ua)
}

func (a *agents) list() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.seen...)
}

func newServer(t *testing.T) (*httptest.Server, *agents) {
	t.Helper()

	seen := &agents{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(submissionsJSON))
	})
	mux.HandleFunc("GET /archives/320193/000032019324000100/amend.htm", func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html><body><script>x()</script><p>Basic EPS</p><p>$6.11</p></body></html>"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, seen
}

func TestFindAnnualReport(t *testing.T) {
	server, seen := newServer(t)
	client := edgar.NewClient(
		edgar.WithBaseURLs(server.URL+"/submissions", server.URL+"/archives"),
		edgar.WithUserAgent("tests tests@example.com"),
	)

	t.Run("last listed filing of the year wins", func(t *testing.T) {
		f, err := client.FindAnnualReport(context.Background(), "320193", 2024)
		require.NoError(t, err)
		assert.Equal(t, "0000320193-24-000100", f.AccessionNumber)
		assert.Equal(t, "amend.htm", f.PrimaryDocument)
		assert.Equal(t, server.URL+"/archives/320193/000032019324000100/amend.htm", client.DocumentURL(f))
	})

	t.Run("no filing that year", func(t *testing.T) {
		_, err := client.FindAnnualReport(context.Background(), "320193", 2019)
		assert.ErrorIs(t, err, edgar.ErrFilingNotFound)
	})

	t.Run("unknown company", func(t *testing.T) {
		_, err := client.FindAnnualReport(context.Background(), "1", 2024)
		assert.ErrorContains(t, err, "HTTP 404")
	})

	assert.Contains(t, seen.list(), "tests tests@example.com")
}

func TestFindAnnualReportRejectsMalformedCIK(t *testing.T) {
	server, seen := newServer(t)
	client := edgar.NewClient(edgar.WithBaseURLs(server.URL+"/submissions", server.URL+"/archives"))

	for _, cik := range []string{"", "abc", "320193/../../x", "12345678901", "32 0193"} {
		_, err := client.FindAnnualReport(context.Background(), cik, 2024)
		assert.ErrorIs(t, err, alg.ErrInvalidParameter, cik)
	}
	assert.Empty(t, seen.list())

	assert.True(t, edgar.ValidCIK("320193"))
	assert.True(t, edgar.ValidCIK("0000320193"))
}

func TestAnnualReportText(t *testing.T) {
	server, _ := newServer(t)
	client := edgar.NewClient(edgar.WithBaseURLs(server.URL+"/submissions/", server.URL+"/archives/"))

	text, err := client.AnnualReportText(context.Background(), "320193", 2024)
	require.NoError(t, err)
	assert.Equal(t, "Basic EPS $6.11", text)
}
