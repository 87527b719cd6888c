package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abiiranathan/pdfmatch/alg"
	"github.com/abiiranathan/pdfmatch/chat"
	"github.com/abiiranathan/pdfmatch/routes"
	"github.com/abiiranathan/pdfmatch/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	text  string
	rects map[string][]alg.Rect
}

func (p *fakePage) Text() string                        { return p.text }
func (p *fakePage) SearchFor(needle string) []alg.Rect { return p.rects[needle] }
func (p *fakePage) Close()                              {}

func (p *fakePage) Render(output string, outlines []alg.Rect) error {
	return os.WriteFile(output, []byte("\x89PNG fake"), 0o644)
}

type fakeDocument struct {
	pages []*fakePage
}

func (d *fakeDocument) NumPages() int { return len(d.pages) }
func (d *fakeDocument) Close()        {}

func (d *fakeDocument) LoadPage(i int) (search.Page, error) {
	return d.pages[i], nil
}

type fakeAsker struct {
	result chat.Result
	text   string
	base   string
}

func (a *fakeAsker) Ask(ctx context.Context, text, base string) chat.Result {
	a.text, a.base = text, base
	res := a.result
	res.OriginalText = text
	return res
}

type fakeFilings struct {
	text string
	err  error
}

func (f *fakeFilings) AnnualReportText(ctx context.Context, cik string, year int) (string, error) {
	return f.text, f.err
}

type fixture struct {
	mux     *http.ServeMux
	static  string
	doc     *fakeDocument
	asker   *fakeAsker
	filings *fakeFilings
	openErr error
}

func newFixture(t *testing.T, pages ...*fakePage) *fixture {
	t.Helper()

	f := &fixture{
		mux:     http.NewServeMux(),
		static:  t.TempDir(),
		doc:     &fakeDocument{pages: pages},
		asker:   &fakeAsker{result: chat.Result{Response: "{2024:6.11}", Length: 42}},
		filings: &fakeFilings{},
	}

	tmpl := template.Must(template.New("index.html").Parse(`<form action="/search"></form>`))
	svc := &routes.Services{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Open: func(path string) (routes.OpenedDocument, error) {
			if f.openErr != nil {
				return nil, f.openErr
			}
			return f.doc, nil
		},
		Chat:           f.asker,
		Filings:        f.filings,
		StaticDir:      f.static,
		FilingYear:     2024,
		Workers:        2,
		MaxUploadBytes: 1 << 20,
	}
	routes.SetupRoutes(f.mux, tmpl, svc)
	return f
}

func page(text string) *fakePage {
	return &fakePage{text: text, rects: map[string][]alg.Rect{}}
}

// post sends a multipart search request. An empty filename sends no file.
func (f *fixture) post(t *testing.T, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/search", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSearchValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fields  map[string]string
		file    string
		content string
		status  int
		message string
	}{
		{name: "invalid pattern", fields: map[string]string{"pattern": "("}, file: "a.pdf", message: "invalid pattern"},
		{name: "missing pattern", fields: map[string]string{}, file: "a.pdf", message: "pattern is required"},
		{name: "negative before", fields: map[string]string{"pattern": "x", "before": "-1"}, file: "a.pdf", message: "before must not be negative"},
		{name: "non integer after", fields: map[string]string{"pattern": "x", "after": "ten"}, file: "a.pdf", message: "after must be an integer"},
		{name: "no file and no cik", fields: map[string]string{"pattern": "x"}, message: "file is required"},
		{
			name:    "upload too large",
			fields:  map[string]string{"pattern": "x"},
			file:    "big.pdf",
			content: strings.Repeat("x", 2<<20),
			status:  http.StatusRequestEntityTooLarge,
			message: "upload exceeds 1048576 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			content, status := tt.content, tt.status
			if content == "" {
				content = "%PDF"
			}
			if status == 0 {
				status = http.StatusBadRequest
			}

			f := newFixture(t, page("x"))
			rec := f.post(t, tt.file, content, tt.fields)
			assert.Equal(t, status, rec.Code)
			assert.Contains(t, decode(t, rec)["message"], tt.message)
		})
	}
}

func TestSearchPDF(t *testing.T) {
	t.Parallel()

	t.Run("text output counts every page", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, page("EPS 1.10 and EPS 2.20"), page("EPS 3.30"))
		rec := f.post(t, "report.pdf", "%PDF", map[string]string{
			"pattern": `EPS \d\.\d\d`, "output_type": "text", "before": "0", "after": "0",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, 3.0, out["total_hits"])
		assert.Equal(t, map[string]any{"page": 1.0, "text": "EPS 1.10"}, out["first_match"])
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, page("one"), page("two"), page("three"))
		rec := f.post(t, "report.pdf", "%PDF", map[string]string{"pattern": `\d+`})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"message": "No matches found"}, decode(t, rec))

		entries, err := os.ReadDir(f.static)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("png redirects to the highlighted page", func(t *testing.T) {
		t.Parallel()

		p := page("Revenue grew 12% in Q4.")
		p.rects["12%"] = []alg.Rect{{X0: 90, Y0: 100, X1: 110, Y1: 112}}
		f := newFixture(t, page("cover"), p)

		rec := f.post(t, "annual report.pdf", "%PDF", map[string]string{"pattern": `\d+%`})
		require.Equal(t, http.StatusFound, rec.Code)

		location := rec.Header().Get("Location")
		assert.True(t, strings.HasPrefix(location, "/static/annual_report-"), location)
		assert.True(t, strings.HasSuffix(location, ".png"), location)

		get := httptest.NewRecorder()
		f.mux.ServeHTTP(get, httptest.NewRequest(http.MethodGet, location, nil))
		assert.Equal(t, http.StatusOK, get.Code)
		assert.Contains(t, get.Body.String(), "PNG")
	})

	t.Run("png when the match cannot be located", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, page("Revenue grew 12% in Q4."))
		rec := f.post(t, "report.pdf", "%PDF", map[string]string{"pattern": `\d+%`, "before": "5", "after": "5"})

		require.Equal(t, http.StatusOK, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, "Match could not be located on the page", out["message"])
		assert.Equal(t, 1.0, out["total_hits"])
		assert.Equal(t, map[string]any{"page": 1.0, "text": "grew 12% in Q"}, out["first_match"])
	})

	t.Run("completion output", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, page("Basic EPS 6.11"))
		rec := f.post(t, "report.pdf", "%PDF", map[string]string{
			"pattern": `EPS`, "output_type": "ai", "before": "6", "after": "5", "base": "Extract: ",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Basic EPS 6.11", f.asker.text)
		assert.Equal(t, "Extract: ", f.asker.base)

		out := decode(t, rec)
		assert.Equal(t, "Basic EPS 6.11", out["original_text"])
		assert.Equal(t, "{2024:6.11}", out["response"])
		assert.Equal(t, 42.0, out["length"])
		assert.NotContains(t, out, "error")
	})

	t.Run("completion failure is a well formed object", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, page("Basic EPS 6.11"))
		f.asker.result = chat.Result{Length: 10, Error: "timeout"}
		rec := f.post(t, "report.pdf", "%PDF", map[string]string{"pattern": `EPS`, "output_type": "ai"})

		require.Equal(t, http.StatusOK, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, "timeout", out["error"])
		assert.Equal(t, "", out["response"])
	})

	t.Run("unreadable document", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.openErr = errors.New("not a pdf")
		rec := f.post(t, "report.pdf", "garbage", map[string]string{"pattern": `x`})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSearchPlainText(t *testing.T) {
	t.Parallel()

	t.Run("text output", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.post(t, "notes.txt", "<p>Revenue grew 12% in Q4.</p><p>Margin 40%</p>", map[string]string{
			"pattern": `\d+%`, "output_type": "text", "before": "5", "after": "5",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, 2.0, out["total_hits"])
		assert.Equal(t, map[string]any{"text": "grew 12% in Q"}, out["first_match"])
	})

	t.Run("png output falls back to completion", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.post(t, "notes.txt", "EPS 6.11", map[string]string{"pattern": `EPS`})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "EPS 6.11", f.asker.text)
	})

	t.Run("invalid utf-8 is dropped", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.post(t, "notes.txt", "caf\xe9 revenue 12% grew", map[string]string{
			"pattern": `\d+%`, "output_type": "text", "before": "12", "after": "0",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, map[string]any{"text": "caf revenue 12%"}, out["first_match"])
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.post(t, "notes.txt", "nothing", map[string]string{"pattern": `\d`, "output_type": "text"})
		assert.Equal(t, map[string]any{"message": "No matches found"}, decode(t, rec))
	})
}

func TestSearchFiling(t *testing.T) {
	t.Parallel()

	t.Run("searches the filing text", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.filings.text = "Basic earnings per share $6.11 $6.16"
		rec := f.post(t, "", "", map[string]string{
			"pattern": `\$\d\.\d\d`, "cik": "320193", "output_type": "text", "before": "0", "after": "0",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, 2.0, out["total_hits"])
		assert.Equal(t, map[string]any{"text": "$6.11"}, out["first_match"])
	})

	t.Run("malformed cik", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.filings.err = fmt.Errorf("%w: CIK \"abc\" must be 1 to 10 digits", alg.ErrInvalidParameter)
		rec := f.post(t, "", "", map[string]string{"pattern": `x`, "cik": "abc"})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["message"], "must be 1 to 10 digits")
	})

	t.Run("retrieval failure", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.filings.err = errors.New("HTTP 404")
		rec := f.post(t, "", "", map[string]string{"pattern": `x`, "cik": "1"})

		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "HTTP 404", decode(t, rec)["error"])
	})
}

func TestHome(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/search"`)
}

func TestArtifactName(t *testing.T) {
	t.Parallel()

	a := routes.ArtifactName("../../etc/10-K report.pdf")
	b := routes.ArtifactName("../../etc/10-K report.pdf")
	assert.NotEqual(t, a, b)
	assert.Equal(t, filepath.Base(a), a)
	assert.True(t, strings.HasPrefix(a, "10-K_report-"), a)
	assert.Regexp(t, `^10-K_report-[0-9a-f]{8}\.png$`, a)

	assert.Regexp(t, `^page-[0-9a-f]{8}\.png$`, routes.ArtifactName(".pdf"))
}

func TestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := routes.Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Contains(t, buf.String(), "path=/x")
	assert.Contains(t, buf.String(), "status=202")
	assert.Contains(t, buf.String(), "latency=")
}
