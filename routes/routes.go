package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/abiiranathan/pdfmatch/alg"
	"github.com/abiiranathan/pdfmatch/chat"
	"github.com/abiiranathan/pdfmatch/htmltext"
	"github.com/abiiranathan/pdfmatch/metrics"
	"github.com/abiiranathan/pdfmatch/search"
	"github.com/google/uuid"
)

// Output types accepted by POST /search. Any other value asks the
// completion API about the match.
const (
	OutputPNG  = "png"
	OutputText = "text"
)

// Document sources, used as metric labels.
const (
	sourcePDF   = "pdf"
	sourceText  = "text"
	sourceEdgar = "edgar"
)

// Asker answers a prompt about matched text.
type Asker interface {
	Ask(ctx context.Context, text, base string) chat.Result
}

// FilingSource returns the text of a company's annual report.
type FilingSource interface {
	AnnualReportText(ctx context.Context, cik string, year int) (string, error)
}

// OpenedDocument is a document that must be closed after use.
type OpenedDocument interface {
	search.Document
	Close()
}

// Opener opens the PDF at path.
type Opener func(path string) (OpenedDocument, error)

// Services holds the collaborators of the search handler.
type Services struct {
	Logger  *slog.Logger
	Open    Opener
	Chat    Asker
	Filings FilingSource

	// Directory served under /static/ where page images are written.
	StaticDir string

	FilingYear     int
	Workers        int
	MaxUploadBytes int64
}

type searchRequest struct {
	re         *regexp.Regexp
	before     int
	after      int
	outputType string
	base       string
	cik        string
}

func Home(tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := tmpl.ExecuteTemplate(w, "index.html", nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func Search(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, svc.MaxUploadBytes)
		}

		if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
			return
		}

		req, err := parseSearchRequest(r)
		if err != nil {
			writeError(w, statusOf(err), err.Error())
			return
		}

		if req.cik != "" {
			text, err := svc.Filings.AnnualReportText(r.Context(), req.cik, svc.FilingYear)
			if err != nil {
				metrics.ObserveSearch(sourceEdgar, metrics.OutcomeError)
				if errors.Is(err, alg.ErrInvalidParameter) {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				svc.Logger.Error("filing retrieval failed", "cik", req.cik, "year", svc.FilingYear, "err", err)
				writeJSON(w, http.StatusBadGateway, map[string]string{
					"message": "Unable to retrieve filing",
					"error":   err.Error(),
				})
				return
			}
			svc.searchText(w, r, req, sourceEdgar, text)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		path, err := saveUpload(file, header)
		if err != nil {
			svc.Logger.Error("unable to store upload", "file", header.Filename, "err", err)
			writeError(w, http.StatusInternalServerError, "Unable to store uploaded file")
			return
		}
		defer os.Remove(path)

		if search.KindOf(header.Filename) == search.KindText {
			data, err := os.ReadFile(path)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Unable to read uploaded file")
				return
			}
			svc.searchText(w, r, req, sourceText, htmltext.Clean(string(data)))
			return
		}

		svc.searchPDF(w, r, req, path, header.Filename)
	}
}

func (svc *Services) searchText(w http.ResponseWriter, r *http.Request, req searchRequest, source, text string) {
	res, err := search.SearchText(text, req.re, req.before, req.after)
	if err != nil {
		metrics.ObserveSearch(source, metrics.OutcomeError)
		writeError(w, statusOf(err), err.Error())
		return
	}

	svc.Logger.Info("search", "source", source, "chars", len(text), "total_hits", res.TotalHits)

	if !res.Found() {
		metrics.ObserveSearch(source, metrics.OutcomeNoMatch)
		writeNoMatches(w)
		return
	}

	if req.outputType == OutputText {
		metrics.ObserveSearch(source, metrics.OutcomeText)
		writeJSON(w, http.StatusOK, matchResponse(res))
		return
	}

	metrics.ObserveSearch(source, metrics.OutcomeCompletion)
	writeJSON(w, http.StatusOK, svc.Chat.Ask(r.Context(), res.FirstMatch.Text, req.base))
}

func (svc *Services) searchPDF(w http.ResponseWriter, r *http.Request, req searchRequest, path, filename string) {
	doc, err := svc.Open(path)
	if err != nil {
		svc.Logger.Warn("unable to open document", "file", filename, "err", err)
		metrics.ObserveSearch(sourcePDF, metrics.OutcomeError)
		writeError(w, http.StatusBadRequest, "Unable to open document")
		return
	}
	defer doc.Close()

	opts := search.Options{
		Before:  req.before,
		After:   req.after,
		Workers: svc.Workers,
	}

	var imageName string
	if req.outputType == OutputPNG {
		imageName = ArtifactName(filename)
		opts.Output = filepath.Join(svc.StaticDir, imageName)
	}

	res, err := search.SearchDocument(r.Context(), doc, req.re, opts)
	if err != nil {
		svc.Logger.Error("search failed", "file", filename, "err", err)
		metrics.ObserveSearch(sourcePDF, metrics.OutcomeError)
		writeError(w, statusOf(err), err.Error())
		return
	}

	svc.Logger.Info("search", "source", sourcePDF, "file", filename,
		"pages", doc.NumPages(), "total_hits", res.TotalHits, "rendered", res.Rendered)

	if !res.Found() {
		metrics.ObserveSearch(sourcePDF, metrics.OutcomeNoMatch)
		writeNoMatches(w)
		return
	}

	switch req.outputType {
	case OutputPNG:
		if !res.Rendered {
			metrics.ObserveSearch(sourcePDF, metrics.OutcomeNotLocated)
			body := matchResponse(res)
			body["message"] = "Match could not be located on the page"
			writeJSON(w, http.StatusOK, body)
			return
		}
		metrics.ObserveSearch(sourcePDF, metrics.OutcomeImage)
		http.Redirect(w, r, "/static/"+url.PathEscape(imageName), http.StatusFound)
	case OutputText:
		metrics.ObserveSearch(sourcePDF, metrics.OutcomeText)
		writeJSON(w, http.StatusOK, matchResponse(res))
	default:
		metrics.ObserveSearch(sourcePDF, metrics.OutcomeCompletion)
		writeJSON(w, http.StatusOK, svc.Chat.Ask(r.Context(), res.FirstMatch.Text, req.base))
	}
}

func parseSearchRequest(r *http.Request) (searchRequest, error) {
	pattern := r.FormValue("pattern")
	if pattern == "" {
		return searchRequest{}, fmt.Errorf("%w: pattern is required", alg.ErrInvalidParameter)
	}

	re, err := alg.Compile(pattern)
	if err != nil {
		return searchRequest{}, err
	}

	before, err := intField(r, "before", alg.DefaultContextSize)
	if err != nil {
		return searchRequest{}, err
	}

	after, err := intField(r, "after", alg.DefaultContextSize)
	if err != nil {
		return searchRequest{}, err
	}

	outputType := r.FormValue("output_type")
	if outputType == "" {
		outputType = OutputPNG
	}

	return searchRequest{
		re:         re,
		before:     before,
		after:      after,
		outputType: outputType,
		base:       r.FormValue("base"),
		cik:        strings.TrimSpace(r.FormValue("cik")),
	}, nil
}

func intField(r *http.Request, name string, def int) (int, error) {
	value := strings.TrimSpace(r.FormValue(name))
	if value == "" {
		return def, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", alg.ErrInvalidParameter, name)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", alg.ErrInvalidParameter, name)
	}
	return n, nil
}

// saveUpload copies the upload into a temporary file and returns its path.
func saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	tmp, err := os.CreateTemp("", "pdfmatch-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactName derives the image name for an uploaded file. A random
// suffix keeps concurrent uploads of the same file name apart.
func ArtifactName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "page"
	}
	return fmt.Sprintf("%s-%s.png", base, uuid.NewString()[:8])
}

func matchResponse(res search.Result) map[string]any {
	return map[string]any{
		"first_match": res.FirstMatch,
		"total_hits":  res.TotalHits,
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, alg.ErrInvalidPattern), errors.Is(err, alg.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeNoMatches(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "No matches found"})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
