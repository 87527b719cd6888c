// Package edgar fetches company filings from SEC EDGAR.
package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abiiranathan/pdfmatch/alg"
	"github.com/abiiranathan/pdfmatch/htmltext"
)

const (
	DefaultSubmissionsURL = "https://data.sec.gov/submissions"
	DefaultArchivesURL    = "https://www.sec.gov/Archives/edgar/data"

	// SEC asks automated clients to identify themselves.
	DefaultUserAgent = "pdfmatch agent@example.com"

	DefaultTimeout = 30 * time.Second

	FormAnnualReport = "10-K"
)

var ErrFilingNotFound = errors.New("filing not found")

// Filing identifies one document of a filing.
type Filing struct {
	CIK             string
	Form            string
	AccessionNumber string
	FilingDate      string
	PrimaryDocument string
}

type submissions struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// Client talks to the EDGAR submissions API and the filing archives.
type Client struct {
	client         *http.Client
	userAgent      string
	submissionsURL string
	archivesURL    string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithBaseURLs overrides the submissions and archive endpoints.
func WithBaseURLs(submissionsURL, archivesURL string) Option {
	return func(cl *Client) {
		cl.submissionsURL = strings.TrimSuffix(submissionsURL, "/")
		cl.archivesURL = strings.TrimSuffix(archivesURL, "/")
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		client:         &http.Client{Timeout: DefaultTimeout},
		userAgent:      DefaultUserAgent,
		submissionsURL: DefaultSubmissionsURL,
		archivesURL:    DefaultArchivesURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindAnnualReport returns the 10-K of cik filed during year.
// When several qualify, the last one listed wins.
func (c *Client) FindAnnualReport(ctx context.Context, cik string, year int) (Filing, error) {
	cik = strings.TrimSpace(cik)
	if !ValidCIK(cik) {
		return Filing{}, fmt.Errorf("%w: CIK %q must be 1 to 10 digits", alg.ErrInvalidParameter, cik)
	}

	url := fmt.Sprintf("%s/CIK%s.json", c.submissionsURL, padCIK(cik))
	body, err := c.get(ctx, url)
	if err != nil {
		return Filing{}, fmt.Errorf("unable to fetch submissions: %w", err)
	}

	var resp submissions
	if err := json.Unmarshal(body, &resp); err != nil {
		return Filing{}, fmt.Errorf("unable to parse submissions: %w", err)
	}

	recent := resp.Filings.Recent
	prefix := strconv.Itoa(year)

	var filing Filing
	found := false
	for i, form := range recent.Form {
		if form != FormAnnualReport {
			continue
		}
		if i >= len(recent.FilingDate) || i >= len(recent.AccessionNumber) || i >= len(recent.PrimaryDocument) {
			break
		}
		if !strings.HasPrefix(recent.FilingDate[i], prefix) {
			continue
		}

		filing = Filing{
			CIK:             cik,
			Form:            form,
			AccessionNumber: recent.AccessionNumber[i],
			FilingDate:      recent.FilingDate[i],
			PrimaryDocument: recent.PrimaryDocument[i],
		}
		found = true
	}

	if !found {
		return Filing{}, fmt.Errorf("%w: no %s for CIK %s filed in %d", ErrFilingNotFound, FormAnnualReport, cik, year)
	}
	return filing, nil
}

// DocumentURL is the archive location of the filing's primary document.
func (c *Client) DocumentURL(f Filing) string {
	accession := strings.ReplaceAll(f.AccessionNumber, "-", "")
	return fmt.Sprintf("%s/%s/%s/%s", c.archivesURL, f.CIK, accession, f.PrimaryDocument)
}

// FetchText downloads the primary document of f and returns its visible text.
func (c *Client) FetchText(ctx context.Context, f Filing) (string, error) {
	body, err := c.get(ctx, c.DocumentURL(f))
	if err != nil {
		return "", fmt.Errorf("unable to fetch filing document: %w", err)
	}
	return htmltext.Clean(string(body)), nil
}

// AnnualReportText returns the text of the 10-K that cik filed during year.
func (c *Client) AnnualReportText(ctx context.Context, cik string, year int) (string, error) {
	f, err := c.FindAnnualReport(ctx, cik, year)
	if err != nil {
		return "", err
	}
	return c.FetchText(ctx, f)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// ValidCIK reports whether cik is a central index key of 1 to 10 digits.
func ValidCIK(cik string) bool {
	if cik == "" || len(cik) > 10 {
		return false
	}
	for _, r := range cik {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// padCIK left-pads a numeric CIK to the ten digits the submissions API expects.
func padCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
