package search

import (
	"context"
	"fmt"
	"regexp"

	"github.com/abiiranathan/pdfmatch/alg"
)

// RectLocator finds where a literal string is drawn on a rendered page.
// An empty result means the text could not be located visually.
type RectLocator interface {
	SearchFor(needle string) []alg.Rect
}

// Page is a single page of a paged document.
type Page interface {
	RectLocator

	// Text returns the plain text of the page.
	Text() string

	// Render rasterizes the page to a PNG at output with each of outlines stroked.
	Render(output string, outlines []alg.Rect) error

	Close()
}

// Document is a paged document. Pages are zero-indexed.
type Document interface {
	NumPages() int
	LoadPage(index int) (Page, error)
}

// FirstMatch is the first match found in a document together with its context.
type FirstMatch struct {
	Page    int         `json:"page,omitempty"` // 1-based, 0 for documents without pages.
	Text    string      `json:"text"`           // Context around the match.
	Match   alg.Match   `json:"-"`
	Context alg.Context `json:"-"`
}

// Result is the outcome of searching one document.
type Result struct {
	FirstMatch *FirstMatch
	TotalHits  int

	// Rendered reports whether a highlighted page image was written.
	Rendered bool
}

// Found reports whether the pattern matched anywhere in the document.
func (r Result) Found() bool {
	return r.FirstMatch != nil
}

// Options controls a document search.
type Options struct {
	Before int
	After  int

	// Max pages whose text is extracted at a time.
	Workers int

	// Output is the path of the highlighted PNG.
	// When empty, no image is rendered.
	Output string
}

// SearchDocument scans every page of doc for re. The first page with a match
// supplies the context and, when opts.Output is set, the highlighted image.
func SearchDocument(ctx context.Context, doc Document, re *regexp.Regexp, opts Options) (Result, error) {
	scanner, err := NewScanner(re, opts.Before, opts.After)
	if err != nil {
		return Result{}, err
	}

	texts, err := CollectPageTexts(ctx, doc, opts.Workers)
	if err != nil {
		return Result{}, err
	}

	for i, text := range texts {
		if err := scanner.Feed(i+1, text); err != nil {
			return Result{}, err
		}
	}

	result := scanner.Result()
	if !result.Found() || opts.Output == "" {
		return result, nil
	}

	page, err := doc.LoadPage(result.FirstMatch.Page - 1)
	if err != nil {
		return result, err
	}
	defer page.Close()

	result.Rendered, err = Highlight(page, *result.FirstMatch, opts.Output)
	return result, err
}

// SearchText searches a document without pages, such as plain text or cleaned HTML.
func SearchText(text string, re *regexp.Regexp, before, after int) (Result, error) {
	scanner, err := NewScanner(re, before, after)
	if err != nil {
		return Result{}, err
	}

	if err := scanner.Feed(0, text); err != nil {
		return Result{}, err
	}
	return scanner.Result(), nil
}

// Highlight outlines the merged context and the first occurrence of the match
// on page, then renders it to output. Nothing is rendered when the match
// cannot be located on the page; that is reported as false with a nil error.
func Highlight(page Page, first FirstMatch, output string) (bool, error) {
	matchRects := page.SearchFor(first.Match.Text)
	contextRects := page.SearchFor(first.Text)

	outlines := make([]alg.Rect, 0, 2)
	if len(contextRects) > 0 {
		merged, err := alg.MergeRects(contextRects)
		if err != nil {
			return false, err
		}
		outlines = append(outlines, merged)
	}

	if len(matchRects) == 0 {
		return false, nil
	}
	outlines = append(outlines, matchRects[0])

	if err := page.Render(output, outlines); err != nil {
		return false, fmt.Errorf("unable to render page %d: %w", first.Page, err)
	}
	return true, nil
}
