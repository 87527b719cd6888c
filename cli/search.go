package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"

	"github.com/abiiranathan/pdfmatch/alg"
	"github.com/abiiranathan/pdfmatch/htmltext"
	"github.com/abiiranathan/pdfmatch/pdf"
	"github.com/abiiranathan/pdfmatch/search"
)

type FileResult struct {
	Filename string
	Result   search.Result
}

// SearchFile searches config.Filename for config.Pattern. PDFs are
// highlighted into config.Output when it is set.
func SearchFile(ctx context.Context, config *Config) (search.Result, error) {
	re, err := alg.Compile(config.Pattern)
	if err != nil {
		return search.Result{}, err
	}
	return searchFile(ctx, config, config.Filename, re, config.Output)
}

// SearchDir searches every PDF below config.Directory.
// Files that cannot be searched are logged and skipped.
func SearchDir(ctx context.Context, config *Config) ([]FileResult, error) {
	re, err := alg.Compile(config.Pattern)
	if err != nil {
		return nil, err
	}

	files, err := search.WalkDir(config.Directory, []string{".pdf"})
	if err != nil {
		return nil, fmt.Errorf("unable to load files at %s: %w", config.Directory, err)
	}
	log.Printf("Found %d files in %s\n", len(files), config.Directory)

	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		res, err := searchFile(ctx, config, file, re, "")
		if err != nil {
			log.Println("unable to process", file, err)
			continue
		}
		results = append(results, FileResult{Filename: file, Result: res})
	}
	return results, nil
}

func searchFile(ctx context.Context, config *Config, filename string, re *regexp.Regexp, output string) (search.Result, error) {
	if search.KindOf(filename) == search.KindText {
		data, err := os.ReadFile(filename)
		if err != nil {
			return search.Result{}, err
		}
		return search.SearchText(htmltext.Clean(string(data)), re, config.Before, config.After)
	}

	doc, err := pdf.Open(filename, pdf.WithDPI(config.DPI))
	if err != nil {
		return search.Result{}, err
	}
	defer doc.Close()

	return search.SearchDocument(ctx, doc, re, search.Options{
		Before:  config.Before,
		After:   config.After,
		Workers: config.MaxConcurrency,
		Output:  output,
	})
}

func printResult(w io.Writer, filename string, res search.Result) {
	if !res.Found() {
		fmt.Fprintf(w, "%s: No matches found\n", filename)
		return
	}

	fmt.Fprintf(w, "%s Page: %d : %s\n", filename, res.FirstMatch.Page, res.FirstMatch.Text)
	fmt.Fprintf(w, "Total hits: %d\n", res.TotalHits)
}
