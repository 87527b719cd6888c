package search

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// CollectPageTexts extracts the text of every page in doc, processing at
// most workers pages at a time. The returned slice is in page order.
func CollectPageTexts(ctx context.Context, doc Document, workers int) ([]string, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	texts := make([]string, doc.NumPages())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			page, err := doc.LoadPage(i)
			if err != nil {
				return fmt.Errorf("unable to load page %d: %w", i, err)
			}
			defer page.Close()

			// each goroutine owns its own slot
			texts[i] = page.Text()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}
