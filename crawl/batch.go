package crawl

import (
	"context"
	"errors"
	"sync"

	"github.com/pevans/lmdcrawl"
	"github.com/pevans/lmdcrawl/logger"
)

// Skip reasons recorded on batch items.
const (
	SkipUnsupported = "unsupported"
	SkipIncomplete  = "incomplete"
	SkipKeyword     = "keyword"
)

// BatchOptions controls a batch crawl.
type BatchOptions struct {
	// Workers bounds concurrent articles; values below 1 mean 1. All workers
	// share the crawler's page source, so the rate budget is unchanged.
	Workers int
	// Keyword keeps only articles tagged with it (exact match).
	Keyword string
	// WithComments also retrieves each kept article's comments.
	WithComments bool
	// CommentPages caps comment pages per article; 0 walks them all.
	CommentPages int
}

// BatchItem is the outcome for one input URL. At most one of Article, Skipped
// and Err describes it; Comments is set only with WithComments.
type BatchItem struct {
	URL      string                  `json:"url"`
	Article  *lmdcrawl.Article       `json:"article,omitempty"`
	Comments *lmdcrawl.CommentThread `json:"comments,omitempty"`
	Skipped  string                  `json:"skipped,omitempty"`
	Err      error                   `json:"-"`
}

// BatchResult holds one item per input URL, in input order.
type BatchResult struct {
	Items    []BatchItem `json:"items"`
	Articles int         `json:"articles"`
	Skipped  int         `json:"skipped"`
	Failed   int         `json:"failed"`
}

// Batch crawls urls with a bounded pool of workers. Unsupported and
// incomplete pages are recorded as skipped; other errors are recorded on the
// item and do not stop the batch. Cancelling ctx stops scheduling; Batch then
// waits for running workers and returns ctx.Err() with what was done.
func (c *Crawler) Batch(ctx context.Context, urls []string, opts BatchOptions) (BatchResult, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	items := make([]BatchItem, len(urls))
	scheduled := make([]bool, len(urls))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	var ctxErr error
schedule:
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break schedule
		case semaphore <- struct{}{}: // Acquire semaphore
			scheduled[i] = true
			wg.Add(1)
			go func(i int, u string) {
				defer wg.Done()
				defer func() { <-semaphore }() // Release semaphore

				items[i] = c.batchItem(ctx, u, opts)
			}(i, u)
		}
	}
	wg.Wait()

	result := BatchResult{Items: make([]BatchItem, 0, len(urls))}
	for i, item := range items {
		if !scheduled[i] {
			continue
		}
		switch {
		case item.Err != nil:
			result.Failed++
			c.log.Error("batch item failed", logger.String("url", item.URL), logger.Err(item.Err))
		case item.Skipped != "":
			result.Skipped++
		default:
			result.Articles++
		}
		result.Items = append(result.Items, item)
	}

	c.log.Info("batch complete",
		logger.Int("urls", len(urls)),
		logger.Int("articles", result.Articles),
		logger.Int("skipped", result.Skipped),
		logger.Int("failed", result.Failed),
	)

	return result, ctxErr
}

func (c *Crawler) batchItem(ctx context.Context, u string, opts BatchOptions) BatchItem {
	item := BatchItem{URL: u}

	article, err := c.Article(ctx, u)
	var incomplete *IncompleteArticleError
	switch {
	case errors.Is(err, ErrUnsupportedContent):
		item.Skipped = SkipUnsupported
		return item
	case errors.As(err, &incomplete):
		item.Skipped = SkipIncomplete
		return item
	case err != nil:
		item.Err = err
		return item
	}

	if opts.Keyword != "" && !article.HasKeyword(opts.Keyword) {
		item.Skipped = SkipKeyword
		return item
	}
	item.Article = &article

	if opts.WithComments {
		thread, err := c.CommentsPaged(ctx, article, opts.CommentPages)
		if err != nil {
			item.Err = err
		}
		item.Comments = &thread
	}

	return item
}
