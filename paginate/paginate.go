// Package paginate walks paginated listings: it probes the first page, reads
// how many pages exist, clamps that to the caller's budget, then fetches each
// page and zips the extracted item columns into records.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pevans/lmdcrawl/extract"
	"github.com/pevans/lmdcrawl/fetcher"
	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/metrics"
	"github.com/pevans/lmdcrawl/selectors"
)

// ErrMalformedPage is returned when the page count label is not a number.
var ErrMalformedPage = errors.New("malformed page")

// Fetcher is the page source. *fetcher.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Page, error)
}

// ItemSpec describes the records of a listing. Columns are extracted with
// extract.Many and zipped by position; Build turns one row into a record
// and returns false to drop it. The row slice is reused between calls.
type ItemSpec[T any] struct {
	Columns []selectors.Field
	Build   func(row []string) (T, bool)
}

// Result is the outcome of a walk.
type Result[T any] struct {
	// PageCount is the number of pages the listing reports, before clamping.
	PageCount int
	// PagesFetched is the number of pages walked.
	PagesFetched int
	Items        []T
}

// Empty reports whether the probe found no results.
func (r Result[T]) Empty() bool {
	return r.PageCount == 0
}

// Paginator holds the collaborators shared by every walk.
type Paginator struct {
	fetcher Fetcher
	log     logger.Logger
	metrics *metrics.Metrics
}

// New creates a paginator. A nil log discards output.
func New(f Fetcher, log logger.Logger, m *metrics.Metrics) *Paginator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Paginator{fetcher: f, log: log, metrics: m}
}

// Run walks the listing at baseURL. maxPages <= 0 walks every page.
//
// The probe page doubles as page 1, so a listing of N pages capped at P costs
// min(N, P) fetches. On a fetch error the items gathered so far are returned
// with the error.
func Run[T any](ctx context.Context, p *Paginator, baseURL string, group selectors.Group, spec ItemSpec[T], maxPages int) (Result[T], error) {
	result := Result[T]{Items: []T{}}

	columns, err := columnSelectors(group, spec.Columns)
	if err != nil {
		return result, err
	}

	probe, err := p.fetcher.Fetch(ctx, baseURL)
	if err != nil {
		return result, fmt.Errorf("failed to fetch first page: %w", err)
	}

	if sel, ok := group.Get(selectors.FieldNoResults); ok && extract.Exists(probe, sel) {
		p.log.Debug("listing has no results", logger.String("url", baseURL))
		return result, nil
	}

	count, err := pageCount(probe, group)
	if err != nil {
		return result, err
	}
	result.PageCount = count

	effective := count
	if maxPages > 0 && maxPages < count {
		effective = maxPages
	}

	for n := 1; n <= effective; n++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page := probe
		if n > 1 {
			pageURL, err := PageURL(baseURL, n)
			if err != nil {
				return result, err
			}
			page, err = p.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				return result, fmt.Errorf("failed to fetch page %d of %d: %w", n, effective, err)
			}
		}

		result.Items = append(result.Items, zip(p, page, group.Kind(), columns, spec.Build)...)
		result.PagesFetched++
	}

	p.log.Debug("listing walked",
		logger.String("url", baseURL),
		logger.Int("pages", result.PageCount),
		logger.Int("fetched", result.PagesFetched),
		logger.Int("items", len(result.Items)),
	)

	return result, nil
}

// PageURL returns base with its page parameter set to n. Other query
// parameters are kept verbatim, including bare flags such as
// "?contributions".
func PageURL(base string, n int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing URL %q: %w", base, err)
	}

	var parts []string
	for _, part := range strings.Split(u.RawQuery, "&") {
		if part == "" || part == "page" || strings.HasPrefix(part, "page=") {
			continue
		}
		parts = append(parts, part)
	}
	parts = append(parts, "page="+strconv.Itoa(n))
	u.RawQuery = strings.Join(parts, "&")

	return u.String(), nil
}

// pageCount reads the number of pages from the probe. A listing without a
// pagination block has one page.
func pageCount(probe *fetcher.Page, group selectors.Group) (int, error) {
	pagination, ok := group.Get(selectors.FieldPagination)
	if !ok || !extract.Exists(probe, pagination) {
		return 1, nil
	}

	links, ok := group.Get(selectors.FieldPageLinks)
	if !ok {
		return 1, nil
	}
	label, ok := extract.Last(probe, links)
	if !ok {
		return 0, fmt.Errorf("%w: pagination without page links at %s", ErrMalformedPage, probe.URL)
	}

	n, ok := extract.Digits(label)
	if !ok || n < 1 {
		return 0, fmt.Errorf("%w: page count label %q at %s", ErrMalformedPage, label, probe.URL)
	}
	return n, nil
}

func columnSelectors(group selectors.Group, fields []selectors.Field) ([]selectors.Selector, error) {
	if len(fields) == 0 {
		return nil, errors.New("item spec has no columns")
	}

	sels := make([]selectors.Selector, len(fields))
	for i, f := range fields {
		sel, ok := group.Get(f)
		if !ok {
			return nil, fmt.Errorf("no %s selector for %s", f, group.Kind())
		}
		sels[i] = sel
	}
	return sels, nil
}

// zip extracts each column and combines them by position. Columns of unequal
// length are truncated to the shortest.
func zip[T any](p *Paginator, page *fetcher.Page, kind selectors.Kind, columns []selectors.Selector, build func([]string) (T, bool)) []T {
	values := make([][]string, len(columns))
	rows := -1
	ragged := false
	for i, sel := range columns {
		values[i] = extract.Many(page, sel)
		if rows >= 0 && len(values[i]) != rows {
			ragged = true
		}
		if rows < 0 || len(values[i]) < rows {
			rows = len(values[i])
		}
	}

	if ragged {
		lengths := make([]int, len(values))
		for i, v := range values {
			lengths[i] = len(v)
		}
		p.metrics.TruncatedZip(kind.String())
		p.log.Warn("item columns differ in length, truncating",
			logger.String("url", page.URL),
			logger.String("kind", kind.String()),
			logger.Ints("lengths", lengths),
		)
	}

	items := make([]T, 0, rows)
	row := make([]string, len(columns))
	for r := 0; r < rows; r++ {
		for c := range columns {
			row[c] = values[c][r]
		}
		item, ok := build(row)
		if !ok {
			p.metrics.DroppedItem(kind.String())
			continue
		}
		items = append(items, item)
	}
	return items
}
