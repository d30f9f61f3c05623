package crawl

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/pevans/lmdcrawl"
	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/paginate"
	"github.com/pevans/lmdcrawl/selectors"
)

// Sort orders search results.
type Sort string

const (
	SortNewest Sort = "dateCreated_desc"
	SortOldest Sort = "dateCreated_asc"
)

// dateLayout is the dd/mm/yyyy format the search form expects.
const dateLayout = "02/01/2006"

// SearchQuery describes one search. Zero Start or End leaves that bound
// open; an empty Sort means SortNewest.
type SearchQuery struct {
	Query string
	Start time.Time
	End   time.Time
	Sort  Sort
}

// Validate checks the query before any request is made.
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return errors.New("search query is empty")
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return errors.New("search end date is before start date")
	}
	return nil
}

// SearchURL builds the first results page URL for q under baseURL.
func SearchURL(baseURL string, q SearchQuery) string {
	sort := q.Sort
	if sort == "" {
		sort = SortNewest
	}

	params := []string{"search_keywords=" + url.QueryEscape(strings.TrimSpace(q.Query))}
	if !q.Start.IsZero() {
		params = append(params, "start_at="+url.QueryEscape(q.Start.Format(dateLayout)))
	}
	if !q.End.IsZero() {
		params = append(params, "end_at="+url.QueryEscape(q.End.Format(dateLayout)))
	}
	params = append(params, "search_sort="+url.QueryEscape(string(sort)))

	return strings.TrimRight(baseURL, "/") + "/recherche/?" + strings.Join(params, "&")
}

// Search walks up to maxPages result pages for q (maxPages <= 0 walks them
// all). A query with no results is a zero result, not an error. On a fetch
// error the hits gathered so far are returned alongside it.
func (c *Crawler) Search(ctx context.Context, q SearchQuery, maxPages int) (lmdcrawl.SearchResult, error) {
	searchURL := SearchURL(c.baseURL, q)
	result := lmdcrawl.SearchResult{
		Query: q.Query,
		URL:   searchURL,
		Hits:  []lmdcrawl.SearchHit{},
	}
	if err := q.Validate(); err != nil {
		return result, err
	}

	spec := paginate.ItemSpec[lmdcrawl.SearchHit]{
		Columns: []selectors.Field{selectors.FieldItemURL, selectors.FieldItemTitle},
		Build: func(row []string) (lmdcrawl.SearchHit, bool) {
			link, ok := c.resolve(searchURL, row[0])
			if !ok || row[1] == "" {
				return lmdcrawl.SearchHit{}, false
			}
			return lmdcrawl.SearchHit{URL: link, Title: row[1]}, true
		},
	}

	res, err := paginate.Run(ctx, c.pager, searchURL, c.group(selectors.KindSearch), spec, maxPages)
	result.HasResults = !res.Empty()
	result.PageCount = res.PageCount
	result.Hits = res.Items
	if err != nil {
		return result, err
	}

	// An unmarked page without teasers still has no results.
	if len(res.Items) == 0 && res.PageCount > 0 {
		c.metrics.EmptySearch()
		c.log.Warn("search page has no marker and no results",
			logger.String("query", q.Query),
			logger.String("url", searchURL),
			logger.Int("pages", res.PageCount),
		)
		result.HasResults = false
		result.PageCount = 0
	}

	c.log.Info("search complete",
		logger.String("query", q.Query),
		logger.Int("pages", result.PageCount),
		logger.Int("fetched", res.PagesFetched),
		logger.Int("hits", result.Retrieved()),
	)

	return result, nil
}

// resolve makes href absolute against the page it was found on.
func (c *Crawler) resolve(pageURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}
