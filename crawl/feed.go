package crawl

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pevans/lmdcrawl/logger"
)

// FeedURLs reads an RSS or Atom feed through the crawler's page source and
// returns the links of its items that classify as articles, in feed order
// and without duplicates. Feeds pass through the same rate budget and cache
// as pages.
func (c *Crawler) FeedURLs(ctx context.Context, feedURL string) ([]string, error) {
	page, err := c.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	seen := make(map[string]bool, len(feed.Items))
	urls := []string{}
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true

		if kind := ClassifyURL(link); kind != URLArticle {
			c.log.Debug("skipping feed item", logger.String("url", link), logger.String("kind", string(kind)))
			continue
		}
		urls = append(urls, link)
	}

	return urls, nil
}
