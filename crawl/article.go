package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pevans/lmdcrawl"
	"github.com/pevans/lmdcrawl/extract"
	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/selectors"
)

// ErrUnsupportedContent is returned for URLs that are not articles: live
// coverage, blogs, videos and anything unrecognized.
var ErrUnsupportedContent = errors.New("unsupported content")

// IncompleteArticleError reports an article page missing a required field.
type IncompleteArticleError struct {
	URL   string
	Field selectors.Field
}

func (e *IncompleteArticleError) Error() string {
	return fmt.Sprintf("incomplete article %s: missing %s", e.URL, e.Field)
}

// Article fetches and assembles the article at rawURL. Non-article URLs are
// rejected with ErrUnsupportedContent before any request is made. Pages
// without a decodable metadata payload still produce an article, with a nil
// ArticleID and comments closed.
func (c *Crawler) Article(ctx context.Context, rawURL string) (lmdcrawl.Article, error) {
	if kind := ClassifyURL(rawURL); kind != URLArticle {
		return lmdcrawl.Article{}, fmt.Errorf("%w: %s is a %s page", ErrUnsupportedContent, rawURL, kind)
	}

	page, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return lmdcrawl.Article{}, fmt.Errorf("failed to fetch article: %w", err)
	}

	title, _ := extract.One(page, c.selector(selectors.KindArticle, selectors.FieldTitle))
	if title == "" {
		return lmdcrawl.Article{}, &IncompleteArticleError{URL: rawURL, Field: selectors.FieldTitle}
	}

	article := lmdcrawl.Article{
		URL:      rawURL,
		Title:    title,
		Keywords: []string{},
	}

	if desc, ok := extract.One(page, c.selector(selectors.KindArticle, selectors.FieldDescription)); ok && desc != "" {
		article.Description = &desc
	}

	var paragraphs []string
	for _, p := range extract.Many(page, c.selector(selectors.KindArticle, selectors.FieldBody)) {
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	article.Content = strings.Join(paragraphs, " ")

	meta, ok := extract.DecodeMetadata(page, c.selector(selectors.KindArticle, selectors.FieldMetadata))
	if ok {
		id := meta.ArticleID
		article.ArticleID = &id
		article.Date = meta.Date
		article.Keywords = meta.Keywords
		article.ArticleType = meta.ArticleType
		article.AllowComments = meta.AllowComments
		article.Premium = meta.Premium()
		article.SubscriptionTier = meta.Tier
	} else {
		c.log.Warn("article metadata not found", logger.String("url", rawURL))
	}

	return article, nil
}
