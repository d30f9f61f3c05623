package crawl

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pevans/lmdcrawl"
	"github.com/pevans/lmdcrawl/extract"
	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/paginate"
	"github.com/pevans/lmdcrawl/selectors"
)

// CommentsURL returns the contributions page of an article.
func CommentsURL(articleURL string) (string, error) {
	u, err := url.Parse(articleURL)
	if err != nil {
		return "", fmt.Errorf("invalid article URL %q: %w", articleURL, err)
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery == "" {
		u.RawQuery = "contributions"
	} else {
		u.RawQuery += "&contributions"
	}
	return u.String(), nil
}

// Comments retrieves every comment page of a.
func (c *Crawler) Comments(ctx context.Context, a lmdcrawl.Article) (lmdcrawl.CommentThread, error) {
	return c.CommentsPaged(ctx, a, 0)
}

// CommentsPaged retrieves up to maxPages comment pages of a (maxPages <= 0
// walks them all). Articles with comments closed cost no request. Count is
// the total the page header announces, so it can exceed the comments
// returned when pages were capped or items dropped.
func (c *Crawler) CommentsPaged(ctx context.Context, a lmdcrawl.Article, maxPages int) (lmdcrawl.CommentThread, error) {
	if !a.AllowComments {
		return lmdcrawl.NoComments(a.ArticleID), nil
	}

	commentsURL, err := CommentsURL(a.URL)
	if err != nil {
		return lmdcrawl.NoComments(a.ArticleID), err
	}

	probe, err := c.fetcher.Fetch(ctx, commentsURL)
	if err != nil {
		return lmdcrawl.NoComments(a.ArticleID), fmt.Errorf("failed to fetch comments: %w", err)
	}

	if !extract.Exists(probe, c.selector(selectors.KindComments, selectors.FieldCommentsPresent)) {
		return lmdcrawl.NoComments(a.ArticleID), nil
	}

	header, _ := extract.One(probe, c.selector(selectors.KindComments, selectors.FieldCommentCount))
	count, ok := extract.Digits(header)
	if !ok {
		c.log.Warn("comment count header has no number",
			logger.String("url", commentsURL),
			logger.String("header", header),
		)
		return lmdcrawl.NoComments(a.ArticleID), nil
	}
	if count == 0 {
		return lmdcrawl.NoComments(a.ArticleID), nil
	}

	spec := paginate.ItemSpec[lmdcrawl.Comment]{
		Columns: []selectors.Field{selectors.FieldItemAuthor, selectors.FieldItemContent},
		Build: func(row []string) (lmdcrawl.Comment, bool) {
			if row[0] == "" || row[1] == "" {
				return lmdcrawl.Comment{}, false
			}
			return lmdcrawl.Comment{Author: row[0], Content: row[1]}, true
		},
	}

	res, err := paginate.Run(ctx, c.pager, commentsURL, c.group(selectors.KindComments), spec, maxPages)
	thread := lmdcrawl.CommentThread{
		ArticleID: a.ArticleID,
		Count:     count,
		Comments:  res.Items,
	}
	if err != nil {
		return thread, err
	}

	c.log.Debug("comments retrieved",
		logger.String("url", commentsURL),
		logger.Int("count", count),
		logger.Int("retrieved", len(thread.Comments)),
		logger.Int("pages", res.PagesFetched),
	)

	return thread, nil
}
