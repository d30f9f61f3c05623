// Package lmdcrawl holds the records produced by a crawl: search result
// listings, articles and comment threads. Records are plain data with stable
// JSON field names so they can be handed to any persistence layer.
package lmdcrawl

// SearchHit is one teaser in a search listing.
type SearchHit struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SearchResult is the outcome of a paginated search. PageCount is the total
// number of result pages reported by the site, which can exceed the number of
// pages actually walked when the caller capped the crawl.
type SearchResult struct {
	Query      string      `json:"query"`
	URL        string      `json:"url"`
	HasResults bool        `json:"is_result"`
	PageCount  int         `json:"pages"`
	Hits       []SearchHit `json:"results"`
}

// Retrieved returns the number of hits collected across fetched pages.
func (s SearchResult) Retrieved() int {
	return len(s.Hits)
}

// Article is a single crawled article page.
type Article struct {
	URL              string   `json:"url"`
	Title            string   `json:"title"`
	Description      *string  `json:"desc,omitempty"`
	Content          string   `json:"content"`
	ArticleID        *int64   `json:"article_id,omitempty"`
	Date             string   `json:"date"`
	Keywords         []string `json:"keywords"`
	ArticleType      string   `json:"article_type"`
	AllowComments    bool     `json:"allow_comments"`
	Premium          bool     `json:"premium"`
	SubscriptionTier string   `json:"subscription_tier,omitempty"`
}

// HasKeyword reports whether tag is one of the article keywords (exact
// match).
func (a Article) HasKeyword(tag string) bool {
	for _, kw := range a.Keywords {
		if kw == tag {
			return true
		}
	}
	return false
}

// Comment is a single reader contribution.
type Comment struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// CommentThread holds the comments of one article. ArticleID refers to the
// article by value; the thread does not own the article.
type CommentThread struct {
	ArticleID *int64    `json:"article_id"`
	Count     int       `json:"count"`
	Comments  []Comment `json:"comments"`
}

// NoComments returns the canonical empty thread for an article.
func NoComments(articleID *int64) CommentThread {
	return CommentThread{
		ArticleID: articleID,
		Count:     0,
		Comments:  []Comment{},
	}
}

// Truncated reports whether fewer comments were retrieved than the header
// announced.
func (c CommentThread) Truncated() bool {
	return len(c.Comments) < c.Count
}
