package crawl

import (
	"net/url"
	"strings"
)

// URLKind is the content type a URL points to.
type URLKind string

const (
	URLArticle URLKind = "article"
	URLLive    URLKind = "live"
	URLBlog    URLKind = "blog"
	URLVideo   URLKind = "video"
	URLUnknown URLKind = "unknown"
)

// ClassifyURL tells articles apart from live coverage, blogs and videos,
// whose pages do not follow the article layout. Classification looks at the
// path segments and at blog subdomains only; it never fetches.
func ClassifyURL(rawURL string) URLKind {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return URLUnknown
	}

	host := strings.ToLower(u.Hostname())
	if strings.HasSuffix(host, ".blog.lemonde.fr") {
		return URLBlog
	}

	segments := map[string]bool{}
	for _, seg := range strings.Split(strings.ToLower(u.Path), "/") {
		if seg != "" {
			segments[seg] = true
		}
	}

	switch {
	case segments["live"]:
		return URLLive
	case segments["video"], segments["videos"]:
		return URLVideo
	case segments["blog"], segments["blogs"]:
		return URLBlog
	case segments["article"]:
		return URLArticle
	default:
		return URLUnknown
	}
}
