package crawl

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pevans/lmdcrawl/fetcher"
)

// fakeSite is a Transport serving fixture pages keyed by normalized URL.
type fakeSite struct {
	mu       sync.Mutex
	pages    map[string]string
	requests []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: map[string]string{}}
}

func (s *fakeSite) add(t *testing.T, rawURL, html string) {
	t.Helper()
	key, err := fetcher.NormalizeURL(rawURL)
	require.NoError(t, err)
	s.pages[key] = html
}

func (s *fakeSite) Get(_ context.Context, rawURL string) (int, []byte, error) {
	key, err := fetcher.NormalizeURL(rawURL)
	if err != nil {
		return 0, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, key)

	html, ok := s.pages[key]
	if !ok {
		return 404, []byte("not found"), nil
	}
	return 200, []byte(html), nil
}

func (s *fakeSite) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// newTestCrawler wires a real fetcher with no waiting over site.
func newTestCrawler(t *testing.T, site *fakeSite, opts ...Option) *Crawler {
	t.Helper()
	cfg := fetcher.DefaultConfig()
	cfg.RequestsPerMinute = 600000
	cfg.RequestsPerHour = 0
	cfg.Burst = 100
	cfg.BaseBackoff = time.Millisecond
	cfg.MaxBackoff = time.Millisecond
	cfg.PolitenessMin = 0
	cfg.PolitenessMax = 0

	f, err := fetcher.New(site, cfg)
	require.NoError(t, err)
	return New(f, opts...)
}

func searchPage(pages int, hits ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><section class="river">`)
	for _, h := range hits {
		fmt.Fprintf(&b, `<section class="teaser"><a class="teaser__link" href="%s"><h3 class="teaser__title">%s</h3></a></section>`,
			h, strings.TrimSuffix(path.Base(h), ".html"))
	}
	if pages > 1 {
		b.WriteString(`<div class="river__pagination-wrapper"><a class="river__pagination" href="#">&lt;</a>`)
		for i := 1; i <= pages; i++ {
			fmt.Fprintf(&b, `<a class="river__pagination river__pagination--page-search" href="?page=%d">%d</a>`, i, i)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</section></body></html>`)
	return b.String()
}

func articleLinks(prefix string, n int) []string {
	links := make([]string, n)
	for i := range links {
		links[i] = fmt.Sprintf("https://www.lemonde.fr/politique/article/2022/03/%02d/%s-%d_%d_823448.html", i+1, prefix, i, 6000000+i)
	}
	return links
}

const articleURL = "https://www.lemonde.fr/international/article/2022/03/01/guerre-en-ukraine_6115521_3210.html"

func metadataScript(allowComments bool, keywords ...string) string {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	return fmt.Sprintf(`<script>var lmd = {"context": {"article": {"firstPublished": {"date": "2022-03-01T10:00:00+01:00"},
		"parsedMetadata": {"huit": {"allowComments": %t}}}},
		"analytics": {"smart_tag": {"customObject": {"ID_Article": 6115521, "Nature_edito": "Article", "Statut_article": "Abo"},
		"tags": {"keywords": [%s]}}}};</script>`, allowComments, strings.Join(quoted, ", "))
}

func articlePage(title, script string) string {
	return `<html><head>` + script + `</head><body>
		<h1 class="article__title">` + title + `</h1>
		<p class="article__desc">Les forces russes   progressent.</p>
		<p class="article__paragraph">Premier paragraphe.</p>
		<p class="article__paragraph">
			Second  paragraphe.
		</p>
		<p class="article__paragraph">   </p>
	</body></html>`
}

func commentsPage(header string, pages int, comments ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	if header != "" {
		fmt.Fprintf(&b, `<h3 class="comments__title">%s</h3>`, header)
	}
	for _, c := range comments {
		fmt.Fprintf(&b, `<section class="comment"><span class="comment__author">%s</span><p class="comment__content">%s</p></section>`, c[0], c[1])
	}
	if pages > 1 {
		b.WriteString(`<ul class="pagination__list">`)
		for i := 1; i <= pages; i++ {
			fmt.Fprintf(&b, `<li><a class="pagination__link" href="?contributions&page=%d">%d</a></li>`, i, i)
		}
		b.WriteString(`</ul>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}
