package crawl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedURL = "https://www.lemonde.fr/international/rss_full.xml"

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>International : Toute l'actualité sur Le Monde.fr.</title>
    <link>https://www.lemonde.fr/international/</link>
    <item>
      <title>Guerre en Ukraine</title>
      <link>https://www.lemonde.fr/international/article/2022/03/01/guerre-en-ukraine_6115521_3210.html</link>
    </item>
    <item>
      <title>En direct</title>
      <link>https://www.lemonde.fr/international/live/2022/03/01/direct_6115500_3210.html</link>
    </item>
    <item>
      <title>Guerre en Ukraine (doublon)</title>
      <link>https://www.lemonde.fr/international/article/2022/03/01/guerre-en-ukraine_6115521_3210.html</link>
    </item>
    <item>
      <title>Gaz</title>
      <link>https://www.lemonde.fr/economie/article/2022/03/02/gaz_6115600_3234.html</link>
    </item>
  </channel>
</rss>`

// TestFeedURLs verifies only article links are kept, once each
func TestFeedURLs(t *testing.T) {
	site := newFakeSite()
	site.add(t, feedURL, rssFixture)

	urls, err := newTestCrawler(t, site).FeedURLs(context.Background(), feedURL)
	require.NoError(t, err)

	assert.Equal(t, []string{articleURL, otherArticleURL}, urls)
}

// TestFeedURLs_NotAFeed verifies parse errors are reported
func TestFeedURLs_NotAFeed(t *testing.T) {
	site := newFakeSite()
	site.add(t, feedURL, "plain text, not a feed")

	_, err := newTestCrawler(t, site).FeedURLs(context.Background(), feedURL)
	assert.Error(t, err)
}
