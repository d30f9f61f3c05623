package crawl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const otherArticleURL = "https://www.lemonde.fr/economie/article/2022/03/02/gaz_6115600_3234.html"

// TestBatch_MixedInputs verifies skips, failures and kept articles are
// reported per URL in input order
func TestBatch_MixedInputs(t *testing.T) {
	site := newFakeSite()
	site.add(t, articleURL, articlePage("Guerre", metadataScript(true, "Ukraine")))
	site.add(t, articleURL+"?contributions", commentsPage("1 commentaire", 1, [2]string{"Jean", "Un."}))
	site.add(t, otherArticleURL, articlePage("Gaz", metadataScript(false, "Energie")))

	missing := "https://www.lemonde.fr/economie/article/2022/03/02/absent_1_2.html"
	live := "https://www.lemonde.fr/international/live/2022/03/01/direct_1_2.html"
	urls := []string{articleURL, live, otherArticleURL, missing}

	res, err := newTestCrawler(t, site).Batch(context.Background(), urls, BatchOptions{
		Workers:      3,
		Keyword:      "Ukraine",
		WithComments: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 4)

	assert.Equal(t, 1, res.Articles)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Failed)

	first := res.Items[0]
	assert.Equal(t, articleURL, first.URL)
	require.NotNil(t, first.Article)
	require.NotNil(t, first.Comments)
	assert.Equal(t, 1, first.Comments.Count)

	assert.Equal(t, SkipUnsupported, res.Items[1].Skipped)
	assert.Equal(t, SkipKeyword, res.Items[2].Skipped)
	assert.Nil(t, res.Items[2].Comments)
	assert.Error(t, res.Items[3].Err)
}

// TestBatch_SharesCache verifies duplicate URLs are fetched once
func TestBatch_SharesCache(t *testing.T) {
	site := newFakeSite()
	site.add(t, articleURL, articlePage("Guerre", metadataScript(false)))

	urls := []string{articleURL, articleURL, articleURL, articleURL}
	res, err := newTestCrawler(t, site).Batch(context.Background(), urls, BatchOptions{Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Articles)
	assert.Equal(t, 1, site.count())
}

// TestBatch_Canceled verifies nothing is scheduled after cancellation
func TestBatch_Canceled(t *testing.T) {
	site := newFakeSite()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestCrawler(t, site).Batch(ctx, []string{articleURL, otherArticleURL}, BatchOptions{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, site.count())
}
