package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/lmdcrawl/fetcher"
	"github.com/pevans/lmdcrawl/selectors"
)

func mustPage(t *testing.T, html string) *fetcher.Page {
	t.Helper()
	page, err := fetcher.NewPage("https://www.lemonde.fr/test", []byte(html))
	require.NoError(t, err)
	return page
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "  Le   Monde\n\t du soir ", "Le Monde du soir"},
		{"folds non-breaking space", "Macron\u00a0: discours", "Macron : discours"},
		{"folds narrow no-break space", "12\u202f000 personnes", "12 000 personnes"},
		{"decomposes ligature", "\ufb01n", "fin"},
		{"decomposes accents", "\u00e9t\u00e9", "e\u0301te\u0301"},
		{"folds fullwidth digits", "\uff11\uff12", "12"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

// TestOne verifies text and attribute extraction of the first match
func TestOne(t *testing.T) {
	page := mustPage(t, `
		<h1 class="article__title">  Guerre en
		 Ukraine  </h1>
		<a class="teaser__link" href=" https://www.lemonde.fr/a.html ">x</a>
		<a class="teaser__link" href="https://www.lemonde.fr/b.html">y</a>
		<span class="noattr">z</span>`)

	title, ok := One(page, selectors.Selector{Query: "h1.article__title"})
	assert.True(t, ok)
	assert.Equal(t, "Guerre en Ukraine", title)

	href, ok := One(page, selectors.Selector{Query: "a.teaser__link", Attr: "href"})
	assert.True(t, ok)
	assert.Equal(t, "https://www.lemonde.fr/a.html", href)

	_, ok = One(page, selectors.Selector{Query: "p.article__desc"})
	assert.False(t, ok, "missing node is absent")

	_, ok = One(page, selectors.Selector{Query: "span.noattr", Attr: "href"})
	assert.False(t, ok, "missing attribute is absent")
}

// TestMany verifies values come back in document order and stay aligned
func TestMany(t *testing.T) {
	page := mustPage(t, `
		<a class="l" href="/1">one</a>
		<a class="l">two</a>
		<a class="l" href="/3">three</a>`)

	assert.Equal(t, []string{"one", "two", "three"}, Many(page, selectors.Selector{Query: "a.l"}))
	assert.Equal(t, []string{"/1", "", "/3"}, Many(page, selectors.Selector{Query: "a.l", Attr: "href"}))

	none := Many(page, selectors.Selector{Query: "p.nothing"})
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLastAndExists(t *testing.T) {
	page := mustPage(t, `
		<a class="river__pagination river__pagination--page-search">1</a>
		<a class="river__pagination river__pagination--page-search">2</a>
		<a class="river__pagination river__pagination--page-search"> 14 </a>`)

	last, ok := Last(page, selectors.Selector{Query: "a.river__pagination--page-search"})
	assert.True(t, ok)
	assert.Equal(t, "14", last)

	_, ok = Last(page, selectors.Selector{Query: "ul.pagination__list"})
	assert.False(t, ok)

	assert.True(t, Exists(page, selectors.Selector{Query: "a.river__pagination"}))
	assert.False(t, Exists(page, selectors.Selector{Query: "p.search__no-result"}))
}

// TestExtraction_NilPage verifies extraction never panics
func TestExtraction_NilPage(t *testing.T) {
	sel := selectors.Selector{Query: "p"}

	_, ok := One(nil, sel)
	assert.False(t, ok)
	assert.Empty(t, Many(nil, sel))
	assert.False(t, Exists(nil, sel))
}

func TestDigits(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"124 commentaires", 124, true},
		{"1 204 contributions", 1204, true},
		{"Page 7", 7, true},
		{"commentaires", 0, false},
		{"", 0, false},
		{"99999999999999999999999", 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			n, ok := Digits(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}
