package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/lmdcrawl/selectors"
)

var scriptSelector = selectors.Selector{Query: "script"}

const fullPayload = `{
	"context": {
		"article": {
			"firstPublished": {"date": "2022-03-01T10:00:00+01:00"},
			"parsedMetadata": {"huit": {"allowComments": true}}
		}
	},
	"analytics": {
		"smart_tag": {
			"customObject": {
				"ID_Article": 6115521,
				"Nature_edito": "Article",
				"Statut_article": "Abo"
			},
			"tags": {"keywords": ["Ukraine", "Russie", "guerre"]}
		}
	}
}`

func scriptPage(t *testing.T, scripts ...string) string {
	t.Helper()
	html := "<html><head>"
	for _, s := range scripts {
		html += "<script>" + s + "</script>"
	}
	return html + "</head><body></body></html>"
}

// TestDecodeMetadata_Full verifies every path is projected
func TestDecodeMetadata_Full(t *testing.T) {
	page := mustPage(t, scriptPage(t, "var lmd = "+fullPayload+";"))

	meta, ok := DecodeMetadata(page, scriptSelector)
	require.True(t, ok)

	assert.Equal(t, int64(6115521), meta.ArticleID)
	assert.Equal(t, "2022-03-01T10:00:00+01:00", meta.Date)
	assert.Equal(t, []string{"Ukraine", "Russie", "guerre"}, meta.Keywords)
	assert.Equal(t, "Article", meta.ArticleType)
	assert.True(t, meta.AllowComments)
	assert.Equal(t, "Abo", meta.Tier)
	assert.True(t, meta.Premium())
}

// TestDecodeMetadata_DedupesKeywords verifies repeated keywords keep their
// first position
func TestDecodeMetadata_DedupesKeywords(t *testing.T) {
	payload := strings.Replace(fullPayload,
		`["Ukraine", "Russie", "guerre"]`,
		`["Ukraine", "Russie", "Ukraine", "guerre", "Russie"]`, 1)
	page := mustPage(t, scriptPage(t, "var lmd = "+payload+";"))

	meta, ok := DecodeMetadata(page, scriptSelector)
	require.True(t, ok)
	assert.Equal(t, []string{"Ukraine", "Russie", "guerre"}, meta.Keywords)
}

// TestDecodeMetadata_SkipsNonPayloadScripts verifies scanning continues
// past scripts and spans that are not JSON
func TestDecodeMetadata_SkipsNonPayloadScripts(t *testing.T) {
	page := mustPage(t, scriptPage(t,
		`window.dataLayer = window.dataLayer || [];`,
		`function f(a) { if (a) { return "}"; } }`,
		`var cfg = {debug: true}; var lmd = `+fullPayload+`;`,
	))

	meta, ok := DecodeMetadata(page, scriptSelector)
	require.True(t, ok)
	assert.Equal(t, int64(6115521), meta.ArticleID)
}

// TestDecodeMetadata_BracesInStrings verifies string contents do not unbalance
// the scanner
func TestDecodeMetadata_BracesInStrings(t *testing.T) {
	payload := `{"title": "a } tricky \" { title", "context": {"article": {"firstPublished": {"date": "d"}}},
		"analytics": {"smart_tag": {"customObject": {"ID_Article": "42", "Nature_edito": "Tribune", "Statut_article": "Libre"},
		"tags": {"keywords": []}}}}`
	page := mustPage(t, scriptPage(t, payload))

	meta, ok := DecodeMetadata(page, scriptSelector)
	require.True(t, ok)
	assert.Equal(t, int64(42), meta.ArticleID)
	assert.Equal(t, []string{}, meta.Keywords)
	assert.False(t, meta.Premium())
	assert.False(t, meta.AllowComments, "no parsedMetadata means comments are closed")
}

// TestDecodeMetadata_AllOrNothing verifies a missing path yields nothing
func TestDecodeMetadata_AllOrNothing(t *testing.T) {
	paths := []string{
		`"ID_Article": 6115521,`,
		`"Nature_edito": "Article",`,
		`"date": "2022-03-01T10:00:00+01:00"`,
		`"keywords": ["Ukraine", "Russie", "guerre"]`,
		`"allowComments": true`,
	}

	for _, p := range paths {
		p := p
		t.Run(p, func(t *testing.T) {
			broken := replaceOnce(t, fullPayload, p, removedKey(p))
			page := mustPage(t, scriptPage(t, broken))

			meta, ok := DecodeMetadata(page, scriptSelector)
			assert.False(t, ok)
			assert.Equal(t, Metadata{}, meta)
		})
	}
}

// TestDecodeMetadata_EmptyParsedMetadata verifies an empty object counts as
// absent
func TestDecodeMetadata_EmptyParsedMetadata(t *testing.T) {
	payload := replaceOnce(t, fullPayload, `"parsedMetadata": {"huit": {"allowComments": true}}`, `"parsedMetadata": {}`)
	page := mustPage(t, scriptPage(t, payload))

	meta, ok := DecodeMetadata(page, scriptSelector)
	require.True(t, ok)
	assert.False(t, meta.AllowComments)
}

func TestDecodeMetadata_NoPayload(t *testing.T) {
	page := mustPage(t, scriptPage(t, "console.log('hi')"))

	_, ok := DecodeMetadata(page, scriptSelector)
	assert.False(t, ok)

	_, ok = DecodeMetadata(nil, scriptSelector)
	assert.False(t, ok)
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`x = {"a": 1};`, `{"a": 1}`, true},
		{`{a: 1} {"b": {"c": "}"}}`, `{"b": {"c": "}"}}`, true},
		{`{"a": 1`, "", false},
		{`no braces`, "", false},
		{`{bad} {"esc": "\\"}`, `{"esc": "\\"}`, true},
	}

	for i, tt := range tests {
		tt := tt
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			got, ok := firstJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func replaceOnce(t *testing.T, s, old, repl string) string {
	t.Helper()
	require.Contains(t, s, old)
	return strings.Replace(s, old, repl, 1)
}

// removedKey renames a key so the path no longer resolves while the JSON
// stays valid.
func removedKey(kv string) string {
	return `"x_` + kv[1:]
}
