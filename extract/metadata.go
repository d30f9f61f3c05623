package extract

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/pevans/lmdcrawl/fetcher"
	"github.com/pevans/lmdcrawl/selectors"
)

// PremiumTier is the subscription status of paywalled articles.
const PremiumTier = "Abo"

// Paths into the page payload.
const (
	pathArticleID      = "analytics.smart_tag.customObject.ID_Article"
	pathDate           = "context.article.firstPublished.date"
	pathKeywords       = "analytics.smart_tag.tags.keywords"
	pathArticleType    = "analytics.smart_tag.customObject.Nature_edito"
	pathParsedMetadata = "context.article.parsedMetadata"
	pathAllowComments  = "context.article.parsedMetadata.huit.allowComments"
	pathTier           = "analytics.smart_tag.customObject.Statut_article"
)

// Metadata is the projection of the JSON payload an article page embeds in
// an inline script.
type Metadata struct {
	ArticleID     int64
	Date          string
	Keywords      []string
	ArticleType   string
	AllowComments bool
	Tier          string
}

// Premium reports whether the article is behind the paywall.
func (m Metadata) Premium() bool {
	return m.Tier == PremiumTier
}

// DecodeMetadata locates the embedded payload among the nodes matched by sel
// and projects it. The first balanced {...} span that parses as JSON wins.
// The result is all-or-nothing: if any required path is missing ok is false
// and the zero Metadata is returned.
//
// Live pages carry no parsedMetadata object; for those AllowComments is
// false rather than an error.
func DecodeMetadata(page *fetcher.Page, sel selectors.Selector) (Metadata, bool) {
	if page == nil || page.Doc == nil || sel.Query == "" {
		return Metadata{}, false
	}

	var payload string
	nodes := page.Doc.Find(sel.Query)
	for i := 0; i < nodes.Length(); i++ {
		if p, ok := firstJSONObject(nodes.Eq(i).Text()); ok {
			payload = p
			break
		}
	}
	if payload == "" {
		return Metadata{}, false
	}

	return project(payload)
}

func project(payload string) (Metadata, bool) {
	res := gjson.GetMany(payload, pathArticleID, pathDate, pathKeywords, pathArticleType, pathTier)
	for _, r := range res {
		if !r.Exists() {
			return Metadata{}, false
		}
	}

	id, ok := int64Value(res[0])
	if !ok {
		return Metadata{}, false
	}
	if !res[2].IsArray() {
		return Metadata{}, false
	}
	keywords := []string{}
	seen := map[string]bool{}
	for _, kw := range res[2].Array() {
		if seen[kw.String()] {
			continue
		}
		seen[kw.String()] = true
		keywords = append(keywords, kw.String())
	}

	allow, ok := allowComments(payload)
	if !ok {
		return Metadata{}, false
	}

	return Metadata{
		ArticleID:     id,
		Date:          res[1].String(),
		Keywords:      keywords,
		ArticleType:   res[3].String(),
		AllowComments: allow,
		Tier:          res[4].String(),
	}, true
}

// allowComments reads the comment flag. An absent or empty parsedMetadata
// object means comments are closed; a present one must carry the flag.
func allowComments(payload string) (bool, bool) {
	parsed := gjson.Get(payload, pathParsedMetadata)
	if !truthy(parsed) {
		return false, true
	}

	flag := gjson.Get(payload, pathAllowComments)
	if !flag.Exists() {
		return false, false
	}
	return flag.Bool(), true
}

func truthy(r gjson.Result) bool {
	switch {
	case !r.Exists():
		return false
	case r.IsObject():
		return len(r.Map()) > 0
	case r.IsArray():
		return len(r.Array()) > 0
	default:
		return r.Bool() || (r.Type == gjson.String && r.Str != "")
	}
}

// int64Value accepts the identifier as a JSON number or a numeric string.
func int64Value(r gjson.Result) (int64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Int(), true
	case gjson.String:
		n, err := strconv.ParseInt(r.Str, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// firstJSONObject returns the first balanced {...} span of s that is valid
// JSON. Braces inside string literals do not count towards the balance.
// When a span turns out not to be JSON (a script's own object literal, for
// instance) scanning resumes just after its opening brace.
func firstJSONObject(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		end := matchBrace(s, start)
		if end < 0 {
			continue
		}
		if span := s[start : end+1]; gjson.Valid(span) {
			return span, true
		}
	}
	return "", false
}

// matchBrace returns the index of the '}' closing the '{' at open, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false

	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
