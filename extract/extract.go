// Package extract reads text and attribute values out of parsed pages. Every
// value it returns has been normalized: compatibility-decomposed (NFKD) with
// whitespace runs collapsed to a single space. Extraction never fails on a
// parsed page; a missing node is reported as absent.
package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/pevans/lmdcrawl/fetcher"
	"github.com/pevans/lmdcrawl/selectors"
)

// Normalize applies NFKD and collapses whitespace. Non-breaking and other
// typographic spaces fold into plain spaces along the way.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKD.String(s)), " ")
}

// One returns the value of the first node matching sel. ok is false when no
// node matches or, for attribute selectors, the attribute is absent.
func One(page *fetcher.Page, sel selectors.Selector) (string, bool) {
	node := find(page, sel).First()
	if node.Length() == 0 {
		return "", false
	}
	return value(node, sel.Attr)
}

// Many returns the value of every node matching sel in document order. A node
// without the requested attribute yields "" so that columns extracted from
// the same listing stay aligned.
func Many(page *fetcher.Page, sel selectors.Selector) []string {
	nodes := find(page, sel)
	values := make([]string, 0, nodes.Length())
	nodes.Each(func(_ int, s *goquery.Selection) {
		v, _ := value(s, sel.Attr)
		values = append(values, v)
	})
	return values
}

// Last returns the value of the last node matching sel.
func Last(page *fetcher.Page, sel selectors.Selector) (string, bool) {
	node := find(page, sel).Last()
	if node.Length() == 0 {
		return "", false
	}
	return value(node, sel.Attr)
}

// Exists reports whether any node matches sel.
func Exists(page *fetcher.Page, sel selectors.Selector) bool {
	return find(page, sel).Length() > 0
}

// Digits keeps only the ASCII digits of s and parses them, so
// "124 commentaires" gives 124 and "1 204" gives 1204. Run values through
// Normalize first to fold fullwidth digits.
func Digits(s string) (int, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

func find(page *fetcher.Page, sel selectors.Selector) *goquery.Selection {
	if page == nil || page.Doc == nil || sel.Query == "" {
		return &goquery.Selection{}
	}
	return page.Doc.Find(sel.Query)
}

func value(s *goquery.Selection, attr string) (string, bool) {
	if attr == "" {
		return Normalize(s.Text()), true
	}
	v, ok := s.Attr(attr)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}
