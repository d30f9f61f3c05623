// Package selectors maps the logical fields of each page kind to the CSS
// queries that locate them. The registry is validated when it is built, so a
// missing or broken selector fails at startup instead of at first
// extraction.
package selectors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Kind identifies a kind of page the crawler knows how to read.
type Kind int

const (
	KindSearch Kind = iota + 1
	KindArticle
	KindComments
)

// Kinds lists every page kind in a stable order.
var Kinds = []Kind{KindSearch, KindArticle, KindComments}

func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindArticle:
		return "article"
	case KindComments:
		return "comments"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name ("search", "article", "comments") to a Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(k.String(), strings.TrimSpace(name)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown page kind %q", name)
}

// Field is a logical field name within a page kind.
type Field string

const (
	// Listing structure, shared by search and comments.
	FieldNoResults  Field = "no_results"
	FieldPagination Field = "pagination"
	FieldPageLinks  Field = "page_links"

	// Search teasers.
	FieldItemURL   Field = "item_url"
	FieldItemTitle Field = "item_title"

	// Article page.
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldBody        Field = "body"
	FieldMetadata    Field = "metadata"

	// Comment pages.
	FieldCommentsPresent Field = "comments_present"
	FieldCommentCount    Field = "comment_count"
	FieldItemAuthor      Field = "item_author"
	FieldItemContent     Field = "item_content"
)

// Selector is a CSS query plus an optional attribute name. When Attr is empty
// the node text is read.
type Selector struct {
	Query string `yaml:"query" json:"query"`
	Attr  string `yaml:"attr,omitempty" json:"attr,omitempty"`
}

// Definitions is the raw input to New.
type Definitions map[Kind]map[Field]Selector

// required lists the fields every group must define.
var required = map[Kind][]Field{
	KindSearch: {
		FieldNoResults, FieldPagination, FieldPageLinks,
		FieldItemURL, FieldItemTitle,
	},
	KindArticle: {
		FieldTitle, FieldDescription, FieldBody, FieldMetadata,
	},
	KindComments: {
		FieldCommentsPresent, FieldCommentCount, FieldPagination,
		FieldPageLinks, FieldItemAuthor, FieldItemContent,
	},
}

// Required returns the fields a group of the given kind must define.
func Required(k Kind) []Field {
	return append([]Field(nil), required[k]...)
}

// Defaults returns a fresh copy of the built-in selector definitions.
func Defaults() Definitions {
	return Definitions{
		KindSearch: {
			FieldNoResults:  {Query: "p.search__no-result"},
			FieldPagination: {Query: "a.river__pagination"},
			FieldPageLinks:  {Query: "a.river__pagination.river__pagination--page-search"},
			FieldItemURL:    {Query: "a.teaser__link", Attr: "href"},
			FieldItemTitle:  {Query: "h3.teaser__title"},
		},
		KindArticle: {
			FieldTitle:       {Query: "h1.article__title"},
			FieldDescription: {Query: "p.article__desc"},
			FieldBody:        {Query: "p.article__paragraph"},
			FieldMetadata:    {Query: "script"},
		},
		KindComments: {
			FieldCommentsPresent: {Query: "h3.comments__title"},
			FieldCommentCount:    {Query: "h3.comments__title"},
			FieldPagination:      {Query: "ul.pagination__list"},
			FieldPageLinks:       {Query: "a.pagination__link"},
			FieldItemAuthor:      {Query: "span.comment__author"},
			FieldItemContent:     {Query: "p.comment__content"},
		},
	}
}

// Group is the immutable set of selectors for one page kind.
type Group struct {
	kind   Kind
	fields map[Field]Selector
}

// Kind returns the page kind this group describes.
func (g Group) Kind() Kind {
	return g.kind
}

// Get returns the selector for a field.
func (g Group) Get(f Field) (Selector, bool) {
	s, ok := g.fields[f]
	return s, ok
}

// Registry is the validated, read-only set of groups.
type Registry struct {
	groups map[Kind]Group
}

// New validates defs and builds a registry. Every kind must define every
// required field with a query that compiles.
func New(defs Definitions) (*Registry, error) {
	var problems []string

	groups := make(map[Kind]Group, len(Kinds))
	for _, kind := range Kinds {
		fields, ok := defs[kind]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: group missing", kind))
			continue
		}

		for _, f := range required[kind] {
			sel, ok := fields[f]
			if !ok || strings.TrimSpace(sel.Query) == "" {
				problems = append(problems, fmt.Sprintf("%s.%s: selector missing", kind, f))
			}
		}

		copied := make(map[Field]Selector, len(fields))
		for f, sel := range fields {
			sel.Query = strings.TrimSpace(sel.Query)
			sel.Attr = strings.TrimSpace(sel.Attr)
			if sel.Query != "" {
				if _, err := cascadia.Compile(sel.Query); err != nil {
					problems = append(problems, fmt.Sprintf("%s.%s: invalid query %q: %v", kind, f, sel.Query, err))
				}
			}
			copied[f] = sel
		}
		groups[kind] = Group{kind: kind, fields: copied}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("invalid selector registry: %s", strings.Join(problems, "; "))
	}

	return &Registry{groups: groups}, nil
}

var defaultRegistry = mustNew(Defaults())

func mustNew(defs Definitions) *Registry {
	r, err := New(defs)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry
}

// Group returns the selectors for a page kind.
func (r *Registry) Group(k Kind) Group {
	return r.groups[k]
}

// Merge overlays overrides on top of base and returns the result. Neither
// input is modified.
func Merge(base, overrides Definitions) Definitions {
	out := make(Definitions, len(base))
	for kind, fields := range base {
		out[kind] = make(map[Field]Selector, len(fields))
		for f, sel := range fields {
			out[kind][f] = sel
		}
	}
	for kind, fields := range overrides {
		if out[kind] == nil {
			out[kind] = make(map[Field]Selector, len(fields))
		}
		for f, sel := range fields {
			out[kind][f] = sel
		}
	}
	return out
}
