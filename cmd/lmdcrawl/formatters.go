package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pevans/lmdcrawl"
	"github.com/pevans/lmdcrawl/crawl"
	"github.com/pevans/lmdcrawl/store"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
)

const (
	titleWidth   = 70
	summaryWidth = 150
	tableWidth   = 160
	contentWidth = 80
)

func validFormat(f string) error {
	if f != formatTable && f != formatJSON {
		return fmt.Errorf("invalid format %q: expected table or json", f)
	}
	return nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetAllowedRowLength(tableWidth)
	return t
}

// printSearchTable prints search hits, one row per hit.
func printSearchTable(w io.Writer, r lmdcrawl.SearchResult) {
	if !r.HasResults {
		fmt.Fprintf(w, "No results for %q.\n", r.Query)
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "TITLE", "URL"})
	for i, hit := range r.Hits {
		t.AppendRow(table.Row{i + 1, truncate(hit.Title, titleWidth), hit.URL})
	}
	t.AppendFooter(table.Row{"Total", r.Retrieved(), fmt.Sprintf("%d page(s) available", r.PageCount)})
	t.Render()
}

// printArticle prints one article in a readable block.
func printArticle(w io.Writer, a lmdcrawl.Article) {
	fmt.Fprintln(w, a.Title)
	if a.Description != nil {
		fmt.Fprintf(w, "   %s\n", truncate(*a.Description, summaryWidth))
	}

	var meta []string
	if a.Date != "" {
		meta = append(meta, "Published: "+a.Date)
	}
	if a.ArticleType != "" {
		meta = append(meta, "Type: "+a.ArticleType)
	}
	if a.Premium {
		meta = append(meta, "Premium")
	}
	if a.AllowComments {
		meta = append(meta, "Comments open")
	}
	if len(meta) > 0 {
		fmt.Fprintf(w, "   %s\n", strings.Join(meta, " | "))
	}
	if len(a.Keywords) > 0 {
		fmt.Fprintf(w, "   Keywords: %s\n", strings.Join(a.Keywords, ", "))
	}
	if a.ArticleID != nil {
		fmt.Fprintf(w, "   ID: %d\n", *a.ArticleID)
	}
	fmt.Fprintf(w, "   URL: %s\n", a.URL)
	if a.Content != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, indent(text.WrapSoft(a.Content, contentWidth), "   "))
	}
	fmt.Fprintln(w)
}

// printThread prints a comment thread as a table.
func printThread(w io.Writer, c lmdcrawl.CommentThread) {
	if c.Count == 0 {
		fmt.Fprintln(w, "No comments.")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "AUTHOR", "COMMENT"})
	for i, cm := range c.Comments {
		t.AppendRow(table.Row{i + 1, cm.Author, truncate(cm.Content, summaryWidth)})
	}
	footer := fmt.Sprintf("%d of %d retrieved", len(c.Comments), c.Count)
	t.AppendFooter(table.Row{"", "", footer})
	t.Render()
}

// printBatchTable prints one row per batch input.
func printBatchTable(w io.Writer, r crawl.BatchResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"STATUS", "TITLE", "COMMENTS", "URL"})
	for _, item := range r.Items {
		status, title, comments := "ok", "", ""
		switch {
		case item.Err != nil:
			status = "error"
			title = truncate(item.Err.Error(), titleWidth)
		case item.Skipped != "":
			status = "skipped: " + item.Skipped
		case item.Article != nil:
			title = truncate(item.Article.Title, titleWidth)
		}
		if item.Comments != nil {
			comments = fmt.Sprintf("%d/%d", len(item.Comments.Comments), item.Comments.Count)
		}
		t.AppendRow(table.Row{status, title, comments, item.URL})
	}
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d articles, %d skipped, %d failed", r.Articles, r.Skipped, r.Failed),
		"", "",
	})
	t.Render()
}

// printStats prints dataset counts.
func printStats(w io.Writer, path string, st store.Stats) {
	t := newTable(w)
	t.AppendHeader(table.Row{"TABLE", "ROWS"})
	t.AppendRow(table.Row{"articles", st.Articles})
	t.AppendRow(table.Row{"comments", st.Comments})
	t.AppendRow(table.Row{"searches", st.Searches})
	t.AppendFooter(table.Row{"Dataset", path})
	t.Render()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// indent prefixes each non-blank line and drops the trailing padding left by
// soft wrapping.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		l = strings.TrimRight(l, " ")
		if l != "" {
			l = prefix + l
		}
		lines[i] = l
	}
	return strings.Join(lines, "\n")
}
