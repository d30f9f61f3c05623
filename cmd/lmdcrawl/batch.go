package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pevans/lmdcrawl"
	"github.com/pevans/lmdcrawl/crawl"
)

func newBatchCommand(opts *globalOptions) *cobra.Command {
	var (
		file         string
		feeds        []string
		workers      int
		keyword      string
		withComments bool
		commentPages int
		save         bool
	)

	cmd := &cobra.Command{
		Use:   "batch [url]...",
		Short: "Extract many articles concurrently",
		Long: `Batch extracts every article URL given as an argument, listed in --file
(one per line, # starts a comment) or linked from the RSS feeds given with
--feed. Workers share one rate budget and page cache.

Examples:
  lmdcrawl batch --file urls.txt --workers 4 --comments --save
  lmdcrawl batch --feed https://www.lemonde.fr/rss/une.xml --keyword politique`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			urls := append([]string(nil), args...)
			if file != "" {
				fromFile, err := readURLFile(file)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			for _, feed := range feeds {
				fromFeed, err := a.crawler.FeedURLs(cmd.Context(), feed)
				if err != nil {
					return err
				}
				urls = append(urls, fromFeed...)
			}
			urls = dedupe(urls)
			if len(urls) == 0 {
				return errors.New("no URLs to crawl: pass them as arguments, --file or --feed")
			}

			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Crawl.Workers
			}
			result, runErr := a.crawler.Batch(cmd.Context(), urls, crawl.BatchOptions{
				Workers:      workers,
				Keyword:      keyword,
				WithComments: withComments,
				CommentPages: a.pages(commentPages, cmd.Flags().Changed("comment-pages")),
			})

			if save {
				if err := a.saveBatch(result); err != nil {
					return err
				}
			}

			if opts.format == formatJSON {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				printBatchTable(cmd.OutOrStdout(), result)
			}

			if runErr != nil {
				return fmt.Errorf("batch interrupted: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "file listing article URLs")
	cmd.Flags().StringSliceVar(&feeds, "feed", nil, "RSS feed whose article links are crawled (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", 2, "concurrent articles")
	cmd.Flags().StringVar(&keyword, "keyword", "", "keep only articles tagged with this keyword")
	cmd.Flags().BoolVar(&withComments, "comments", false, "also extract each article's comments")
	cmd.Flags().IntVar(&commentPages, "comment-pages", 0, "maximum comment pages per article, 0 for all")
	cmd.Flags().BoolVar(&save, "save", false, "store articles and comments in the dataset")

	return cmd
}

func newFeedCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "feed <feed-url>",
		Short: "List the article URLs linked from an RSS feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			urls, err := a.crawler.FeedURLs(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if opts.format == formatJSON {
				return printJSON(cmd.OutOrStdout(), urls)
			}
			for _, u := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
}

func (a *app) saveBatch(r crawl.BatchResult) error {
	var articles []lmdcrawl.Article
	var threads []lmdcrawl.CommentThread
	for _, item := range r.Items {
		if item.Article != nil {
			articles = append(articles, *item.Article)
		}
		if item.Comments != nil {
			threads = append(threads, *item.Comments)
		}
	}
	if len(articles) == 0 {
		a.log.Info("nothing to store")
		return nil
	}

	if err := a.saveArticles(articles); err != nil {
		return err
	}
	return a.saveThreads(threads)
}

// readURLFile reads one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL file: %w", err)
	}
	defer f.Close()

	urls, err := readURLs(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL file: %w", err)
	}
	return urls, nil
}

func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

// dedupe drops repeated URLs, keeping first occurrences in order.
func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

