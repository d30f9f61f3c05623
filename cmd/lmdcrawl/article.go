package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pevans/lmdcrawl"
	"github.com/pevans/lmdcrawl/logger"
)

func newArticleCommand(opts *globalOptions) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "article <url>...",
		Short: "Extract articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			var articles []lmdcrawl.Article
			var errs []error
			for _, u := range args {
				article, err := a.crawler.Article(cmd.Context(), u)
				if err != nil {
					a.log.Error("failed to extract article", logger.String("url", u), logger.Err(err))
					errs = append(errs, err)
					continue
				}
				articles = append(articles, article)
			}

			if save && len(articles) > 0 {
				if err := a.saveArticles(articles); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if opts.format == formatJSON {
				if err := printJSON(out, articles); err != nil {
					return err
				}
			} else {
				for _, article := range articles {
					printArticle(out, article)
				}
			}

			if len(errs) > 0 {
				return fmt.Errorf("%d of %d article(s) failed: %w", len(errs), len(args), errors.Join(errs...))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "store the articles in the dataset")

	return cmd
}

func newCommentsCommand(opts *globalOptions) *cobra.Command {
	var (
		pages int
		save  bool
	)

	cmd := &cobra.Command{
		Use:   "comments <article-url>",
		Short: "Extract the reader comments of an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			article, err := a.crawler.Article(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			thread, err := a.crawler.CommentsPaged(cmd.Context(), article, a.pages(pages, cmd.Flags().Changed("pages")))
			if err != nil {
				if len(thread.Comments) == 0 {
					return err
				}
				a.log.Warn("comments stopped early, showing partial thread", logger.Err(err))
			}

			if save {
				if err := a.saveArticles([]lmdcrawl.Article{article}); err != nil {
					return err
				}
				if err := a.saveThreads([]lmdcrawl.CommentThread{thread}); err != nil {
					return err
				}
			}

			if opts.format == formatJSON {
				return printJSON(cmd.OutOrStdout(), thread)
			}
			printThread(cmd.OutOrStdout(), thread)
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 0, "maximum comment pages to walk, 0 for all")
	cmd.Flags().BoolVar(&save, "save", false, "store the article and comments in the dataset")

	return cmd
}

// saveArticles stores articles that carry an id; the others are skipped with
// a warning.
func (a *app) saveArticles(articles []lmdcrawl.Article) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	added := 0
	for _, article := range articles {
		if article.ArticleID == nil {
			a.log.Warn("article has no id, not stored", logger.String("url", article.URL))
			continue
		}
		inserted, err := s.SaveArticle(article)
		if err != nil {
			return err
		}
		if inserted {
			added++
		}
	}

	a.log.Info("articles stored", logger.Int("new", added), logger.Int("seen", len(articles)))
	return nil
}

func (a *app) saveThreads(threads []lmdcrawl.CommentThread) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	added := 0
	for _, thread := range threads {
		if thread.ArticleID == nil || len(thread.Comments) == 0 {
			continue
		}
		n, err := s.SaveComments(thread)
		if err != nil {
			return err
		}
		added += n
	}

	a.log.Info("comments stored", logger.Int("new", added))
	return nil
}
