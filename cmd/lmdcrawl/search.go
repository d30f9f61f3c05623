package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pevans/lmdcrawl/crawl"
	"github.com/pevans/lmdcrawl/logger"
)

// dateLayout is the format of --start and --end.
const dateLayout = "2006-01-02"

func newSearchCommand(opts *globalOptions) *cobra.Command {
	var (
		start, end string
		sort       string
		pages      int
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search articles",
		Long: `Search runs a site search and lists the matching articles.

Examples:
  lmdcrawl search macron --pages 2
  lmdcrawl search "réforme des retraites" --start 2023-01-01 --end 2023-03-31 --sort oldest`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQuery(strings.Join(args, " "), start, end, sort)
			if err != nil {
				return err
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.crawler.Search(cmd.Context(), q, a.pages(pages, cmd.Flags().Changed("pages")))
			if err != nil {
				if result.Retrieved() == 0 {
					return fmt.Errorf("search failed: %w", err)
				}
				a.log.Warn("search stopped early, showing partial results", logger.Err(err))
			}

			if save {
				s, err := a.openStore()
				if err != nil {
					return err
				}
				defer s.Close()

				id, err := s.SaveSearch(result)
				if err != nil {
					return err
				}
				a.log.Info("search stored", logger.String("search_id", id.String()))
			}

			if opts.format == formatJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printSearchTable(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "earliest publication date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "latest publication date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sort, "sort", "newest", "result order: newest, oldest")
	cmd.Flags().IntVar(&pages, "pages", 0, "maximum result pages to walk, 0 for all")
	cmd.Flags().BoolVar(&save, "save", false, "store the result in the dataset")

	return cmd
}

// buildQuery validates the search flags.
func buildQuery(text, start, end, sort string) (crawl.SearchQuery, error) {
	q := crawl.SearchQuery{Query: strings.TrimSpace(text)}

	var err error
	if start != "" {
		if q.Start, err = time.Parse(dateLayout, start); err != nil {
			return q, fmt.Errorf("invalid --start %q: expected YYYY-MM-DD", start)
		}
	}
	if end != "" {
		if q.End, err = time.Parse(dateLayout, end); err != nil {
			return q, fmt.Errorf("invalid --end %q: expected YYYY-MM-DD", end)
		}
	}

	switch sort {
	case "newest", "":
		q.Sort = crawl.SortNewest
	case "oldest":
		q.Sort = crawl.SortOldest
	default:
		return q, fmt.Errorf("invalid --sort %q: expected newest or oldest", sort)
	}

	return q, q.Validate()
}
