// Command lmdcrawl searches lemonde.fr, extracts articles and their comments,
// and keeps the results in a local SQLite dataset.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	format     string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "lmdcrawl",
		Short: "Crawl lemonde.fr search results, articles and comments",
		Long: `lmdcrawl fetches lemonde.fr pages under a shared rate budget and extracts
structured records from them: search hits, articles with their metadata, and
reader comments.

Configuration is read from ~/.lmdcrawl/config.yaml (or --config) and
LMDCRAWL_* environment variables. Subscriber tokens are read from LMD_M and
LMD_S, loaded from ./.env or --env-file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validFormat(opts.format)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default is ~/.lmdcrawl/config.yaml)")
	flags.StringVar(&opts.envFile, "env-file", "", "file holding LMD_M and LMD_S (default is ./.env)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.format, "format", formatTable, "output format: table, json")

	root.AddCommand(
		newSearchCommand(opts),
		newArticleCommand(opts),
		newCommentsCommand(opts),
		newBatchCommand(opts),
		newFeedCommand(opts),
		newDatasetCommand(opts),
		newServeCommand(opts),
	)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
