package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/store"
)

func newDatasetCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage the local dataset",
	}
	cmd.AddCommand(newDatasetImportCommand(opts), newDatasetStatsCommand(opts))
	return cmd
}

func newDatasetImportCommand(opts *globalOptions) *cobra.Command {
	var articlesDir, commentsDir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load article and comment JSON files into the dataset",
		Long: `Import reads every *.json file of the given directories. A file may hold
one record or an array of records. Records already present are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if articlesDir == "" && commentsDir == "" {
				return errors.New("nothing to import: set --articles and/or --comments")
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			report := map[string]store.ImportStats{}
			// Articles first so their comments land on known ids.
			if articlesDir != "" {
				st, err := s.ImportArticles(articlesDir)
				if err != nil {
					return err
				}
				report["articles"] = st
				a.log.Info("articles imported",
					logger.String("dir", articlesDir),
					logger.Int("files", st.Files),
					logger.Int("new", st.Articles),
					logger.Int("skipped", st.Skipped),
				)
			}
			if commentsDir != "" {
				st, err := s.ImportComments(commentsDir)
				if err != nil {
					return err
				}
				report["comments"] = st
				a.log.Info("comments imported",
					logger.String("dir", commentsDir),
					logger.Int("files", st.Files),
					logger.Int("new", st.Comments),
					logger.Int("skipped", st.Skipped),
				)
			}

			stats, err := s.Stats()
			if err != nil {
				return err
			}
			if opts.format == formatJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"imported": report, "dataset": stats})
			}
			printStats(cmd.OutOrStdout(), a.cfg.Storage.Path, stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&articlesDir, "articles", "", "directory of article JSON files")
	cmd.Flags().StringVar(&commentsDir, "comments", "", "directory of comment thread JSON files")

	return cmd
}

func newDatasetStatsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count the records in the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Stats()
			if err != nil {
				return err
			}
			if opts.format == formatJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			printStats(cmd.OutOrStdout(), a.cfg.Storage.Path, stats)
			return nil
		},
	}
}
