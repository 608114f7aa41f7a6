package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/likesync/internal/debuglog"
	"github.com/pders01/likesync/internal/search"
	"github.com/pders01/likesync/internal/storage"
	"github.com/pders01/likesync/internal/validation"
)

var (
	searchLimit int
	scanSearch  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search archived favorites by text, author or filename",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := setupLogging(cfg); err != nil {
			return err
		}
		defer debuglog.Close()

		ledgerPath, err := validation.NewPathValidator().File(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("ledger path: %w", err)
		}

		ctx := cmd.Context()
		ledger, err := storage.Open(cfg.Database.Backend, ledgerPath, cfg.Database.Timeout)
		if err != nil {
			return err
		}
		defer ledger.Close()
		if err := ledger.Initialize(ctx); err != nil {
			return err
		}

		var searcher search.Searcher
		if scanSearch {
			searcher = search.NewEngine(ledger)
		} else {
			idx, err := search.NewBleveEngine(ctx, ledger, cfg.Database.SearchIndex)
			if err != nil {
				debuglog.Warnf("search index unavailable, scanning ledger: %v", err)
				searcher = search.NewEngine(ledger)
			} else {
				defer idx.Close()
				searcher = idx
			}
		}

		results, err := searcher.Search(strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No matches")
			return nil
		}
		for _, r := range results {
			fmt.Fprintln(out, renderResult(r))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Maximum number of results")
	searchCmd.Flags().BoolVar(&scanSearch, "scan", false, "Scan the ledger instead of using the search index")
	rootCmd.AddCommand(searchCmd)
}
