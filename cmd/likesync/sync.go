package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pders01/likesync/internal/archive"
	"github.com/pders01/likesync/internal/config"
	"github.com/pders01/likesync/internal/debuglog"
	"github.com/pders01/likesync/internal/media"
	"github.com/pders01/likesync/internal/search"
	"github.com/pders01/likesync/internal/storage"
	"github.com/pders01/likesync/internal/sync"
	"github.com/pders01/likesync/internal/upstream"
	"github.com/pders01/likesync/internal/validation"
)

var (
	forceRedownload bool
	noIndex         bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch new likes from the identifier export and download their media",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if forceRedownload {
			cfg.Media.ForceRedownload = true
		}

		if err := setupLogging(cfg); err != nil {
			return err
		}
		defer debuglog.Close()

		out := cmd.OutOrStdout()
		if !quiet {
			showBanner(out)
		}

		client, err := upstream.NewHTTPClient(cfg)
		if err != nil {
			return err
		}
		return runSync(cmd.Context(), cfg, client, out)
	},
}

// runSync wires the stores and runs one sync against client.
func runSync(ctx context.Context, cfg *config.Config, client upstream.Client, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	paths := validation.NewPathValidator()
	if _, err := paths.Directory(cfg.Account.WorkDir, true); err != nil {
		return fmt.Errorf("work directory: %w", err)
	}
	ledgerPath, err := paths.File(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("ledger path: %w", err)
	}

	ledger, err := storage.Open(cfg.Database.Backend, ledgerPath, cfg.Database.Timeout)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if err := ledger.Initialize(ctx); err != nil {
		return err
	}

	downloads := cfg.DownloadsDir()
	opts := sync.OptionsFromConfig(cfg)
	if !quiet {
		opts.Progress = func(done, total int) {
			fmt.Fprintf(out, "\rProcessing media of post %d/%d", done, total)
			if done == total {
				fmt.Fprintln(out)
			}
		}
	}

	orchestrator := sync.New(
		ledger,
		client,
		media.NewFetcher(cfg),
		archive.NewFileDocument(filepath.Join(downloads, archive.TimelineFile)),
		archive.NewFileDocument(filepath.Join(downloads, archive.FavoritesFile)),
		opts,
	)

	var index search.SyncListener
	if !noIndex {
		idx, err := search.NewBleveEngine(ctx, ledger, cfg.Database.SearchIndex)
		if err != nil {
			debuglog.Warnf("search index unavailable: %v", err)
		} else {
			defer idx.Close()
			index = idx
			orchestrator.AddListener(index)
		}
	}

	report, err := orchestrator.Run(ctx)
	if errors.Is(err, sync.ErrExportNotFound) {
		fmt.Fprintf(out, "Identifier export not found at %s, nothing to do\n", opts.ExportPath)
		return nil
	}
	if err != nil {
		return err
	}

	if ds, ok := index.(search.DebugStatser); ok {
		if n, err := ds.DocCount(); err == nil {
			debuglog.Debugf("search index holds %d favorites", n)
		}
	}

	fmt.Fprintln(out, renderReport(report))
	return nil
}

func init() {
	syncCmd.Flags().BoolVarP(&forceRedownload, "force", "f", false, "Re-fetch known identifiers and re-download existing media")
	syncCmd.Flags().BoolVar(&noIndex, "no-index", false, "Do not update the search index")
	rootCmd.AddCommand(syncCmd)
}
