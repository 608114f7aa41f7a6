// Package sync drives one incremental run: read the identifier export, drop
// what the ledger already knows, look up the rest in batches, download the
// media and persist the documents and the ledger.
package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pders01/likesync/internal/archive"
	"github.com/pders01/likesync/internal/config"
	"github.com/pders01/likesync/internal/debuglog"
	"github.com/pders01/likesync/internal/likes"
	"github.com/pders01/likesync/internal/media"
	"github.com/pders01/likesync/internal/storage"
	"github.com/pders01/likesync/internal/upstream"
)

// ErrExportNotFound is returned when the identifier export does not exist.
// It ends the run cleanly.
var ErrExportNotFound = errors.New("identifier export not found")

// MediaFetcher downloads one media item. *media.Fetcher implements it.
type MediaFetcher interface {
	Fetch(ctx context.Context, identifier, filename, url, destDir string, force bool) (*media.Result, error)
}

// Listener is told about the favorites a run committed. Listener errors are
// logged and do not fail the run.
type Listener interface {
	OnSynced(ctx context.Context, favorites []*likes.Favorite) error
}

// ProgressFunc is called as media downloads advance.
type ProgressFunc func(done, total int)

type Options struct {
	ExportPath   string
	DownloadsDir string
	// Force re-queues identifiers the ledger already has and re-downloads
	// media that is already on disk.
	Force     bool
	BatchSize int
	Progress  ProgressFunc
}

// OptionsFromConfig derives run options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ExportPath:   cfg.ExportPath(),
		DownloadsDir: cfg.DownloadsDir(),
		Force:        cfg.Media.ForceRedownload,
		BatchSize:    cfg.Upstream.BatchSize,
	}
}

// Orchestrator owns the seen-set and the ledger for the length of a run.
// It is not safe for concurrent use.
type Orchestrator struct {
	ledger    storage.Ledger
	client    upstream.Client
	fetcher   MediaFetcher
	timeline  archive.Document
	favorites archive.Document
	listeners []Listener
	opts      Options
	state     State
}

func New(ledger storage.Ledger, client upstream.Client, fetcher MediaFetcher, timeline, favorites archive.Document, opts Options) *Orchestrator {
	if opts.BatchSize <= 0 || opts.BatchSize > upstream.MaxBatch {
		opts.BatchSize = upstream.MaxBatch
	}
	return &Orchestrator{
		ledger:    ledger,
		client:    client,
		fetcher:   fetcher,
		timeline:  timeline,
		favorites: favorites,
		opts:      opts,
	}
}

// AddListener registers l to be notified after a successful commit.
func (o *Orchestrator) AddListener(l Listener) {
	o.listeners = append(o.listeners, l)
}

func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) setState(s State) {
	debuglog.Debugf("sync: %s -> %s", o.state, s)
	o.state = s
}

func (o *Orchestrator) fail(err error) error {
	debuglog.Errorf("sync failed while %s: %v", o.state, err)
	o.state = StateFailed
	return err
}

// fetched pairs the verbatim record with its favorite.
type fetched struct {
	record   json.RawMessage
	favorite *likes.Favorite
}

// Run performs one sync. The report is returned even when the run fails so
// the caller can show how far it got.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	o.setState(StateReadingExport)
	ids, err := readExport(o.opts.ExportPath)
	if err != nil {
		return report, o.fail(err)
	}
	report.Read = len(ids)

	o.setState(StateFiltering)
	committed, err := o.ledger.LoadSeenIdentifiers(ctx)
	if err != nil {
		return report, o.fail(fmt.Errorf("loading seen identifiers: %w", err))
	}
	queue := o.filter(ids, committed, report)

	o.setState(StateBatching)
	batches := batch(queue, o.opts.BatchSize)
	report.Batches = len(batches)

	o.setState(StateFetching)
	var raw []json.RawMessage
	for i, b := range batches {
		posts, err := o.client.FetchBatch(ctx, b)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, o.fail(ctxErr)
			}
			report.FailedBatches++
			debuglog.WithFields(map[string]interface{}{"batch": i + 1, "size": len(b)}).
				Warnf("lookup failed, identifiers will be retried next run: %v", err)
			continue
		}
		raw = append(raw, posts...)
	}
	report.Fetched = len(raw)

	o.setState(StateNormalizing)
	posts := o.normalize(raw, report)
	report.Favorited = len(posts)

	o.setState(StateDownloadingMedia)
	o.downloadMedia(ctx, posts, report)

	o.setState(StatePersisting)
	if err := o.persist(ctx, posts, committed, report); err != nil {
		return report, o.fail(err)
	}

	o.notify(ctx, posts)

	o.setState(StateDone)
	return report, nil
}

// readExport returns the trimmed, non-blank lines of the export.
func readExport(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			// Editors on some platforms prefix the file with a byte order mark.
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	return ids, nil
}

// filter drops identifiers already committed, unless forced, and any
// identifier already queued earlier in this run.
func (o *Orchestrator) filter(ids []string, committed map[string]struct{}, report *Report) []string {
	queued := make(map[string]struct{}, len(ids))
	queue := make([]string, 0, len(ids))

	for _, id := range ids {
		if _, ok := queued[id]; ok {
			report.Rejected++
			continue
		}
		if _, ok := committed[id]; ok && !o.opts.Force {
			report.Rejected++
			continue
		}
		queued[id] = struct{}{}
		queue = append(queue, id)
	}

	report.Queued = len(queue)
	return queue
}

func batch(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

func (o *Orchestrator) normalize(raw []json.RawMessage, report *Report) []fetched {
	posts := make([]fetched, 0, len(raw))
	accepted := make(map[string]struct{}, len(raw))

	for i, r := range raw {
		record, fav, err := likes.Normalize(r)
		if err != nil {
			report.Invalid++
			debuglog.WithFields(map[string]interface{}{"position": i}).Warnf("dropping post: %v", err)
			continue
		}
		if _, dup := accepted[fav.ID]; dup {
			debuglog.WithFields(map[string]interface{}{"post": fav.ID}).Debugf("upstream returned post twice")
			continue
		}
		accepted[fav.ID] = struct{}{}
		posts = append(posts, fetched{record: record, favorite: fav})
	}
	return posts
}

func (o *Orchestrator) downloadMedia(ctx context.Context, posts []fetched, report *Report) {
	for i, p := range posts {
		fav := p.favorite
		created, err := fav.Created()
		if err != nil {
			// Normalize already rejects unparsable dates.
			continue
		}
		date := media.DateLabel(created)

		for idx, ref := range fav.Media {
			name := media.DeriveFilename(date, fav.ID, idx, ref.Type)
			res, err := o.fetcher.Fetch(ctx, fav.ID, name, ref.URL, o.opts.DownloadsDir, o.opts.Force)
			if err != nil {
				report.MediaFailed++
				debuglog.WithFields(map[string]interface{}{"post": fav.ID, "media": ref.ID}).
					Warnf("media not downloaded: %v", err)
				continue
			}

			ref.Filename = res.Filename
			switch res.Status {
			case media.StatusSkipped:
				report.MediaSkipped++
			default:
				report.MediaDownloaded++
			}
		}

		if o.opts.Progress != nil {
			o.opts.Progress(i+1, len(posts))
		}
	}
}

// persist appends to both documents and then commits the ledger, in that
// order. A failure after the documents were written leaves them ahead of the
// ledger; the posts are fetched and appended again on the next run.
func (o *Orchestrator) persist(ctx context.Context, posts []fetched, committed map[string]struct{}, report *Report) error {
	if len(posts) == 0 {
		return nil
	}

	records := make([]json.RawMessage, 0, len(posts))
	favorites := make([]json.RawMessage, 0, len(posts))
	entries := make([]*storage.LedgerEntry, 0, len(posts))

	for _, p := range posts {
		records = append(records, p.record)

		data, err := json.Marshal(p.favorite)
		if err != nil {
			return o.serializationError(&storage.SerializationError{
				Identifier: p.favorite.ID,
				Raw:        string(p.record),
				Err:        err,
			})
		}
		favorites = append(favorites, data)

		if _, ok := committed[p.favorite.ID]; ok {
			continue
		}
		entries = append(entries, &storage.LedgerEntry{
			Identifier: p.favorite.ID,
			PostData:   p.favorite,
			Filenames:  p.favorite.Filenames(),
		})
	}

	if err := archive.AppendMerge(o.timeline, records); err != nil {
		return fmt.Errorf("writing timeline: %w", err)
	}
	if err := archive.AppendMerge(o.favorites, favorites); err != nil {
		return fmt.Errorf("writing favorites: %w", err)
	}

	if err := o.ledger.Append(ctx, entries); err != nil {
		return o.serializationError(err)
	}
	report.Committed = len(entries)
	return nil
}

// serializationError logs the offending record before handing err back.
func (o *Orchestrator) serializationError(err error) error {
	var serr *storage.SerializationError
	if errors.As(err, &serr) {
		debuglog.WithFields(map[string]interface{}{"post": serr.Identifier}).
			Errorf("cannot serialize post: %v; raw content: %s", serr.Err, serr.Raw)
		return err
	}
	return fmt.Errorf("committing ledger: %w", err)
}

func (o *Orchestrator) notify(ctx context.Context, posts []fetched) {
	if len(o.listeners) == 0 || len(posts) == 0 {
		return
	}

	favorites := make([]*likes.Favorite, len(posts))
	for i, p := range posts {
		favorites[i] = p.favorite
	}
	for _, l := range o.listeners {
		if err := l.OnSynced(ctx, favorites); err != nil {
			debuglog.Warnf("sync listener: %v", err)
		}
	}
}
