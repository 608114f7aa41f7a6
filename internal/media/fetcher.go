package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pders01/likesync/internal/config"
	"github.com/pders01/likesync/internal/debuglog"
	"github.com/pders01/likesync/internal/validation"
)

// partSuffix marks a download in progress. A file only gets its final name
// once the body has been fully written.
const partSuffix = ".part"

// Status describes what Fetch did with a media item.
type Status int

const (
	StatusDownloaded Status = iota
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result carries the filename actually used, which differs from the
// requested one when the fallback name had to be applied.
type Result struct {
	Filename string
	Status   Status
}

type Fetcher struct {
	client       *http.Client
	userAgent    string
	chunkSize    int
	urlValidator *validation.URLValidator
}

func NewFetcher(cfg *config.Config) *Fetcher {
	chunkSize := cfg.Media.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 10 * 1024 * 1024
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Media.HTTPTimeout,
		},
		userAgent:    cfg.Upstream.UserAgent,
		chunkSize:    chunkSize,
		urlValidator: validation.NewURLValidator(),
	}
}

// SetPermissiveValidation allows plain http and local hosts, for tests and mirrors.
func (f *Fetcher) SetPermissiveValidation(permissive bool) {
	if permissive {
		f.urlValidator = validation.NewPermissiveURLValidator()
	} else {
		f.urlValidator = validation.NewURLValidator()
	}
}

// Fetch downloads url into destDir/filename. An existing file is left alone
// unless force is set. When filename cannot be created the post id based
// fallback name is tried once before giving up with a PathError.
func (f *Fetcher) Fetch(ctx context.Context, identifier, filename, url, destDir string, force bool) (*Result, error) {
	log := debuglog.WithFields(map[string]interface{}{"post": identifier, "file": filename})

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating downloads directory: %w", err)
	}

	if !force {
		if name, ok := existing(destDir, filename, identifier); ok {
			log.Infof("already exists, skipping download")
			return &Result{Filename: name, Status: StatusSkipped}, nil
		}
	}

	target, err := f.urlValidator.Validate(url)
	if err != nil {
		return nil, &DownloadError{Identifier: identifier, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &DownloadError{Identifier: identifier, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &DownloadError{Identifier: identifier, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &DownloadError{Identifier: identifier, URL: url, Status: resp.StatusCode}
	}

	file, name, err := create(destDir, filename, identifier)
	if err != nil {
		return nil, err
	}

	if err := f.stream(file, resp.Body); err != nil {
		_ = os.Remove(file.Name())
		return nil, fmt.Errorf("writing media for post %s: %w", identifier, err)
	}

	if err := os.Rename(file.Name(), filepath.Join(destDir, name)); err != nil {
		_ = os.Remove(file.Name())
		return nil, &PathError{Identifier: identifier, Filename: name, Err: err}
	}

	log.Debugf("downloaded as %s", name)
	return &Result{Filename: name, Status: StatusDownloaded}, nil
}

// stream copies body in chunkSize pieces and always closes file.
func (f *Fetcher) stream(file *os.File, body io.Reader) (err error) {
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	buf := make([]byte, f.chunkSize)
	// Wrapping both ends hides ReadFrom/WriteTo so the copy goes through buf.
	_, err = io.CopyBuffer(struct{ io.Writer }{file}, struct{ io.Reader }{body}, buf)
	return err
}

// create opens the partial file for filename, falling back to the post id
// based name exactly once.
func create(destDir, filename, identifier string) (*os.File, string, error) {
	file, err := openPart(filepath.Join(destDir, filename))
	if err == nil {
		return file, filename, nil
	}

	fallback := FallbackFilename(filename, identifier)
	if fallback == filename {
		return nil, "", &PathError{Identifier: identifier, Filename: filename, Err: err}
	}

	debuglog.WithFields(map[string]interface{}{"post": identifier, "file": filename}).
		Warnf("cannot create file (%v), retrying as %s", err, fallback)

	file, err = openPart(filepath.Join(destDir, fallback))
	if err != nil {
		return nil, "", &PathError{Identifier: identifier, Filename: fallback, Err: err}
	}
	return file, fallback, nil
}

func openPart(path string) (*os.File, error) {
	return os.OpenFile(path+partSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// existing reports the name under which the media is already on disk. The
// fallback name is only consulted when the derived name cannot even be
// stat'ed, which is how an earlier run ended up using it.
//
// The fallback carries no media index, so every attachment of a post shares
// it. When two attachments of one post both need the fallback, the second is
// reported as skipped with the first one's file.
func existing(destDir, filename, identifier string) (string, bool) {
	_, err := os.Stat(filepath.Join(destDir, filename))
	if err == nil {
		return filename, true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return "", false
	}

	fallback := FallbackFilename(filename, identifier)
	if _, err := os.Stat(filepath.Join(destDir, fallback)); err == nil {
		return fallback, true
	}
	return "", false
}
