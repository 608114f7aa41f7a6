package media

import "fmt"

// DownloadError reports a media request that did not return 200 OK.
// No file is written when it is returned.
type DownloadError struct {
	Identifier string
	URL        string
	Status     int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("downloading media for post %s: %v", e.Identifier, e.Err)
	}
	return fmt.Sprintf("%d error downloading media for post %s", e.Status, e.Identifier)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// PathError reports that neither the derived nor the fallback filename could be written.
type PathError struct {
	Identifier string
	Filename   string
	Err        error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("writing media %s for post %s: %v", e.Filename, e.Identifier, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }
