package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LedgerEntry is one processed post. Entries are only ever appended.
type LedgerEntry struct {
	// CreatedAt defaults to the insertion time when zero.
	CreatedAt  time.Time
	Identifier string
	// PostData is serialized to JSON on append. Entries read back carry a json.RawMessage.
	PostData  any
	Filenames []string
}

// Ledger is the durable record of posts already processed, the source of
// truth for deduplication.
type Ledger interface {
	// Initialize creates the backing relation. Calling it again is a no-op.
	Initialize(ctx context.Context) error

	// LoadSeenIdentifiers returns every identifier committed so far.
	LoadSeenIdentifiers(ctx context.Context) (map[string]struct{}, error)

	// Append inserts all entries in a single transaction. A SerializationError
	// is returned, and nothing is written, when any entry cannot be encoded.
	Append(ctx context.Context, entries []*LedgerEntry) error

	// Entries returns every row in insertion order.
	Entries(ctx context.Context) ([]*LedgerEntry, error)

	Close() error
}

// SerializationError identifies the entry whose post data could not be encoded.
type SerializationError struct {
	Identifier string
	// Raw is a printable dump of the offending value.
	Raw string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing ledger entry %s: %v", e.Identifier, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// filenamesColumn is the stored shape of the filenames column.
type filenamesColumn struct {
	Filenames []string `json:"filenames"`
}

type encodedEntry struct {
	createdAt  time.Time
	identifier string
	postData   []byte
	filenames  []byte
}

// encodeEntries serializes every entry up front so a failure leaves the
// store untouched.
func encodeEntries(entries []*LedgerEntry, now time.Time) ([]encodedEntry, error) {
	out := make([]encodedEntry, 0, len(entries))
	for _, e := range entries {
		postData, err := json.Marshal(e.PostData)
		if err != nil {
			return nil, &SerializationError{Identifier: e.Identifier, Raw: fmt.Sprintf("%+v", e.PostData), Err: err}
		}

		names := e.Filenames
		if names == nil {
			names = []string{}
		}
		filenames, err := json.Marshal(filenamesColumn{Filenames: names})
		if err != nil {
			return nil, &SerializationError{Identifier: e.Identifier, Raw: fmt.Sprintf("%q", names), Err: err}
		}

		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		out = append(out, encodedEntry{
			createdAt:  createdAt.UTC(),
			identifier: e.Identifier,
			postData:   postData,
			filenames:  filenames,
		})
	}
	return out, nil
}

func decodeFilenames(data []byte) ([]string, error) {
	var col filenamesColumn
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("decoding filenames: %w", err)
	}
	if col.Filenames == nil {
		col.Filenames = []string{}
	}
	return col.Filenames, nil
}

// Open returns the ledger for backend ("sqlite" or "bolt") stored at path.
// Initialize is left to the caller.
func Open(backend, path string, timeout time.Duration) (Ledger, error) {
	switch backend {
	case "", "sqlite":
		return OpenSQLite(path, timeout)
	case "bolt":
		return OpenBolt(path, timeout)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
