package sync

// Report holds the counts of one run.
type Report struct {
	// Read is the number of identifiers in the export.
	Read int
	// Rejected were already in the ledger, or repeated within the export.
	Rejected int
	Queued   int
	Batches  int
	// FailedBatches lists how many lookups failed. Their identifiers stay
	// out of the ledger and are retried on the next run.
	FailedBatches int
	Fetched       int
	// Invalid posts could not be normalized and were dropped.
	Invalid   int
	Favorited int

	MediaDownloaded int
	MediaSkipped    int
	MediaFailed     int

	// Committed is the number of new ledger rows.
	Committed int
}

// Missing is the gap between what the export listed and what was either
// favorited or rejected, mostly posts deleted or hidden upstream.
func (r *Report) Missing() int {
	n := r.Read - r.Favorited - r.Rejected
	if n < 0 {
		return 0
	}
	return n
}
