package kb

import (
	"time"

	"kb/internal/domain"
)

// SyncReport summarizes one synchronization pass. The pass always runs to
// completion; files that could not be processed are listed in Failures and
// retried on the next pass.
type SyncReport struct {
	Scanned       int
	Added         int
	Updated       int
	Removed       int
	Unchanged     int
	ChunksIndexed int
	Failures      []FileFailure
	Duration      time.Duration
}

// FileFailure is one file the pass could not process.
type FileFailure struct {
	Path string
	Err  error
}

// SearchResult is one retrieved chunk with its similarity score.
type SearchResult struct {
	Path  string
	Seq   int
	Score float64
	Text  string
}

// Stats describes the current knowledge base contents.
type Stats struct {
	Documents int
	Chunks    int
}

func newSyncReport(r *domain.SyncReport) *SyncReport {
	report := &SyncReport{
		Scanned:       r.Scanned,
		Added:         r.Added,
		Updated:       r.Updated,
		Removed:       r.Removed,
		Unchanged:     r.Unchanged,
		ChunksIndexed: r.ChunksIndexed,
		Duration:      r.Duration,
	}
	for _, f := range r.Failures {
		report.Failures = append(report.Failures, FileFailure{Path: f.Path, Err: f.Err})
	}
	return report
}
