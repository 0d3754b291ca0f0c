package batch

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats summarizes a finished batch.
type Stats struct {
	Processed int
	Errored   int
	Bytes     int64
	Elapsed   time.Duration
}

// String renders a one-line human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("%d file(s) processed, %d failed, %s in %s",
		s.Processed,
		s.Errored,
		humanize.IBytes(uint64(s.Bytes)), //nolint:gosec // byte counts are non-negative
		s.Elapsed.Round(time.Millisecond),
	)
}
