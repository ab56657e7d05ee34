// Package logsource implements the two on-disk capture formats replayed by
// this system: a framed binary "mixed" event log and a line-oriented
// textual CAN capture. Both satisfy the LogSource interface consumed by
// pkg/merge.
package logsource

import (
	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
)

// LogSource reads one event at a time from a single capture file. Read
// never blocks beyond the underlying file I/O, and n ≤ cap(out) always
// holds; a payload too large for the caller's buffer is reported as
// an error of kind eventlog.KindOutOfSpace rather than silently truncated.
//
// After the first EOF, subsequent Read calls keep returning EOF. After any
// other error, the source is in a terminal state and must be reopened
// (via Open) before further use.
type LogSource interface {
	// Open associates the source with a file path, reading and validating
	// whatever header the format requires.
	Open(path string) error

	// Read decodes the next event into out[:n]. ok is false on clean EOF
	// (err is nil in that case).
	Read(out []byte) (n int, kind eventlog.Kind, timestampUs uint64, ok bool, err error)

	// Close releases the underlying file handle. Safe to call multiple
	// times and on a source that was never successfully opened.
	Close() error
}
