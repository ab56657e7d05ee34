// Package merge implements the k-way, timestamp-ordered merge of
// heterogeneous LogSources that feeds the replay engine.
package merge

import (
	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logsource"
)

type slot struct {
	valid       bool
	eof         bool
	kind        eventlog.Kind
	timestampUs uint64
	buf         [eventlog.MaxPayload]byte
	size        int
}

// Reader merges an ordered list of LogSources by ascending timestamp,
// keeping one lookahead slot per source. Ties are broken by source index:
// the earlier-registered source wins, so Reader never reorders two
// sources' events recorded at the identical microsecond.
type Reader struct {
	sources []logsource.LogSource
	slots   []slot
}

// New builds a Reader over sources, in the order given. That order is the
// tie-break priority for equal timestamps.
func New(sources []logsource.LogSource) *Reader {
	return &Reader{
		sources: sources,
		slots:   make([]slot, len(sources)),
	}
}

// Read fills each empty, non-EOF slot, then returns the globally earliest
// buffered event, copying its payload into out. ok is false once every
// source has reached EOF.
func (r *Reader) Read(out []byte) (n int, kind eventlog.Kind, timestampUs uint64, ok bool, err error) {
	for i := range r.sources {
		s := &r.slots[i]
		if s.eof || s.valid {
			continue
		}
		nn, k, ts, readOK, rerr := r.sources[i].Read(s.buf[:])
		if rerr != nil {
			return 0, 0, 0, false, rerr
		}
		if !readOK {
			s.eof = true
			continue
		}
		s.valid = true
		s.kind = k
		s.timestampUs = ts
		s.size = nn
	}

	best := -1
	for i := range r.slots {
		s := &r.slots[i]
		if s.eof || !s.valid {
			continue
		}
		if best == -1 || s.timestampUs < r.slots[best].timestampUs {
			best = i
		}
	}

	if best == -1 {
		return 0, 0, 0, false, nil
	}

	s := &r.slots[best]
	if s.size > len(out) {
		return 0, 0, 0, false, eventlog.NewError(eventlog.KindOutOfSpace, "Reader.Read", nil)
	}
	copy(out, s.buf[:s.size])
	n = s.size
	kind = s.kind
	timestampUs = s.timestampUs
	s.valid = false
	return n, kind, timestampUs, true, nil
}

// Reset reopens every source from the given paths, in the same order they
// were constructed with, clearing all lookahead slots. Used to implement
// rewind.
func (r *Reader) Reset(paths []string) error {
	for i, path := range paths {
		if err := r.sources[i].Close(); err != nil {
			return err
		}
		if err := r.sources[i].Open(path); err != nil {
			return err
		}
		r.slots[i] = slot{}
	}
	return nil
}

// Close closes every underlying source, in order, collecting the first
// error but still attempting every close.
func (r *Reader) Close() error {
	var first error
	for _, s := range r.sources {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
