// Package replay implements the background worker that paces events from
// a merged log stream out to the CAN and RTP emitters, preserving the
// original recording's inter-arrival timing.
package replay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logger"
	"github.com/ivanruban/LCVBLogPlayer/pkg/merge"
)

// minSleep is the floor below which a computed pacing delay is skipped
// rather than slept, matching the timing contract's "sleeps below 2us
// are skipped" clause.
const minSleep = 2 * time.Microsecond

// statsInterval is how many events pass between periodic stats log
// lines, the replay-session analogue of a wall-clock stats ticker.
const statsInterval = 500

// Emitter is satisfied by both cansender.Emitter and rtpsender.Emitter (and
// by a test double standing in for either).
type Emitter interface {
	Send(payload []byte) error
	Close() error
}

// Config controls optional engine behavior.
type Config struct {
	// Rewind enables re-reading from the start of all sources on EOF
	// instead of exiting the worker.
	Rewind bool
	// RewindPaths holds the file path for each source passed to merge.New,
	// in the same order, so Reset can reopen them. Required if Rewind is
	// true.
	RewindPaths []string
}

// Engine owns one merge.Reader and its two emitters for the lifetime of a
// single play session. Start spawns exactly one worker goroutine; Stop is
// idempotent and synchronous.
type Engine struct {
	reader *merge.Reader
	can    Emitter
	rtp    Emitter
	cfg    Config
	log    *logger.Logger

	cancelled atomic.Bool
	wg        sync.WaitGroup
	started   atomic.Bool

	eventsSent atomic.Uint64
	lastErr    atomic.Pointer[error]
}

// New constructs an Engine. It does not start the worker.
func New(reader *merge.Reader, canEmitter Emitter, rtpEmitter Emitter, cfg Config, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Default()
	}
	return &Engine{reader: reader, can: canEmitter, rtp: rtpEmitter, cfg: cfg, log: log}
}

// Start spawns the pacing worker. Calling Start twice without an
// intervening Stop is a no-op.
func (e *Engine) Start() {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	e.cancelled.Store(false)
	e.wg.Add(1)
	go e.run()
}

// Stop signals the worker and blocks until it exits. Calling Stop twice
// leaves the engine in the same state as calling it once.
func (e *Engine) Stop() {
	if !e.started.CompareAndSwap(true, false) {
		return
	}
	e.cancelled.Store(true)
	e.wg.Wait()
}

// run is the single pacing worker thread. It mirrors the original
// design's sleep-compensated loop: after sending an event, compute the
// gap between its recorded timestamp and the previous event's, subtract
// this step's processing time, and sleep
// the remainder. No attempt is made to compress a gap once the engine
// has fallen behind.
func (e *Engine) run() {
	defer e.wg.Done()

	var buf [eventlog.MaxPayload]byte
	var prevTs uint64
	havePrev := false
	sent := uint64(0)

	for !e.cancelled.Load() {
		stepStart := time.Now()

		n, kind, ts, ok, err := e.reader.Read(buf[:])
		if err != nil {
			e.log.Error("replay source read failed", "error", err)
			e.setErr(err)
			return
		}
		if !ok {
			if e.cfg.Rewind {
				if rerr := e.reader.Reset(e.cfg.RewindPaths); rerr != nil {
					e.log.Error("rewind failed", "error", rerr)
					e.setErr(rerr)
					return
				}
				havePrev = false
				e.log.DebugReplay("rewound to start of log")
				continue
			}
			e.log.DebugReplay("end of log reached, stopping")
			return
		}

		switch kind {
		case eventlog.KindRTP:
			if err := e.rtp.Send(buf[:n]); err != nil {
				e.log.Error("rtp send failed", "error", err)
				e.setErr(err)
				return
			}
		case eventlog.KindCAN:
			if err := e.can.Send(buf[:n]); err != nil {
				e.log.Error("can send failed", "error", err)
				e.setErr(err)
				return
			}
		}

		elapsed := time.Since(stepStart)
		if havePrev {
			targetGap := time.Duration(ts-prevTs) * time.Microsecond
			sleepFor := targetGap - elapsed
			if sleepFor >= minSleep {
				time.Sleep(sleepFor)
			}
		}
		prevTs = ts
		havePrev = true

		sent++
		if sent%statsInterval == 0 {
			e.eventsSent.Store(sent)
			e.log.DebugReplay("replay stats", "events_sent", sent)
		}
	}
}

func (e *Engine) setErr(err error) {
	e.lastErr.Store(&err)
}

// Err returns the error that stopped the worker, if any.
func (e *Engine) Err() error {
	if p := e.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Close releases the engine's owned resources: the merge reader and both
// emitters, in that order. Callers must Stop the engine first.
func (e *Engine) Close() error {
	var first error
	if err := e.reader.Close(); err != nil && first == nil {
		first = err
	}
	if err := e.rtp.Close(); err != nil && first == nil {
		first = err
	}
	if err := e.can.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
