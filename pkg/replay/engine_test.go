package replay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logsource"
	"github.com/ivanruban/LCVBLogPlayer/pkg/merge"
)

// fakeSource is a minimal logsource.LogSource backed by a fixed slice of
// events, used to drive the engine without any real file or network I/O.
type fakeSource struct {
	events []fakeEvent
	pos    int
}

type fakeEvent struct {
	kind eventlog.Kind
	ts   uint64
	data []byte
}

func (f *fakeSource) Open(path string) error {
	f.pos = 0
	return nil
}

func (f *fakeSource) Read(out []byte) (int, eventlog.Kind, uint64, bool, error) {
	if f.pos >= len(f.events) {
		return 0, 0, 0, false, nil
	}
	e := f.events[f.pos]
	f.pos++
	copy(out, e.data)
	return len(e.data), e.kind, e.ts, true, nil
}

func (f *fakeSource) Close() error { return nil }

// recordingEmitter records every payload handed to Send.
type recordingEmitter struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (e *recordingEmitter) Send(payload []byte) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := append([]byte(nil), payload...)
	e.sent = append(e.sent, cp)
	return nil
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sent)
}

func (e *recordingEmitter) Close() error { return nil }

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEngineDispatchesByKindAndStopsAtEOF(t *testing.T) {
	src := &fakeSource{events: []fakeEvent{
		{eventlog.KindRTP, 0, []byte{1}},
		{eventlog.KindCAN, 1, eventlog.EncodeCANFrame(eventlog.CANFrame{ID: 1})},
	}}
	reader := merge.New([]logsource.LogSource{src})
	rtp := &recordingEmitter{}
	can := &recordingEmitter{}

	e := New(reader, can, rtp, Config{}, nil)
	e.Start()

	waitUntil(t, func() bool { return rtp.count() == 1 && can.count() == 1 })

	e.Stop()
	if e.Err() != nil {
		t.Fatalf("Err() = %v, want nil", e.Err())
	}
}

func TestEngineRewindRestartsSource(t *testing.T) {
	src := &fakeSource{events: []fakeEvent{{eventlog.KindRTP, 0, []byte{1}}}}
	reader := merge.New([]logsource.LogSource{src})
	rtp := &recordingEmitter{}
	can := &recordingEmitter{}

	e := New(reader, can, rtp, Config{Rewind: true, RewindPaths: []string{"ignored"}}, nil)
	e.Start()

	waitUntil(t, func() bool { return rtp.count() >= 3 })
	e.Stop()
}

func TestEngineStopIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	reader := merge.New([]logsource.LogSource{src})
	e := New(reader, &recordingEmitter{}, &recordingEmitter{}, Config{}, nil)

	e.Start()
	e.Start() // second Start before Stop is a no-op
	e.Stop()
	e.Stop() // second Stop is a no-op
}

func TestEngineStopsOnSendError(t *testing.T) {
	src := &fakeSource{events: []fakeEvent{{eventlog.KindRTP, 0, []byte{1}}}}
	reader := merge.New([]logsource.LogSource{src})
	rtp := &recordingEmitter{err: errors.New("network unreachable")}
	can := &recordingEmitter{}

	e := New(reader, can, rtp, Config{}, nil)
	e.Start()

	waitUntil(t, func() bool { return e.Err() != nil })
	e.Stop()
	if e.Err() == nil {
		t.Fatal("expected Err() to report the send failure")
	}
}

func TestEngineCloseClosesReaderAndEmitters(t *testing.T) {
	src := &fakeSource{}
	reader := merge.New([]logsource.LogSource{src})
	rtp := &recordingEmitter{}
	can := &recordingEmitter{}

	e := New(reader, can, rtp, Config{}, nil)
	e.Start()
	e.Stop()

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
