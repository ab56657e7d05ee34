package merge

import (
	"errors"
	"testing"

	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logsource"
)

func sourcesOf(sources ...logsource.LogSource) []logsource.LogSource {
	return sources
}

// fakeEvent is one canned record a fakeSource yields in order.
type fakeEvent struct {
	kind eventlog.Kind
	ts   uint64
	data []byte
}

// fakeSource is a LogSource backed by an in-memory slice of events, used to
// drive Reader without touching the filesystem.
type fakeSource struct {
	events  []fakeEvent
	pos     int
	opened  bool
	readErr error
}

func (f *fakeSource) Open(path string) error {
	f.pos = 0
	f.opened = true
	return nil
}

func (f *fakeSource) Read(out []byte) (int, eventlog.Kind, uint64, bool, error) {
	if f.readErr != nil {
		return 0, 0, 0, false, f.readErr
	}
	if f.pos >= len(f.events) {
		return 0, 0, 0, false, nil
	}
	e := f.events[f.pos]
	f.pos++
	copy(out, e.data)
	return len(e.data), e.kind, e.ts, true, nil
}

func (f *fakeSource) Close() error {
	f.opened = false
	return nil
}

func TestReaderMergesByTimestamp(t *testing.T) {
	a := &fakeSource{events: []fakeEvent{
		{eventlog.KindCAN, 10, []byte{1}},
		{eventlog.KindCAN, 30, []byte{2}},
	}}
	b := &fakeSource{events: []fakeEvent{
		{eventlog.KindRTP, 20, []byte{3}},
		{eventlog.KindRTP, 40, []byte{4}},
	}}

	reader := New(sourcesOf(a, b))

	var got []uint64
	buf := make([]byte, eventlog.MaxPayload)
	for {
		_, _, ts, ok, err := reader.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, ts)
	}

	want := []uint64{10, 20, 30, 40}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got ts %d, want %d", i, got[i], want[i])
		}
	}
}

func TestReaderTiesBreakByEarlierIndex(t *testing.T) {
	a := &fakeSource{events: []fakeEvent{{eventlog.KindCAN, 100, []byte{0xAA}}}}
	b := &fakeSource{events: []fakeEvent{{eventlog.KindRTP, 100, []byte{0xBB}}}}

	reader := New(sourcesOf(a, b))

	buf := make([]byte, eventlog.MaxPayload)
	n, kind, ts, ok, err := reader.Read(buf)
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if kind != eventlog.KindCAN || ts != 100 || buf[0] != 0xAA || n != 1 {
		t.Errorf("tie-break picked wrong source: kind=%v ts=%d byte=0x%x", kind, ts, buf[0])
	}
}

func TestReaderPropagatesSourceError(t *testing.T) {
	wantErr := errors.New("boom")
	a := &fakeSource{readErr: wantErr}

	reader := New(sourcesOf(a))
	_, _, _, _, err := reader.Read(make([]byte, eventlog.MaxPayload))
	if !errors.Is(err, wantErr) {
		t.Fatalf("Read error = %v, want %v", err, wantErr)
	}
}

func TestReaderResetClearsSlotsAndReopens(t *testing.T) {
	a := &fakeSource{events: []fakeEvent{{eventlog.KindCAN, 1, []byte{1}}}}
	reader := New(sourcesOf(a))

	buf := make([]byte, eventlog.MaxPayload)
	reader.Read(buf)
	_, _, _, ok, _ := reader.Read(buf)
	if ok {
		t.Fatal("expected EOF before reset")
	}

	if err := reader.Reset([]string{"ignored-path"}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !a.opened {
		t.Fatal("Reset did not reopen the source")
	}

	a.pos = 0
	_, _, ts, ok, err := reader.Read(buf)
	if err != nil || !ok || ts != 1 {
		t.Fatalf("Read after reset: ts=%d ok=%v err=%v", ts, ok, err)
	}
}
