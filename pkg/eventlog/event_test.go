package eventlog

import (
	"testing"
)

func TestKindString(t *testing.T) {
	cases := []struct {
		kind Kind
		want string
	}{
		{KindCAN, "CAN"},
		{KindRTP, "RTP"},
		{Kind(99), "Kind(99)"},
	}
	for _, c := range cases {
		if got := c.kind.String(); got != c.want {
			t.Errorf("Kind(%d).String() = %q, want %q", c.kind, got, c.want)
		}
	}
}

func TestEncodeDecodeCANFrameRoundTrip(t *testing.T) {
	f := CANFrame{ID: 0x123, Len: 5, Data: [8]byte{1, 2, 3, 4, 5, 0, 0, 0}}
	buf := EncodeCANFrame(f)
	if len(buf) != CANFrameSize {
		t.Fatalf("EncodeCANFrame produced %d bytes, want %d", len(buf), CANFrameSize)
	}

	got, err := DecodeCANFrame(buf)
	if err != nil {
		t.Fatalf("DecodeCANFrame: %v", err)
	}
	if got != f {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, f)
	}
}

func TestDecodeCANFrameWrongSize(t *testing.T) {
	_, err := DecodeCANFrame(make([]byte, 10))
	if err == nil {
		t.Fatal("expected error for short payload, got nil")
	}
}

func TestEncodeCANFrameByteOrder(t *testing.T) {
	f := CANFrame{ID: 0x01020304, Len: 1}
	buf := EncodeCANFrame(f)
	want := []byte{0x04, 0x03, 0x02, 0x01}
	for i, b := range want {
		if buf[i] != b {
			t.Errorf("byte %d = 0x%02x, want 0x%02x (little-endian id encoding)", i, buf[i], b)
		}
	}
}
