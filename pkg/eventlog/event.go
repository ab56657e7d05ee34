// Package eventlog defines the shared event data model replayed by this
// system: a tagged record carrying either a CAN frame or an RTP datagram,
// plus the on-disk encodings used by the binary and text log formats.
package eventlog

import "fmt"

// Kind discriminates the two event types carried through the merge and
// replay pipeline.
type Kind uint16

const (
	KindCAN Kind = 0
	KindRTP Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindCAN:
		return "CAN"
	case KindRTP:
		return "RTP"
	default:
		return fmt.Sprintf("Kind(%d)", uint16(k))
	}
}

// MaxPayload bounds a single event's payload size. Callers supply buffers
// of at least this size to LogSource.Read.
const MaxPayload = 2000

// CANFrameSize is the fixed on-disk and in-memory encoding size of a CAN
// frame payload: id(4) + len(4) + data(8).
const CANFrameSize = 16

// Event is a single decoded record: a kind, an absolute microsecond
// timestamp, and a payload. TimestampUs is microseconds since an
// unspecified epoch — only differences between events are meaningful for
// pacing; the absolute value is useful for diagnostics only.
type Event struct {
	Kind        Kind
	TimestampUs uint64
	Payload     []byte
}

// CANFrame is the decoded form of a CAN event payload.
type CANFrame struct {
	ID   uint32
	Len  uint32
	Data [8]byte
}

// EncodeCANFrame writes a CANFrame into its fixed 16-byte wire encoding:
// id:u32, len:u32, data:[8]byte, all little-endian (matching the capture
// convention used by the binary and text log formats).
func EncodeCANFrame(f CANFrame) []byte {
	buf := make([]byte, CANFrameSize)
	putU32LE(buf[0:4], f.ID)
	putU32LE(buf[4:8], f.Len)
	copy(buf[8:16], f.Data[:])
	return buf
}

// DecodeCANFrame parses a 16-byte CAN frame payload. It returns an error
// if len(b) != CANFrameSize.
func DecodeCANFrame(b []byte) (CANFrame, error) {
	if len(b) != CANFrameSize {
		return CANFrame{}, fmt.Errorf("eventlog: CAN frame payload must be %d bytes, got %d", CANFrameSize, len(b))
	}
	var f CANFrame
	f.ID = getU32LE(b[0:4])
	f.Len = getU32LE(b[4:8])
	copy(f.Data[:], b[8:16])
	return f, nil
}

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
