package logsource

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/sigurn/crc16"

	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logger"
)

const (
	binaryHeaderSize  = 8  // id[4] + version:u32
	binaryPacketSize  = 20 // sec:u64 + usec:u64 + type:u16 + len:u16
	binaryMagic       = "ELOG"
	binaryVersion     = 1
)

var crc16Table = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// BinaryMixedLog reads the framed binary event log format: an 8-byte file
// header followed by a sequence of 20-byte packet headers, each followed
// by its raw payload.
type BinaryMixedLog struct {
	f       *os.File
	atEOF   bool
	failed  bool
	log     *logger.Logger
}

// NewBinaryMixedLog constructs a reader that logs through the given
// logger (logger.Default() if nil).
func NewBinaryMixedLog(log *logger.Logger) *BinaryMixedLog {
	if log == nil {
		log = logger.Default()
	}
	return &BinaryMixedLog{log: log}
}

// Open validates the 8-byte file header ("ELOG" + version 1) and
// positions the file for packet reads. Unlike the reference
// implementation this validates on open rather than deferring the check.
func (b *BinaryMixedLog) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return eventlog.NewError(eventlog.KindNotFound, "BinaryMixedLog.Open", err)
		}
		return eventlog.NewError(eventlog.KindIoError, "BinaryMixedLog.Open", err)
	}

	hdr := make([]byte, binaryHeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return eventlog.NewError(eventlog.KindInvalidFormat, "BinaryMixedLog.Open", err)
	}
	if string(hdr[0:4]) != binaryMagic {
		f.Close()
		return eventlog.NewError(eventlog.KindInvalidFormat, "BinaryMixedLog.Open", nil)
	}
	version := binary.LittleEndian.Uint32(hdr[4:8])
	if version != binaryVersion {
		f.Close()
		return eventlog.NewError(eventlog.KindInvalidFormat, "BinaryMixedLog.Open", nil)
	}

	b.f = f
	b.atEOF = false
	b.failed = false
	b.log.DebugSource("binary log opened", "path", path, "version", version)
	return nil
}

// Read decodes the next packet header and payload. A zero-byte short read
// at a packet boundary is reported as clean EOF; any other short read is
// an I/O error — this is the corrected behavior called out against the
// reference implementation's fread/feof handling.
func (b *BinaryMixedLog) Read(out []byte) (n int, kind eventlog.Kind, timestampUs uint64, ok bool, err error) {
	if b.atEOF || b.failed {
		return 0, 0, 0, false, nil
	}

	hdr := make([]byte, binaryPacketSize)
	read, rerr := io.ReadFull(b.f, hdr)
	if rerr != nil {
		if read == 0 && (rerr == io.EOF || rerr == io.ErrUnexpectedEOF) {
			b.atEOF = true
			return 0, 0, 0, false, nil
		}
		b.failed = true
		return 0, 0, 0, false, eventlog.NewError(eventlog.KindIoError, "BinaryMixedLog.Read", rerr)
	}

	sec := binary.LittleEndian.Uint64(hdr[0:8])
	usec := binary.LittleEndian.Uint64(hdr[8:16])
	ptype := binary.LittleEndian.Uint16(hdr[16:18])
	plen := binary.LittleEndian.Uint16(hdr[18:20])

	if int(plen) > len(out) {
		b.failed = true
		return 0, 0, 0, false, eventlog.NewError(eventlog.KindOutOfSpace, "BinaryMixedLog.Read", nil)
	}

	payload := out[:plen]
	if _, err := io.ReadFull(b.f, payload); err != nil {
		b.failed = true
		return 0, 0, 0, false, eventlog.NewError(eventlog.KindIoError, "BinaryMixedLog.Read", err)
	}

	ts := sec*1_000_000 + usec
	if b.log.IsCategoryEnabled(logger.DebugSource) {
		crc := crc16.Checksum(payload, crc16Table)
		b.log.DebugSource("binary packet decoded", "type", ptype, "len", plen, "ts_us", ts, "crc16", crc)
	}

	return int(plen), eventlog.Kind(ptype), ts, true, nil
}

// Close releases the file handle.
func (b *BinaryMixedLog) Close() error {
	if b.f != nil {
		err := b.f.Close()
		b.f = nil
		return err
	}
	return nil
}
