package logsource

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logger"
)

const (
	rtsPrefix = "rts: "
	tsPrefix  = "ts: "
)

// TextCanLog reads the line-oriented CAN capture format: a "rts: <u64>
// ts: <u64>" header line establishing the absolute time base, followed by
// "ts: <u64> <hex_id> [<len>] <8 hex bytes>" event lines. All emitted
// events have kind CAN.
type TextCanLog struct {
	f        *os.File
	scanner  *bufio.Scanner
	timeBase uint64
	atEOF    bool
	failed   bool
	log      *logger.Logger
}

// NewTextCanLog constructs a reader that logs through the given logger
// (logger.Default() if nil).
func NewTextCanLog(log *logger.Logger) *TextCanLog {
	if log == nil {
		log = logger.Default()
	}
	return &TextCanLog{log: log}
}

// Open scans forward to the "rts: " header line and stores its time base.
// Reaching EOF before finding that line is a fatal I/O error.
func (t *TextCanLog) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return eventlog.NewError(eventlog.KindNotFound, "TextCanLog.Open", err)
		}
		return eventlog.NewError(eventlog.KindIoError, "TextCanLog.Open", err)
	}

	scanner := bufio.NewScanner(f)
	var base uint64
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, rtsPrefix) {
			var discard uint64
			n, serr := scanNumbers(line[len(rtsPrefix):], &base, &discard)
			if serr != nil || n != 2 {
				f.Close()
				return eventlog.NewError(eventlog.KindInvalidFormat, "TextCanLog.Open", serr)
			}
			found = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return eventlog.NewError(eventlog.KindIoError, "TextCanLog.Open", err)
	}
	if !found || base == 0 {
		f.Close()
		return eventlog.NewError(eventlog.KindIoError, "TextCanLog.Open", io.EOF)
	}

	t.f = f
	t.scanner = scanner
	t.timeBase = base
	t.atEOF = false
	t.failed = false
	t.log.DebugSource("text CAN log opened", "path", path, "time_base_us", base)
	return nil
}

// Read scans forward to the next "ts: " line, parsing its 11 fields.
// Unparseable lines are logged and skipped rather than treated as fatal.
func (t *TextCanLog) Read(out []byte) (n int, kind eventlog.Kind, timestampUs uint64, ok bool, err error) {
	if t.atEOF || t.failed {
		return 0, 0, 0, false, nil
	}
	if len(out) < eventlog.CANFrameSize {
		t.failed = true
		return 0, 0, 0, false, eventlog.NewError(eventlog.KindOutOfSpace, "TextCanLog.Read", nil)
	}

	for t.scanner.Scan() {
		line := t.scanner.Text()
		if !strings.HasPrefix(line, tsPrefix) {
			continue
		}
		frame, pktTs, perr := parseCanLine(line)
		if perr != nil {
			t.log.Warn("skipping unparseable CAN log line", "line", line, "error", perr)
			continue
		}
		copy(out, eventlog.EncodeCANFrame(frame))
		ts := t.timeBase + pktTs
		if t.log.IsCategoryEnabled(logger.DebugCAN) {
			t.log.DebugCANFrame(frame.ID, frame.Len, false)
		}
		return eventlog.CANFrameSize, eventlog.KindCAN, ts, true, nil
	}

	if err := t.scanner.Err(); err != nil {
		t.failed = true
		return 0, 0, 0, false, eventlog.NewError(eventlog.KindIoError, "TextCanLog.Read", err)
	}

	t.atEOF = true
	return 0, 0, 0, false, nil
}

// Close releases the file handle.
func (t *TextCanLog) Close() error {
	if t.f != nil {
		err := t.f.Close()
		t.f = nil
		t.scanner = nil
		return err
	}
	return nil
}

// scanNumbers parses "<u64>  ts: <u64>" fields (the leading "rts: " has
// already been stripped by the caller).
func scanNumbers(s string, rts, ts *uint64) (int, error) {
	fields := strings.Fields(s)
	// fields[0] is the rts value; fields[1] is expected to be "ts:"; fields[2] is the ts value.
	if len(fields) < 3 {
		return 0, eventlog.NewError(eventlog.KindInvalidFormat, "scanNumbers", nil)
	}
	v, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, err
	}
	*rts = v
	if fields[1] != "ts:" {
		return 1, eventlog.NewError(eventlog.KindInvalidFormat, "scanNumbers", nil)
	}
	v2, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return 1, err
	}
	*ts = v2
	return 2, nil
}

// parseCanLine parses "ts: <u64> <hex_id> [<u32_len>] <8x hex_byte>" — 11
// whitespace-delimited fields after the "ts: " prefix is stripped.
func parseCanLine(line string) (eventlog.CANFrame, uint64, error) {
	rest := strings.TrimPrefix(line, tsPrefix)
	fields := strings.Fields(rest)
	if len(fields) != 11 {
		return eventlog.CANFrame{}, 0, eventlog.NewError(eventlog.KindInvalidFormat, "parseCanLine", nil)
	}

	pktTs, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return eventlog.CANFrame{}, 0, err
	}
	id, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return eventlog.CANFrame{}, 0, err
	}

	lenField := strings.Trim(fields[2], "[]")
	dlc, err := strconv.ParseUint(lenField, 10, 32)
	if err != nil {
		return eventlog.CANFrame{}, 0, err
	}

	var frame eventlog.CANFrame
	frame.ID = uint32(id)
	frame.Len = uint32(dlc)
	for i := 0; i < 8; i++ {
		b, err := strconv.ParseUint(fields[3+i], 16, 8)
		if err != nil {
			return eventlog.CANFrame{}, 0, err
		}
		frame.Data[i] = byte(b)
	}

	return frame, pktTs, nil
}
