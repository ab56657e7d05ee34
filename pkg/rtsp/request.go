package rtsp

import (
	"strconv"
	"strings"

	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
)

// request is a parsed RTSP request line plus its header lines. Headers
// are kept as raw CRLF-separated lines rather than a map, mirroring the
// reference implementation's line-scan approach — this protocol has at
// most a handful of headers per request and never repeats one.
type request struct {
	method string
	uri    string
	lines  []string
}

// parseRequest splits raw request bytes (terminated by the blank line
// that ends the header block) into method/URI and header lines.
func parseRequest(raw []byte) (request, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return request{}, eventlog.NewError(eventlog.KindProtocolError, "parseRequest", nil)
	}

	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return request{}, eventlog.NewError(eventlog.KindProtocolError, "parseRequest", nil)
	}

	return request{method: fields[0], uri: fields[1], lines: lines[1:]}, nil
}

// cseq extracts the CSeq: header value. Its absence is a protocol error —
// per the external interface, every handled method requires it.
func (r request) cseq() (int, error) {
	for _, line := range r.lines {
		if rest, ok := cutPrefixFold(line, "CSeq:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 0, eventlog.NewError(eventlog.KindProtocolError, "request.cseq", err)
			}
			return n, nil
		}
	}
	return 0, eventlog.NewError(eventlog.KindProtocolError, "request.cseq", nil)
}

// clientPort extracts the client_port=p1-p2 pair from a Transport:
// header line, wherever it appears among the request's header lines.
func (r request) clientPort() (uint16, uint16, error) {
	const portPrefix = "client_port="
	for _, line := range r.lines {
		idx := strings.Index(line, portPrefix)
		if idx == -1 {
			continue
		}
		rest := line[idx+len(portPrefix):]
		end := strings.IndexAny(rest, " ;\t")
		if end != -1 {
			rest = rest[:end]
		}
		parts := strings.SplitN(rest, "-", 2)
		if len(parts) != 2 {
			continue
		}
		p1, err1 := strconv.ParseUint(parts[0], 10, 16)
		p2, err2 := strconv.ParseUint(parts[1], 10, 16)
		if err1 != nil || err2 != nil {
			continue
		}
		return uint16(p1), uint16(p2), nil
	}
	return 0, 0, eventlog.NewError(eventlog.KindProtocolError, "request.clientPort", nil)
}

func cutPrefixFold(line, prefix string) (string, bool) {
	if len(line) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(line[:len(prefix)], prefix) {
		return "", false
	}
	return line[len(prefix):], true
}
