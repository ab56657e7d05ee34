// Package rtpsender owns the UDP socket that replayed RTP datagrams are
// sent through, rewriting each packet's SSRC to the session's negotiated
// value before transmission.
package rtpsender

import (
	"net"

	"github.com/pion/rtp"

	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logger"
)

// Emitter owns a connectionless UDP socket bound to a single destination
// and rewrites the SSRC of every datagram it sends.
type Emitter struct {
	conn *net.UDPConn
	ssrc uint32
	log  *logger.Logger
}

// New resolves addr:port and dials a UDP socket to it. ssrc is burned
// into every packet sent through Send.
func New(addr string, port int, ssrc uint32, log *logger.Logger) (*Emitter, error) {
	if log == nil {
		log = logger.Default()
	}
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return nil, eventlog.NewError(eventlog.KindAddressError, "rtpsender.New", nil)
	}

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		return nil, eventlog.NewError(eventlog.KindIoError, "rtpsender.New", err)
	}

	return &Emitter{conn: conn, ssrc: ssrc, log: log}, nil
}

// ssrcOffset is the byte offset of the SSRC field within an RTP header:
// version/pt/seq occupy bytes 0..4, timestamp bytes 4..8, SSRC bytes 8..12.
const ssrcOffset = 8

// Send overwrites bytes 8..12 of payload with the session SSRC
// (big-endian) and transmits it as a single UDP datagram. payload is
// mutated in place, matching the reference implementation's behavior of
// rewriting the packet buffer it was handed.
func (e *Emitter) Send(payload []byte) error {
	if len(payload) < ssrcOffset+4 {
		return eventlog.NewError(eventlog.KindInvalidFormat, "Emitter.Send", nil)
	}

	payload[ssrcOffset+0] = byte(e.ssrc >> 24)
	payload[ssrcOffset+1] = byte(e.ssrc >> 16)
	payload[ssrcOffset+2] = byte(e.ssrc >> 8)
	payload[ssrcOffset+3] = byte(e.ssrc)

	if e.log.IsCategoryEnabled(logger.DebugRTP) {
		e.logPacket(payload)
	}

	if _, err := e.conn.Write(payload); err != nil {
		return eventlog.NewError(eventlog.KindIoError, "Emitter.Send", err)
	}
	return nil
}

// logPacket decodes a copy of the header through pion/rtp purely for the
// diagnostic log line; it plays no part in the bytes actually sent.
func (e *Emitter) logPacket(payload []byte) {
	var hdr rtp.Header
	if _, err := hdr.Unmarshal(payload); err != nil {
		e.log.DebugRTP("failed to decode header for diagnostics", "error", err)
		return
	}
	e.log.DebugRTPPacket(hdr.SequenceNumber, hdr.Timestamp, hdr.SSRC, len(payload)-int(hdr.MarshalSize()))
}

// Close releases the underlying socket.
func (e *Emitter) Close() error {
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}
