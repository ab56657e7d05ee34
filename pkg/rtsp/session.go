package rtsp

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"net"
	"strings"

	"github.com/ivanruban/LCVBLogPlayer/pkg/cansender"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logger"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logsource"
	"github.com/ivanruban/LCVBLogPlayer/pkg/merge"
	"github.com/ivanruban/LCVBLogPlayer/pkg/replay"
	"github.com/ivanruban/LCVBLogPlayer/pkg/rtpsender"
)

// SourceConfig names the two log files a session replays and how the CAN
// side of the replay should be emitted.
type SourceConfig struct {
	RTPLogPath   string
	CANLogPath   string
	CANDevice    string
	CANFrameType cansender.FrameType
	Rewind       bool
	BindAddr     string
}

// Session holds the per-connection RTSP state machine: one TCP
// connection, at most one active ReplayEngine, and the negotiated
// transport parameters. A Session is used for exactly one client
// connection and discarded at EOF.
type Session struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    SourceConfig
	log    *logger.Logger

	sessionID      uint32
	ssrc           uint32
	clientAddr     string
	clientRTPPort  uint16
	clientRTCPPort uint16

	engine *replay.Engine
}

// NewSession wraps an accepted connection.
func NewSession(conn net.Conn, cfg SourceConfig, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Default()
	}
	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	return &Session{
		conn:       conn,
		reader:     bufio.NewReader(conn),
		cfg:        cfg,
		log:        log,
		clientAddr: host,
	}
}

// Serve reads and dispatches requests until the connection reaches EOF or
// a read error occurs, then stops and releases any active ReplayEngine.
func (s *Session) Serve() {
	defer s.teardownEngine()

	for {
		raw, err := readRequest(s.reader)
		if err != nil {
			s.log.DebugRTSP("session ending", "client", s.clientAddr, "reason", err)
			return
		}
		req, perr := parseRequest(raw)
		if perr != nil {
			s.log.Warn("malformed request, ignoring", "client", s.clientAddr, "error", perr)
			continue
		}
		s.log.DebugRTSP("request received", "client", s.clientAddr, "method", req.method)
		s.dispatch(req)
	}
}

// readRequest reads lines until the blank line terminating the header
// block (CRLF CRLF), returning the accumulated raw bytes.
func readRequest(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		buf = append(buf, line...)
		if strings.TrimRight(line, "\r\n") == "" {
			return buf, nil
		}
	}
}

func (s *Session) dispatch(req request) {
	switch req.method {
	case "OPTIONS", "TEARDOWN", "SET_PARAMETER":
		s.handleOptionsShaped(req)
		if req.method == "TEARDOWN" {
			s.teardownEngine()
		}
	case "DESCRIBE":
		s.handleDescribe(req)
	case "SETUP":
		s.handleSetup(req)
	case "PLAY":
		s.handlePlay(req)
	case "PAUSE":
		s.handlePause(req)
	case "GET_PARAMETER":
		s.handleGetParameter(req)
	default:
		// Unknown methods are silently ignored.
	}
}

func (s *Session) handleOptionsShaped(req request) {
	seq, err := req.cseq()
	if err != nil {
		s.log.Warn("missing CSeq", "method", req.method)
		return
	}
	resp := fmt.Sprintf(
		"RTSP/1.0 200 OK\r\n"+
			"CSeq: %d\r\n"+
			"Connection: Keep-Alive\r\n"+
			"Public: OPTIONS, DESCRIBE, SETUP, PLAY, PAUSE, GET_PARAMETER, TEARDOWN, SET_PARAMETER\r\n"+
			"\r\n", seq)
	s.write(resp)
}

func (s *Session) handleDescribe(req request) {
	seq, err := req.cseq()
	if err != nil {
		s.log.Warn("missing CSeq", "method", req.method)
		return
	}
	sdp := buildSDP(s.cfg.BindAddr)
	resp := fmt.Sprintf(
		"RTSP/1.0 200 OK\r\n"+
			"CSeq: %d\r\n"+
			"Content-Base: rtsp://%s\r\n"+
			"Content-type: application/sdp\r\n"+
			"Content-length: %d\r\n"+
			"\r\n"+
			"%s", seq, s.cfg.BindAddr, len(sdp), sdp)
	s.write(resp)
}

func (s *Session) handleSetup(req request) {
	seq, err := req.cseq()
	if err != nil {
		s.log.Warn("missing CSeq", "method", req.method)
		return
	}
	p1, p2, perr := req.clientPort()
	if perr != nil {
		s.log.Warn("missing client_port", "method", req.method)
		return
	}

	s.clientRTPPort = p1
	s.clientRTCPPort = p2
	s.sessionID = rand.Uint32()
	s.ssrc = rand.Uint32()

	resp := fmt.Sprintf(
		"RTSP/1.0 200 OK\r\n"+
			"CSeq: %d\r\n"+
			"Session: %d;timeout=120\r\n"+
			"Transport: RTP/AVP/UDP;unicast;client_port=%d-%d;server_port=%d-%d;ssrc=%x\r\n"+
			"\r\n",
		seq, s.sessionID, p1, p2, p1, p2, s.ssrc)
	s.write(resp)
}

func (s *Session) handlePlay(req request) {
	seq, err := req.cseq()
	if err != nil {
		s.log.Warn("missing CSeq", "method", req.method)
		return
	}

	if err := s.startEngine(); err != nil {
		s.log.Error("failed to start replay engine", "error", err)
		return
	}

	resp := fmt.Sprintf(
		"RTSP/1.0 200 OK\r\n"+
			"CSeq: %d\r\n"+
			"Session: %d\r\n"+
			"RTP-Info: url=trackID=1;seq=0;rtptime=0\r\n"+
			"\r\n", seq, s.sessionID)
	s.write(resp)
}

func (s *Session) handlePause(req request) {
	seq, err := req.cseq()
	if err != nil {
		s.log.Warn("missing CSeq", "method", req.method)
		return
	}
	// No defined pause semantics: acknowledge without altering replay state.
	resp := fmt.Sprintf(
		"RTSP/1.0 200 OK\r\n"+
			"CSeq: %d\r\n"+
			"Session: %d\r\n"+
			"\r\n", seq, s.sessionID)
	s.write(resp)
}

func (s *Session) handleGetParameter(req request) {
	seq, err := req.cseq()
	if err != nil {
		s.log.Warn("missing CSeq", "method", req.method)
		return
	}
	resp := fmt.Sprintf(
		"RTSP/1.0 200 OK\r\n"+
			"CSeq: %d\r\n"+
			"Connection: Keep-Alive\r\n"+
			"Content-Length: 0\r\n"+
			"\r\n", seq)
	s.write(resp)
}

func (s *Session) write(resp string) {
	if _, err := s.conn.Write([]byte(resp)); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}

// startEngine builds the merge reader and both emitters for this
// session's negotiated transport, and starts the replay worker. On any
// failure, resources already acquired are rolled back in reverse order.
func (s *Session) startEngine() error {
	binLog := logsource.NewBinaryMixedLog(s.log)
	if err := binLog.Open(s.cfg.RTPLogPath); err != nil {
		return err
	}

	textLog := logsource.NewTextCanLog(s.log)
	if err := textLog.Open(s.cfg.CANLogPath); err != nil {
		binLog.Close()
		return err
	}

	reader := merge.New([]logsource.LogSource{textLog, binLog})

	rtpEmitter, err := rtpsender.New(s.clientAddr, int(s.clientRTPPort), s.ssrc, s.log)
	if err != nil {
		binLog.Close()
		textLog.Close()
		return err
	}

	canEmitter, err := cansender.New(s.cfg.CANDevice, s.cfg.CANFrameType, s.log)
	if err != nil {
		binLog.Close()
		textLog.Close()
		rtpEmitter.Close()
		return err
	}

	engineCfg := replay.Config{
		Rewind:      s.cfg.Rewind,
		RewindPaths: []string{s.cfg.CANLogPath, s.cfg.RTPLogPath},
	}
	s.engine = replay.New(reader, canEmitter, rtpEmitter, engineCfg, s.log)
	s.engine.Start()
	return nil
}

func (s *Session) teardownEngine() {
	if s.engine == nil {
		return
	}
	s.engine.Stop()
	if err := s.engine.Close(); err != nil {
		s.log.Error("failed to release replay engine resources", "error", err)
	}
	s.engine = nil
}
