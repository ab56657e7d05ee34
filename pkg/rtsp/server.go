package rtsp

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/ivanruban/LCVBLogPlayer/pkg/cansender"
	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logger"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logsource"
	"github.com/ivanruban/LCVBLogPlayer/pkg/merge"
	"github.com/ivanruban/LCVBLogPlayer/pkg/replay"
	"github.com/ivanruban/LCVBLogPlayer/pkg/rtpsender"
)

// ServerConfig configures the bound listener and the source files every
// session replays.
type ServerConfig struct {
	BindAddr string
	BindPort int
	Sources  SourceConfig
}

// Server accepts RTSP connections serially, handling at most one session
// at a time (this system does not support concurrent clients).
type Server struct {
	cfg      ServerConfig
	log      *logger.Logger
	listener net.Listener
	limiter  *rate.Limiter
}

// NewServer constructs a Server. Call ListenAndServe to bind and start
// accepting.
func NewServer(cfg ServerConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		cfg: cfg,
		log: log,
		// A reconnecting client should never need more than a couple of
		// accepts per second; this bounds the cost of a reconnect storm
		// without affecting a single well-behaved client.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

// ListenAndServe binds the configured address with SO_REUSEADDR-style
// reuse semantics and serially accepts and serves connections until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddr, s.cfg.BindPort)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return eventlog.NewError(eventlog.KindIoError, "Server.ListenAndServe", err)
	}
	s.listener = ln
	s.log.Info("listening", "addr", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("accept failed", "error", err)
				return eventlog.NewError(eventlog.KindIoError, "Server.ListenAndServe", err)
			}
		}

		s.log.Info("client connected", "addr", conn.RemoteAddr())
		session := NewSession(conn, s.cfg.Sources, s.log)
		stopAbort := context.AfterFunc(ctx, func() { conn.Close() })
		session.Serve()
		stopAbort()
		conn.Close()
		s.log.Info("client disconnected")
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// RunDirectPlayback implements the "-f" debug bypass: it starts a replay
// engine immediately against destAddr:destPort without negotiating RTSP,
// blocking until ctx is cancelled. It does not return when the replay
// reaches the end of the logs; it keeps blocking until ctx is cancelled.
func RunDirectPlayback(ctx context.Context, cfg SourceConfig, destAddr string, destPort int, ssrc uint32, log *logger.Logger) error {
	if log == nil {
		log = logger.Default()
	}

	binLog := logsource.NewBinaryMixedLog(log)
	if err := binLog.Open(cfg.RTPLogPath); err != nil {
		return err
	}
	textLog := logsource.NewTextCanLog(log)
	if err := textLog.Open(cfg.CANLogPath); err != nil {
		binLog.Close()
		return err
	}

	reader := merge.New([]logsource.LogSource{textLog, binLog})

	rtpEmitter, err := rtpsender.New(destAddr, destPort, ssrc, log)
	if err != nil {
		binLog.Close()
		textLog.Close()
		return err
	}

	canEmitter, err := cansender.New(cfg.CANDevice, cfg.CANFrameType, log)
	if err != nil {
		binLog.Close()
		textLog.Close()
		rtpEmitter.Close()
		return err
	}

	engine := replay.New(reader, canEmitter, rtpEmitter, replay.Config{
		Rewind:      cfg.Rewind,
		RewindPaths: []string{cfg.CANLogPath, cfg.RTPLogPath},
	}, log)
	engine.Start()

	<-ctx.Done()
	engine.Stop()
	return engine.Close()
}
