package rtsp

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
)

func TestRunDirectPlaybackMissingLogFile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cfg := SourceConfig{
		RTPLogPath: "/nonexistent/rtplog.bin",
		CANLogPath: "/nonexistent/canlog.txt",
		CANDevice:  "can0",
		BindAddr:   "127.0.0.1",
	}
	err := RunDirectPlayback(ctx, cfg, "127.0.0.1", 6000, 1, nil)
	if !eventlog.Is(err, eventlog.KindNotFound) {
		t.Fatalf("RunDirectPlayback with missing log: got %v, want KindNotFound", err)
	}
}

func TestServerAcceptsAndServesOneClient(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	srv := NewServer(ServerConfig{
		BindAddr: "127.0.0.1",
		BindPort: port,
		Sources:  SourceConfig{BindAddr: "127.0.0.1"},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(ctx) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), 100*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect to server: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("OPTIONS rtsp://127.0.0.1/stream RTSP/1.0\r\nCSeq: 1\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(buf[:n]), "200 OK") {
		t.Fatalf("unexpected response: %q", buf[:n])
	}

	cancel()
	<-serveErr
}
