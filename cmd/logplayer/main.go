// Command logplayer simulates an IP camera that replays a previously
// captured in-vehicle session (RTP video + CAN bus frames) onto a live
// network and CAN interface, driven by a minimal RTSP control channel.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivanruban/LCVBLogPlayer/pkg/config"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logger"
	"github.com/ivanruban/LCVBLogPlayer/pkg/rtsp"
)

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-v] [-r] [-d can_device] [-t std|ext] "+
			"[-p bind_port] [-i bind_addr] [-f] rtplog_file.bin canlog_file.txt\n\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample: %s -r -i 127.0.0.1 -p 8554 camera.bin can.txt\n", os.Args[0])
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("logplayer", flag.ContinueOnError)
	playerFlags := config.RegisterFlags(fs)
	logFlags := logger.RegisterFlags(fs)
	fs.Usage = usage(fs)

	if err := fs.Parse(os.Args[1:]); err != nil {
		return 1
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}

	logFlags.ApplyVerbosity(playerFlags.Verbosity)
	logCfg, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging flags: %v\n", err)
		return 1
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer log.Close()
	logger.SetDefault(log)

	cfg, err := playerFlags.ToConfig(fs.Arg(0), fs.Arg(1))
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	sources := rtsp.SourceConfig{
		RTPLogPath:   cfg.RTPLogPath,
		CANLogPath:   cfg.CANLogPath,
		CANDevice:    cfg.CANDevice,
		CANFrameType: cfg.CANFrameType,
		Rewind:       cfg.Rewind,
		BindAddr:     cfg.BindAddr,
	}

	if cfg.ForcePlay {
		log.Info("starting direct playback", "rtp_log", cfg.RTPLogPath, "can_log", cfg.CANLogPath,
			"dest", fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.BindPort))
		const debugSSRC = 11223344
		if err := rtsp.RunDirectPlayback(ctx, sources, cfg.BindAddr, cfg.BindPort, debugSSRC, log); err != nil {
			log.Error("direct playback failed", "error", err)
			return 1
		}
		return 0
	}

	server := rtsp.NewServer(rtsp.ServerConfig{
		BindAddr: cfg.BindAddr,
		BindPort: cfg.BindPort,
		Sources:  sources,
	}, log)
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		log.Error("server failed", "error", err)
		return 1
	}

	return 0
}
