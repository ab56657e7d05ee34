// Package config defines the command-line configuration surface for the
// log player: bind address/port, CAN device and frame type, rewind, and
// the two log file paths.
package config

import (
	"flag"
	"fmt"

	"github.com/ivanruban/LCVBLogPlayer/pkg/cansender"
)

// Flags holds every command-line flag this program accepts, independent
// of the logging flags registered separately by pkg/logger.
type Flags struct {
	Rewind       bool
	CANDevice    string
	CANFrameType string
	BindPort     int
	BindAddr     string
	ForcePlay    bool
	Verbosity    int
}

// RegisterFlags registers the player's own flags with fs. Verbosity is
// counted via a custom flag.Value since the stdlib flag package has no
// native repeat-count boolean.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.BoolVar(&f.Rewind, "r", false, "rewind log file once end of file is reached")
	fs.StringVar(&f.CANDevice, "d", "can0", "CAN device name to send CAN messages on")
	fs.StringVar(&f.CANFrameType, "t", "std", "CAN frame type: std or ext")
	fs.IntVar(&f.BindPort, "p", 554, "port to listen for RTSP connections")
	fs.StringVar(&f.BindAddr, "i", "0.0.0.0", "IP address to bind")
	fs.BoolVar(&f.ForcePlay, "f", false, "force direct playback without RTSP negotiation")
	fs.BoolFunc("v", "increase logging verbosity (repeatable)", func(string) error {
		f.Verbosity++
		return nil
	})

	return f
}

// Config is the validated, resolved form of Flags plus the two
// positional log file arguments.
type Config struct {
	RTPLogPath   string
	CANLogPath   string
	Rewind       bool
	CANDevice    string
	CANFrameType cansender.FrameType
	BindPort     int
	BindAddr     string
	ForcePlay    bool
	Verbosity    int
}

// ToConfig validates Flags and combines them with the two positional log
// paths into a Config.
func (f *Flags) ToConfig(rtpLogPath, canLogPath string) (*Config, error) {
	var frameType cansender.FrameType
	switch f.CANFrameType {
	case "std", "":
		frameType = cansender.FrameTypeStandard
	case "ext":
		frameType = cansender.FrameTypeExtended
	default:
		return nil, fmt.Errorf("invalid CAN frame type %q (must be std or ext)", f.CANFrameType)
	}

	if f.BindPort <= 0 || f.BindPort > 65535 {
		return nil, fmt.Errorf("invalid bind port %d", f.BindPort)
	}

	return &Config{
		RTPLogPath:   rtpLogPath,
		CANLogPath:   canLogPath,
		Rewind:       f.Rewind,
		CANDevice:    f.CANDevice,
		CANFrameType: frameType,
		BindPort:     f.BindPort,
		BindAddr:     f.BindAddr,
		ForcePlay:    f.ForcePlay,
		Verbosity:    f.Verbosity,
	}, nil
}
