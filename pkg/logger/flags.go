package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel    string
	LogFormat   string
	LogFile     string
	DebugRTP    bool
	DebugCAN    bool
	DebugSource bool
	DebugRTSP   bool
	DebugReplay bool
	DebugAll    bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info",
		"Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text",
		"Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "",
		"Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "",
		"Log output file path (shorthand)")

	fs.BoolVar(&f.DebugRTP, "debug-rtp", false,
		"Enable detailed RTP packet debugging (sequence, timestamp, ssrc)")
	fs.BoolVar(&f.DebugCAN, "debug-can", false,
		"Enable detailed CAN frame debugging (id, dlc, data)")
	fs.BoolVar(&f.DebugSource, "debug-source", false,
		"Enable log source debugging (open/read/close/EOF transitions)")
	fs.BoolVar(&f.DebugRTSP, "debug-rtsp", false,
		"Enable RTSP protocol debugging")
	fs.BoolVar(&f.DebugReplay, "debug-replay", false,
		"Enable replay engine pacing debugging")
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	cfg.OutputFile = f.LogFile

	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		cfg.Level = LevelDebug
	} else {
		if f.DebugRTP {
			cfg.EnableCategory(DebugRTP)
			cfg.Level = LevelDebug
		}
		if f.DebugCAN {
			cfg.EnableCategory(DebugCAN)
			cfg.Level = LevelDebug
		}
		if f.DebugSource {
			cfg.EnableCategory(DebugSource)
			cfg.Level = LevelDebug
		}
		if f.DebugRTSP {
			cfg.EnableCategory(DebugRTSP)
			cfg.Level = LevelDebug
		}
		if f.DebugReplay {
			cfg.EnableCategory(DebugReplay)
			cfg.Level = LevelDebug
		}
	}

	return cfg, nil
}

// ApplyVerbosity raises the log level and, past the first step, enables
// all debug categories. Mirrors the CLI's repeatable "-v" flag.
func (f *Flags) ApplyVerbosity(count int) {
	if count <= 0 {
		return
	}
	f.LogLevel = "debug"
	if count > 1 {
		f.DebugAll = true
	}
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./logplayer rtplog.bin canlog.txt

  Enable DEBUG level:
    ./logplayer -l debug rtplog.bin canlog.txt

  Log to file:
    ./logplayer -o logplayer.log rtplog.bin canlog.txt

  JSON format for structured logging:
    ./logplayer --log-format json -o logplayer.json rtplog.bin canlog.txt

  Debug RTP packets only:
    ./logplayer --debug-rtp rtplog.bin canlog.txt

  Debug CAN frames only:
    ./logplayer --debug-can rtplog.bin canlog.txt

  Debug everything:
    ./logplayer --debug-all -o debug.log rtplog.bin canlog.txt
`
	fmt.Println(examples)
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var debugCategories []string
	if f.DebugAll {
		debugCategories = append(debugCategories, "all")
	} else {
		if f.DebugRTP {
			debugCategories = append(debugCategories, "rtp")
		}
		if f.DebugCAN {
			debugCategories = append(debugCategories, "can")
		}
		if f.DebugSource {
			debugCategories = append(debugCategories, "source")
		}
		if f.DebugRTSP {
			debugCategories = append(debugCategories, "rtsp")
		}
		if f.DebugReplay {
			debugCategories = append(debugCategories, "replay")
		}
	}

	if len(debugCategories) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugCategories, ",")))
	}

	return strings.Join(parts, " ")
}
