// Package cansender owns the raw CAN socket that replayed CAN frames are
// written to. Go's standard library has no notion of PF_CAN/AF_CAN, so
// this package talks to the kernel directly through golang.org/x/sys/unix,
// the same layer the rest of the example pack uses for ioctl-driven Linux
// devices outside stdlib's reach.
package cansender

import (
	"time"
	"unsafe"

	"github.com/sigurn/crc8"
	"golang.org/x/sys/unix"

	"github.com/ivanruban/LCVBLogPlayer/pkg/eventlog"
	"github.com/ivanruban/LCVBLogPlayer/pkg/logger"
)

// FrameType selects how a CAN identifier is interpreted at open time.
type FrameType int

const (
	FrameTypeStandard FrameType = iota
	FrameTypeExtended
)

// canEFFFlag marks an identifier as 29-bit extended (linux/can.h CAN_EFF_FLAG).
const canEFFFlag = 0x80000000

const (
	sizeofCanFrame    = 16
	sizeofSockaddrCan = 32 // generous: real struct grew with J1939 support
	sizeofIfreq       = 32 // ifr_name[IFNAMSIZ] + union, classic ifreq size
	maxENOBUFSRetries = 1000
	enobufsRetryDelay = 10 * time.Microsecond
)

var crc8Table = crc8.MakeTable(crc8.CRC8)

// Emitter owns a raw CAN_RAW socket bound to a single interface.
type Emitter struct {
	fd        int
	frameType FrameType
	log       *logger.Logger
}

// New opens a CAN_RAW socket, resolves ifaceName to its kernel interface
// index via SIOCGIFINDEX, and binds the socket to it.
func New(ifaceName string, frameType FrameType, log *logger.Logger) (*Emitter, error) {
	if log == nil {
		log = logger.Default()
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, eventlog.NewError(eventlog.KindBusError, "cansender.New", err)
	}

	idx, err := ifIndex(fd, ifaceName)
	if err != nil {
		unix.Close(fd)
		return nil, eventlog.NewError(eventlog.KindBusError, "cansender.New", err)
	}

	addr := make([]byte, sizeofSockaddrCan)
	nativeEndian.PutUint16(addr[0:2], uint16(unix.AF_CAN))
	nativeEndian.PutUint32(addr[4:8], uint32(idx))

	if _, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd),
		uintptr(unsafe.Pointer(&addr[0])), uintptr(len(addr))); errno != 0 {
		unix.Close(fd)
		return nil, eventlog.NewError(eventlog.KindBusError, "cansender.New", errno)
	}

	return &Emitter{fd: fd, frameType: frameType, log: log}, nil
}

// ifIndex resolves an interface name to its kernel index via
// SIOCGIFINDEX, mirroring the reference implementation's ioctl call.
func ifIndex(fd int, name string) (int32, error) {
	ifr := make([]byte, sizeofIfreq)
	copy(ifr[0:unix.IFNAMSIZ], name)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.SIOCGIFINDEX), uintptr(unsafe.Pointer(&ifr[0])))
	if errno != 0 {
		return 0, errno
	}
	return int32(nativeEndian.Uint32(ifr[unix.IFNAMSIZ : unix.IFNAMSIZ+4])), nil
}

// Send validates that payload is exactly a 16-byte CAN frame record,
// translates it to the native can_frame layout, and writes it. On
// ENOBUFS it retries with a short sleep up to 1000 times before failing.
func (e *Emitter) Send(payload []byte) error {
	frame, err := eventlog.DecodeCANFrame(payload)
	if err != nil {
		return eventlog.NewError(eventlog.KindInvalidFormat, "Emitter.Send", err)
	}

	canID := frame.ID
	if e.frameType == FrameTypeExtended {
		canID |= canEFFFlag
	}

	buf := make([]byte, sizeofCanFrame)
	nativeEndian.PutUint32(buf[0:4], canID)
	buf[4] = byte(frame.Len)
	copy(buf[8:16], frame.Data[:])

	if e.log.IsCategoryEnabled(logger.DebugCAN) {
		crc := crc8.Checksum(frame.Data[:frame.Len], crc8Table)
		e.log.Debug("can frame encoded", "category", "can", "id", canID, "dlc", frame.Len, "crc8", crc)
		e.log.DebugCANFrame(frame.ID, frame.Len, e.frameType == FrameTypeExtended)
	}

	retries := maxENOBUFSRetries
	for {
		_, err := unix.Write(e.fd, buf)
		if err == nil {
			return nil
		}
		if err == unix.ENOBUFS && retries > 0 {
			retries--
			time.Sleep(enobufsRetryDelay)
			continue
		}
		return eventlog.NewError(eventlog.KindBusError, "Emitter.Send", err)
	}
}

// Close releases the CAN socket.
func (e *Emitter) Close() error {
	if e.fd >= 0 {
		err := unix.Close(e.fd)
		e.fd = -1
		return err
	}
	return nil
}
