package cansender

import (
	"encoding/binary"
	"unsafe"
)

// nativeEndian is the host's byte order, used to lay out the can_frame
// and sockaddr_can structures the kernel expects in native order. Mirrors
// the pattern used elsewhere in the example pack for ioctl payloads that
// contain multi-byte kernel-ABI fields.
var nativeEndian binary.ByteOrder = func() binary.ByteOrder {
	var i uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()
