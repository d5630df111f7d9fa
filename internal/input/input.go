// Package input delivers hook button presses to userspace as key events.
// On Linux the real implementation creates a uinput device.
package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
	"unsafe"
)

// Key and device identity for the headset hook button.
const (
	KeyHeadsetHook = 233 // KEY_MEDIA
	DeviceName     = "Wired Headset"
	DevicePhys     = "/dev/input/headset"
	DefaultPath    = "/dev/uinput"
)

// Linux input event types.
const (
	evSyn = 0x00
	evKey = 0x01

	synReport = 0
)

// uinput ioctls.
var (
	uiSetEvBit  = iow('U', 100, 4)
	uiSetKeyBit = iow('U', 101, 4)
	uiSetPhys   = iow('U', 108, unsafe.Sizeof(uintptr(0)))
)

const (
	uiDevCreate  = 0x5501 // _IO('U', 1)
	uiDevDestroy = 0x5502 // _IO('U', 2)
)

// iow builds a Linux _IOW request number.
func iow(typ, nr, size uintptr) uint {
	return uint(1<<30 | size<<16 | typ<<8 | nr)
}

// Device is the identity of the virtual key device.
type Device struct {
	Name string
	Phys string
	Key  int
}

// HeadsetDevice returns the hook button device identity.
func HeadsetDevice() Device {
	return Device{Name: DeviceName, Phys: DevicePhys, Key: KeyHeadsetHook}
}

// evBits returns the event types the device advertises.
func (d Device) evBits() []int {
	return []int{evSyn, evKey}
}

// ErrUnsupported is returned where uinput is not available.
var ErrUnsupported = errors.New("uinput not supported on this platform")

// KeySink accepts key transitions.
type KeySink interface {
	ReportKey(code int, down bool) error
	Close() error
}

// inputEvent mirrors struct input_event on 64-bit Linux.
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// encodeKey returns the key event followed by a sync report.
func encodeKey(code int, down bool, now time.Time) []byte {
	var value int32
	if down {
		value = 1
	}
	sec := now.Unix()
	usec := int64(now.Nanosecond() / 1000)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, inputEvent{Sec: sec, Usec: usec, Type: evKey, Code: uint16(code), Value: value})
	binary.Write(&buf, binary.LittleEndian, inputEvent{Sec: sec, Usec: usec, Type: evSyn, Code: synReport})
	return buf.Bytes()
}

const (
	uinputMaxNameSize = 80
	absCnt            = 64
	busVirtual        = 0x06
)

// userDev mirrors the legacy struct uinput_user_dev.
type userDev struct {
	Name         [uinputMaxNameSize]byte
	Bustype      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FFEffectsMax uint32
	Absmax       [absCnt]int32
	Absmin       [absCnt]int32
	Absfuzz      [absCnt]int32
	Absflat      [absCnt]int32
}

// encodeDevice returns the uinput_user_dev setup block for name.
func encodeDevice(name string) []byte {
	var dev userDev
	copy(dev.Name[:uinputMaxNameSize-1], name)
	dev.Bustype = busVirtual
	dev.Version = 1

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &dev)
	return buf.Bytes()
}
