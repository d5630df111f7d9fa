//go:build linux

package input

import (
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// UinputSink is a virtual input device advertising a single key.
type UinputSink struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
}

// NewUinputSink opens path (normally /dev/uinput) and creates dev.
func NewUinputSink(path string, dev Device) (*UinputSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fd := int(f.Fd())

	for _, ev := range dev.evBits() {
		if err := unix.IoctlSetInt(fd, uiSetEvBit, ev); err != nil {
			f.Close()
			return nil, fmt.Errorf("set event type %d: %w", ev, err)
		}
	}
	if err := unix.IoctlSetInt(fd, uiSetKeyBit, dev.Key); err != nil {
		f.Close()
		return nil, fmt.Errorf("set key %d: %w", dev.Key, err)
	}
	if dev.Phys != "" {
		if err := ioctlString(fd, uiSetPhys, dev.Phys); err != nil {
			f.Close()
			return nil, fmt.Errorf("set phys %q: %w", dev.Phys, err)
		}
	}
	if _, err := f.Write(encodeDevice(dev.Name)); err != nil {
		f.Close()
		return nil, fmt.Errorf("write device setup: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("create device: %w", err)
	}
	return &UinputSink{f: f, now: time.Now}, nil
}

// ReportKey emits a key transition followed by a sync report.
func (s *UinputSink) ReportKey(code int, down bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("report key %d: device closed", code)
	}
	if _, err := s.f.Write(encodeKey(code, down, s.now())); err != nil {
		return fmt.Errorf("report key %d: %w", code, err)
	}
	return nil
}

// Close destroys the device.
func (s *UinputSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	destroyErr := unix.IoctlSetInt(int(s.f.Fd()), uiDevDestroy, 0)
	closeErr := s.f.Close()
	s.f = nil
	if destroyErr != nil {
		return fmt.Errorf("destroy device: %w", destroyErr)
	}
	return closeErr
}

// ioctlString passes s to the kernel as a NUL-terminated string.
func ioctlString(fd int, req uint, s string) error {
	p, err := unix.BytePtrFromString(s)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(p)))
	if errno != 0 {
		return errno
	}
	return nil
}
