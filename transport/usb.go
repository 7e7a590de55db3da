package transport

import (
	"bytes"
	"syscall"
	"time"

	"github.com/daedaluz/fdev/poll"
	gousb "github.com/daedaluz/gousb"
)

// USB is a Transport backed by a USB-CDC ACM character device. Unlike
// Serial, it never negotiates a baud rate or runs the SAM-BA auto-baud
// handshake: USB-CDC carries SAM-BA's command bytes directly over a bulk
// endpoint, and bulk I/O is never XMODEM-framed (see samba.IsUSB).
type USB struct {
	f           int
	node        string
	readTimeout time.Duration
}

// OpenUSB opens the CDC ACM node (e.g. "/dev/ttyACM0") the kernel created for
// a SAM-BA USB device. Picking *which* node belongs to the target VID/PID is
// the CLI's job (spec's --autoconnect-vidpid); this layer only speaks bytes
// once a node has been chosen.
func OpenUSB(node string, readTimeout time.Duration) (*USB, error) {
	if readTimeout == 0 {
		readTimeout = time.Second
	}
	fd, err := syscall.Open(node, syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, wrapOp("open", node, err)
	}
	return &USB{f: fd, node: node, readTimeout: readTimeout}, nil
}

func (u *USB) Read(length int) ([]byte, error) {
	buf := make([]byte, length)
	total := 0
	deadline := time.Now().Add(u.readTimeout)
	for total < length {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, wrapOp("read", u.node, TimeoutError{Requested: length, Received: total})
		}
		if err := poll.WaitInput(u.f, remaining); err != nil {
			return nil, wrapOp("read", u.node, err)
		}
		n, err := syscall.Read(u.f, buf[total:])
		if err != nil {
			return nil, wrapOp("read", u.node, err)
		}
		total += n
	}
	return buf, nil
}

func (u *USB) Write(data []byte) error {
	total := 0
	for total < len(data) {
		n, err := syscall.Write(u.f, data[total:])
		if err != nil {
			return wrapOp("write", u.node, err)
		}
		total += n
	}
	return nil
}

func (u *USB) Close() error {
	if u.f < 0 {
		return ClosedError{Device: u.node}
	}
	fd := u.f
	u.f = -1
	return syscall.Close(fd)
}

// DeviceDescription decodes the USB device/configuration descriptor chain
// read from the kernel's sysfs "descriptors" node (one raw dump per device,
// device descriptor first followed by each configuration's descriptor set).
// It is purely diagnostic: identifying which attached node to open for a
// target VID/PID is left to the external CLI collaborator (spec.md §6).
type DeviceDescription struct {
	Device  *gousb.DeviceDescriptor
	Configs []*gousb.ConfigurationDescriptor
}

// ParseDeviceDescription decodes a raw sysfs descriptor dump.
func ParseDeviceDescription(raw []byte) (*DeviceDescription, error) {
	desc := &DeviceDescription{}
	r := bytes.NewReader(raw)
	err := gousb.ReadDescriptors(r, func(d gousb.Descriptor) {
		switch v := d.(type) {
		case *gousb.DeviceDescriptor:
			desc.Device = v
		case *gousb.ConfigurationDescriptor:
			desc.Configs = append(desc.Configs, v)
		}
	})
	if err != nil {
		return nil, wrapOp("parse descriptors", "", err)
	}
	return desc, nil
}
