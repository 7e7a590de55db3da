package transport

import (
	"time"
)

// SerialOptions configures a Serial transport, following the same
// plain-struct-with-defaults idiom as goserial's Options/NewOptions.
type SerialOptions struct {
	// Baud is the bit rate to negotiate. Defaults to 115200 if zero.
	Baud int
	// ReadTimeout bounds how long Read will wait for the full requested
	// length to arrive. Defaults to 1s if zero, per the SAM-BA spec.
	ReadTimeout time.Duration
}

// DefaultSerialOptions returns the SAM-BA defaults: 115200 8N1, 1s read
// timeout, with pending input flushed on open.
func DefaultSerialOptions() SerialOptions {
	return SerialOptions{Baud: 115200, ReadTimeout: time.Second}
}

// Serial is a Transport backed by a Linux tty device opened 8N1 with an
// explicit read deadline. It never wraps bulk transfers in XMODEM itself —
// that framing decision belongs to the SAM-BA protocol layer, which knows
// whether it is talking to a serial UART or a USB-CDC endpoint.
type Serial struct {
	port *serialPort
}

// OpenSerial opens name (e.g. "/dev/ttyACM0") with the given options.
func OpenSerial(name string, opts SerialOptions) (*Serial, error) {
	if opts.Baud == 0 {
		opts.Baud = 115200
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = time.Second
	}
	port, err := openSerialPort(name, opts.Baud, opts.ReadTimeout)
	if err != nil {
		return nil, err
	}
	return &Serial{port: port}, nil
}

// Read blocks until exactly length bytes have arrived or the configured
// read timeout elapses, in which case it returns a TimeoutError.
func (s *Serial) Read(length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.port.readFull(buf)
	if err != nil {
		return nil, wrapOp("read", s.port.name, TimeoutError{Requested: length, Received: n})
	}
	return buf, nil
}

// Write sends data as-is; SAM-BA command bytes are already ASCII by
// construction (see samba.serialize), so no additional encoding happens
// here beyond what the caller already produced.
func (s *Serial) Write(data []byte) error {
	total := 0
	for total < len(data) {
		n, err := s.port.write(data[total:])
		if err != nil {
			return wrapOp("write", s.port.name, err)
		}
		total += n
	}
	return nil
}

// Close releases the underlying file descriptor. Safe to call once; a
// second call returns ClosedError.
func (s *Serial) Close() error {
	if s.port.f < 0 {
		return ClosedError{Device: s.port.name}
	}
	return s.port.close()
}
