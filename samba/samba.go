// Package samba implements the SAM-BA bootloader's ASCII command grammar:
// framing commands, issuing primitive byte/half-word/word/block I/O, and
// running the serial auto-baud handshake. It is stateless beyond the
// Transport and the is_usb mode flag it was constructed with.
package samba

import (
	"encoding/binary"
	"fmt"

	"github.com/abcminiuser/sam-ba-loader/internal/samlog"
	"github.com/abcminiuser/sam-ba-loader/internal/xmodem"
	"github.com/abcminiuser/sam-ba-loader/transport"
)

// command is one ASCII letter naming a SAM-BA bootloader operation.
type command byte

const (
	cmdSetNormalMode command = 'N'
	cmdGo            command = 'G'
	cmdGetVersion    command = 'V'
	cmdSendFile      command = 'S'
	cmdReceiveFile   command = 'R'
	cmdWriteWord     command = 'W'
	cmdReadWord      command = 'w'
	cmdWriteHalfWord command = 'H'
	cmdReadHalfWord  command = 'h'
	cmdWriteByte     command = 'O'
	cmdReadByte      command = 'o'
)

// ConnectionError is returned when a device response cannot be decoded as
// the protocol requires (e.g. a non-ASCII version string).
type ConnectionError struct {
	Reason string
}

func (e ConnectionError) Error() string { return "samba: " + e.Reason }

// SAMBA issues commands to a device over a Transport. A SAMBA instance is
// bound to exactly one transport/mode pair for its lifetime.
type SAMBA struct {
	t     transport.Transport
	isUSB bool
}

// Open constructs a SAMBA session and runs its initialization protocol: on
// a serial (non-USB) link it first emits the auto-baud training sequence,
// then always sends the "set normal mode" command and discards its 2-byte
// reply.
func Open(t transport.Transport, isUSB bool) (*SAMBA, error) {
	s := &SAMBA{t: t, isUSB: isUSB}

	if !isUSB {
		if err := t.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, '#'}); err != nil {
			return nil, err
		}
	}

	if err := transport.WriteText(t, s.serialize(cmdSetNormalMode)); err != nil {
		return nil, err
	}
	if _, err := t.Read(2); err != nil {
		return nil, err
	}
	return s, nil
}

// IsUSB reports whether this session was opened over a USB-CDC transport
// (true) or a serial UART (false). Bulk block I/O only uses XMODEM framing
// when this is false.
func (s *SAMBA) IsUSB() bool { return s.isUSB }

// serialize builds the byte-exact ASCII command line for command with 0–2
// arguments: zero args produce an empty argument list, one arg is followed
// by a trailing comma, and two args are comma-separated with no trailing
// punctuation. More than two arguments is a programming error.
func (s *SAMBA) serialize(cmd command, args ...uint32) string {
	var argStr string
	switch len(args) {
	case 0:
		argStr = ""
	case 1:
		argStr = fmt.Sprintf("%08x,", args[0])
	case 2:
		argStr = fmt.Sprintf("%08x,%08x", args[0], args[1])
	default:
		panic(fmt.Sprintf("samba: invalid command argument count: %d", len(args)))
	}
	return fmt.Sprintf("%c%s#", byte(cmd), argStr)
}

func (s *SAMBA) send(cmd command, args ...uint32) error {
	line := s.serialize(cmd, args...)
	samlog.Debugf("-> %s", line)
	return transport.WriteText(s.t, line)
}

// RunFromAddress starts execution in the attached device at address.
func (s *SAMBA) RunFromAddress(address uint32) error {
	return s.send(cmdGo, address)
}

// GetVersion reads the SAM-BA version string, accumulating bytes until the
// "\n\r" terminator appears, then stripping it. A non-ASCII response is a
// ConnectionError.
func (s *SAMBA) GetVersion() (string, error) {
	if err := s.send(cmdGetVersion); err != nil {
		return "", err
	}

	var line []byte
	for {
		b, err := s.t.Read(1)
		if err != nil {
			return "", err
		}
		line = append(line, b[0])
		if len(line) >= 2 && line[len(line)-2] == '\n' && line[len(line)-1] == '\r' {
			line = line[:len(line)-2]
			break
		}
	}
	for _, b := range line {
		if b >= 0x80 {
			return "", ConnectionError{Reason: "version string is not ASCII"}
		}
	}
	version := string(line)
	samlog.Debugf("version = %q", version)
	return version, nil
}

// WriteWord writes a 32-bit word to address.
func (s *SAMBA) WriteWord(address, word uint32) error {
	return s.send(cmdWriteWord, address, word)
}

// ReadWord reads a little-endian 32-bit word from address.
func (s *SAMBA) ReadWord(address uint32) (uint32, error) {
	if err := s.send(cmdReadWord, address); err != nil {
		return 0, err
	}
	data, err := s.t.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// WriteHalfWord writes a 16-bit half-word to address.
func (s *SAMBA) WriteHalfWord(address uint32, halfWord uint16) error {
	return s.send(cmdWriteHalfWord, address, uint32(halfWord))
}

// ReadHalfWord reads a little-endian 16-bit half-word from address.
func (s *SAMBA) ReadHalfWord(address uint32) (uint16, error) {
	if err := s.send(cmdReadHalfWord, address); err != nil {
		return 0, err
	}
	data, err := s.t.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// WriteByte writes a single byte to address.
func (s *SAMBA) WriteByte(address uint32, b byte) error {
	return s.send(cmdWriteByte, address, uint32(b))
}

// ReadByte reads a single byte from address.
func (s *SAMBA) ReadByte(address uint32) (byte, error) {
	if err := s.send(cmdReadByte, address); err != nil {
		return 0, err
	}
	data, err := s.t.Read(1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// blockLink adapts this SAMBA session's Transport for a single S/R bulk
// transfer: XMODEM-CRC framed on serial links, raw on USB.
func (s *SAMBA) blockLink() xmodem.ByteLink {
	if s.isUSB {
		return s.t
	}
	return xmodem.Wrap(s.t)
}

// SendFile writes data to address on the device (the 'S' command),
// transparently XMODEM-CRC framing the payload on serial transports.
func (s *SAMBA) SendFile(address uint32, data []byte) error {
	if err := s.send(cmdSendFile, address, uint32(len(data))); err != nil {
		return err
	}
	return s.blockLink().Write(data)
}

// ReceiveFile reads length bytes from address on the device (the 'R'
// command), transparently de-framing XMODEM-CRC on serial transports.
func (s *SAMBA) ReceiveFile(address uint32, length int) ([]byte, error) {
	if err := s.send(cmdReceiveFile, address, uint32(length)); err != nil {
		return nil, err
	}
	return s.blockLink().Read(length)
}

// ReadBlock reads length bytes starting at address with a single
// ReceiveFile ('R' command); it never uses word reads. Flash controllers
// that must avoid the
// device's 'R' command entirely (the EEFC read-back quirk) use ReadWord
// directly instead.
func (s *SAMBA) ReadBlock(address uint32, length int) ([]byte, error) {
	return s.ReceiveFile(address, length)
}

// WriteBlock writes data starting at address via the 'S' command.
func (s *SAMBA) WriteBlock(address uint32, data []byte) error {
	return s.SendFile(address, data)
}
