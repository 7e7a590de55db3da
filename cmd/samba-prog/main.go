// Command samba-prog is the host-side CLI for programming Atmel SAM parts
// over the SAM-BA ROM bootloader (spec.md §6). Subcommands: parts, info,
// read, write, erase. Global flags select the transport and tune logging;
// see usage() for the full surface.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abcminiuser/sam-ba-loader/fileformat"
	"github.com/abcminiuser/sam-ba-loader/internal/samlog"
	"github.com/abcminiuser/sam-ba-loader/parts"
	"github.com/abcminiuser/sam-ba-loader/session"
	"github.com/abcminiuser/sam-ba-loader/transport"
)

// Exit codes (spec.md §6).
const (
	exitOK             = 0
	exitSessionError   = 1
	exitTransportError = 2
	exitNoHexSupport   = 3
)

const defaultAutoconnectVIDPID = "03eb:6124"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) == 0 {
		usage()
		return exitSessionError
	}

	globals := flag.NewFlagSet("samba-prog", flag.ContinueOnError)
	port := globals.String("p", "", "serial or USB-CDC device node (e.g. /dev/ttyACM0)")
	globals.StringVar(port, "port", "", "alias of -p")
	verbosity := 0
	globals.BoolFunc("v", "repeat for more verbosity (-v -v)", func(string) error {
		verbosity++
		return nil
	})
	autoconnect := globals.Bool("autoconnect", false, "pick the first attached device matching --autoconnect-vidpid")
	autoconnectVIDPID := globals.String("autoconnect-vidpid", defaultAutoconnectVIDPID, "VID:PID to match for --autoconnect")
	addresses := globals.String("addresses", "", "NAME=HEX,... identifier register address overrides")
	descriptors := globals.String("descriptors", "", "load additional part descriptors from a TOML file")
	partName := globals.String("part", "", "skip identifier probing and bind this registry part by name")
	flashBoot := globals.Bool("flash-boot", false, "set the boot-from-flash GPNVM bit after the operation")
	doReset := globals.Bool("reset", false, "reset the part after the operation")
	var addr, length uint
	globals.Func("a", "address (decimal, 0x-hex, or k/K/m/M suffixed)", func(s string) error {
		v, err := parseNumber(s)
		addr = uint(v)
		return err
	})
	globals.Func("l", "length (decimal, 0x-hex, or k/K/m/M suffixed)", func(s string) error {
		v, err := parseNumber(s)
		length = uint(v)
		return err
	})
	file := globals.String("f", "", "file path")

	if len(argv) < 1 {
		usage()
		return exitSessionError
	}
	cmd := argv[0]
	if err := globals.Parse(argv[1:]); err != nil {
		return exitSessionError
	}

	if *descriptors != "" {
		descs, err := parts.LoadDescriptors(*descriptors)
		if err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
		parts.Register(descs...)
	}

	if cmd == "parts" {
		listParts()
		return exitOK
	}

	overrides, err := parseAddressOverrides(*addresses)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSessionError
	}

	samlog.SetLevel(verbosity)

	node := *port
	if *autoconnect {
		found, err := autodetect(*autoconnectVIDPID)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitTransportError
		}
		node = found
	}
	if node == "" {
		fmt.Fprintln(os.Stderr, "samba-prog: no port given (-p) and --autoconnect not requested")
		return exitTransportError
	}

	t, isUSB, err := openTransport(node)
	if err != nil {
		fmt.Fprintln(os.Stderr, "samba-prog: open transport:", err)
		return exitTransportError
	}

	sess, err := session.Open(t, isUSB)
	if err != nil {
		fmt.Fprintln(os.Stderr, "samba-prog:", err)
		return exitTransportError
	}

	if *partName != "" {
		if err := sess.SelectPartByName(*partName); err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
	} else {
		ids, err := sess.Probe(overrides)
		if err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
		if err := sess.SelectPart(ids); err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
	}

	exit := dispatch(sess, cmd, addr, length, *file)
	if exit != exitOK {
		return exit
	}

	if *flashBoot {
		if err := sess.SetFlashBoot(); err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
	}
	if *doReset {
		if err := sess.Reset(); err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
	}
	return exitOK
}

func dispatch(sess *session.Session, cmd string, addr, length uint, file string) int {
	switch cmd {
	case "info":
		info, err := sess.Info()
		if err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
		fmt.Println(info)
		return exitOK

	case "read":
		data, err := sess.ReadFlash(uint32(addr), int(length))
		if err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
		if file == "" {
			fmt.Printf("% X\n", data)
			return exitOK
		}
		return writeFile(file, data)

	case "write":
		if file == "" {
			fmt.Fprintln(os.Stderr, "samba-prog: write requires -f")
			return exitSessionError
		}
		data, base, code := loadFile(file)
		if code != exitOK {
			return code
		}
		if addr == 0 {
			addr = uint(base)
		}
		if length != 0 && int(length) < len(data) {
			data = data[:length]
		}
		if err := sess.ProgramFlash(data, uint32(addr)); err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
		mismatch, err := sess.VerifyFlash(data, uint32(addr))
		if err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
		if mismatch != nil {
			fmt.Fprintf(os.Stderr, "samba-prog: verify mismatch at 0x%X: got 0x%X, want 0x%X\n",
				mismatch.Address, mismatch.Actual, mismatch.Want)
			return exitSessionError
		}
		return exitOK

	case "erase":
		if err := sess.Erase(uint32(addr)); err != nil {
			fmt.Fprintln(os.Stderr, "samba-prog:", err)
			return exitSessionError
		}
		return exitOK

	default:
		usage()
		return exitSessionError
	}
}

func writeFile(path string, data []byte) int {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "samba-prog: write file:", err)
		return exitSessionError
	}
	return exitOK
}

func loadFile(path string) ([]byte, uint32, int) {
	format, err := formatFor(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "samba-prog:", err)
		return nil, 0, exitNoHexSupport
	}
	data, base, err := format.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "samba-prog:", err)
		return nil, 0, exitSessionError
	}
	return data, base, exitOK
}

// formatFor dispatches on file extension: ".hex" for Intel HEX, everything
// else as raw binary (spec.md §6).
func formatFor(path string) (fileformat.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex":
		return fileformat.IHexFormat{}, nil
	default:
		return fileformat.BinFormat{}, nil
	}
}

func listParts() {
	for _, d := range parts.All() {
		name := d.Name
		if d.Untested {
			name += " (untested)"
		}
		fmt.Println(name)
	}
}

// parseAddressOverrides parses a "NAME=HEX,NAME=HEX,..." list into a
// session.AddressOverrides map (spec.md §6).
func parseAddressOverrides(raw string) (session.AddressOverrides, error) {
	overrides := session.AddressOverrides{}
	if raw == "" {
		return overrides, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		nameValue := strings.SplitN(entry, "=", 2)
		if len(nameValue) != 2 {
			return nil, fmt.Errorf("samba-prog: malformed --addresses entry %q", entry)
		}
		value, err := parseNumber(nameValue[1])
		if err != nil {
			return nil, fmt.Errorf("samba-prog: --addresses %q: %w", entry, err)
		}
		overrides[nameValue[0]] = value
	}
	return overrides, nil
}

// parseNumber accepts decimal, 0x-hex, and a k/K/m/M multiplier suffix
// (×1024, ×1024²), per spec.md §6.
func parseNumber(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	multiplier := uint64(1)
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'k', 'K':
			multiplier = 1024
			s = s[:n-1]
		case 'm', 'M':
			multiplier = 1024 * 1024
			s = s[:n-1]
		}
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	value, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, err
	}
	return uint32(value * multiplier), nil
}

// openTransport opens node as USB-CDC when its name looks like an ACM tty
// (the USB-CDC nodes SAM-BA USB devices present), otherwise as a raw serial
// port (spec.md §4.1).
func openTransport(node string) (transport.Transport, bool, error) {
	if strings.Contains(node, "ACM") {
		u, err := transport.OpenUSB(node, time.Second)
		if err != nil {
			return nil, false, err
		}
		return u, true, nil
	}
	s, err := transport.OpenSerial(node, transport.DefaultSerialOptions())
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

// autodetect scans /dev for ttyACM* nodes and returns the first one whose
// sysfs descriptor dump matches vidpid ("VID:PID" in hex). Picking which
// attached node belongs to the target device is the CLI's job; transport.
// ParseDeviceDescription only decodes the dump once a candidate is found.
func autodetect(vidpid string) (string, error) {
	want := strings.SplitN(vidpid, ":", 2)
	if len(want) != 2 {
		return "", fmt.Errorf("samba-prog: malformed --autoconnect-vidpid %q", vidpid)
	}
	wantVID, err := strconv.ParseUint(want[0], 16, 16)
	if err != nil {
		return "", fmt.Errorf("samba-prog: malformed --autoconnect-vidpid %q: %w", vidpid, err)
	}
	wantPID, err := strconv.ParseUint(want[1], 16, 16)
	if err != nil {
		return "", fmt.Errorf("samba-prog: malformed --autoconnect-vidpid %q: %w", vidpid, err)
	}

	nodes, err := filepath.Glob("/dev/ttyACM*")
	if err != nil {
		return "", err
	}
	for _, node := range nodes {
		sysfsDesc := filepath.Join("/sys/class/tty", filepath.Base(node), "device", "..", "..", "descriptors")
		raw, err := os.ReadFile(sysfsDesc)
		if err != nil {
			continue
		}
		desc, err := transport.ParseDeviceDescription(raw)
		if err != nil || desc.Device == nil {
			continue
		}
		if uint64(desc.Device.IDVendor) == wantVID && uint64(desc.Device.IDProduct) == wantPID {
			return node, nil
		}
	}
	return "", fmt.Errorf("samba-prog: no attached device matched VID:PID %s", vidpid)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: samba-prog <command> [global flags] [flags]
(the command comes first; all flags follow it)

commands:
  parts                    list supported parts
  info                     print the identified part's status
  read [-a addr] [-l len] [-f file]   read flash (stdout, or -f to save)
  write -f file [-a addr] [-l len]    program flash from file
  erase [-a plane_addr]    erase the application area (or one plane)

global flags:
  -p, --port PATH          serial or USB-CDC device node
  -v                       repeat for more verbosity
  --autoconnect            pick the first device matching --autoconnect-vidpid
  --autoconnect-vidpid V:P default `+defaultAutoconnectVIDPID+`
  --addresses NAME=HEX,... override identifier register addresses
  --descriptors FILE       load additional part descriptors from a TOML file
  --part NAME              skip probing, bind this registry part directly
  --flash-boot             set the boot-from-flash GPNVM bit afterward
  --reset                  reset the part afterward`)
}
