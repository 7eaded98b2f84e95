package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrSelectionCancelled = errors.New("device selection cancelled")

type pickKey int

const (
	keyNone pickKey = iota
	keyUp
	keyDown
	keyEnter
	keyCancel
)

// decodeKey maps one terminal read to a picker action.
func decodeKey(b []byte) pickKey {
	switch {
	case len(b) == 1:
		switch b[0] {
		case '\r', '\n':
			return keyEnter
		case 3, 'q': // ctrl+c
			return keyCancel
		case 'j':
			return keyDown
		case 'k':
			return keyUp
		}
	case len(b) == 3 && b[0] == 0x1b && b[1] == '[':
		switch b[2] {
		case 'A':
			return keyUp
		case 'B':
			return keyDown
		}
	}
	return keyNone
}

type picker struct {
	devices []DeviceInfo
	cursor  int
}

func newPicker(devices []DeviceInfo, current string) *picker {
	return &picker{devices: devices, cursor: max(0, indexOf(devices, current))}
}

// press applies a key and reports whether the selection is finished.
func (p *picker) press(k pickKey) (done bool, err error) {
	switch k {
	case keyUp:
		p.cursor = max(0, p.cursor-1)
	case keyDown:
		p.cursor = min(len(p.devices)-1, p.cursor+1)
	case keyEnter:
		return true, nil
	case keyCancel:
		return true, ErrSelectionCancelled
	}
	return false, nil
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select input device (↑/↓, Enter to confirm, q to cancel):\r\n\r\n")
	for i, d := range p.devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}

func (p *picker) run(in io.Reader, out io.Writer) (*DeviceInfo, error) {
	p.render(out)
	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		done, err := p.press(decodeKey(buf[:n]))
		if done {
			fmt.Fprint(out, "\r\n")
			if err != nil {
				return nil, err
			}
			return &p.devices[p.cursor], nil
		}
		fmt.Fprintf(out, "\x1b[%dA", len(p.devices)+2)
		p.render(out)
	}
}

// SelectDevice shows an interactive picker on the terminal, starting at the
// device matching current. A single device is returned without prompting.
func SelectDevice(ctx Context, current string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, errors.New("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	return newPicker(devices, current).run(os.Stdin, os.Stdout)
}
