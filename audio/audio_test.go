package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestIsBluetooth(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Sony WH-1000XM4", true},
		{"Headset (BT)", true},
		{"Built-in Audio Analog Stereo", false},
		{"Blue Yeti", false},
	}
	for _, tt := range tests {
		if got := IsBluetooth(tt.name); got != tt.want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFindDevice(t *testing.T) {
	ctx := NewFakeContext(nil, false,
		DeviceInfo{ID: "alsa_input.usb", Name: "USB Mic"},
		DeviceInfo{ID: "alsa_input.pci", Name: "alsa_input.usb"},
	)
	tests := []struct {
		query   string
		wantID  string
		wantErr error
	}{
		{"alsa_input.usb", "alsa_input.usb", nil}, // ID beats name
		{"USB Mic", "alsa_input.usb", nil},
		{"missing", "", ErrDeviceNotFound},
	}
	for _, tt := range tests {
		got, err := FindDevice(ctx, tt.query)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("FindDevice(%q) err = %v, want %v", tt.query, err, tt.wantErr)
			continue
		}
		if err == nil && got.ID != tt.wantID {
			t.Errorf("FindDevice(%q) = %q, want %q", tt.query, got.ID, tt.wantID)
		}
	}
}

func TestAmplify(t *testing.T) {
	tests := []struct {
		in   int16
		gain int
		want int16
	}{
		{100, 0, 100},
		{100, 1, 100},
		{100, 8, 800},
		{-100, 8, -800},
		{5000, 8, 32767},
		{-5000, 8, -32768},
	}
	for _, tt := range tests {
		if got := amplify(tt.in, tt.gain); got != tt.want {
			t.Errorf("amplify(%d, %d) = %d, want %d", tt.in, tt.gain, got, tt.want)
		}
	}

	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm, uint16(int16(-3)))
	binary.LittleEndian.PutUint16(pcm[2:], 4)
	amplifyPCM(pcm, 2)
	if got := int16(binary.LittleEndian.Uint16(pcm)); got != -6 {
		t.Errorf("first sample = %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(pcm[2:])); got != 8 {
		t.Errorf("second sample = %d", got)
	}
}

// keys feeds one keypress per Read, as a raw terminal does.
type keys [][]byte

func (k *keys) Read(p []byte) (int, error) {
	if len(*k) == 0 {
		return 0, io.EOF
	}
	n := copy(p, (*k)[0])
	*k = (*k)[1:]
	return n, nil
}

func TestPicker(t *testing.T) {
	devices := []DeviceInfo{{ID: "a", Name: "Alpha"}, {ID: "b", Name: "Beta"}, {ID: "c", Name: "Gamma"}}
	up := []byte{0x1b, '[', 'A'}
	down := []byte{0x1b, '[', 'B'}

	tests := []struct {
		name    string
		current string
		input   keys
		want    string
		wantErr error
	}{
		{"enter keeps current", "Beta", keys{{'\r'}}, "b", nil},
		{"unknown current starts at top", "Zeta", keys{{'\r'}}, "a", nil},
		{"arrows", "", keys{down, down, up, {'\r'}}, "b", nil},
		{"vim keys clamp", "", keys{{'k'}, {'j'}, {'j'}, {'j'}, {'\r'}}, "c", nil},
		{"cancel", "Alpha", keys{down, {3}}, "", ErrSelectionCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			in := tt.input
			got, err := newPicker(devices, tt.current).run(&in, &out)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got.ID != tt.want {
				t.Errorf("picked %q, want %q", got.ID, tt.want)
			}
			if !strings.Contains(out.String(), "Gamma") {
				t.Error("device list not rendered")
			}
		})
	}
}

func TestPickerInputClosed(t *testing.T) {
	var in keys
	_, err := newPicker([]DeviceInfo{{ID: "a"}, {ID: "b"}}, "").run(&in, io.Discard)
	if err == nil || !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want wrapped EOF", err)
	}
}
