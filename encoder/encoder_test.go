package encoder

import (
	"encoding/binary"
	"testing"
)

func TestIsTypeSupported(t *testing.T) {
	for _, tt := range []struct {
		mime string
		want bool
	}{
		{MIMEFlac, true},
		{MIMEWav, true},
		{"audio/webm;codecs=opus", false},
		{"", false},
	} {
		t.Run(tt.mime, func(t *testing.T) {
			if got := IsTypeSupported(tt.mime); got != tt.want {
				t.Errorf("IsTypeSupported(%q) = %v, want %v", tt.mime, got, tt.want)
			}
		})
	}
}

func TestExtension(t *testing.T) {
	if got := Extension(MIMEFlac); got != "flac" {
		t.Errorf("Extension(flac) = %q", got)
	}
	if got := Extension(MIMEWav); got != "wav" {
		t.Errorf("Extension(wav) = %q", got)
	}
}

func TestEncodeWav(t *testing.T) {
	samples := genTone(BlockSize*2 + 100)
	out, err := Encode(MIMEWav, toPCM(samples))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(out) < 44 || string(out[:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatal("output is not a RIFF/WAVE file")
	}
	if want := 44 + len(samples)*2; len(out) != want {
		t.Errorf("len = %d, want %d", len(out), want)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d, want %d", got, SampleRate)
	}
}

func TestEncodeFlac(t *testing.T) {
	out, err := Encode(MIMEFlac, toPCM(genTone(BlockSize+10)))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(out[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestEncodeUnsupported(t *testing.T) {
	if _, err := Encode("audio/ogg", []byte{0, 0}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestSamplesOddLength(t *testing.T) {
	got := Samples([]byte{0x01, 0x00, 0xff})
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Samples = %v, want [1]", got)
	}
}
