package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	MIMEFlac = "audio/flac"
	MIMEWav  = "audio/wav"
)

var ErrClosed = errors.New("encoder closed")

// Preferred lists upload encodings from most to least desirable.
var Preferred = []string{MIMEFlac, MIMEWav}

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

func IsTypeSupported(mime string) bool {
	return slices.Contains(Preferred, mime)
}

// Extension returns the file extension providers expect for mime.
func Extension(mime string) string {
	switch mime {
	case MIMEFlac:
		return "flac"
	case MIMEWav:
		return "wav"
	}
	return "bin"
}

func New(mime string) (Encoder, error) {
	switch mime {
	case MIMEFlac:
		return NewFlac()
	case MIMEWav:
		return NewWav(), nil
	}
	return nil, fmt.Errorf("unsupported audio type %q", mime)
}

// Encode converts a whole PCM16 clip in one go.
func Encode(mime string, pcm []byte) ([]byte, error) {
	enc, err := New(mime)
	if err != nil {
		return nil, err
	}
	samples := Samples(pcm)
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// Samples decodes little-endian PCM16. A trailing odd byte is dropped.
func Samples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// memFile is an in-memory io.WriteSeeker. Both container writers seek back
// to patch their headers once the length is known.
type memFile struct {
	data []byte
	pos  int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.data) {
		m.data = slices.Grow(m.data, end-len(m.data))[:end]
	}
	n := copy(m.data[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(m.pos) + offset
	case io.SeekEnd:
		pos = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.New("seek before start of buffer")
	}
	m.pos = int(pos)
	return pos, nil
}
