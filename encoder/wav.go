package encoder

import (
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavEncoder writes an uncompressed WAV file. go-audio/wav patches the
// header on Close, so it writes into a seekable in-memory buffer.
type WavEncoder struct {
	buf         memFile
	enc         *wav.Encoder
	totalFrames uint64
	closed      bool
}

func NewWav() *WavEncoder {
	e := &WavEncoder{}
	e.enc = wav.NewEncoder(&e.buf, SampleRate, BitsPerSample, Channels, 1)
	return e
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	if e.closed {
		return ErrClosed
	}
	if len(block) == 0 {
		return nil
	}
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	err := e.enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	})
	if err != nil {
		return err
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.enc.Close()
}

func (e *WavEncoder) Bytes() []byte       { return e.buf.data }
func (e *WavEncoder) TotalFrames() uint64 { return e.totalFrames }
