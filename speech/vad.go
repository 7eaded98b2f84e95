package speech

import (
	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"dubtap/encoder"
)

const (
	vadFrameMs    = 20
	vadFrameBytes = encoder.SampleRate * vadFrameMs / 1000 * 2
	voicedRunMin  = 3 // a blip shorter than this is not speech
)

// voicing summarizes how webrtc-vad classified the 20ms frames of a clip.
type voicing struct {
	Frames  int
	Voiced  int
	LongRun int // longest run of consecutive voiced frames
}

// classify runs every whole frame of pcm through a fresh VAD in the given
// aggressiveness mode. A trailing partial frame is ignored.
func classify(mode int, pcm []byte) (voicing, error) {
	var v voicing
	vad, err := webrtcvad.New()
	if err != nil {
		return v, err
	}
	if err := vad.SetMode(mode); err != nil {
		return v, err
	}

	run := 0
	for off := 0; off+vadFrameBytes <= len(pcm); off += vadFrameBytes {
		active, err := vad.Process(encoder.SampleRate, pcm[off:off+vadFrameBytes])
		if err != nil {
			continue
		}
		v.Frames++
		if !active {
			run = 0
			continue
		}
		v.Voiced++
		run++
		v.LongRun = max(v.LongRun, run)
	}
	return v, nil
}

// speech reports a sustained voiced run covering at least minRatio of the
// clip.
func (v voicing) speech(minRatio float64) bool {
	if v.Frames == 0 || v.LongRun < voicedRunMin {
		return false
	}
	return float64(v.Voiced)/float64(v.Frames) >= minRatio
}
