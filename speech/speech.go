// Package speech decides whether a recorded clip contains anything worth
// sending to a transcription provider.
package speech

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	DefaultRMSThreshold   = 0.01
	DefaultPeakThreshold  = 0.05
	DefaultMinSpeechRatio = 0.10 // 10% of VAD frames must be speech
	DefaultVADMode        = 3
)

type Options struct {
	// RMSThreshold and PeakThreshold are normalized to [0, 1].
	RMSThreshold   float64
	PeakThreshold  float64
	MinSpeechRatio float64
	VADMode        int
	DisableVAD     bool
}

func (o Options) withDefaults() Options {
	if o.RMSThreshold <= 0 {
		o.RMSThreshold = DefaultRMSThreshold
	}
	if o.PeakThreshold <= 0 {
		o.PeakThreshold = DefaultPeakThreshold
	}
	if o.MinSpeechRatio <= 0 {
		o.MinSpeechRatio = DefaultMinSpeechRatio
	}
	if o.VADMode < 0 || o.VADMode > 3 {
		o.VADMode = DefaultVADMode
	}
	return o
}

type Levels struct {
	RMS  float64
	Peak float64
}

// Analyze computes normalized RMS and peak amplitude of PCM16 audio.
func Analyze(pcm []byte) Levels {
	n := len(pcm) / 2
	if n == 0 {
		return Levels{}
	}
	var sumSquares, peak float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		sumSquares += s * s
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return Levels{RMS: math.Sqrt(sumSquares / float64(n)), Peak: peak}
}

type Detector struct {
	opts Options
}

func NewDetector(opts Options) *Detector {
	return &Detector{opts: opts.withDefaults()}
}

// HasSpeech reports false for clips that are quiet on either the RMS or the
// peak measure, then asks the VAD for the share of voiced frames.
func (d *Detector) HasSpeech(ctx context.Context, pcm []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	lv := Analyze(pcm)
	if lv.RMS < d.opts.RMSThreshold || lv.Peak < d.opts.PeakThreshold {
		return false, nil
	}
	if d.opts.DisableVAD {
		return true, nil
	}

	v, err := classify(d.opts.VADMode, pcm)
	if err != nil {
		return false, fmt.Errorf("VAD init: %w", err)
	}
	return v.speech(d.opts.MinSpeechRatio), nil
}
