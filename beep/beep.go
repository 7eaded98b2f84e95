// Package beep plays the short tones that mark recording start, stop and
// failure.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	startSamples []int16
	endSamples   []int16
	errorSamples []int16
	soundOnce    sync.Once
)

func initSamples() {
	// The tail lets slow output buffers fill before the stream drains.
	startSamples = generateTick(sampleRate, startFreq, tickDuration, startVolume, startDecay)
	endSamples = generateTick(sampleRate, endFreq, tickDuration, endVolume, endDecay)
	errorSamples = generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

// generateTick returns mono PCM16 samples of a decaying sine.
func generateTick(sampleRate int, freq float64, duration float64, volume float64, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range n {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq float64, beepDur float64, gapDur float64, volume float64, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

func Init() {
	soundOnce.Do(initSound)
}

// PlayStart, PlayEnd and PlayError return immediately; playback continues in
// the background.
func PlayStart() { play(&startSamples) }
func PlayEnd()   { play(&endSamples) }
func PlayError() { play(&errorSamples) }

func play(samples *[]int16) {
	if disabled.Load() {
		return
	}
	soundOnce.Do(initSound)
	playSamples(*samples)
}
