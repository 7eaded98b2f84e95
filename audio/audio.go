// Package audio opens microphone captures on the host sound system.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
)

var ErrDeviceNotFound = errors.New("capture device not found")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a Bluetooth
// headset. Those drop to a narrowband codec while the microphone is open.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives little-endian PCM16 frames. data is only valid for
// the duration of the call.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// Gain multiplies every sample, clamping at full scale. Values below 2
	// leave the signal untouched.
	Gain int
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// FindDevice looks a device up by ID or, failing that, by name.
func FindDevice(ctx Context, idOrName string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	if i := indexOf(devices, idOrName); i >= 0 {
		return &devices[i], nil
	}
	return nil, ErrDeviceNotFound
}

func indexOf(devices []DeviceInfo, idOrName string) int {
	for i := range devices {
		if devices[i].ID == idOrName {
			return i
		}
	}
	for i := range devices {
		if devices[i].Name == idOrName {
			return i
		}
	}
	return -1
}

// packSamples writes samples into dst as PCM16, applying gain. dst must hold
// 2*len(samples) bytes.
func packSamples(dst []byte, samples []int16, gain int) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(amplify(s, gain)))
	}
}

// amplifyPCM applies gain to little-endian PCM16 in place.
func amplifyPCM(pcm []byte, gain int) {
	if gain < 2 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(amplify(s, gain)))
	}
}

func amplify(s int16, gain int) int16 {
	if gain < 2 {
		return s
	}
	v := int32(s) * int32(gain)
	return int16(max(math.MinInt16, min(math.MaxInt16, v)))
}
