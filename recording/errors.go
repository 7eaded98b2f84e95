package recording

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"dubtap/audio"
)

var (
	ErrBusy               = errors.New("a recording is already in progress")
	ErrPreconditionFailed = errors.New("recording precondition not met")
	ErrFocusLost          = errors.New("focus lost while acquiring the microphone")
	ErrStoppedBeforeStart = errors.New("recording was stopped before capture started")
	ErrNotRecording       = errors.New("no recording in progress")
	ErrStopTimeout        = errors.New("timed out waiting for the microphone")
	ErrNoEncoding         = errors.New("no supported audio encoding")
)

// AcquisitionKind categorizes why a microphone could not be acquired or
// started. Callers map it to a user-facing message.
type AcquisitionKind int

const (
	Unknown AcquisitionKind = iota
	PermissionDenied
	NotFound
	InUse
	Overconstrained
	TypeError
)

func (k AcquisitionKind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case NotFound:
		return "not_found"
	case InUse:
		return "in_use"
	case Overconstrained:
		return "overconstrained"
	case TypeError:
		return "type_error"
	}
	return "unknown"
}

type AcquisitionError struct {
	Kind   AcquisitionKind
	Device string
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("acquire microphone %q (%s): %v", e.Device, e.Kind, e.Err)
	}
	return fmt.Sprintf("acquire microphone (%s): %v", e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Classify guesses the acquisition category of a platform error. Audio
// backends report most failures as plain strings, so this falls back to
// matching on the message.
func Classify(err error) AcquisitionKind {
	var ae *AcquisitionError
	switch {
	case err == nil:
		return Unknown
	case errors.As(err, &ae):
		return ae.Kind
	case errors.Is(err, audio.ErrDeviceNotFound):
		return NotFound
	case errors.Is(err, os.ErrPermission):
		return PermissionDenied
	case errors.Is(err, ErrNoEncoding):
		return TypeError
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "permission", "denied", "not allowed", "access"):
		return PermissionDenied
	case containsAny(msg, "no such", "not found", "no entity", "no device"):
		return NotFound
	case containsAny(msg, "busy", "in use", "unavailable"):
		return InUse
	case containsAny(msg, "sample rate", "channel", "format", "unsupported", "not supported"):
		return Overconstrained
	}
	return Unknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func acquisitionError(device string, err error) error {
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return err
	}
	return &AcquisitionError{Kind: Classify(err), Device: device, Err: err}
}
