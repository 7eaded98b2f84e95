package recording

// Status is the lifecycle position of a capture session.
type Status int

const (
	NotStarted Status = iota
	AcquiringPermission
	Recording
	Stopping
	Stopped
	Failed
)

var statusNames = [...]string{
	NotStarted:          "not_started",
	AcquiringPermission: "acquiring_permission",
	Recording:           "recording",
	Stopping:            "stopping",
	Stopped:             "stopped",
	Failed:              "failed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Active reports whether a session in this status holds the single-flight
// slot.
func (s Status) Active() bool {
	return s == AcquiringPermission || s == Recording || s == Stopping
}

// Terminal reports whether the session has finished.
func (s Status) Terminal() bool {
	return s == Stopped || s == Failed
}
