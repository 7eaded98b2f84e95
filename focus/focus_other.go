//go:build !linux

package focus

// System has no OS source outside Linux; it only fires when Blur is called.
type System struct {
	*Broadcaster
}

func NewSystem() (*System, error) {
	return &System{Broadcaster: NewBroadcaster()}, nil
}

func (s *System) Close() {}
