//go:build linux

package focus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

var screenSaverInterfaces = []string{
	"org.freedesktop.ScreenSaver",
	"org.gnome.ScreenSaver",
}

// System blurs when the session screensaver or lock screen activates.
type System struct {
	*Broadcaster
	conn    *dbus.Conn
	signals chan *dbus.Signal
}

func NewSystem() (*System, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("dbus session bus: %w", err)
	}

	for _, iface := range screenSaverInterfaces {
		if err := conn.AddMatchSignal(
			dbus.WithMatchInterface(iface),
			dbus.WithMatchMember("ActiveChanged"),
		); err != nil {
			conn.Close()
			return nil, fmt.Errorf("dbus match %s: %w", iface, err)
		}
	}

	s := &System{
		Broadcaster: NewBroadcaster(),
		conn:        conn,
		signals:     make(chan *dbus.Signal, 8),
	}
	conn.Signal(s.signals)
	go s.watch()
	return s, nil
}

func (s *System) watch() {
	for sig := range s.signals {
		if len(sig.Body) == 0 {
			continue
		}
		if active, ok := sig.Body[0].(bool); ok && active {
			s.Blur()
		}
	}
}

func (s *System) Close() {
	s.conn.RemoveSignal(s.signals)
	s.conn.Close()
	close(s.signals)
}
