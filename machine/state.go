package machine

import (
	"github.com/mastercactapus/lasersim/coord"
	"github.com/mastercactapus/lasersim/protocol"
)

// DefaultSpeed is the initial speed in steps per second.
const DefaultSpeed = 100.0

type state struct {
	pos     coord.Point
	laserOn bool
	speed   float64
	history []protocol.Path

	// index of the path being extended by the running motion, or -1
	open int
}

func newState(speed float64) state {
	return state{speed: speed, open: -1}
}

func (s *state) status() protocol.Status {
	hist := make([]protocol.Path, len(s.history))
	copy(hist, s.history)
	if s.open >= 0 {
		hist[s.open] = append(protocol.Path(nil), hist[s.open]...)
	}

	return protocol.Status{
		X:       s.pos.X,
		Y:       s.pos.Y,
		LaserOn: s.laserOn,
		Speed:   s.speed,
		History: hist,
	}
}

func (s *state) openPath(start coord.Point) {
	s.history = append(s.history, protocol.Path{start})
	s.open = len(s.history) - 1
}

func (s *state) extendPath(p coord.Point) {
	if s.open < 0 {
		return
	}
	s.history[s.open] = append(s.history[s.open], p)
}

// closePath ends the open path at p.
func (s *state) closePath(p coord.Point) {
	if s.open < 0 {
		return
	}
	path := s.history[s.open]
	if !path[len(path)-1].Equal(p) {
		s.history[s.open] = append(path, p)
	}
	s.open = -1
}

func (s *state) clear() {
	s.history = nil
	s.open = -1
}
