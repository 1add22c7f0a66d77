package machine

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/mastercactapus/lasersim/coord"
)

type MotionState int

const (
	MotionRunning MotionState = iota
	MotionCompleted
	MotionCancelled
	MotionAborted
)

func (s MotionState) String() string {
	switch s {
	case MotionRunning:
		return "running"
	case MotionCompleted:
		return "completed"
	case MotionCancelled:
		return "cancelled"
	case MotionAborted:
		return "aborted"
	}
	return "unknown"
}

// MotionResult describes how a motion task ended.
type MotionResult struct {
	Start, Target coord.Point
	State         MotionState

	// Steps is the number of steps taken out of Total.
	Steps, Total int
}

type motion struct {
	target coord.Point
	cancel context.CancelFunc
	done   chan struct{}

	// only read after done is closed
	res MotionResult
}

const maxStepDelay = time.Duration(math.MaxInt64)

// stepDelay returns the time per step for speed in steps per second.
func stepDelay(speed float64) time.Duration {
	d := float64(time.Second) / speed
	if d >= float64(maxStepDelay) {
		return maxStepDelay
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// run steps the machine from its current position to mo.target.
//
// The laser state is captured at start; if it changes while running the
// remaining interpolation is abandoned.
func (m *Machine) run(ctx context.Context, mo *motion) {
	defer close(mo.done)
	defer mo.cancel()
	res := &mo.res
	res.Target = mo.target
	res.State = MotionRunning

	m.mx.Lock()
	start := m.state.pos
	res.Start = start
	dist := start.Distance(mo.target)
	if dist == 0 {
		m.mx.Unlock()
		res.State = MotionCompleted
		return
	}
	res.Total = int(math.Max(1, math.RoundToEven(dist)))
	delay := stepDelay(m.state.speed)
	laserOn := m.state.laserOn
	if laserOn {
		m.state.openPath(start)
	}
	m.mx.Unlock()

	res.State = MotionCompleted
	for _, p := range start.Split(mo.target, res.Total) {
		if ctx.Err() != nil {
			res.State = MotionCancelled
			break
		}

		m.mx.Lock()
		if m.state.laserOn != laserOn {
			m.mx.Unlock()
			res.State = MotionAborted
			break
		}
		m.state.pos = p
		if laserOn {
			m.state.extendPath(p)
		}
		m.b.Broadcast(m.state.status())
		m.mx.Unlock()
		res.Steps++

		sleep(ctx, delay)
	}

	m.mx.Lock()
	if laserOn {
		m.state.closePath(m.state.pos)
	}
	m.mx.Unlock()

	if res.State == MotionAborted {
		log.Printf("motion to %v aborted after %d/%d steps: laser toggled", mo.target, res.Steps, res.Total)
	}
}
