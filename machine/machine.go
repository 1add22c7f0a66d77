package machine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/mastercactapus/lasersim/coord"
	"github.com/mastercactapus/lasersim/protocol"
)

var (
	// ErrInvalidSpeed is returned for zero, negative or non-finite speeds.
	ErrInvalidSpeed = errors.New("speed must be a positive number")

	// ErrClosed is returned for moves after Close.
	ErrClosed = errors.New("machine closed")
)

// Machine is a virtual two-axis laser plotter.
//
// All reads and writes of the machine state happen under a single lock;
// at most one motion task moves the head at any time.
type Machine struct {
	b Broadcaster

	mx    sync.Mutex
	state state

	// moveMx serializes starting and stopping motion tasks.
	moveMx sync.Mutex
	motion *motion

	ctx    context.Context
	cancel context.CancelFunc
}

// NewMachine creates a machine at the origin with the laser off.
//
// A nil Broadcaster discards updates; a non-positive speed selects DefaultSpeed.
func NewMachine(b Broadcaster, speed float64) *Machine {
	if b == nil {
		b = discard{}
	}
	if !validSpeed(speed) {
		speed = DefaultSpeed
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		b:      b,
		state:  newState(speed),
		ctx:    ctx,
		cancel: cancel,
	}
}

func validSpeed(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Respond processes a command line and returns the encoded response.
func (m *Machine) Respond(line string) []byte {
	st, err := m.Process(line)
	if err != nil {
		return protocol.EncodeError(err)
	}
	data, err := protocol.Encode(st)
	if err != nil {
		return protocol.EncodeError(err)
	}
	return data
}

// Process parses and executes a single command line.
func (m *Machine) Process(line string) (st protocol.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: process %q: %v", line, r)
			st, err = protocol.Status{}, fmt.Errorf("internal error: %v", r)
		}
	}()

	cmd, err := protocol.ParseLine(line)
	if err != nil {
		return protocol.Status{}, err
	}
	return m.Execute(cmd)
}

// Execute runs a parsed command and returns the resulting snapshot.
func (m *Machine) Execute(cmd protocol.Command) (protocol.Status, error) {
	switch cmd.Verb {
	case protocol.VerbMove:
		return m.Move(coord.Point{X: cmd.X, Y: cmd.Y})
	case protocol.VerbSpeed:
		return m.SetSpeed(cmd.Value)
	case protocol.VerbLaser:
		return m.SetLaser(cmd.On), nil
	case protocol.VerbClear:
		return m.Clear(), nil
	case protocol.VerbGetStatus:
		return m.Status(), nil
	}

	return protocol.Status{}, fmt.Errorf("%w: %s", protocol.ErrUnknownCommand, cmd.Verb)
}

// Status returns a snapshot of the current state.
func (m *Machine) Status() protocol.Status {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.state.status()
}

func (m *Machine) SetSpeed(v float64) (protocol.Status, error) {
	if !validSpeed(v) {
		return protocol.Status{}, fmt.Errorf("%w: %v", ErrInvalidSpeed, v)
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	m.state.speed = v
	return m.state.status(), nil
}

// SetLaser switches the laser. A running motion that started with the
// other laser state stops at its next step.
func (m *Machine) SetLaser(on bool) protocol.Status {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.state.laserOn = on
	return m.state.status()
}

// Clear discards the traced history and broadcasts the result.
func (m *Machine) Clear() protocol.Status {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.state.clear()
	st := m.state.status()
	m.b.Broadcast(st)
	return st
}

// Move stops any running motion, waits for it to end, and starts moving
// toward target (clamped to the work area).
//
// It returns the snapshot taken before the new motion starts.
func (m *Machine) Move(target coord.Point) (protocol.Status, error) {
	target = target.Clamp()

	m.moveMx.Lock()
	defer m.moveMx.Unlock()
	if m.ctx.Err() != nil {
		return protocol.Status{}, ErrClosed
	}
	m.stopMotion()

	st := m.Status()

	ctx, cancel := context.WithCancel(m.ctx)
	mo := &motion{
		target: target,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.motion = mo
	go m.run(ctx, mo)

	return st, nil
}

// stopMotion cancels the current motion and waits for it to end.
// moveMx must be held.
func (m *Machine) stopMotion() {
	if m.motion == nil {
		return
	}
	m.motion.cancel()
	<-m.motion.done
}

// Moving returns true while a motion task is running.
func (m *Machine) Moving() bool {
	m.moveMx.Lock()
	mo := m.motion
	m.moveMx.Unlock()
	if mo == nil {
		return false
	}
	select {
	case <-mo.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the most recent motion ends or ctx is done.
//
// It returns false if no motion was ever started.
func (m *Machine) Wait(ctx context.Context) (MotionResult, bool, error) {
	m.moveMx.Lock()
	mo := m.motion
	m.moveMx.Unlock()
	if mo == nil {
		return MotionResult{}, false, nil
	}
	select {
	case <-mo.done:
		return mo.res, true, nil
	case <-ctx.Done():
		return MotionResult{}, true, ctx.Err()
	}
}

// Close stops the running motion. Later moves fail with ErrClosed;
// other commands keep working.
func (m *Machine) Close() error {
	m.cancel()
	m.moveMx.Lock()
	m.stopMotion()
	m.moveMx.Unlock()
	return nil
}
