package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mastercactapus/lasersim/coord"
	"github.com/mastercactapus/lasersim/hub"
	"github.com/mastercactapus/lasersim/machine"
	"github.com/mastercactapus/lasersim/protocol"
	"github.com/mastercactapus/lasersim/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, l net.Listener) *machine.Machine {
	t.Helper()
	h := hub.New()
	m := machine.NewMachine(h, 1e4)
	s := server.New(m, h)
	go s.Serve(l)

	t.Cleanup(func() {
		s.Close()
		m.Close()
		h.Close()
	})
	return m
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return l
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_Status(t *testing.T) {
	l := listen(t)
	startServer(t, l)

	c := NewClient(l.Addr().String())
	defer c.Close()

	_, ok := c.Latest()
	assert.False(t, ok)

	st, err := c.Status(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 1e4, st.Speed)
	assert.Equal(t, coord.Point{}, st.Pos())
}

func TestClient_Run(t *testing.T) {
	l := listen(t)
	m := startServer(t, l)

	c := NewClient(l.Addr().String())
	defer c.Close()

	cmds := protocol.MustParse(`
MOVE 10 10
LASER ON
MOVE 20 10
MOVE 20 20
LASER OFF
MOVE 300 0
`)

	ctx := testContext(t)
	require.NoError(t, c.Run(ctx, &protocol.CommandsReader{Commands: cmds}))

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, coord.Point{X: coord.MaxCoord}, st.Pos())
	assert.False(t, st.LaserOn)

	m.Wait(ctx)
	hist := m.Status().History
	require.Len(t, hist, 2)
	assert.Equal(t, coord.Point{X: 10, Y: 10}, hist[0][0])
	assert.Equal(t, coord.Point{X: 20, Y: 10}, hist[0][len(hist[0])-1])
	assert.Equal(t, coord.Point{X: 20, Y: 10}, hist[1][0])
	assert.Equal(t, coord.Point{X: 20, Y: 20}, hist[1][len(hist[1])-1])
}

func TestClient_Messages(t *testing.T) {
	l := listen(t)
	startServer(t, l)

	c := NewClient(l.Addr().String())
	defer c.Close()

	require.NoError(t, c.SendLine("JUMP"))
	select {
	case msg := <-c.Messages():
		e, ok := msg.(*protocol.ErrorMessage)
		require.True(t, ok, "expected error, got %#v", msg)
		assert.Contains(t, e.Error, "unknown command")
	case <-time.After(5 * time.Second):
		t.Fatal("timeout")
	}
}

func TestClient_Reconnect(t *testing.T) {
	reconnectDelay = 10 * time.Millisecond
	defer func() { reconnectDelay = 3 * time.Second }()

	l := listen(t)
	addr := l.Addr().String()
	l.Close()

	c := NewClient(addr)
	defer c.Close()

	time.Sleep(50 * time.Millisecond)
	l, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	startServer(t, l)

	st, err := c.Status(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 1e4, st.Speed)
}

func TestClient_Close(t *testing.T) {
	l := listen(t)
	startServer(t, l)

	c := NewClient(l.Addr().String())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Send(protocol.Clear()), ErrClosed)
	_, err := c.WaitFor(context.Background(), func(protocol.Status) bool { return false })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_StatusWhileMoving(t *testing.T) {
	l := listen(t)
	m := startServer(t, l)
	_, err := m.SetSpeed(200)
	require.NoError(t, err)

	c := NewClient(l.Addr().String())
	defer c.Close()
	ctx := testContext(t)

	_, err = c.Status(ctx)
	require.NoError(t, err)
	_, err = m.Move(coord.Point{X: 100})
	require.NoError(t, err)

	// broadcasts and replies both count as a fresh snapshot
	for i := 0; i < 5; i++ {
		st, err := c.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 200.0, st.Speed)
		assert.True(t, st.X >= 0 && st.X <= 100)
		assert.Equal(t, 0.0, st.Y)
	}
}
