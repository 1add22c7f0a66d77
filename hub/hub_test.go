package hub

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mastercactapus/lasersim/protocol"
	"github.com/stretchr/testify/assert"
)

type chanSink chan []byte

func (c chanSink) Send(msg []byte) error {
	c <- msg
	return nil
}

type errSink struct{}

func (errSink) Send([]byte) error { return errors.New("broken pipe") }

type gatedSink struct {
	gate chan struct{}

	mx   sync.Mutex
	msgs []string
}

func (g *gatedSink) Send(msg []byte) error {
	<-g.gate
	g.mx.Lock()
	g.msgs = append(g.msgs, string(msg))
	g.mx.Unlock()
	return nil
}

func (g *gatedSink) received() []string {
	g.mx.Lock()
	defer g.mx.Unlock()
	return append([]string(nil), g.msgs...)
}

func recv(t *testing.T, c chanSink) string {
	t.Helper()
	select {
	case msg := <-c:
		return string(msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	return ""
}

func TestHub_FanOut(t *testing.T) {
	h := New()
	defer h.Close()

	a, b := make(chanSink, 10), make(chanSink, 10)
	oa := h.Register(a)
	ob := h.Register(b)
	assert.NotEqual(t, oa.ID, ob.ID)
	assert.Equal(t, 2, h.Len())

	h.Broadcast(protocol.Status{X: 1, Speed: 100, History: []protocol.Path{}})

	exp := `{"x":1,"y":0,"laser_on":false,"speed":100,"history":[]}` + "\n"
	assert.Equal(t, exp, recv(t, a))
	assert.Equal(t, exp, recv(t, b))
}

func TestHub_RemovesFailedObserver(t *testing.T) {
	h := New()
	defer h.Close()

	good := make(chanSink, 10)
	h.Register(good)
	h.Register(errSink{})

	h.Broadcast(protocol.ErrorMessage{Error: "x"})
	recv(t, good)

	assert.Eventually(t, func() bool { return h.Len() == 1 }, 5*time.Second, time.Millisecond)

	h.Broadcast(protocol.ErrorMessage{Error: "y"})
	assert.Equal(t, `{"error":"y"}`+"\n", recv(t, good))
}

func TestHub_SlowObserverSkipsStates(t *testing.T) {
	h := New()
	defer h.Close()

	slow := &gatedSink{gate: make(chan struct{})}
	var release sync.Once
	open := func() { release.Do(func() { close(slow.gate) }) }
	// runs before h.Close so a stalled sender cannot block it
	defer open()

	fast := make(chanSink, 100)
	h.Register(slow)
	h.Register(fast)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			h.Broadcast(protocol.Status{X: float64(i), History: []protocol.Path{}})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a stalled observer")
	}

	// the fast observer may skip states too, but always ends on the newest
	var n int
	for {
		msg := recv(t, fast)
		n++
		if strings.Contains(msg, `"x":49`) {
			break
		}
	}
	assert.True(t, n <= 50)

	open()
	assert.Eventually(t, func() bool {
		msgs := slow.received()
		return len(msgs) > 0 && len(msgs) <= 2 &&
			msgs[len(msgs)-1] == `{"x":49,"y":0,"laser_on":false,"speed":0,"history":[]}`+"\n"
	}, 5*time.Second, time.Millisecond)
}

func TestHub_Unregister(t *testing.T) {
	h := New()

	c := make(chanSink, 10)
	o := h.Register(c)
	h.Unregister(o)
	h.Unregister(o)
	assert.Equal(t, 0, h.Len())

	h.Broadcast(protocol.ErrorMessage{Error: "nobody"})
	select {
	case msg := <-c:
		t.Fatalf("unexpected message %q", msg)
	case <-time.After(20 * time.Millisecond):
	}

	h.Register(make(chanSink, 1))
	h.Close()
	assert.Equal(t, 0, h.Len())
}

func TestHub_BadPayload(t *testing.T) {
	h := New()
	defer h.Close()

	c := make(chanSink, 1)
	h.Register(c)
	h.Broadcast(func() {})

	h.Broadcast(protocol.ErrorMessage{Error: "ok"})
	assert.Equal(t, `{"error":"ok"}`+"\n", recv(t, c))
}
