// Package hub fans machine snapshots out to connected observers.
package hub

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/mastercactapus/lasersim/protocol"
)

// A Sink is the transport side of an observer.
//
// Send must not interleave with other writes to the same transport.
type Sink interface {
	Send(msg []byte) error
}

// Hub keeps the set of observers and broadcasts to all of them.
//
// Each observer gets its own sender goroutine with a single slot mailbox:
// a slow observer skips intermediate snapshots and never holds up the others.
type Hub struct {
	mx        sync.Mutex
	observers map[string]*Observer

	wg sync.WaitGroup
}

// Observer is a registered Sink.
type Observer struct {
	ID string

	h       *Hub
	sink    Sink
	mailbox chan []byte
	done    chan struct{}
	once    sync.Once
}

func New() *Hub {
	return &Hub{observers: make(map[string]*Observer)}
}

// Register adds s to the hub; it receives every later broadcast.
func (h *Hub) Register(s Sink) *Observer {
	o := &Observer{
		ID:      uuid.New().String(),
		h:       h,
		sink:    s,
		mailbox: make(chan []byte, 1),
		done:    make(chan struct{}),
	}

	h.mx.Lock()
	h.observers[o.ID] = o
	h.wg.Add(1)
	h.mx.Unlock()

	go o.loop()
	return o
}

// Unregister removes o. It is safe to call more than once.
func (h *Hub) Unregister(o *Observer) {
	h.mx.Lock()
	delete(h.observers, o.ID)
	h.mx.Unlock()
	o.once.Do(func() { close(o.done) })
}

// Len returns the number of registered observers.
func (h *Hub) Len() int {
	h.mx.Lock()
	defer h.mx.Unlock()
	return len(h.observers)
}

// Broadcast encodes v once and queues it for every observer.
// It never blocks on a transport.
func (h *Hub) Broadcast(v interface{}) {
	msg, err := protocol.Encode(v)
	if err != nil {
		log.Printf("ERROR: broadcast (marshal): %+v", err)
		return
	}

	h.mx.Lock()
	defer h.mx.Unlock()
	for _, o := range h.observers {
		o.offer(msg)
	}
}

// Close unregisters every observer and waits for their senders to stop.
func (h *Hub) Close() {
	h.mx.Lock()
	obs := make([]*Observer, 0, len(h.observers))
	for _, o := range h.observers {
		obs = append(obs, o)
	}
	h.mx.Unlock()

	for _, o := range obs {
		h.Unregister(o)
	}
	h.wg.Wait()
}

// offer replaces any pending message with msg. Callers hold h.mx.
func (o *Observer) offer(msg []byte) {
	select {
	case <-o.mailbox:
	default:
	}
	select {
	case o.mailbox <- msg:
	default:
	}
}

func (o *Observer) loop() {
	defer o.h.wg.Done()
	for {
		select {
		case <-o.done:
			return
		case msg := <-o.mailbox:
			err := o.sink.Send(msg)
			if err != nil {
				log.Printf("ERROR: send to observer %s: %v", o.ID, err)
				o.h.Unregister(o)
				return
			}
		}
	}
}
