// Package client talks to a plotter server over its line protocol.
package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/mastercactapus/lasersim/coord"
	"github.com/mastercactapus/lasersim/protocol"
)

// ErrClosed is returned by operations on a closed Client.
var ErrClosed = errors.New("client closed")

var reconnectDelay = 3 * time.Second

// Client keeps a connection to the server open, reconnecting as needed,
// and tracks the most recent machine state it has seen.
type Client struct {
	addr string

	mx      sync.RWMutex
	last    protocol.Status
	hasLast bool
	updated chan struct{}

	outgoing chan message
	incoming chan interface{}

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type message struct {
	done    chan error
	payload []byte
}

// NewClient starts connecting to addr in the background.
func NewClient(addr string) *Client {
	c := &Client{
		addr:     addr,
		updated:  make(chan struct{}),
		outgoing: make(chan message),
		incoming: make(chan interface{}, 1000),
		closeCh:  make(chan struct{}),
	}

	c.wg.Add(1)
	go c.loop()

	return c
}

// Messages returns every decoded message: *protocol.Status or
// *protocol.ErrorMessage. Command replies and broadcasts are interleaved in
// arrival order. Messages are dropped if the channel is full.
func (c *Client) Messages() chan interface{} {
	return c.incoming
}

// Latest returns the most recent status received, if any.
func (c *Client) Latest() (protocol.Status, bool) {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return c.last, c.hasLast
}

func (c *Client) setLatest(st protocol.Status) {
	c.mx.Lock()
	c.last = st
	c.hasLast = true
	close(c.updated)
	c.updated = make(chan struct{})
	c.mx.Unlock()
}

func (c *Client) readLoop(conn net.Conn, done chan struct{}) {
	defer close(done)
	scan := bufio.NewScanner(conn)
	scan.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scan.Scan() {
		val, err := protocol.Decode(scan.Bytes())
		if err != nil {
			log.Println("ERROR: parse:", err)
			continue
		}
		switch msg := val.(type) {
		case *protocol.Status:
			c.setLatest(*msg)
		case *protocol.ErrorMessage:
			log.Println("ERROR: server:", msg.Error)
		}
		select {
		case c.incoming <- val:
		default:
		}
	}
	if err := scan.Err(); err != nil {
		log.Println("ERROR: read:", err)
	}
}

func (c *Client) loop() {
	defer c.wg.Done()
	var nextUp *message
	defer func() {
		if nextUp != nil {
			nextUp.done <- ErrClosed
		}
	}()

reconnect:
	for {
		log.Println("Connecting to", c.addr)
		conn, err := net.Dial("tcp", c.addr)
		if err != nil {
			log.Println("ERROR: connect:", err)
			select {
			case <-c.closeCh:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		log.Println("Connected.")
		ch := make(chan struct{})
		go c.readLoop(conn, ch)

		for {
			if nextUp != nil {
				_, err = conn.Write(nextUp.payload)
				if err != nil {
					log.Println("ERROR: send:", err)
					conn.Close()
					<-ch
					continue reconnect
				}
				nextUp.done <- nil
				nextUp = nil
			}

			select {
			case <-ch:
				conn.Close()
				continue reconnect
			case <-c.closeCh:
				conn.Close()
				<-ch
				return
			case m := <-c.outgoing:
				nextUp = &m
			}
		}
	}
}

// SendLine writes a raw command line. It returns once the line is written.
func (c *Client) SendLine(line string) error {
	m := message{done: make(chan error, 1), payload: []byte(line + "\n")}
	select {
	case c.outgoing <- m:
	case <-c.closeCh:
		return ErrClosed
	}
	return <-m.done
}

func (c *Client) Send(cmd protocol.Command) error {
	return c.SendLine(cmd.String())
}

// WaitFor blocks until the latest status satisfies fn.
func (c *Client) WaitFor(ctx context.Context, fn func(protocol.Status) bool) (protocol.Status, error) {
	for {
		c.mx.RLock()
		st, ok, ch := c.last, c.hasLast, c.updated
		c.mx.RUnlock()
		if ok && fn(st) {
			return st, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		case <-c.closeCh:
			return st, ErrClosed
		}
	}
}

// Status sends GET_STATUS and returns the first snapshot received after
// the request was written. Replies are not told apart from broadcasts, so
// while the machine moves this may be a broadcast instead of the reply.
func (c *Client) Status(ctx context.Context) (protocol.Status, error) {
	c.mx.RLock()
	ch := c.updated
	c.mx.RUnlock()

	err := c.Send(protocol.GetStatus())
	if err != nil {
		return protocol.Status{}, err
	}

	select {
	case <-ch:
	case <-ctx.Done():
		return protocol.Status{}, ctx.Err()
	case <-c.closeCh:
		return protocol.Status{}, ErrClosed
	}
	st, _ := c.Latest()
	return st, nil
}

// Run sends every command from r in order. After each MOVE it waits until
// the machine reports the (clamped) target position.
func (c *Client) Run(ctx context.Context, r protocol.Reader) error {
	for {
		cmd, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		err = c.Send(cmd)
		if err != nil {
			return err
		}
		if cmd.Verb != protocol.VerbMove {
			continue
		}

		target := coord.Point{X: cmd.X, Y: cmd.Y}.Clamp()
		_, err = c.WaitFor(ctx, func(st protocol.Status) bool {
			return st.Pos().Equal(target)
		})
		if err != nil {
			return err
		}
	}
}

// Close disconnects and stops reconnecting.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })
	c.wg.Wait()
	return nil
}
