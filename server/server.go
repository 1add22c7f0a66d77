// Package server accepts plotter clients over a stream transport.
package server

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"

	"github.com/mastercactapus/lasersim/hub"
	"github.com/mastercactapus/lasersim/protocol"
)

// A Processor handles a single command line and returns the encoded response.
type Processor interface {
	Respond(line string) []byte
}

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("server closed")

// Server runs one goroutine per connection. Every connection is
// registered with the hub for broadcasts.
type Server struct {
	p   Processor
	hub *hub.Hub

	mx     sync.Mutex
	l      net.Listener
	conns  map[*conn]struct{}
	closed bool

	wg sync.WaitGroup
}

func New(p Processor, h *hub.Hub) *Server {
	return &Server{
		p:     p,
		hub:   h,
		conns: make(map[*conn]struct{}),
	}
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Close is called or Accept fails.
// Connections already accepted keep running after an accept failure.
func (s *Server) Serve(l net.Listener) error {
	s.mx.Lock()
	if s.closed {
		s.mx.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.l = l
	s.mx.Unlock()

	log.Println("Listening on", l.Addr())
	for {
		rwc, err := l.Accept()
		if err != nil {
			s.mx.Lock()
			closed := s.closed
			s.mx.Unlock()
			if closed {
				return ErrServerClosed
			}
			return err
		}

		c := newConn(rwc)
		if !s.track(c) {
			c.Close()
			return ErrServerClosed
		}
		go s.serveConn(c)
	}
}

func (s *Server) track(c *conn) bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mx.Lock()
	delete(s.conns, c)
	s.mx.Unlock()
	s.wg.Done()
}

func (s *Server) serveConn(c *conn) {
	defer s.untrack(c)
	defer c.Close()

	addr := c.rwc.RemoteAddr()
	log.Println("Connection from", addr)
	o := s.hub.Register(c)
	defer s.hub.Unregister(o)

	for {
		var resp []byte
		line, err := c.readLine()
		switch {
		case err == io.EOF:
		case errors.Is(err, ErrLineTooLong):
			resp = protocol.EncodeError(err)
		case err != nil:
			log.Printf("ERROR: read from %s: %v", addr, err)
		default:
			resp = s.p.Respond(line)
		}
		if resp == nil {
			break
		}

		err = c.Send(resp)
		if err != nil {
			log.Printf("ERROR: write to %s: %v", addr, err)
			break
		}
	}
	log.Println("Client disconnected:", addr)
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// Close stops accepting, closes every connection and waits for
// their goroutines to exit.
func (s *Server) Close() error {
	s.mx.Lock()
	if s.closed {
		s.mx.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.l != nil {
		err = s.l.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mx.Unlock()

	s.wg.Wait()
	return err
}
