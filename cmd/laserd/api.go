package main

import (
	"bufio"
	"bytes"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mastercactapus/lasersim/hub"
	"github.com/mastercactapus/lasersim/machine"
	"github.com/mastercactapus/lasersim/protocol"
)

const (
	stateChannel = "/events/state"
	maxBody      = 1 << 20
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type api struct {
	http.Handler
	m   *machine.Machine
	h   *hub.Hub
	sse *sse.Server
	obs *hub.Observer
}

func newAPI(m *machine.Machine, h *hub.Hub) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		m:       m,
		h:       h,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(ioutil.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/status", a.status).Methods("GET")
	r.HandleFunc("/api/command", a.command).Methods("POST")
	r.HandleFunc("/ws", a.ws)
	r.PathPrefix("/events/").Handler(a.sse)

	a.obs = h.Register(sseSink{s: a.sse})

	return a
}

func (a *api) Close() {
	a.h.Unregister(a.obs)
	a.sse.Shutdown()
}

// sseSink republishes snapshots to the state event channel.
type sseSink struct {
	s *sse.Server
}

// The pinned go-sse reads its channel map in SendMessage without a lock
// while its dispatch goroutine adds channels for new subscribers, so -race
// flags a subscribe that overlaps a send. Messages to a channel with no
// subscribers are dropped either way.
func (s sseSink) Send(msg []byte) error {
	s.s.SendMessage(stateChannel, sse.SimpleMessage(string(bytes.TrimSpace(msg))))
	return nil
}

func (a *api) status(w http.ResponseWriter, req *http.Request) {
	data, err := protocol.Encode(a.m.Status())
	if err != nil {
		log.Printf("ERROR: encode: %+v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// command runs each non-empty line of the body and writes one response
// line per command.
func (a *api) command(w http.ResponseWriter, req *http.Request) {
	data, err := ioutil.ReadAll(io.LimitReader(req.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		w.Write(a.m.Respond(line))
	}
}

// wsConn is a websocket hub observer. Writes from the hub and from
// command responses are serialized.
type wsConn struct {
	mx sync.Mutex
	c  *websocket.Conn
}

func (c *wsConn) Send(msg []byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.c.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(msg, []byte("\n")))
}

// ws handles a websocket client. Each text message is a single command.
func (a *api) ws(w http.ResponseWriter, req *http.Request) {
	c, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Println("ERROR: websocket upgrade:", err)
		return
	}
	defer c.Close()

	wc := &wsConn{c: c}
	o := a.h.Register(wc)
	defer a.h.Unregister(o)
	log.Printf("websocket observer %s connected from %s", o.ID, c.RemoteAddr())

	for {
		typ, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Println("ERROR: websocket read:", err)
			}
			break
		}
		if typ != websocket.TextMessage {
			continue
		}

		err = wc.Send(a.m.Respond(strings.TrimRight(string(data), "\r\n")))
		if err != nil {
			log.Println("ERROR: websocket write:", err)
			break
		}
	}
	log.Printf("websocket observer %s disconnected", o.ID)
}
