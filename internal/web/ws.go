package web

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sweeney/alarm-module/internal/status"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod + 10*time.Second
)

// feed pushes a compact status document to each websocket client on connect
// and again whenever the tracker changes.
type feed struct {
	tracker  *status.Tracker
	upgrader websocket.Upgrader

	mu      sync.Mutex
	done    chan struct{}
	closed  bool
	clients sync.WaitGroup
}

func newFeed(tracker *status.Tracker) *feed {
	return &feed{
		tracker: tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		done: make(chan struct{}),
	}
}

func (f *feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	f.clients.Add(1)
	f.mu.Unlock()
	defer f.clients.Done()

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Printf("web: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go f.readPump(conn, gone)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	_, changed := f.tracker.Watch()
	if err := f.send(conn); err != nil {
		return
	}
	for {
		select {
		case <-changed:
			_, changed = f.tracker.Watch()
			if err := f.send(conn); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-f.done:
			f.closeConn(conn)
			return
		}
	}
}

func (f *feed) send(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, status.FormatCompact(f.tracker.Snapshot()))
}

// readPump discards client messages and handles pongs. It closes gone when
// the client goes away.
func (f *feed) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *feed) closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// close disconnects every client and waits for their handlers to return.
func (f *feed) close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	f.mu.Unlock()
	f.clients.Wait()
}
