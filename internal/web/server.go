// Package web provides an HTTP status server for the alarm-module daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/alarm-module/internal/status"
)

// Server serves the alarm status page, its JSON form and the /ws feed.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	feed       *feed
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{
		tracker: tracker,
		feed:    newFeed(tracker),
	}

	mux := http.NewServeMux()
	mux.Handle("/", live(s.handleIndex))
	mux.Handle("/index.html", live(s.handleIndex))
	mux.Handle("/index.json", live(s.handleJSON))
	mux.Handle("/ws", s.feed)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown closes websocket clients and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.feed.close()
	return s.httpServer.Shutdown(ctx)
}

// live restricts a status handler to GET and HEAD and marks the response
// uncacheable.
func live(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		h(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
