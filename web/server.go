package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// Server exposes the live-view HTTP endpoints: the websocket estimate
// stream, a tracks snapshot and an optional static frontend.
type Server struct {
	Hub *Hub

	// Tracks returns the current per-object estimates for the snapshot
	// endpoint. May be nil.
	Tracks func() interface{}
}

func NewServer() *Server {
	return &Server{
		Hub: NewHub(),
	}
}

func (s *Server) Start(port int, distDir string) {
	go s.Hub.Run()

	mux := http.NewServeMux()

	// WebSocket
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.Hub, w, r)
	})

	// Snapshot of last known estimates
	mux.HandleFunc("/tracks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var v interface{}
		if s.Tracks != nil {
			v = s.Tracks()
		}
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("tracks encode: %v", err)
		}
	})

	// Static Frontend
	if distDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(distDir)))
	}

	addr := fmt.Sprintf(":%d", port)
	log.Printf("HTTP Server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}
