// Package server exposes the alignment pipeline over HTTP: batch
// submission, recent results, and a websocket progress stream.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"planetalign/internal/fsutil"
	"planetalign/internal/pipeline"
)

// Server wraps an HTTP server around a running pipeline.
type Server struct {
	addr     string
	pipeline *pipeline.Pipeline
	log      *slog.Logger
	server   *http.Server
	upgrader websocket.Upgrader
	nextJob  atomic.Int64
}

// New creates a server bound to addr.
func New(addr string, pipe *pipeline.Pipeline, log *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		pipeline: pipe,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	r := mux.NewRouter()
	s.setupRoutes(r)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info("server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/align", s.handleAlign).Methods("POST")
	r.HandleFunc("/jobs", s.handleJobs).Methods("GET")
	r.HandleFunc("/stream", s.handleStream).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type alignRequest struct {
	OutputDir string   `json:"output_dir"`
	Frames    []string `json:"frames,omitempty"`
	FrameDir  string   `json:"frame_dir,omitempty"`
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	var req alignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.OutputDir == "" {
		http.Error(w, "output_dir is required", http.StatusBadRequest)
		return
	}

	frames := req.Frames
	if req.FrameDir != "" {
		listed, err := fsutil.ListFrames(req.FrameDir)
		if err != nil {
			http.Error(w, "list frames: "+err.Error(), http.StatusBadRequest)
			return
		}
		frames = append(frames, listed...)
	}
	if len(frames) == 0 {
		http.Error(w, "no frames to align", http.StatusBadRequest)
		return
	}

	job := pipeline.Job{
		ID:        fmt.Sprintf("http-%d", s.nextJob.Add(1)),
		Frames:    frames,
		OutputDir: req.OutputDir,
	}
	if !s.pipeline.Submit(job) {
		http.Error(w, "pipeline unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"id":     job.ID,
		"frames": len(frames),
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.pipeline.Recent())
}

// handleStream upgrades to a websocket and relays pipeline events
// until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.pipeline.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
