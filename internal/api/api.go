// Package api implements the HTTP surface of the Asistente MGA: the guided
// chat endpoint, the chat libre sub-mode, template upload and download, and
// delivery of the generated project document.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ideclab/asistente-mga/internal/flow"
	"github.com/ideclab/asistente-mga/internal/models"
	"github.com/ideclab/asistente-mga/internal/store"
)

const sessionCookieName = "mga_session"

// ChatResponder answers free-form questions during the chat libre sub-mode.
type ChatResponder interface {
	Answer(ctx context.Context, question string) (string, error)
}

// DocumentGenerator assembles the final project document from the recorded
// responses and returns the path of the written artifact.
type DocumentGenerator interface {
	Generate(ctx context.Context, responses map[string]models.Answer) (string, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// DataDir is the base directory for uploaded templates, parsed tree JSON
	// and generated documents.
	DataDir string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithDataDir sets the base data directory.
func WithDataDir(dir string) Option {
	return func(o *Opts) { o.DataDir = dir }
}

// Server wires the flow engine, storage and the language model behind the
// HTTP endpoints.
type Server struct {
	addr   string
	engine *flow.Engine
	store  store.Store
	llm    ChatResponder
	docgen DocumentGenerator
	logger *slog.Logger

	uploadsDir   string
	jsonDir      string
	documentsDir string
}

// NewServer builds the API server and creates its data directories.
func NewServer(engine *flow.Engine, st store.Store, llm ChatResponder, gen DocumentGenerator, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := Opts{Addr: ":8080", DataDir: "data"}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{
		addr:         o.Addr,
		engine:       engine,
		store:        st,
		llm:          llm,
		docgen:       gen,
		logger:       logger,
		uploadsDir:   filepath.Join(o.DataDir, "formularios"),
		jsonDir:      filepath.Join(o.DataDir, "formularios_json"),
		documentsDir: filepath.Join(o.DataDir, "documents"),
	}
	for _, dir := range []string{s.uploadsDir, s.jsonDir, s.documentsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// DocumentsDir returns the directory generated documents are served from.
func (s *Server) DocumentsDir() string { return s.documentsDir }

// JSONDir returns the directory parsed tree JSON files are written to.
func (s *Server) JSONDir() string { return s.jsonDir }

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/api/chat", s.chatHandler)
	mux.HandleFunc("/api/chat_alt", s.chatAltHandler)
	mux.HandleFunc("/upload_formulario", s.uploadHandler)
	mux.HandleFunc("/reset", s.resetHandler)
	mux.HandleFunc("/plantilla/", s.plantillaHandler)
	mux.HandleFunc("/download/", s.downloadHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("Server.Run: API server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
