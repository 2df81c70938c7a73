// Package server exposes the drive services over HTTP. All endpoints live
// under /api/v1; everything except the auth handshake requires a bearer
// token.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"homedrive/internal/drive"
)

// Server is the HTTP front end for the drive services.
type Server struct {
	files  *drive.FileService
	notes  *drive.NoteService
	sync   *drive.SyncService
	auth   *drive.AuthService
	log    drive.Logger
	router *chi.Mux
	server *http.Server
}

// New creates a Server wiring the services into the router.
func New(files *drive.FileService, notes *drive.NoteService, sync *drive.SyncService, auth *drive.AuthService, log drive.Logger) *Server {
	s := &Server{
		files: files,
		notes: notes,
		sync:  sync,
		auth:  auth,
		log:   log,
	}

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Get("/health", s.handleHealth)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/challenge", s.handleAuthChallenge)
		r.Post("/auth/verify", s.handleAuthVerify)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Get("/sync/state", s.handleSyncState)

			r.Route("/files", func(r chi.Router) {
				r.Get("/", s.handleFileList)
				r.Get("/*", s.handleFileGet)
				r.Put("/*", s.handleFilePut)
				r.Delete("/*", s.handleFileDelete)
			})

			r.Route("/notes", func(r chi.Router) {
				r.Get("/", s.handleNoteList)
				r.Post("/", s.handleNoteCreate)
				r.Get("/tags", s.handleNoteTags)
				r.Get("/search", s.handleNoteSearch)
				r.Get("/{id}", s.handleNoteGet)
				r.Put("/{id}", s.handleNoteUpdate)
				r.Delete("/{id}", s.handleNoteDelete)
			})
		})
	})

	s.router = router
	return s
}

// Handler returns the root HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving on the given host and port, blocking until the
// listener fails or Stop is called.
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("server listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requireToken rejects requests without a live bearer token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		ok, err := s.auth.ValidateToken(token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !ok {
			s.writeError(w, fmt.Errorf("invalid or expired token: %w", drive.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
