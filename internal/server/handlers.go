package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"homedrive/internal/drive"
)

// Auth

type challengeRequest struct {
	PublicKey string `json:"public_key"`
}

type verifyRequest struct {
	PublicKey string `json:"public_key"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

func (s *Server) handleAuthChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.PublicKey == "" {
		s.writeError(w, fmt.Errorf("public_key is required: %w", drive.ErrInvalidInput))
		return
	}

	challenge, err := s.auth.CreateChallenge(req.PublicKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, challenge)
}

func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.PublicKey == "" || req.Challenge == "" || req.Signature == "" {
		s.writeError(w, fmt.Errorf("public_key, challenge, and signature are required: %w", drive.ErrInvalidInput))
		return
	}

	token, err := s.auth.VerifyChallenge(req.PublicKey, req.Challenge, req.Signature)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, token)
}

// Sync

func (s *Server) handleSyncState(w http.ResponseWriter, r *http.Request) {
	since, err := optionalInt64(r, "since")
	if err != nil {
		s.writeError(w, err)
		return
	}

	state, err := s.sync.GetSyncState(since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// Files

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	since, err := optionalInt64(r, "since")
	if err != nil {
		s.writeError(w, err)
		return
	}

	records, err := s.files.List(since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []drive.FileRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleFileGet(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	content, rec, err := s.files.Get(path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("ETag", `"`+rec.Digest+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		s.log.Debug("failed to write file response", "path", path, "error", err)
	}
}

func (s *Server) handleFilePut(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")

	content, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, fmt.Errorf("reading request body: %w", drive.ErrInvalidInput))
		return
	}

	var clientMTime *int64
	if header := r.Header.Get("X-Client-Mtime"); header != "" {
		mtime, err := strconv.ParseInt(header, 10, 64)
		if err != nil {
			s.writeError(w, fmt.Errorf("invalid X-Client-Mtime header: %w", drive.ErrInvalidInput))
			return
		}
		clientMTime = &mtime
	}

	rec, err := s.files.Put(path, content, clientMTime)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if err := s.files.Delete(path); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Notes

func (s *Server) handleNoteList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts.Tag = r.URL.Query().Get("tag")

	list, err := s.notes.List(opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleNoteSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, fmt.Errorf("query parameter q is required: %w", drive.ErrInvalidInput))
		return
	}

	opts, err := listOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts.Search = query

	list, err := s.notes.List(opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleNoteCreate(w http.ResponseWriter, r *http.Request) {
	var req drive.NoteCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	note, err := s.notes.Create(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleNoteGet(w http.ResponseWriter, r *http.Request) {
	note, err := s.notes.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleNoteUpdate(w http.ResponseWriter, r *http.Request) {
	var req drive.NoteUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	note, err := s.notes.Update(chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleNoteDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.notes.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNoteTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.notes.Tags()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tags == nil {
		tags = []drive.TagInfo{}
	}
	s.writeJSON(w, http.StatusOK, tags)
}

// listOptions reads pagination parameters shared by the listing endpoints.
func listOptions(r *http.Request) (drive.ListOptions, error) {
	var opts drive.ListOptions

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return opts, fmt.Errorf("invalid offset: %w", drive.ErrInvalidInput)
		}
		opts.Offset = offset
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, fmt.Errorf("invalid limit: %w", drive.ErrInvalidInput)
		}
		opts.Limit = limit
	}
	return opts, nil
}

// optionalInt64 parses an optional integer query parameter.
func optionalInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s parameter: %w", name, drive.ErrInvalidInput)
	}
	return &value, nil
}
