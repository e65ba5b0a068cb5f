package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/marcus/shelf/internal/models"
)

// pathID parses the {id} path value. Writes a 400 and returns false when invalid.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("invalid book id %q", raw))
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON body into v. Writes a 400 and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// handleHeadBooks answers the client connectivity probe.
func (s *Server) handleHeadBooks(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		logFor(r.Context()).Error("ping", "err", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks()
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := s.store.GetBook(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if b == nil {
		writeStoreError(w, r, models.NotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleCreateBook stores a new book. A client-supplied id is kept when free.
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var b models.Book
	if !decodeBody(w, r, &b) {
		return
	}
	if err := b.Fields().Validate(); err != nil {
		writeStoreError(w, r, err)
		return
	}

	created, err := s.store.CreateBook(b)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.metrics.RecordCreate()
	logFor(r.Context()).Info("book created", "id", created.ID, "requested_id", b.ID)
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateBook replaces every field of an existing book.
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var f models.BookFields
	if !decodeBody(w, r, &f) {
		return
	}
	if err := f.Validate(); err != nil {
		writeStoreError(w, r, err)
		return
	}

	updated, err := s.store.UpdateBook(id, f)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if updated == nil {
		writeStoreError(w, r, models.NotFound(id))
		return
	}
	s.metrics.RecordUpdate()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	found, err := s.store.DeleteBook(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !found {
		writeStoreError(w, r, models.NotFound(id))
		return
	}
	s.metrics.RecordDelete()
	writeJSON(w, http.StatusOK, map[string]any{})
}
