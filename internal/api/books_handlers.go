package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/shelf/internal/domain"
)

// BooksPath is the collection path every book route lives under
const BooksPath = "/api/books"

// Books groups book handlers for testability
type Books struct {
	controller *BooksController
	logger     *zap.Logger
}

func NewBooks(controller *BooksController, logger *zap.Logger) *Books {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Books{controller: controller, logger: logger}
}

// RegisterRoutes mounts the book endpoints under BooksPath
func (b *Books) RegisterRoutes(r chi.Router) {
	r.Route(BooksPath, func(r chi.Router) {
		r.Get("/", b.ListBooksHandler)
		r.Post("/", b.CreateBookHandler)
		r.Get("/{id}", b.GetBookHandler)
		r.Put("/{id}", b.UpdateBookHandler)
		r.Delete("/{id}", b.DeleteBookHandler)
	})
}

// ListBooksHandler handles GET /api/books.
//
// Response: 200 OK with a JSON array of books, [] when the catalog is empty.
func (b *Books) ListBooksHandler(w http.ResponseWriter, r *http.Request) {
	books, err := b.controller.List(r.Context())
	if err != nil {
		writeError(w, r, b.logger, http.StatusInternalServerError, "Failed to list books", err)
		return
	}
	writeJSON(w, b.logger, http.StatusOK, books)
}

// GetBookHandler handles GET /api/books/{id}.
//
// Response: 200 OK with the book, 400 for a malformed id, 404 if not found.
func (b *Books) GetBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeError(w, r, b.logger, http.StatusBadRequest, "Invalid book ID", err)
		return
	}

	book, err := b.controller.Get(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		writeError(w, r, b.logger, status, messageFor(status, "Failed to get book"), err)
		return
	}
	writeJSON(w, b.logger, http.StatusOK, book)
}

// CreateBookHandler handles POST /api/books.
//
// Request: JSON book, "id" optional. Response: 201 Created with a Location
// header and the stored book, 400 for invalid JSON, 500 when the store rejects it.
func (b *Books) CreateBookHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.Book
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, b.logger, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	created, err := b.controller.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, b.logger, http.StatusInternalServerError, "Failed to create book", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%d", BooksPath, created.ID))
	writeJSON(w, b.logger, http.StatusCreated, created)
}

// UpdateBookHandler handles PUT /api/books/{id}.
//
// Request: JSON book replacing every field. Response: 204 No Content,
// 400 for a malformed id, invalid JSON or an id mismatch, 404 if not found.
func (b *Books) UpdateBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeError(w, r, b.logger, http.StatusBadRequest, "Invalid book ID", err)
		return
	}

	var req domain.Book
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, b.logger, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	if err := b.controller.Update(r.Context(), id, req); err != nil {
		status := statusFor(err)
		writeError(w, r, b.logger, status, messageFor(status, "Failed to update book"), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBookHandler handles DELETE /api/books/{id}.
//
// Response: 204 No Content, 400 for a malformed id, 404 if not found.
func (b *Books) DeleteBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeError(w, r, b.logger, http.StatusBadRequest, "Invalid book ID", err)
		return
	}

	if err := b.controller.Delete(r.Context(), id); err != nil {
		status := statusFor(err)
		writeError(w, r, b.logger, status, messageFor(status, "Failed to delete book"), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// messageFor picks the client facing message for a controller failure
func messageFor(status int, fallback string) string {
	switch status {
	case http.StatusNotFound:
		return "Book not found"
	case http.StatusBadRequest:
		return ErrMismatch.Error()
	default:
		return fallback
	}
}

