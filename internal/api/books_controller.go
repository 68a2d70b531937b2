package api

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jbweber/homelab/shelf/internal/datastore"
	"github.com/jbweber/homelab/shelf/internal/domain"
	"github.com/jbweber/homelab/shelf/internal/repository"
)

var (
	// ErrNotFound is returned when no book has the requested id
	ErrNotFound = errors.New("book not found")

	// ErrMismatch is returned by Update when the payload carries an id other than the path id
	ErrMismatch = errors.New("book id in payload does not match path id")
)

// Session is the unit of work a controller operation runs against
type Session interface {
	Add(book *domain.Book)
	Replace(book domain.Book)
	Remove(book domain.Book)
	FindByID(ctx context.Context, id int64) (domain.Book, error)
	Exists(ctx context.Context, id int64) (bool, error)
	All(ctx context.Context) ([]domain.Book, error)
	Commit(ctx context.Context) error
}

// SessionOpener opens a fresh Session for each operation
type SessionOpener func() Session

// DatastoreSessions adapts a Datastore to a SessionOpener
func DatastoreSessions(ds *datastore.Datastore) SessionOpener {
	return func() Session { return ds.Session() }
}

// BooksController implements the five book operations. It keeps no state
// between calls; every operation opens its own session.
type BooksController struct {
	open   SessionOpener
	logger *zap.Logger
}

func NewBooksController(open SessionOpener, logger *zap.Logger) *BooksController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BooksController{open: open, logger: logger}
}

// List returns every book, an empty slice when there are none
func (c *BooksController) List(ctx context.Context) ([]domain.Book, error) {
	books, err := c.open().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// Get returns the book with id or ErrNotFound
func (c *BooksController) Get(ctx context.Context, id int64) (domain.Book, error) {
	return c.find(ctx, c.open(), id)
}

// Create stores book and returns it with its assigned id.
// A caller supplied non-zero id is kept as is.
func (c *BooksController) Create(ctx context.Context, book domain.Book) (domain.Book, error) {
	s := c.open()
	s.Add(&book)
	if err := s.Commit(ctx); err != nil {
		return domain.Book{}, fmt.Errorf("failed to create book: %w", err)
	}
	c.logger.Debug("book created", zap.Int64("id", book.ID))
	return book, nil
}

// Update replaces every mutable field of book id with those of payload.
// A zero payload id is taken to mean the path id.
func (c *BooksController) Update(ctx context.Context, id int64, payload domain.Book) error {
	if payload.ID != 0 && payload.ID != id {
		return fmt.Errorf("%w: path %d, payload %d", ErrMismatch, id, payload.ID)
	}

	s := c.open()
	existing, err := c.find(ctx, s, id)
	if err != nil {
		return err
	}

	existing.Title = payload.Title
	existing.Author = payload.Author
	existing.Price = payload.Price
	s.Replace(existing)

	if err := s.Commit(ctx); err != nil {
		return commitError(id, "update", err)
	}
	c.logger.Debug("book updated", zap.Int64("id", id))
	return nil
}

// Delete removes book id or returns ErrNotFound
func (c *BooksController) Delete(ctx context.Context, id int64) error {
	s := c.open()
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete book %d: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: book with ID %d: %w", ErrNotFound, id, repository.ErrNotFound)
	}

	s.Remove(domain.Book{ID: id})
	if err := s.Commit(ctx); err != nil {
		return commitError(id, "delete", err)
	}
	c.logger.Debug("book deleted", zap.Int64("id", id))
	return nil
}

func (c *BooksController) find(ctx context.Context, s Session, id int64) (domain.Book, error) {
	book, err := s.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Book{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return domain.Book{}, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	return book, nil
}

// commitError reports a record that vanished between lookup and commit as ErrNotFound
func commitError(id int64, op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("failed to %s book %d: %w", op, id, err)
}
