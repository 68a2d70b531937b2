package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jbweber/homelab/shelf/internal/domain"
	"github.com/jbweber/homelab/shelf/internal/repository"
)

// ErrPersistence is returned by Commit when the store rejects staged changes.
// The underlying cause stays in the chain for errors.Is.
var ErrPersistence = errors.New("persistence error")

// Datastore owns the durable book collection and hands out sessions over it
type Datastore struct {
	repo   repository.BookRepository
	db     *sql.DB
	logger *zap.Logger
}

// New creates a Datastore over an existing repository
func New(repo repository.BookRepository, logger *zap.Logger) *Datastore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Datastore{repo: repo, logger: logger}
}

// NewSQL creates a Datastore over an already migrated SQL database
func NewSQL(db *sql.DB, logger *zap.Logger) *Datastore {
	ds := New(repository.NewSQLBookRepository(db), logger)
	ds.db = db
	return ds
}

// NewInMemory creates a Datastore whose records live only in process memory
func NewInMemory(logger *zap.Logger) (*Datastore, error) {
	repo, err := repository.NewMemBookRepository()
	if err != nil {
		return nil, err
	}
	return New(repo, logger), nil
}

// Session opens a fresh unit of work
func (ds *Datastore) Session() *Session {
	return &Session{repo: ds.repo, logger: ds.logger}
}

// Ping checks that the backing store is reachable
func (ds *Datastore) Ping(ctx context.Context) error {
	if ds.db == nil {
		return nil
	}
	return ds.db.PingContext(ctx)
}

// Close releases the repository and then the backing database, if any
func (ds *Datastore) Close() error {
	err := ds.repo.Close()
	if ds.db != nil {
		if dbErr := ds.db.Close(); dbErr != nil {
			return dbErr
		}
	}
	return err
}

// Session stages book mutations and applies them atomically on Commit.
// Reads always see committed state only. A Session is not safe for
// concurrent use; open one per request.
type Session struct {
	repo    repository.BookRepository
	logger  *zap.Logger
	pending []repository.Change
}

// Add stages book for insertion. When book.ID is zero the store assigns one
// and Commit writes it back into book.
func (s *Session) Add(book *domain.Book) {
	s.pending = append(s.pending, repository.Change{Kind: repository.ChangeAdd, Book: book})
}

// Replace stages a wholesale replacement of the record with book.ID
func (s *Session) Replace(book domain.Book) {
	s.pending = append(s.pending, repository.Change{Kind: repository.ChangeReplace, Book: &book})
}

// Remove stages deletion of the record with book.ID
func (s *Session) Remove(book domain.Book) {
	s.pending = append(s.pending, repository.Change{Kind: repository.ChangeRemove, Book: &book})
}

// FindByID looks up a committed book. The error wraps repository.ErrNotFound when absent.
func (s *Session) FindByID(ctx context.Context, id int64) (domain.Book, error) {
	return s.repo.FindByID(ctx, id)
}

// Exists reports whether a committed book has id
func (s *Session) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.ExistsByID(ctx, id)
}

// All returns every committed book ordered by ID, never nil
func (s *Session) All(ctx context.Context) ([]domain.Book, error) {
	books, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

// Pending returns the number of staged changes
func (s *Session) Pending() int {
	return len(s.pending)
}

// Commit applies all staged changes in one transaction. The staged list is
// cleared whether or not the store accepted it.
func (s *Session) Commit(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	changes := s.pending
	s.pending = nil

	if err := s.repo.Apply(ctx, changes); err != nil {
		s.logger.Warn("commit rejected", zap.Int("changes", len(changes)), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.Debug("commit applied", zap.Int("changes", len(changes)))
	return nil
}
