package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/shelf/internal/datastore"
	"github.com/jbweber/homelab/shelf/internal/domain"
	"github.com/jbweber/homelab/shelf/internal/repository"
	"github.com/jbweber/homelab/shelf/internal/testutil"
)

// forEachStore runs fn against a migrated in-memory SQLite datastore and a go-memdb one
func forEachStore(t *testing.T, fn func(t *testing.T, ds *datastore.Datastore)) {
	t.Run("sqlite", func(t *testing.T) {
		db := testutil.SetupTestDBWithMigrations(t, strings.ReplaceAll(t.Name(), "/", "_"))
		fn(t, datastore.NewSQL(db, nil))
	})
	t.Run("memdb", func(t *testing.T) {
		ds, err := datastore.NewInMemory(nil)
		require.NoError(t, err)
		fn(t, ds)
	})
}

func testBook(id int64, title, author, price string) domain.Book {
	return domain.Book{ID: id, Title: title, Author: author, Price: decimal.RequireFromString(price)}
}

// seed commits books directly through a datastore session
func seed(t *testing.T, ds *datastore.Datastore, books ...domain.Book) {
	t.Helper()
	s := ds.Session()
	for i := range books {
		s.Add(&books[i])
	}
	require.NoError(t, s.Commit(context.Background()))
}

func TestBooksController_ListReturnsAllRecords(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		seed(t, ds,
			testBook(1, "Book 1", "Author 1", "9.99"),
			testBook(2, "Book 2", "Author 2", "19.99"),
		)
		c := NewBooksController(DatastoreSessions(ds), nil)

		books, err := c.List(context.Background())
		require.NoError(t, err)
		assert.Len(t, books, 2)
	})
}

func TestBooksController_ListEmpty(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		c := NewBooksController(DatastoreSessions(ds), nil)

		books, err := c.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, books)
		assert.Empty(t, books)
	})
}

func TestBooksController_Get(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		ctx := context.Background()
		seed(t, ds, testBook(1, "Book 1", "Author 1", "9.99"))
		c := NewBooksController(DatastoreSessions(ds), nil)

		book, err := c.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), book.ID)
		assert.Equal(t, "Book 1", book.Title)
		assert.Equal(t, "Author 1", book.Author)
		assert.Equal(t, "9.99", book.Price.String())

		_, err = c.Get(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestBooksController_CreateAssignsID(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		ctx := context.Background()
		c := NewBooksController(DatastoreSessions(ds), nil)

		created, err := c.Create(ctx, testBook(0, "New Book", "New Author", "29.99"))
		require.NoError(t, err)
		assert.Equal(t, "New Book", created.Title)
		assert.NotZero(t, created.ID)

		books, err := c.List(ctx)
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, created.ID, books[0].ID)
	})
}

func TestBooksController_CreateDuplicateID(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		ctx := context.Background()
		seed(t, ds, testBook(1, "Book 1", "Author 1", "9.99"))
		c := NewBooksController(DatastoreSessions(ds), nil)

		_, err := c.Create(ctx, testBook(1, "Clash", "Author", "1"))
		assert.ErrorIs(t, err, datastore.ErrPersistence)
		assert.ErrorIs(t, err, repository.ErrDuplicate)

		books, err := c.List(ctx)
		require.NoError(t, err)
		assert.Len(t, books, 1)
	})
}

func TestBooksController_Update(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		ctx := context.Background()
		seed(t, ds, testBook(1, "Old Book", "Old Author", "9.99"))
		c := NewBooksController(DatastoreSessions(ds), nil)

		err := c.Update(ctx, 1, testBook(1, "Updated Book", "Updated Author", "19.99"))
		require.NoError(t, err)

		book, err := c.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Updated Book", book.Title)
		assert.Equal(t, "Updated Author", book.Author)
		assert.Equal(t, "19.99", book.Price.String())
	})
}

func TestBooksController_UpdateWithoutPayloadID(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		ctx := context.Background()
		seed(t, ds, testBook(3, "Old Book", "Old Author", "9.99"))
		c := NewBooksController(DatastoreSessions(ds), nil)

		require.NoError(t, c.Update(ctx, 3, testBook(0, "Renamed", "Someone", "1")))

		book, err := c.Get(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", book.Title)
	})
}

func TestBooksController_UpdateMismatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		ctx := context.Background()
		seed(t, ds, testBook(1, "Book 1", "Author 1", "9.99"))
		c := NewBooksController(DatastoreSessions(ds), nil)

		err := c.Update(ctx, 1, testBook(2, "Hijack", "Author", "1"))
		assert.ErrorIs(t, err, ErrMismatch)

		book, err := c.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Book 1", book.Title)
	})
}

func TestBooksController_UpdateMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		ctx := context.Background()
		c := NewBooksController(DatastoreSessions(ds), nil)

		err := c.Update(ctx, 42, testBook(42, "Ghost", "Nobody", "1"))
		assert.ErrorIs(t, err, ErrNotFound)

		books, err := c.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, books)
	})
}

func TestBooksController_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		ctx := context.Background()
		seed(t, ds, testBook(1, "Book to Delete", "Author", "9.99"))
		c := NewBooksController(DatastoreSessions(ds), nil)

		require.NoError(t, c.Delete(ctx, 1))

		books, err := c.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, books)

		// A second delete of the same id is a miss
		assert.ErrorIs(t, c.Delete(ctx, 1), ErrNotFound)
	})
}

func TestBooksController_CardinalityAfterMixedOperations(t *testing.T) {
	forEachStore(t, func(t *testing.T, ds *datastore.Datastore) {
		ctx := context.Background()
		c := NewBooksController(DatastoreSessions(ds), nil)

		var ids []int64
		for i := 0; i < 6; i++ {
			created, err := c.Create(ctx, testBook(0, fmt.Sprintf("Book %d", i), "Author", "1"))
			require.NoError(t, err)
			ids = append(ids, created.ID)
		}
		require.NoError(t, c.Delete(ctx, ids[1]))
		require.NoError(t, c.Delete(ctx, ids[4]))
		assert.ErrorIs(t, c.Delete(ctx, 9999), ErrNotFound)

		books, err := c.List(ctx)
		require.NoError(t, err)
		assert.Len(t, books, 4)
	})
}

// stubSession lets tests drive controller failure paths
type stubSession struct {
	book      domain.Book
	findErr   error
	allErr    error
	commitErr error
	staged    int
}

func (s *stubSession) Add(*domain.Book) { s.staged++ }

func (s *stubSession) Replace(domain.Book) { s.staged++ }

func (s *stubSession) Remove(domain.Book) { s.staged++ }

func (s *stubSession) Commit(context.Context) error {
	return s.commitErr
}

func (s *stubSession) FindByID(_ context.Context, id int64) (domain.Book, error) {
	if s.findErr != nil {
		return domain.Book{}, s.findErr
	}
	b := s.book
	b.ID = id
	return b, nil
}

func (s *stubSession) Exists(context.Context, int64) (bool, error) {
	if s.findErr != nil {
		return false, s.findErr
	}
	return true, nil
}

func (s *stubSession) All(context.Context) ([]domain.Book, error) {
	if s.allErr != nil {
		return nil, s.allErr
	}
	return []domain.Book{s.book}, nil
}

func stubOpener(s *stubSession) SessionOpener {
	return func() Session { return s }
}

func TestBooksController_RecordVanishesBeforeCommit(t *testing.T) {
	// The record is found but gone by the time the transaction runs
	vanished := fmt.Errorf("%w: book with ID 7: %w", datastore.ErrPersistence, repository.ErrNotFound)
	s := &stubSession{commitErr: vanished}
	c := NewBooksController(stubOpener(s), nil)
	ctx := context.Background()

	assert.ErrorIs(t, c.Update(ctx, 7, testBook(7, "T", "A", "1")), ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, 7), ErrNotFound)
	assert.Equal(t, 2, s.staged)
}

func TestBooksController_StoreFailures(t *testing.T) {
	cause := errors.New("disk I/O error")
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		c := NewBooksController(stubOpener(&stubSession{allErr: cause}), nil)
		_, err := c.List(ctx)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("get", func(t *testing.T) {
		c := NewBooksController(stubOpener(&stubSession{findErr: cause}), nil)
		_, err := c.Get(ctx, 1)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("create", func(t *testing.T) {
		persist := fmt.Errorf("%w: %w", datastore.ErrPersistence, cause)
		c := NewBooksController(stubOpener(&stubSession{commitErr: persist}), nil)
		_, err := c.Create(ctx, testBook(0, "T", "A", "1"))
		assert.ErrorIs(t, err, datastore.ErrPersistence)
	})

	t.Run("update", func(t *testing.T) {
		persist := fmt.Errorf("%w: %w", datastore.ErrPersistence, cause)
		c := NewBooksController(stubOpener(&stubSession{commitErr: persist}), nil)
		err := c.Update(ctx, 1, testBook(1, "T", "A", "1"))
		assert.ErrorIs(t, err, datastore.ErrPersistence)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete lookup", func(t *testing.T) {
		c := NewBooksController(stubOpener(&stubSession{findErr: cause}), nil)
		err := c.Delete(ctx, 1)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		persist := fmt.Errorf("%w: %w", datastore.ErrPersistence, cause)
		c := NewBooksController(stubOpener(&stubSession{commitErr: persist}), nil)
		err := c.Delete(ctx, 1)
		assert.ErrorIs(t, err, datastore.ErrPersistence)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestBooksController_ConcurrentCreatesGetDistinctIDs(t *testing.T) {
	ds, err := datastore.NewInMemory(nil)
	require.NoError(t, err)
	c := NewBooksController(DatastoreSessions(ds), nil)
	ctx := context.Background()

	const creators = 500
	created := make([]domain.Book, creators)
	errs := make([]error, creators)
	var wg sync.WaitGroup
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created[i], errs[i] = c.Create(ctx, testBook(0, fmt.Sprintf("Book %d", i), "Author", "1"))
		}(i)
	}
	wg.Wait()

	ids := make(map[int64]bool, creators)
	for i := 0; i < creators; i++ {
		require.NoError(t, errs[i])
		require.NotZero(t, created[i].ID)
		ids[created[i].ID] = true
	}
	assert.Len(t, ids, creators)

	books, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, books, creators)
}
