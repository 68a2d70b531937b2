package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-memdb"

	"github.com/jbweber/homelab/shelf/internal/domain"
)

const booksTable = "books"

// memBookRepository implements BookRepository on an in-memory go-memdb database.
// Nothing survives the process, which makes it a fit for tests and throwaway runs.
type memBookRepository struct {
	db *memdb.MemDB
	// lastID is only read and written while holding a memdb write transaction
	lastID int64
}

// NewMemBookRepository creates an empty in-memory book repository
func NewMemBookRepository() (BookRepository, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			booksTable: {
				Name: booksTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize in-memory database: %w", err)
	}
	return &memBookRepository{db: db}, nil
}

// FindByID retrieves a book by its ID
func (r *memBookRepository) FindByID(_ context.Context, id int64) (domain.Book, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(booksTable, "id", id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("failed to find book: %w", err)
	}
	if raw == nil {
		return domain.Book{}, fmt.Errorf("book with ID %d: %w", id, ErrNotFound)
	}
	return raw.(domain.Book), nil
}

// FindAll retrieves all books ordered by ID
func (r *memBookRepository) FindAll(_ context.Context) ([]domain.Book, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(booksTable, "id")
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	books := []domain.Book{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		books = append(books, obj.(domain.Book))
	}
	// The id index orders by encoded key bytes, not numerically
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// ExistsByID checks if a book exists by its ID
func (r *memBookRepository) ExistsByID(_ context.Context, id int64) (bool, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(booksTable, "id", id)
	if err != nil {
		return false, fmt.Errorf("failed to check book existence: %w", err)
	}
	return raw != nil, nil
}

// Close is a no-op; the records go away with the repository
func (r *memBookRepository) Close() error {
	return nil
}

// Apply executes changes inside one write transaction
func (r *memBookRepository) Apply(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	for _, c := range changes {
		if err := c.validate(); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	seq := r.lastID
	assigned := make(map[*domain.Book]int64)
	for _, c := range changes {
		b := *c.Book
		var err error
		switch c.Kind {
		case ChangeAdd:
			if b.ID == 0 {
				seq++
				b.ID = seq
				assigned[c.Book] = b.ID
			} else if b.ID > seq {
				seq = b.ID
			}
			err = r.insert(txn, b)
		case ChangeReplace:
			err = r.replace(txn, b)
		case ChangeRemove:
			err = r.remove(txn, b.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to %s book: %w", c.Kind, err)
		}
	}

	r.lastID = seq
	txn.Commit()

	for b, id := range assigned {
		b.ID = id
	}
	return nil
}

func (r *memBookRepository) insert(txn *memdb.Txn, b domain.Book) error {
	existing, err := txn.First(booksTable, "id", b.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("book with ID %d: %w", b.ID, ErrDuplicate)
	}
	return txn.Insert(booksTable, b)
}

func (r *memBookRepository) replace(txn *memdb.Txn, b domain.Book) error {
	existing, err := txn.First(booksTable, "id", b.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("book with ID %d: %w", b.ID, ErrNotFound)
	}
	return txn.Insert(booksTable, b)
}

func (r *memBookRepository) remove(txn *memdb.Txn, id int64) error {
	existing, err := txn.First(booksTable, "id", id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("book with ID %d: %w", id, ErrNotFound)
	}
	return txn.Delete(booksTable, existing)
}
