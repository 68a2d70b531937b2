package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jbweber/homelab/shelf/internal/domain"
)

const (
	selectBookByIDSQL   = "SELECT id, title, author, price FROM books WHERE id = ?"
	selectAllBooksSQL   = "SELECT id, title, author, price FROM books ORDER BY id ASC"
	countBookByIDSQL    = "SELECT COUNT(*) FROM books WHERE id = ?"
	insertBookSQL       = "INSERT INTO books (title, author, price) VALUES (?, ?, ?)"
	insertBookWithIDSQL = "INSERT INTO books (id, title, author, price) VALUES (?, ?, ?, ?)"
	updateBookSQL       = "UPDATE books SET title = ?, author = ?, price = ? WHERE id = ?"
	deleteBookSQL       = "DELETE FROM books WHERE id = ?"
)

// BookRepository pairs committed reads with atomic batch application of
// staged changes, which backs the datastore unit of work.
type BookRepository interface {
	Reader[domain.Book, int64]

	// Apply executes all changes in a single transaction. Either every change
	// is applied or none is. Replace and Remove of a missing ID fail with
	// ErrNotFound; Add of an existing ID fails with ErrDuplicate.
	Apply(ctx context.Context, changes []Change) error

	// Close releases resources held by the repository, not the database itself
	Close() error
}

// sqlBookRepository implements BookRepository on top of a SQL database
type sqlBookRepository struct {
	db    *sql.DB
	stmts *PreparedStatementCache
}

// NewSQLBookRepository creates a new book repository backed by db
func NewSQLBookRepository(db *sql.DB) BookRepository {
	return &sqlBookRepository{
		db:    db,
		stmts: NewPreparedStatementCache(db),
	}
}

// FindByID retrieves a book by its ID
func (r *sqlBookRepository) FindByID(ctx context.Context, id int64) (domain.Book, error) {
	stmt, err := r.stmts.Get(ctx, selectBookByIDSQL)
	if err != nil {
		return domain.Book{}, fmt.Errorf("failed to prepare book lookup: %w", err)
	}

	var b domain.Book
	err = stmt.QueryRowContext(ctx, id).Scan(&b.ID, &b.Title, &b.Author, &b.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Book{}, fmt.Errorf("book with ID %d: %w", id, ErrNotFound)
		}
		return domain.Book{}, fmt.Errorf("failed to find book: %w", err)
	}
	return b, nil
}

// FindAll retrieves all books ordered by ID
func (r *sqlBookRepository) FindAll(ctx context.Context) ([]domain.Book, error) {
	stmt, err := r.stmts.Get(ctx, selectAllBooksSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare book listing: %w", err)
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	books := []domain.Book{}
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Price); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

// ExistsByID checks if a book exists by its ID
func (r *sqlBookRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	stmt, err := r.stmts.Get(ctx, countBookByIDSQL)
	if err != nil {
		return false, fmt.Errorf("failed to prepare book existence check: %w", err)
	}

	var count int
	if err := stmt.QueryRowContext(ctx, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check book existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the cached prepared statements
func (r *sqlBookRepository) Close() error {
	return r.stmts.Close()
}

// Apply executes changes inside one transaction
func (r *sqlBookRepository) Apply(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	for _, c := range changes {
		if err := c.validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit returns sql.ErrTxDone and is harmless
		_ = tx.Rollback()
	}()

	assigned := make(map[*domain.Book]int64)
	for _, c := range changes {
		var err error
		switch c.Kind {
		case ChangeAdd:
			var id int64
			id, err = r.insert(ctx, tx, *c.Book)
			if err == nil && c.Book.ID == 0 {
				assigned[c.Book] = id
			}
		case ChangeReplace:
			err = r.execAffectingOne(ctx, tx, updateBookSQL, c.Book.ID, c.Book.Title, c.Book.Author, c.Book.Price, c.Book.ID)
		case ChangeRemove:
			err = r.execAffectingOne(ctx, tx, deleteBookSQL, c.Book.ID, c.Book.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to %s book: %w", c.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for b, id := range assigned {
		b.ID = id
	}
	return nil
}

// insert adds a book, honoring a caller supplied ID
func (r *sqlBookRepository) insert(ctx context.Context, tx *sql.Tx, b domain.Book) (int64, error) {
	if b.ID != 0 {
		count, err := r.stmts.InTx(ctx, tx, countBookByIDSQL)
		if err != nil {
			return 0, err
		}
		var n int
		if err := count.QueryRowContext(ctx, b.ID).Scan(&n); err != nil {
			return 0, err
		}
		if n > 0 {
			return 0, fmt.Errorf("book with ID %d: %w", b.ID, ErrDuplicate)
		}
	}

	query, args := insertBookSQL, []any{b.Title, b.Author, b.Price}
	if b.ID != 0 {
		query, args = insertBookWithIDSQL, []any{b.ID, b.Title, b.Author, b.Price}
	}

	stmt, err := r.stmts.InTx(ctx, tx, query)
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		if isConstraintViolation(err) {
			return 0, fmt.Errorf("book with ID %d: %w", b.ID, ErrDuplicate)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// execAffectingOne runs query and reports ErrNotFound when no row matched id
func (r *sqlBookRepository) execAffectingOne(ctx context.Context, tx *sql.Tx, query string, id int64, args ...any) error {
	stmt, err := r.stmts.InTx(ctx, tx, query)
	if err != nil {
		return err
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book with ID %d: %w", id, ErrNotFound)
	}
	return nil
}

// isConstraintViolation reports whether err is a SQLite primary key or unique constraint failure
func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
