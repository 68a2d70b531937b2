package repository

import "context"

// Reader is the read side every book store offers. Writes are not part of it:
// they are staged and handed to BookRepository.Apply as one batch.
type Reader[T any, ID comparable] interface {
	// FindByID returns ErrNotFound if the entity doesn't exist
	FindByID(ctx context.Context, id ID) (T, error)

	// FindAll returns every entity ordered by ID
	FindAll(ctx context.Context) ([]T, error)

	ExistsByID(ctx context.Context, id ID) (bool, error)
}
