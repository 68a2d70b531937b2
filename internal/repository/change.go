package repository

import (
	"fmt"

	"github.com/jbweber/homelab/shelf/internal/domain"
)

// ChangeKind identifies what a staged change does to the store
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota + 1
	ChangeReplace
	ChangeRemove
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeReplace:
		return "replace"
	case ChangeRemove:
		return "remove"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is a single staged mutation of a book record.
// For ChangeAdd with a zero ID the assigned ID is written back into Book
// once the batch has been applied successfully.
type Change struct {
	Kind ChangeKind
	Book *domain.Book
}

// validate rejects changes that no backend could apply
func (c Change) validate() error {
	if c.Book == nil {
		return fmt.Errorf("%s change without a book: %w", c.Kind, ErrInvalidEntity)
	}
	switch c.Kind {
	case ChangeAdd:
		return nil
	case ChangeReplace, ChangeRemove:
		if c.Book.ID == 0 {
			return fmt.Errorf("%s change requires a book ID: %w", c.Kind, ErrInvalidEntity)
		}
		return nil
	default:
		return fmt.Errorf("unknown change kind %d: %w", int(c.Kind), ErrInvalidEntity)
	}
}
