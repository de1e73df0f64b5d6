package store

import (
	"context"
	"errors"
)

// Repository error values. Callers branch with errors.Is; ErrDuplicate is
// how a unique-constraint violation surfaces, distinct from any other
// database failure.
var (
	ErrDuplicate = errors.New("record violates a uniqueness constraint")
	ErrNotFound  = errors.New("record not found")
)

// ContentStore is the content-addressed storage collaborator. Put of the
// same bytes always yields the same ref (the hex sha256 of the content),
// which is what makes stored-payload integrity checks meaningful.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}
