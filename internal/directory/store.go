package directory

import (
	"context"

	dErrors "gatebot/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific lookups consistent across the
	// in-memory and Postgres implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "enrollment record not found")

	// ErrDuplicateName enforces full-name uniqueness at creation time.
	ErrDuplicateName = dErrors.New(dErrors.CodeConflict, "enrollment record with this name already exists")

	// ErrAlreadyBound is returned by Bind when the record is already claimed
	// by some identity. Bind is atomic, so callers never observe a lost
	// overwrite: the first binder wins.
	ErrAlreadyBound = dErrors.New(dErrors.CodeConflict, "enrollment record already bound to an identity")
)

// Store is the enrollment directory. Names passed in are normalized by the
// implementations, so callers may hand over raw user input.
type Store interface {
	// FindByName returns the record whose FullName equals the normalized name.
	FindByName(ctx context.Context, name string) (Record, error)

	// FindByIdentity returns the record bound to the given identity.
	FindByIdentity(ctx context.Context, identity string) (Record, error)

	// Insert creates a new record and assigns its ID.
	Insert(ctx context.Context, rec Record) (Record, error)

	// Bind atomically sets BoundIdentity on the named record if and only if
	// it is still unbound. Returns ErrAlreadyBound when a binding exists,
	// including a binding to the same identity.
	Bind(ctx context.Context, name, identity string) error

	// Unbind clears the binding on the named record.
	Unbind(ctx context.Context, name string) error

	// Delete removes the named record.
	Delete(ctx context.Context, name string) error

	// ListAll returns every record ordered by FullName.
	ListAll(ctx context.Context) ([]Record, error)
}
