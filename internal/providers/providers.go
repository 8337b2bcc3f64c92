package providers

import (
	"context"

	"orgsync/internal/domain"
)

// DirectoryProvider lists a directory's users as raw records. Pagination is
// the implementation's problem: ListUsers returns the complete set.
type DirectoryProvider interface {
	Name() string
	ListUsers(ctx context.Context) ([]domain.RawUser, error)
}
