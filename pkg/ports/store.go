package ports

import (
	"context"

	"github.com/aretw0/cvflow/pkg/domain"
)

// GraphStore persists pipeline documents.
type GraphStore interface {
	// Save stores doc under name, replacing any previous version.
	Save(ctx context.Context, name string, doc *domain.GraphDocument) error

	// Load retrieves the document stored under name.
	// Returns domain.ErrPipelineNotFound if it does not exist.
	Load(ctx context.Context, name string) (*domain.GraphDocument, error)

	// Delete removes the document. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored documents.
	List(ctx context.Context) ([]string, error)
}
