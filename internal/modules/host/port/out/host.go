package out

import (
	"context"

	"cuckoohost/internal/modules/host/domain"
	"cuckoohost/internal/platform/contract"
)

// Binding is a plugin bound into the host process. Close releases the
// binding and is called exactly once by the owning handle.
type Binding struct {
	Plugin      contract.Plugin
	EntryPoints []string
	Close       func() error
}

// Binder resolves an artifact path into a live binding. A missing file is
// reported as domain.ErrArtifactNotFound.
type Binder interface {
	Bind(ctx context.Context, path string) (Binding, error)
}

type ArtifactStore interface {
	List(ctx context.Context) ([]domain.Artifact, error)
}
