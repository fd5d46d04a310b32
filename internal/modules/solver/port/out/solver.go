package out

import (
	"context"

	"cuckoohost/internal/platform/contract"
)

// SearchParams are the registry values a workspace is sized from.
type SearchParams struct {
	Easiness uint32
}

// Searcher allocates per-worker workspaces for a cycle search algorithm.
type Searcher interface {
	Name() string
	Description() string
	Workspace(params SearchParams) (Workspace, error)
}

// Workspace owns the graph memory of one worker. Search fills proof and
// reports true when a cycle was found. Release frees the memory and must be
// called exactly once.
type Workspace interface {
	Search(ctx context.Context, header []byte, proof *contract.Proof) (bool, error)
	Release()
}
