package out

import (
	"context"
	"fmt"
	"sync"

	hclog "github.com/hashicorp/go-hclog"

	solverout "cuckoohost/internal/modules/solver/port/out"
	"cuckoohost/internal/platform/contract"
)

const (
	// EdgeBits sizes the reference graph at 2^(EdgeBits+1) nodes.
	EdgeBits = 15
	// MaxPathLength bounds a single path walk through the cuckoo forest.
	MaxPathLength = 8192

	numEdges        = 1 << EdgeBits
	edgeMask        = numEdges - 1
	cancelCheckMask = 4096 - 1
)

// LeanSearcher follows paths through a cuckoo forest built one edge at a
// time and reports the first cycle of contract.ProofSize edges.
type LeanSearcher struct {
	logger hclog.Logger
}

func NewLeanSearcher(logger hclog.Logger) *LeanSearcher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LeanSearcher{logger: logger}
}

func (s *LeanSearcher) Name() string {
	return fmt.Sprintf("cuckoo_lean_go_%d", EdgeBits+1)
}

func (s *LeanSearcher) Description() string {
	return fmt.Sprintf("lean cuckoo cycle path follower in pure Go, %d-cycles on 2^%d nodes", contract.ProofSize, EdgeBits+1)
}

func (s *LeanSearcher) Workspace(params solverout.SearchParams) (solverout.Workspace, error) {
	limit, err := EdgeLimit(params.Easiness)
	if err != nil {
		return nil, err
	}
	return &leanWorkspace{
		logger:  s.logger,
		limit:   limit,
		cuckoo:  make([]uint32, 2*numEdges),
		us:      make([]uint32, MaxPathLength),
		vs:      make([]uint32, MaxPathLength),
		visited: make(map[[2]uint32]struct{}, contract.ProofSize),
	}, nil
}

// EdgeLimit converts an easiness percentage into the number of edges
// generated per graph.
func EdgeLimit(easiness uint32) (uint32, error) {
	if easiness == 0 || easiness > 100 {
		return 0, fmt.Errorf("easiness %d outside (0, 100]", easiness)
	}
	return uint32(uint64(numEdges) * uint64(easiness) / 100), nil
}

type leanWorkspace struct {
	logger hclog.Logger
	limit  uint32

	once    sync.Once
	cuckoo  []uint32
	us      []uint32
	vs      []uint32
	visited map[[2]uint32]struct{}
}

var errPathTooLong = fmt.Errorf("path exceeds %d nodes", MaxPathLength)

func (w *leanWorkspace) Search(ctx context.Context, header []byte, proof *contract.Proof) (bool, error) {
	if w.cuckoo == nil {
		return false, fmt.Errorf("search on released workspace")
	}
	clear(w.cuckoo)
	keys := newSipKeys(header)

	for edge := uint32(0); edge < w.limit; edge++ {
		if edge&cancelCheckMask == 0 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		u0 := keys.node(edge, 0, edgeMask)
		if u0 == 0 {
			// node 0 marks an empty slot
			continue
		}
		v0 := keys.node(edge, 1, edgeMask)
		w.us[0], w.vs[0] = u0, v0
		nu, err := w.path(w.cuckoo[u0], w.us)
		if err != nil {
			w.logger.Trace("skipping edge", "edge", edge, "error", err)
			continue
		}
		nv, err := w.path(w.cuckoo[v0], w.vs)
		if err != nil {
			w.logger.Trace("skipping edge", "edge", edge, "error", err)
			continue
		}

		if w.us[nu] == w.vs[nv] {
			lo := min(nu, nv)
			nu, nv = nu-lo, nv-lo
			for w.us[nu] != w.vs[nv] {
				nu++
				nv++
			}
			if nu+nv+1 == contract.ProofSize && w.recover(keys, nu, nv, proof) {
				return true, nil
			}
			continue
		}

		if nu < nv {
			for ; nu > 0; nu-- {
				w.cuckoo[w.us[nu]] = w.us[nu-1]
			}
			w.cuckoo[u0] = v0
		} else {
			for ; nv > 0; nv-- {
				w.cuckoo[w.vs[nv]] = w.vs[nv-1]
			}
			w.cuckoo[v0] = u0
		}
	}
	return false, nil
}

// path walks from u to the root of its tree, recording nodes after path[0].
func (w *leanWorkspace) path(u uint32, path []uint32) (int, error) {
	n := 0
	for ; u != 0; u = w.cuckoo[u] {
		n++
		if n >= MaxPathLength {
			return 0, errPathTooLong
		}
		path[n] = u
	}
	return n, nil
}

// recover rescans the edge space for the edges of the cycle closed by the
// last edge.
func (w *leanWorkspace) recover(keys sipKeys, nu, nv int, proof *contract.Proof) bool {
	clear(w.visited)
	w.visited[[2]uint32{w.us[0], w.vs[0]}] = struct{}{}
	for i := nu - 1; i >= 0; i-- {
		w.visited[[2]uint32{w.us[(i+1)&^1], w.us[i|1]}] = struct{}{}
	}
	for i := nv - 1; i >= 0; i-- {
		w.visited[[2]uint32{w.vs[i|1], w.vs[(i+1)&^1]}] = struct{}{}
	}

	n := 0
	for edge := uint32(0); edge < w.limit && n < contract.ProofSize; edge++ {
		e := [2]uint32{keys.node(edge, 0, edgeMask), keys.node(edge, 1, edgeMask)}
		if _, ok := w.visited[e]; ok {
			proof[n] = edge
			n++
			delete(w.visited, e)
		}
	}
	return n == contract.ProofSize
}

func (w *leanWorkspace) Release() {
	w.once.Do(func() {
		w.cuckoo = nil
		w.us = nil
		w.vs = nil
		w.visited = nil
	})
}
