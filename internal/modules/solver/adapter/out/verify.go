package out

import (
	"errors"
	"fmt"

	"cuckoohost/internal/platform/contract"
)

var (
	ErrProofTooBig     = errors.New("edge index above graph size")
	ErrProofNotSorted  = errors.New("edge indices not ascending")
	ErrProofBranch     = errors.New("node has more than two cycle edges")
	ErrProofDeadEnd    = errors.New("cycle has a dead end")
	ErrProofShortCycle = errors.New("cycle shorter than proof")
)

// Verify checks that proof is a cycle of contract.ProofSize edges in the
// graph generated from header at the given easiness.
func Verify(header []byte, proof contract.Proof, easiness uint32) error {
	limit, err := EdgeLimit(easiness)
	if err != nil {
		return err
	}
	keys := newSipKeys(header)
	var uvs [2 * contract.ProofSize]uint32
	for n, edge := range proof {
		if edge >= limit {
			return fmt.Errorf("%w: %d", ErrProofTooBig, edge)
		}
		if n > 0 && edge <= proof[n-1] {
			return fmt.Errorf("%w: position %d", ErrProofNotSorted, n)
		}
		uvs[2*n] = keys.node(edge, 0, edgeMask)
		uvs[2*n+1] = keys.node(edge, 1, edgeMask)
	}

	i, remaining := 0, contract.ProofSize
	for {
		j := i
		for k := (i + 2) % len(uvs); k != i; k = (k + 2) % len(uvs) {
			if uvs[k] != uvs[i] {
				continue
			}
			if j != i {
				return ErrProofBranch
			}
			j = k
		}
		if j == i {
			return ErrProofDeadEnd
		}
		i = j ^ 1
		remaining--
		if i == 0 {
			break
		}
	}
	if remaining != 0 {
		return ErrProofShortCycle
	}
	return nil
}
