package out_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	solveradapter "cuckoohost/internal/modules/solver/adapter/out"
	solverout "cuckoohost/internal/modules/solver/port/out"
	"cuckoohost/internal/platform/contract"
)

const maxHeaderAttempts = 20000

func header(i uint64) []byte {
	h := make([]byte, contract.HeaderSize)
	binary.LittleEndian.PutUint64(h, i)
	return h
}

func solvableHeader(t *testing.T, ws solverout.Workspace) ([]byte, contract.Proof) {
	t.Helper()
	for i := uint64(0); i < maxHeaderAttempts; i++ {
		var proof contract.Proof
		h := header(i)
		found, err := ws.Search(context.Background(), h, &proof)
		require.NoError(t, err)
		if found {
			return h, proof
		}
	}
	t.Fatalf("no cycle in %d headers", maxHeaderAttempts)
	return nil, contract.Proof{}
}

func TestLeanSearcherFindsVerifiableCycle(t *testing.T) {
	t.Parallel()
	s := solveradapter.NewLeanSearcher(nil)
	ws, err := s.Workspace(solverout.SearchParams{Easiness: 100})
	require.NoError(t, err)
	defer ws.Release()

	h, proof := solvableHeader(t, ws)
	require.NoError(t, solveradapter.Verify(h, proof, 100))

	var again contract.Proof
	found, err := ws.Search(context.Background(), h, &again)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, proof, again)
}

func TestVerifyRejectsTamperedProof(t *testing.T) {
	t.Parallel()
	s := solveradapter.NewLeanSearcher(nil)
	ws, err := s.Workspace(solverout.SearchParams{Easiness: 100})
	require.NoError(t, err)
	defer ws.Release()
	h, proof := solvableHeader(t, ws)

	unsorted := proof
	unsorted[0], unsorted[1] = unsorted[1], unsorted[0]
	assert.ErrorIs(t, solveradapter.Verify(h, unsorted, 100), solveradapter.ErrProofNotSorted)

	tooBig := proof
	tooBig[contract.ProofSize-1] = 1 << 20
	assert.ErrorIs(t, solveradapter.Verify(h, tooBig, 100), solveradapter.ErrProofTooBig)

	other := header(maxHeaderAttempts + 1)
	assert.Error(t, solveradapter.Verify(other, proof, 100))
}

func TestLeanSearcherHonoursCancellation(t *testing.T) {
	t.Parallel()
	s := solveradapter.NewLeanSearcher(nil)
	ws, err := s.Workspace(solverout.SearchParams{Easiness: 100})
	require.NoError(t, err)
	defer ws.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var proof contract.Proof
	found, err := ws.Search(ctx, header(1), &proof)
	assert.False(t, found)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWorkspaceRejectsBadEasiness(t *testing.T) {
	t.Parallel()
	s := solveradapter.NewLeanSearcher(nil)
	_, err := s.Workspace(solverout.SearchParams{Easiness: 0})
	assert.Error(t, err)
	_, err = s.Workspace(solverout.SearchParams{Easiness: 101})
	assert.Error(t, err)
}

func TestReleasedWorkspaceRefusesSearch(t *testing.T) {
	t.Parallel()
	s := solveradapter.NewLeanSearcher(nil)
	ws, err := s.Workspace(solverout.SearchParams{Easiness: 50})
	require.NoError(t, err)
	ws.Release()
	ws.Release()
	var proof contract.Proof
	_, err = ws.Search(context.Background(), header(0), &proof)
	assert.Error(t, err)
}

func TestDescriptionMentionsCuckoo(t *testing.T) {
	t.Parallel()
	s := solveradapter.NewLeanSearcher(nil)
	assert.Contains(t, s.Name(), "cuckoo")
	assert.Contains(t, s.Description(), "cuckoo")
}
