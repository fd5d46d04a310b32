package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cuckoohost/internal/platform/contract"
)

func TestMissingEntryPoints(t *testing.T) {
	t.Parallel()
	assert.Empty(t, contract.MissingEntryPoints(contract.RequiredEntryPoints))

	partial := []string{contract.EntryInit, contract.EntryDescribe, "extra"}
	missing := contract.MissingEntryPoints(partial)
	assert.Len(t, missing, len(contract.RequiredEntryPoints)-2)
	assert.Contains(t, missing, contract.EntrySolve)
	assert.NotContains(t, missing, contract.EntryInit)
}

func TestNonceString(t *testing.T) {
	t.Parallel()
	n := contract.Nonce{0, 0, 0, 0, 0, 0, 0x01, 0xff}
	assert.Equal(t, "00000000000001ff", n.String())
}
