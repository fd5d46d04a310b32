package out

import (
	"encoding/binary"

	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"
)

// sipKeys derives the siphash-2-4 keys of a graph from its header.
type sipKeys struct {
	k0, k1 uint64
}

func newSipKeys(header []byte) sipKeys {
	sum := blake2b.Sum256(header)
	return sipKeys{
		k0: binary.LittleEndian.Uint64(sum[0:8]),
		k1: binary.LittleEndian.Uint64(sum[8:16]),
	}
}

// node maps edge index and side to a graph node. U nodes are even, V nodes
// are odd.
func (k sipKeys) node(edge uint32, uorv uint32, mask uint32) uint32 {
	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], 2*uint64(edge)+uint64(uorv))
	h := siphash.Hash(k.k0, k.k1, word[:])
	return (uint32(h)&mask)<<1 | uorv
}
