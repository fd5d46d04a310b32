// Package buffer implements the write-or-report-too-small rule used by every
// text-producing entry point of the plugin contract.
package buffer

import "cuckoohost/internal/platform/contract"

// MaxCapacity bounds the scratch buffer a plugin allocates on behalf of a
// remote caller, whatever capacity the caller declares.
const MaxCapacity = 64 * 1024

// Capacity returns the usable capacity of dst: the declared length, clamped
// to the size of the buffer actually supplied.
func Capacity(dst []byte, declared uint32) int {
	if uint64(declared) > uint64(len(dst)) {
		return len(dst)
	}
	return int(declared)
}

// WriteText writes text followed by a NUL terminator into dst and stores the
// text length in *length. When text plus terminator does not fit in the
// capacity, dst is left untouched, *length is set to zero and
// StatusBufferTooSmall is returned.
func WriteText(dst []byte, length *uint32, text string) contract.Status {
	capacity := Capacity(dst, *length)
	if len(text)+1 > capacity {
		*length = 0
		return contract.StatusBufferTooSmall
	}
	n := copy(dst, text)
	dst[n] = 0
	*length = uint32(n)
	return contract.StatusOK
}

// ReadText returns the text a callee wrote into src. Zero length means
// nothing was written; a missing terminator at src[length] is reported as
// not ok.
func ReadText(src []byte, length uint32) (string, bool) {
	if length == 0 || uint64(length) >= uint64(len(src)) {
		return "", false
	}
	if src[length] != 0 {
		return "", false
	}
	return string(src[:length]), true
}

// ScratchSize is the buffer size a plugin allocates for a remote caller that
// declared the given capacity.
func ScratchSize(declared uint32) int {
	if declared > MaxCapacity {
		return MaxCapacity
	}
	return int(declared)
}
