package id

import (
	"strconv"

	"github.com/google/uuid"
)

// Generator creates opaque identifiers.
type Generator interface {
	New() string
}

// UUID issues random version 4 identifiers.
type UUID struct{}

func (UUID) New() string {
	return uuid.NewString()
}

// Sequence issues predictable identifiers for tests.
type Sequence struct {
	Prefix string
	next   int
}

func (s *Sequence) New() string {
	s.next++
	return s.Prefix + strconv.Itoa(s.next)
}
