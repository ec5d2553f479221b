// Package idgen implements ports.IDGenerator.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// UUID issues random v4 ids for stored usage events.
type UUID struct{}

func (UUID) New() string { return uuid.NewString() }

// Sequential issues prefix-numbered ids so tests can assert exact values.
type Sequential struct {
	prefix string
	n      atomic.Uint64
}

// NewSequential returns a generator counting up from <prefix>1.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.n.Add(1), 10)
}
