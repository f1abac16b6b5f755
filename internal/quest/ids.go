package quest

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator allocates node ids. Implementations must never repeat an id
// within one loaded graph.
type IDGenerator interface {
	NextID() string
}

// SequentialIDs hands out "1", "2", ... The default root uses "0".
type SequentialIDs struct {
	last atomic.Int64
}

// NewSequentialIDs returns a counter whose first id is "1".
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

func (s *SequentialIDs) NextID() string {
	return strconv.FormatInt(s.last.Add(1), 10)
}

// Advance moves the counter past id when id is numeric, so ids restored
// from a snapshot are never handed out again. Non-numeric ids are ignored.
func (s *SequentialIDs) Advance(id string) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n < 0 {
		return
	}
	for {
		cur := s.last.Load()
		if cur >= n || s.last.CompareAndSwap(cur, n) {
			return
		}
	}
}

// UUIDs generates random v4 UUID strings.
type UUIDs struct{}

func (UUIDs) NextID() string { return uuid.New().String() }

// NewIDGenerator maps a config strategy name to a generator.
// Unknown names fall back to sequential ids.
func NewIDGenerator(strategy string) IDGenerator {
	if strategy == "uuid" {
		return UUIDs{}
	}
	return NewSequentialIDs()
}
