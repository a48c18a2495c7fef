// Package billno generates candidate bill numbers.
//
// Generators only propose numbers. Uniqueness is verified by the caller
// against the bill store at insert time, with a bounded number of retries.
package billno

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/stockledger/id"
)

// Generator proposes bill numbers.
type Generator interface {
	Next() string
}

// Func adapts a plain function to Generator.
type Func func() string

// Next implements Generator.
func (f Func) Next() string { return f() }

// TypeID generates "bill_<uuidv7>" numbers. The UUIDv7 payload carries a
// millisecond timestamp followed by random bits, so numbers sort by time.
type TypeID struct{}

// Next implements Generator.
func (TypeID) Next() string { return id.NewBillID().String() }

// Timestamped generates "<Prefix>-<unix ms>-<8 hex chars>" numbers.
type Timestamped struct {
	Prefix string
	Clock  func() time.Time
}

// NewTimestamped returns a Timestamped generator with the "BILL" prefix.
func NewTimestamped() *Timestamped {
	return &Timestamped{Prefix: "BILL", Clock: time.Now}
}

// Next implements Generator.
func (g *Timestamped) Next() string {
	now := time.Now
	if g.Clock != nil {
		now = g.Clock
	}
	prefix := g.Prefix
	if prefix == "" {
		prefix = "BILL"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, now().UnixMilli(), suffix)
}

// Sequence replays a fixed list of numbers and then repeats the last one.
// It is meant for tests that need deterministic collisions.
type Sequence struct {
	numbers []string
	pos     int
}

// NewSequence returns a Sequence over numbers.
func NewSequence(numbers ...string) *Sequence {
	return &Sequence{numbers: numbers}
}

// Next implements Generator. It is not safe for concurrent use.
func (s *Sequence) Next() string {
	if len(s.numbers) == 0 {
		return ""
	}
	if s.pos >= len(s.numbers) {
		return s.numbers[len(s.numbers)-1]
	}
	n := s.numbers[s.pos]
	s.pos++
	return n
}
