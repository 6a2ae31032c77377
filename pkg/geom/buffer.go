package geom

import (
	"errors"
	"fmt"

	"github.com/taigrr/prism/pkg/log"
)

var logger = log.New("geom")

// ErrCapacity is returned when scene data exceeds a buffer's capacity under
// the Fail policy.
var ErrCapacity = errors.New("geom: primitive count exceeds buffer capacity")

// Overflow selects what Set does with more items than the buffer holds.
type Overflow int

const (
	// OverflowFail rejects the update with ErrCapacity.
	OverflowFail Overflow = iota
	// OverflowClamp keeps the first Cap() items and logs a warning.
	OverflowClamp
)

// String returns the policy name used in configuration files.
func (o Overflow) String() string {
	if o == OverflowClamp {
		return "clamp"
	}
	return "fail"
}

// ParseOverflow maps "fail" or "clamp" to a policy.
func ParseOverflow(s string) (Overflow, error) {
	switch s {
	case "fail", "":
		return OverflowFail, nil
	case "clamp":
		return OverflowClamp, nil
	}
	return OverflowFail, fmt.Errorf("geom: unknown overflow policy %q", s)
}

// Buffer is a fixed-capacity primitive array with a live count. Storage is
// allocated once; Set overwrites the contents wholesale.
type Buffer[T any] struct {
	name   string
	items  []T
	n      int
	policy Overflow
}

// NewBuffer allocates a buffer holding at most capacity items.
func NewBuffer[T any](name string, capacity int, policy Overflow) Buffer[T] {
	return Buffer[T]{name: name, items: make([]T, max(capacity, 0)), policy: policy}
}

// Set replaces the live contents with items.
func (b *Buffer[T]) Set(items []T) error {
	n := len(items)
	if n > len(b.items) {
		if b.policy == OverflowFail {
			return fmt.Errorf("%s: %d items, capacity %d: %w", b.name, n, len(b.items), ErrCapacity)
		}
		logger.Warningf("%s: clamping %d items to capacity %d", b.name, n, len(b.items))
		n = len(b.items)
	}
	copy(b.items, items[:n])
	b.n = n
	return nil
}

// Len returns the live count.
func (b *Buffer[T]) Len() int { return b.n }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// At returns live item i.
func (b *Buffer[T]) At(i int) *T { return &b.items[i] }

// Items returns the live items. The slice aliases the buffer storage.
func (b *Buffer[T]) Items() []T { return b.items[:b.n] }

// Policy returns the overflow policy.
func (b *Buffer[T]) Policy() Overflow { return b.policy }
