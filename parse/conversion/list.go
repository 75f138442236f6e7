package conversion

import (
	"fmt"
	"iter"
)

type sequenceShape interface {
	wrapSequence(src Sequence) any
}

// List is a read-only view over a decoded sequence that coerces each element
// to E when it is read. Nothing is converted up front, so building a view is
// O(1) and a bad element only fails when it is accessed. Obtain one with
// To[List[E]] or As[List[E]].
type List[E any] struct {
	src Sequence
}

var _ Sequence = List[any]{}

func (List[E]) wrapSequence(src Sequence) any {
	return List[E]{src: src}
}

// Len returns the number of elements in the underlying sequence.
func (l List[E]) Len() int {
	if l.src == nil {
		return 0
	}
	return l.src.Len()
}

// Index returns the raw, unconverted element at i. It panics if i is out of range.
func (l List[E]) Index(i int) any {
	return l.src.Index(i)
}

// At returns element i coerced to E.
func (l List[E]) At(i int) (E, error) {
	if n := l.Len(); i < 0 || i >= n {
		var zero E
		return zero, fmt.Errorf("%w: %d with length %d", ErrIndexOutOfRange, i, n)
	}
	return To[E](l.src.Index(i))
}

// All yields every element in order together with its conversion error.
func (l List[E]) All() iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		for i := 0; i < l.Len(); i++ {
			if !yield(To[E](l.src.Index(i))) {
				return
			}
		}
	}
}

// Slice materializes the view, stopping at the first element that fails.
func (l List[E]) Slice() ([]E, error) {
	out := make([]E, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		v, err := To[E](l.src.Index(i))
		if err != nil {
			return nil, fmt.Errorf("conversion: element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
