package benchmarks

import (
	"strconv"
	"testing"

	"github.com/parsekit/parsekit/parse/conversion"
)

func newDecodedNumbers(n int) []any {
	items := make([]any, n)
	for i := range items {
		items[i] = strconv.Itoa(i)
	}
	return items
}

func BenchmarkListViewFirstElement(b *testing.B) {
	items := newDecodedNumbers(10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		list, err := conversion.To[conversion.List[int]](items)
		if err != nil {
			b.Fatalf("To error: %v", err)
		}
		if _, err := list.At(0); err != nil {
			b.Fatalf("At error: %v", err)
		}
	}
}

func BenchmarkListViewMaterialize(b *testing.B) {
	items := newDecodedNumbers(10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		list, err := conversion.To[conversion.List[int]](items)
		if err != nil {
			b.Fatalf("To error: %v", err)
		}
		if _, err := list.Slice(); err != nil {
			b.Fatalf("Slice error: %v", err)
		}
	}
}

func BenchmarkToIntFromString(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := conversion.To[int]("1337"); err != nil {
			b.Fatalf("To error: %v", err)
		}
	}
}

func BenchmarkToIdentity(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := conversion.To[int](1337); err != nil {
			b.Fatalf("To error: %v", err)
		}
	}
}
