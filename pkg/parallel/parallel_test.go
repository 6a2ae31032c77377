package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestForVisitsEveryElementOnce(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		lanes int
	}{
		{"empty", 0, 4},
		{"single", 1, 4},
		{"fewer elements than lanes", 3, 8},
		{"many", 10007, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visits := make([]atomic.Int32, tt.n)
			err := For(context.Background(), tt.n, tt.lanes, func(_, lo, hi int) error {
				for i := lo; i < hi; i++ {
					visits[i].Add(1)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i := range visits {
				if got := visits[i].Load(); got != 1 {
					t.Fatalf("element %d visited %d times, want 1", i, got)
				}
			}
		})
	}
}

func TestForLanesAreExclusive(t *testing.T) {
	const lanes = 4
	var busy [lanes]atomic.Int32
	err := For(context.Background(), 5000, lanes, func(lane, lo, hi int) error {
		if busy[lane].Add(1) != 1 {
			return errors.New("lane shared by concurrent chunks")
		}
		defer busy[lane].Add(-1)
		sum := 0
		for i := lo; i < hi; i++ {
			sum += i
		}
		_ = sum
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestForStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	err := For(context.Background(), 1000, 4, func(_, lo, _ int) error {
		if lo >= 500 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestForCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := For(ctx, 100, 2, func(_, _, _ int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestGridCoversRows(t *testing.T) {
	const w, h = 7, 5
	var covered [w * h]atomic.Bool
	err := Grid(context.Background(), w, h, 3, func(_, lo, hi int) error {
		if lo%w != 0 || hi%w != 0 {
			return errors.New("range does not align to rows")
		}
		for i := lo; i < hi; i++ {
			covered[i].Store(true)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := range covered {
		if !covered[i].Load() {
			t.Fatalf("pixel %d not covered", i)
		}
	}
}
