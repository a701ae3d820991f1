package entropy

import (
	"math"
	"testing"
)

func TestSameSeedSameSequence(t *testing.T) {
	a := NewSource(42)
	b := NewSource(42)
	for i := 0; i < 1000; i++ {
		if av, bv := a.Float64(), b.Float64(); av != bv {
			t.Fatalf("draw %d diverged: %v != %v", i, av, bv)
		}
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := NewSource(1)
	b := NewSource(2)
	same := 0
	for i := 0; i < 100; i++ {
		if a.Float64() == b.Float64() {
			same++
		}
	}
	if same == 100 {
		t.Fatal("different seeds produced identical sequences")
	}
}

func TestUniformBounds(t *testing.T) {
	src := NewSource(7)
	for i := 0; i < 1000; i++ {
		v := src.Uniform(-2.5, 3.5)
		if v < -2.5 || v >= 3.5 {
			t.Fatalf("uniform draw %v outside [-2.5, 3.5)", v)
		}
	}
}

func TestIntBetweenInclusive(t *testing.T) {
	src := NewSource(7)
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		v := src.IntBetween(-1, 1)
		if v < -1 || v > 1 {
			t.Fatalf("draw %d outside [-1, 1]", v)
		}
		seen[v] = true
	}
	for want := -1; want <= 1; want++ {
		if !seen[want] {
			t.Errorf("value %d never drawn", want)
		}
	}
}

func TestPoissonMean(t *testing.T) {
	src := NewSource(11)
	const lambda = 5.0
	const n = 20000
	sum := 0
	for i := 0; i < n; i++ {
		v := src.Poisson(lambda)
		if v < 0 {
			t.Fatalf("negative poisson draw %d", v)
		}
		sum += v
	}
	mean := float64(sum) / n
	if math.Abs(mean-lambda) > 0.2 {
		t.Errorf("poisson mean %v too far from %v", mean, lambda)
	}
}

func TestExponentialPositive(t *testing.T) {
	src := NewSource(3)
	for i := 0; i < 1000; i++ {
		if v := src.Exponential(2.0); v < 0 {
			t.Fatalf("negative exponential draw %v", v)
		}
	}
}

func TestSeedAccessor(t *testing.T) {
	if got := NewSource(99).Seed(); got != 99 {
		t.Fatalf("Seed() = %d, want 99", got)
	}
}
