// Public domain.

package gti_test

import (
	"testing"

	"github.com/registerrier/gammapy/gti"
)

func TestMerge(t *testing.T) {
	g, err := gti.New(
		[]float64{5, 6, 1, 2, 14},
		[]float64{8, 7, 3, 4, 15})
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]float64{{1, 4}, {5, 8}, {14, 15}}
	if g.Len() != len(want) {
		t.Fatal("intervals", g.Len())
	}
	for i, w := range want {
		a, b := g.Interval(i)
		if a != w[0] || b != w[1] {
			t.Fatalf("interval %d: [%g, %g], want %v", i, a, b, w)
		}
	}
	if g.Sum() != 3+3+1 {
		t.Fatal("sum", g.Sum())
	}
}

func TestInvalid(t *testing.T) {
	if _, err := gti.New([]float64{1}, []float64{2, 3}); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if _, err := gti.New([]float64{2}, []float64{1}); err == nil {
		t.Fatal("expected error for stop before start")
	}
}

func TestStack(t *testing.T) {
	a, _ := gti.New([]float64{0}, []float64{10})
	b, _ := gti.New([]float64{5, 20}, []float64{15, 30})
	a.Stack(b)
	if a.Len() != 2 {
		t.Fatal("intervals after stack", a.Len())
	}
	if s, e := a.Interval(0); s != 0 || e != 15 {
		t.Fatal("bad merged interval", s, e)
	}
	if a.Sum() != 25 {
		t.Fatal("sum after stack", a.Sum())
	}
}
