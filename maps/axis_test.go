// Public domain.

package maps_test

import (
	"math"
	"testing"

	"github.com/registerrier/gammapy/maps"
)

func TestEnergyBounds(t *testing.T) {
	ax, err := maps.EnergyBounds("energy", .1, 10, 4)
	if err != nil {
		t.Fatal(err)
	}
	if ax.NBin() != 4 {
		t.Fatal("expected 4 bins, got", ax.NBin())
	}
	edges := ax.Edges()
	if edges[0] != .1 || edges[4] != 10 {
		t.Fatal("bad outer edges", edges)
	}
	// log spacing: constant edge ratio
	for i := 1; i < len(edges); i++ {
		if r := edges[i] / edges[i-1]; math.Abs(r-math.Sqrt(math.Sqrt(100))) > 1e-12 {
			t.Fatal("bad edge ratio", r)
		}
	}
	// geometric bin centers
	if c := ax.Center(0); math.Abs(c-math.Sqrt(edges[0]*edges[1])) > 1e-15 {
		t.Fatal("bad center", c)
	}
}

func TestNewAxisValidation(t *testing.T) {
	if _, err := maps.NewAxis("e", []float64{1}, maps.InterpLog); err == nil {
		t.Fatal("expected error for single edge")
	}
	if _, err := maps.NewAxis("e", []float64{1, 1}, maps.InterpLog); err == nil {
		t.Fatal("expected error for non-increasing edges")
	}
	if _, err := maps.NewAxis("e", []float64{-1, 1}, maps.InterpLog); err == nil {
		t.Fatal("expected error for log axis with negative edge")
	}
	if _, err := maps.NewAxis("e", []float64{1, 2}, "cubic"); err == nil {
		t.Fatal("expected error for unknown interp")
	}
}

func TestEnergyMask(t *testing.T) {
	ax, err := maps.EnergyBounds("energy", .1, 10, 4)
	if err != nil {
		t.Fatal(err)
	}
	// only bins fully inside the range are selected
	mask := ax.EnergyMask(.3, 6)
	want := []bool{false, true, true, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Fatalf("mask %v, want %v", mask, want)
		}
	}
	// NaN leaves a boundary open
	mask = ax.EnergyMask(.3, math.NaN())
	want = []bool{false, true, true, true}
	for i := range want {
		if mask[i] != want[i] {
			t.Fatalf("open mask %v, want %v", mask, want)
		}
	}
}

func TestAxisEqual(t *testing.T) {
	a, _ := maps.EnergyBounds("energy", .1, 10, 4)
	b, _ := maps.EnergyBounds("energy", .1, 10, 4)
	c, _ := maps.EnergyBounds("energy", .1, 10, 5)
	if !a.Equal(b) {
		t.Fatal("equal axes not equal")
	}
	if a.Equal(c) {
		t.Fatal("different binning compared equal")
	}
}
