// Public domain.

// Package gti implements good time interval bookkeeping for stacked
// observations.
package gti

import (
	"fmt"
	"sort"
)

// GTI is a set of good time intervals, stored sorted and merged.
// Times are seconds relative to a common reference.
type GTI struct {
	start []float64
	stop  []float64
}

// New builds a GTI from start/stop slices.  Intervals may be given in
// any order; overlapping or touching intervals are merged.
func New(start, stop []float64) (*GTI, error) {
	if len(start) != len(stop) {
		return nil, fmt.Errorf("gti: %d starts, %d stops", len(start), len(stop))
	}
	type iv struct{ a, b float64 }
	ivs := make([]iv, len(start))
	for i := range start {
		if !(stop[i] > start[i]) {
			return nil, fmt.Errorf("gti: invalid interval [%g, %g]", start[i], stop[i])
		}
		ivs[i] = iv{start[i], stop[i]}
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].a < ivs[j].a })

	g := &GTI{}
	for _, v := range ivs {
		n := len(g.start)
		if n > 0 && v.a <= g.stop[n-1] {
			if v.b > g.stop[n-1] {
				g.stop[n-1] = v.b
			}
			continue
		}
		g.start = append(g.start, v.a)
		g.stop = append(g.stop, v.b)
	}
	return g, nil
}

// Len returns the number of merged intervals.
func (g *GTI) Len() int { return len(g.start) }

// Interval returns merged interval i.
func (g *GTI) Interval(i int) (start, stop float64) { return g.start[i], g.stop[i] }

// Sum returns the total good time in seconds.
func (g *GTI) Sum() float64 {
	var s float64
	for i := range g.start {
		s += g.stop[i] - g.start[i]
	}
	return s
}

// Copy returns a deep copy.
func (g *GTI) Copy() *GTI {
	c := &GTI{
		start: make([]float64, len(g.start)),
		stop:  make([]float64, len(g.stop)),
	}
	copy(c.start, g.start)
	copy(c.stop, g.stop)
	return c
}

// Stack merges other into g.
func (g *GTI) Stack(other *GTI) {
	start := append(g.start, other.start...)
	stop := append(g.stop, other.stop...)
	merged, err := New(start, stop)
	if err != nil {
		// inputs were valid GTIs, union cannot fail
		panic(err)
	}
	*g = *merged
}
