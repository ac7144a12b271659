// Public domain.

// Package dataset implements counts datasets, their Poisson fit
// statistics, and the Datasets collection with joint likelihood
// evaluation, stacking and serialization.
package dataset

import (
	"fmt"
	"strings"

	mstats "github.com/montanaflynn/stats"

	"github.com/registerrier/gammapy/model"
)

// Dataset is a binned counts dataset.  StatArray returns one fit
// statistic value per bin; StatSum restricts the sum to Mask.  Stack
// merges another dataset of the same kind in place and leaves the
// receiver untouched on error.
type Dataset interface {
	Name() string
	DataShape() []int
	StatArray() []float64
	StatSum() float64
	Mask() []bool
	Parameters() *model.Parameters
	Copy(name string) Dataset
	Stack(other Dataset) error
	Info() InfoRow
}

// maskedSum sums stat restricted to mask.  A nil mask selects all
// bins.  Accumulation is plain float64, which is the extended
// precision the per-bin values already carry.
func maskedSum(stat []float64, mask []bool) float64 {
	var s float64
	for i, v := range stat {
		if mask == nil || mask[i] {
			s += v
		}
	}
	return s
}

var nameSeq int

// makeName returns name, or generates a process-unique one.
func makeName(name string) string {
	if name != "" {
		return name
	}
	nameSeq++
	return fmt.Sprintf("dataset-%d", nameSeq)
}

// Datasets is an ordered dataset collection with unique names.
type Datasets struct {
	list []Dataset
}

// NewDatasets builds a collection, rejecting duplicate names.
func NewDatasets(ds ...Dataset) (*Datasets, error) {
	out := &Datasets{}
	for _, d := range ds {
		if err := out.Append(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (ds *Datasets) Len() int { return len(ds.list) }

// Names returns the dataset names in order.
func (ds *Datasets) Names() []string {
	names := make([]string, len(ds.list))
	for i, d := range ds.list {
		names[i] = d.Name()
	}
	return names
}

// Get returns the dataset at position i.
func (ds *Datasets) Get(i int) Dataset { return ds.list[i] }

// ByName returns the dataset with the given name.
func (ds *Datasets) ByName(name string) (Dataset, error) {
	for _, d := range ds.list {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no dataset named %q", name)
}

func (ds *Datasets) checkName(name string) error {
	for _, d := range ds.list {
		if d.Name() == name {
			return fmt.Errorf("dataset names must be unique, got %q twice", name)
		}
	}
	return nil
}

// Append adds a dataset at the end.
func (ds *Datasets) Append(d Dataset) error {
	if err := ds.checkName(d.Name()); err != nil {
		return err
	}
	ds.list = append(ds.list, d)
	return nil
}

// Insert adds a dataset at position i.
func (ds *Datasets) Insert(i int, d Dataset) error {
	if i < 0 || i > len(ds.list) {
		return fmt.Errorf("insert index %d out of range", i)
	}
	if err := ds.checkName(d.Name()); err != nil {
		return err
	}
	ds.list = append(ds.list, nil)
	copy(ds.list[i+1:], ds.list[i:])
	ds.list[i] = d
	return nil
}

// Set replaces the dataset at position i.
func (ds *Datasets) Set(i int, d Dataset) error {
	if i < 0 || i >= len(ds.list) {
		return fmt.Errorf("index %d out of range", i)
	}
	for j, o := range ds.list {
		if j != i && o.Name() == d.Name() {
			return fmt.Errorf("dataset names must be unique, got %q twice", d.Name())
		}
	}
	ds.list[i] = d
	return nil
}

// Remove deletes the dataset with the given name.
func (ds *Datasets) Remove(name string) error {
	for i, d := range ds.list {
		if d.Name() == name {
			ds.list = append(ds.list[:i], ds.list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no dataset named %q", name)
}

// StatSum returns the joint fit statistic over all datasets.
func (ds *Datasets) StatSum() float64 {
	var s float64
	for _, d := range ds.list {
		s += d.StatSum()
	}
	return s
}

// Parameters returns the unique union of all dataset parameters,
// preserving order, so shared model parameters appear once in a joint
// fit.
func (ds *Datasets) Parameters() *model.Parameters {
	sets := make([]*model.Parameters, len(ds.list))
	for i, d := range ds.list {
		sets[i] = d.Parameters()
	}
	return model.Merge(sets...)
}

// AllSameType reports whether all datasets are of one concrete kind.
// An empty collection has no type and reports false.
func (ds *Datasets) AllSameType() bool {
	if len(ds.list) == 0 {
		return false
	}
	for _, d := range ds.list[1:] {
		if fmt.Sprintf("%T", d) != fmt.Sprintf("%T", ds.list[0]) {
			return false
		}
	}
	return true
}

// AllSameShape reports whether all datasets share a data shape, false
// for an empty collection.
func (ds *Datasets) AllSameShape() bool {
	if len(ds.list) == 0 {
		return false
	}
	eq := func(a, b []int) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	for _, d := range ds.list[1:] {
		if !eq(d.DataShape(), ds.list[0].DataShape()) {
			return false
		}
	}
	return true
}

// StackReduce folds the collection into a single stacked dataset via
// repeated in-place stacking of a copy of the first element.  All
// datasets must be of the same kind.
func (ds *Datasets) StackReduce(name string) (Dataset, error) {
	if len(ds.list) == 0 {
		return nil, fmt.Errorf("cannot stack an empty collection")
	}
	if !ds.AllSameType() {
		return nil, fmt.Errorf("stacking impossible: datasets are not of a unique type")
	}
	stacked := ds.list[0].Copy(makeName(name))
	for _, d := range ds.list[1:] {
		if err := stacked.Stack(d); err != nil {
			return nil, err
		}
	}
	return stacked, nil
}

// InfoRow is one summary line of an info table.  NOff and Alpha are
// NaN for datasets without an off measurement.
type InfoRow struct {
	Name         string
	NOn          float64
	NOff         float64
	Alpha        float64
	Background   float64
	Excess       float64
	Significance float64
	Livetime     float64 // s
}

// InfoTable returns one summary row per dataset.  With cumulative set,
// each row describes the stack of all datasets up to that point.
func (ds *Datasets) InfoTable(cumulative bool) ([]InfoRow, error) {
	if len(ds.list) == 0 {
		return nil, nil
	}
	if !ds.AllSameType() {
		return nil, fmt.Errorf("info table not supported for mixed dataset types")
	}
	if !cumulative {
		rows := make([]InfoRow, len(ds.list))
		for i, d := range ds.list {
			rows[i] = d.Info()
		}
		return rows, nil
	}
	stacked := ds.list[0].Copy("stacked")
	rows := []InfoRow{stacked.Info()}
	for _, d := range ds.list[1:] {
		if err := stacked.Stack(d); err != nil {
			return nil, err
		}
		row := stacked.Info()
		rows = append(rows, row)
	}
	return rows, nil
}

// InfoSummary aggregates an info table: totals for counts and
// livetime, mean and median significance.
type InfoSummary struct {
	NOn, Livetime      float64
	MeanSig, MedianSig float64
	MaxSig             float64
	Rows               int
}

// Summarize reduces info table rows to collection-level aggregates.
func Summarize(rows []InfoRow) (InfoSummary, error) {
	var s InfoSummary
	s.Rows = len(rows)
	if len(rows) == 0 {
		return s, nil
	}
	non := make([]float64, len(rows))
	lt := make([]float64, len(rows))
	sig := make([]float64, len(rows))
	for i, r := range rows {
		non[i] = r.NOn
		lt[i] = r.Livetime
		sig[i] = r.Significance
	}
	var err error
	if s.NOn, err = mstats.Sum(non); err != nil {
		return s, err
	}
	if s.Livetime, err = mstats.Sum(lt); err != nil {
		return s, err
	}
	if s.MeanSig, err = mstats.Mean(sig); err != nil {
		return s, err
	}
	if s.MedianSig, err = mstats.Median(sig); err != nil {
		return s, err
	}
	if s.MaxSig, err = mstats.Max(sig); err != nil {
		return s, err
	}
	return s, nil
}

func (ds *Datasets) String() string {
	var b strings.Builder
	b.WriteString("Datasets\n--------\n")
	for i, d := range ds.list {
		fmt.Fprintf(&b, "idx=%d, type=%T, name=%q\n", i, d, d.Name())
	}
	return b.String()
}
