// Public domain.

package model

import (
	"fmt"
	"strings"
)

// SkyModel combines a spectral model with an optional spatial profile
// under a unique name.
type SkyModel struct {
	name     string
	Spectral SpectralModel
	Spatial  SpatialModel
}

// NewSkyModel builds a named sky model.  A nil spatial model means the
// source is treated as unresolved.
func NewSkyModel(name string, spectral SpectralModel, spatial SpatialModel) (*SkyModel, error) {
	if name == "" {
		return nil, fmt.Errorf("sky model needs a name")
	}
	if spectral == nil {
		return nil, fmt.Errorf("sky model %q needs a spectral model", name)
	}
	return &SkyModel{name: name, Spectral: spectral, Spatial: spatial}, nil
}

func (m *SkyModel) Name() string { return m.name }

// Parameters returns the spectral parameters followed by the spatial
// ones.
func (m *SkyModel) Parameters() *Parameters {
	if m.Spatial == nil {
		return m.Spectral.Parameters()
	}
	return Merge(m.Spectral.Parameters(), m.Spatial.Parameters())
}

// Models is a list of sky models with unique names.
type Models struct {
	list []*SkyModel
}

// NewModels validates name uniqueness.
func NewModels(ms ...*SkyModel) (*Models, error) {
	out := &Models{}
	for _, m := range ms {
		if err := out.Append(m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Append adds a model, rejecting duplicate names.
func (ms *Models) Append(m *SkyModel) error {
	for _, o := range ms.list {
		if o.Name() == m.Name() {
			return fmt.Errorf("model names must be unique, got %q twice", m.Name())
		}
	}
	ms.list = append(ms.list, m)
	return nil
}

func (ms *Models) Len() int {
	if ms == nil {
		return 0
	}
	return len(ms.list)
}

// List returns the underlying slice.
func (ms *Models) List() []*SkyModel {
	if ms == nil {
		return nil
	}
	return ms.list
}

// ByName returns the model with the given name.
func (ms *Models) ByName(name string) (*SkyModel, error) {
	for _, m := range ms.List() {
		if m.Name() == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no model named %q", name)
}

// Parameters returns the unique union over all models.
func (ms *Models) Parameters() *Parameters {
	sets := make([]*Parameters, 0, ms.Len())
	for _, m := range ms.List() {
		sets = append(sets, m.Parameters())
	}
	return Merge(sets...)
}

func (ms *Models) String() string {
	var b strings.Builder
	b.WriteString("Models\n------\n")
	for i, m := range ms.List() {
		fmt.Fprintf(&b, "%d: %s (%T)\n", i, m.Name(), m.Spectral)
	}
	return b.String()
}
