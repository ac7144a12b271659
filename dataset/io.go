// Public domain.

package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/astrogo/fitsio"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/registerrier/gammapy/gti"
	"github.com/registerrier/gammapy/irf"
	"github.com/registerrier/gammapy/maps"
	"github.com/registerrier/gammapy/model"
)

// Serialization: a bundle is <prefix>_datasets.yaml listing the
// datasets and their model references, <prefix>_models.yaml with the
// model components and parameters, and one FITS file per dataset with
// the binned data.

type datasetsFile struct {
	Datasets []datasetEntry `yaml:"datasets"`
}

type datasetEntry struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Filename string   `yaml:"filename"`
	Models   []string `yaml:"models,omitempty"`
}

type modelsFile struct {
	Components []componentYAML `yaml:"components"`
}

type componentYAML struct {
	Name     string     `yaml:"name"`
	Spectral *modelYAML `yaml:"spectral"`
	Spatial  *modelYAML `yaml:"spatial,omitempty"`
}

type modelYAML struct {
	Type       string      `yaml:"type"`
	Parameters []paramYAML `yaml:"parameters"`
}

type paramYAML struct {
	Name   string  `yaml:"name"`
	Value  float64 `yaml:"value"`
	Unit   string  `yaml:"unit"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Frozen bool    `yaml:"frozen"`
	Error  float64 `yaml:"error"`
}

func typeName(d Dataset) (string, error) {
	switch d.(type) {
	case *SpectrumDatasetOnOff:
		return "SpectrumDatasetOnOff", nil
	case *SpectrumDataset:
		return "SpectrumDataset", nil
	case *FluxPointsDataset:
		return "FluxPointsDataset", nil
	}
	return "", fmt.Errorf("cannot serialize %T", d)
}

func datasetModels(d Dataset) *model.Models {
	switch t := d.(type) {
	case *SpectrumDatasetOnOff:
		return t.Models()
	case *SpectrumDataset:
		return t.Models()
	case *FluxPointsDataset:
		return t.Models()
	}
	return nil
}

// Write stores the collection under dir as a YAML index, a models file
// and one FITS file per dataset.
func (ds *Datasets) Write(dir, prefix string) error {
	var index datasetsFile
	all := &model.Models{}
	for i := 0; i < ds.Len(); i++ {
		d := ds.Get(i)
		tn, err := typeName(d)
		if err != nil {
			return err
		}
		entry := datasetEntry{
			Name:     d.Name(),
			Type:     tn,
			Filename: fmt.Sprintf("%s_data_%s.fits", prefix, d.Name()),
		}
		for _, m := range datasetModels(d).List() {
			entry.Models = append(entry.Models, m.Name())
			if _, err := all.ByName(m.Name()); err != nil {
				if err := all.Append(m); err != nil {
					return err
				}
			}
		}
		if err := writeDatasetFITS(filepath.Join(dir, entry.Filename), d); err != nil {
			return fmt.Errorf("writing %s: %w", entry.Filename, err)
		}
		index.Datasets = append(index.Datasets, entry)
	}

	buf, err := yaml.Marshal(&index)
	if err != nil {
		return err
	}
	name := filepath.Join(dir, prefix+"_datasets.yaml")
	if err := os.WriteFile(name, buf, 0644); err != nil {
		return err
	}
	return writeModels(filepath.Join(dir, prefix+"_models.yaml"), all)
}

// Read loads a bundle written by Write.
func Read(dir, prefix string) (*Datasets, *model.Models, error) {
	buf, err := os.ReadFile(filepath.Join(dir, prefix+"_datasets.yaml"))
	if err != nil {
		return nil, nil, err
	}
	var index datasetsFile
	if err := yaml.Unmarshal(buf, &index); err != nil {
		return nil, nil, err
	}
	models, err := readModels(filepath.Join(dir, prefix+"_models.yaml"))
	if err != nil {
		return nil, nil, err
	}

	ds := &Datasets{}
	for _, entry := range index.Datasets {
		var attach *model.Models
		if len(entry.Models) > 0 {
			attach = &model.Models{}
			for _, name := range entry.Models {
				m, err := models.ByName(name)
				if err != nil {
					return nil, nil, fmt.Errorf("dataset %q: %w", entry.Name, err)
				}
				if err := attach.Append(m); err != nil {
					return nil, nil, err
				}
			}
		}
		d, err := readDatasetFITS(filepath.Join(dir, entry.Filename), entry, attach)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", entry.Filename, err)
		}
		if err := ds.Append(d); err != nil {
			return nil, nil, err
		}
	}
	return ds, models, nil
}

// model YAML

func writeModels(path string, models *model.Models) error {
	var out modelsFile
	for _, m := range models.List() {
		c := componentYAML{Name: m.Name()}
		c.Spectral = &modelYAML{
			Type:       spectralTypeName(m.Spectral),
			Parameters: paramsYAML(m.Spectral.Parameters()),
		}
		if m.Spatial != nil {
			c.Spatial = &modelYAML{
				Type:       spatialTypeName(m.Spatial),
				Parameters: paramsYAML(m.Spatial.Parameters()),
			}
		}
		out.Components = append(out.Components, c)
	}
	buf, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

func readModels(path string) (*model.Models, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in modelsFile
	if err := yaml.Unmarshal(buf, &in); err != nil {
		return nil, err
	}
	models := &model.Models{}
	for _, c := range in.Components {
		spectral, err := buildSpectral(c.Spectral)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", c.Name, err)
		}
		var spatial model.SpatialModel
		if c.Spatial != nil {
			if spatial, err = buildSpatial(c.Spatial); err != nil {
				return nil, fmt.Errorf("model %q: %w", c.Name, err)
			}
		}
		m, err := model.NewSkyModel(c.Name, spectral, spatial)
		if err != nil {
			return nil, err
		}
		if err := models.Append(m); err != nil {
			return nil, err
		}
	}
	return models, nil
}

func spectralTypeName(m model.SpectralModel) string {
	switch m.(type) {
	case *model.PowerLaw:
		return "PowerLaw"
	case *model.ExpCutoffPowerLaw:
		return "ExpCutoffPowerLaw"
	case *model.Constant:
		return "Constant"
	}
	return fmt.Sprintf("%T", m)
}

func spatialTypeName(m model.SpatialModel) string {
	switch m.(type) {
	case *model.PointSource:
		return "PointSource"
	case *model.Gaussian:
		return "Gaussian"
	case *model.Disk:
		return "Disk"
	case *model.Shell:
		return "Shell"
	}
	return fmt.Sprintf("%T", m)
}

func buildSpectral(y *modelYAML) (model.SpectralModel, error) {
	if y == nil {
		return nil, fmt.Errorf("missing spectral model")
	}
	var m model.SpectralModel
	switch y.Type {
	case "PowerLaw":
		m = model.NewPowerLaw()
	case "ExpCutoffPowerLaw":
		m = model.NewExpCutoffPowerLaw()
	case "Constant":
		m = model.NewConstant(1)
	default:
		return nil, fmt.Errorf("unknown spectral model type %q", y.Type)
	}
	if err := applyParams(m.Parameters(), y.Parameters); err != nil {
		return nil, err
	}
	return m, nil
}

func buildSpatial(y *modelYAML) (model.SpatialModel, error) {
	var m model.SpatialModel
	switch y.Type {
	case "PointSource":
		m = model.NewPointSource(0, 0)
	case "Gaussian":
		m = model.NewGaussian(0, 0, 1)
	case "Disk":
		m = model.NewDisk(0, 0, 1)
	case "Shell":
		m = model.NewShell(0, 0, 1, .1)
	default:
		return nil, fmt.Errorf("unknown spatial model type %q", y.Type)
	}
	if err := applyParams(m.Parameters(), y.Parameters); err != nil {
		return nil, err
	}
	return m, nil
}

func paramsYAML(ps *model.Parameters) []paramYAML {
	out := make([]paramYAML, 0, ps.Len())
	for _, p := range ps.List() {
		out = append(out, paramYAML{
			Name:   p.Name,
			Value:  p.Value,
			Unit:   p.Unit,
			Min:    p.Min,
			Max:    p.Max,
			Frozen: p.Frozen,
			Error:  p.Error,
		})
	}
	return out
}

func applyParams(ps *model.Parameters, in []paramYAML) error {
	for _, y := range in {
		p, err := ps.ByName(y.Name)
		if err != nil {
			return err
		}
		p.Value = y.Value
		p.Unit = y.Unit
		p.Min = y.Min
		p.Max = y.Max
		p.Frozen = y.Frozen
		p.Error = y.Error
	}
	return nil
}

// FITS

func writeDatasetFITS(path string, d Dataset) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	switch t := d.(type) {
	case *SpectrumDatasetOnOff:
		if err := writeSpectrumHDUs(f, &t.SpectrumDataset); err != nil {
			return err
		}
		if err := writeImage(f, "COUNTS_OFF", []int{len(t.countsOff.Data)}, t.countsOff.Data); err != nil {
			return err
		}
		if err := writeImage(f, "ACCEPTANCE", []int{len(t.acceptance)}, t.acceptance); err != nil {
			return err
		}
		return writeImage(f, "ACCEPTANCE_OFF", []int{len(t.acceptanceOff)}, t.acceptanceOff)
	case *SpectrumDataset:
		return writeSpectrumHDUs(f, t)
	case *FluxPointsDataset:
		return writeFluxPointsHDUs(f, t)
	}
	return fmt.Errorf("cannot serialize %T", d)
}

func readDatasetFITS(path string, entry datasetEntry, models *model.Models) (Dataset, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch entry.Type {
	case "SpectrumDataset":
		p, err := readSpectrumParams(f, entry.Name)
		if err != nil {
			return nil, err
		}
		p.Models = models
		return NewSpectrumDataset(*p)
	case "SpectrumDatasetOnOff":
		p, err := readSpectrumParams(f, entry.Name)
		if err != nil {
			return nil, err
		}
		p.Models = models
		op := SpectrumDatasetOnOffParams{SpectrumDatasetParams: *p}
		off, _, err := readImage(f, "COUNTS_OFF")
		if err != nil {
			return nil, err
		}
		if off == nil {
			return nil, fmt.Errorf("missing COUNTS_OFF")
		}
		if op.CountsOff, err = maps.NDMapFromData(p.Counts.Geom(), off); err != nil {
			return nil, err
		}
		if op.Acceptance, _, err = readImage(f, "ACCEPTANCE"); err != nil {
			return nil, err
		}
		if op.AcceptanceOff, _, err = readImage(f, "ACCEPTANCE_OFF"); err != nil {
			return nil, err
		}
		return NewSpectrumDatasetOnOff(op)
	case "FluxPointsDataset":
		return readFluxPoints(f, entry.Name, models)
	}
	return nil, fmt.Errorf("unknown dataset type %q", entry.Type)
}

func writeSpectrumHDUs(f *fitsio.File, d *SpectrumDataset) error {
	cards := []fitsio.Card{
		{Name: "AXNAME", Value: d.geom.Axis().Name()},
		{Name: "AXINTERP", Value: d.geom.Axis().Interp()},
	}
	if d.HasLivetime() {
		cards = append(cards, fitsio.Card{Name: "LIVETIME", Value: d.livetime, Comment: "s"})
	}
	if err := writeImage(f, "COUNTS", []int{len(d.counts.Data)}, d.counts.Data, cards...); err != nil {
		return err
	}
	edges := d.geom.Axis().Edges()
	if err := writeImage(f, "EBOUNDS", []int{len(edges)}, edges); err != nil {
		return err
	}
	if d.background != nil {
		if err := writeImage(f, "BACKGROUND", []int{len(d.background.Data)}, d.background.Data); err != nil {
			return err
		}
	}
	if d.aeff != nil {
		tr := d.aeff.Axis()
		tc := []fitsio.Card{
			{Name: "AXNAME", Value: tr.Name()},
			{Name: "AXINTERP", Value: tr.Interp()},
		}
		te := tr.Edges()
		if err := writeImage(f, "EBOUNDS_TRUE", []int{len(te)}, te, tc...); err != nil {
			return err
		}
		if err := writeImage(f, "AEFF", []int{len(d.aeff.Data())}, d.aeff.Data()); err != nil {
			return err
		}
	}
	if d.edisp != nil {
		nTrue := d.edisp.AxisTrue().NBin()
		nReco := d.edisp.AxisReco().NBin()
		if err := writeImage(f, "EDISP", []int{nReco, nTrue}, rawDense(d.edisp.PDF())); err != nil {
			return err
		}
	}
	if d.maskSafe != nil {
		if err := writeImage(f, "MASK_SAFE", []int{len(d.maskSafe)}, maskToFloat(d.maskSafe)); err != nil {
			return err
		}
	}
	if d.gtis != nil {
		n := d.gtis.Len()
		data := make([]float64, 2*n)
		for i := 0; i < n; i++ {
			data[i], data[n+i] = d.gtis.Interval(i)
		}
		if err := writeImage(f, "GTI", []int{n, 2}, data); err != nil {
			return err
		}
	}
	return nil
}

func readSpectrumParams(f *fitsio.File, name string) (*SpectrumDatasetParams, error) {
	counts, chdr, err := readImage(f, "COUNTS")
	if err != nil {
		return nil, err
	}
	if counts == nil {
		return nil, fmt.Errorf("missing COUNTS")
	}
	edges, _, err := readImage(f, "EBOUNDS")
	if err != nil {
		return nil, err
	}
	if edges == nil {
		return nil, fmt.Errorf("missing EBOUNDS")
	}
	axis, err := maps.NewAxis(cardString(chdr, "AXNAME", "energy"),
		edges, cardString(chdr, "AXINTERP", maps.InterpLog))
	if err != nil {
		return nil, err
	}
	geom := maps.NewGeom(axis)
	p := &SpectrumDatasetParams{Name: name, Livetime: math.NaN()}
	if p.Counts, err = maps.NDMapFromData(geom, counts); err != nil {
		return nil, err
	}
	if lt, ok := cardFloat(chdr, "LIVETIME"); ok {
		p.Livetime = lt
	}

	bkg, _, err := readImage(f, "BACKGROUND")
	if err != nil {
		return nil, err
	}
	if bkg != nil {
		if p.Background, err = maps.NDMapFromData(geom, bkg); err != nil {
			return nil, err
		}
	}

	axisTrue := axis
	te, thdr, err := readImage(f, "EBOUNDS_TRUE")
	if err != nil {
		return nil, err
	}
	if te != nil {
		axisTrue, err = maps.NewAxis(cardString(thdr, "AXNAME", "energy_true"),
			te, cardString(thdr, "AXINTERP", maps.InterpLog))
		if err != nil {
			return nil, err
		}
	}

	aeff, _, err := readImage(f, "AEFF")
	if err != nil {
		return nil, err
	}
	if aeff != nil {
		if p.Aeff, err = irf.NewEffectiveAreaTable(axisTrue, aeff); err != nil {
			return nil, err
		}
	}

	edisp, _, err := readImage(f, "EDISP")
	if err != nil {
		return nil, err
	}
	if edisp != nil {
		pdf := mat.NewDense(axisTrue.NBin(), axis.NBin(), edisp)
		if p.Edisp, err = irf.NewEDispKernel(axisTrue, axis, pdf); err != nil {
			return nil, err
		}
	}

	mask, _, err := readImage(f, "MASK_SAFE")
	if err != nil {
		return nil, err
	}
	if mask != nil {
		p.MaskSafe = floatToMask(mask)
	}

	g, _, err := readImage(f, "GTI")
	if err != nil {
		return nil, err
	}
	if g != nil {
		n := len(g) / 2
		if p.GTI, err = gti.New(g[:n], g[n:]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func writeFluxPointsHDUs(f *fitsio.File, d *FluxPointsDataset) error {
	if err := writeImage(f, "ENERGY", []int{len(d.energy)}, d.energy); err != nil {
		return err
	}
	if err := writeImage(f, "DNDE", []int{len(d.dnde)}, d.dnde); err != nil {
		return err
	}
	if err := writeImage(f, "DNDE_ERR", []int{len(d.dndeErr)}, d.dndeErr); err != nil {
		return err
	}
	if d.maskSafe != nil {
		return writeImage(f, "MASK_SAFE", []int{len(d.maskSafe)}, maskToFloat(d.maskSafe))
	}
	return nil
}

func readFluxPoints(f *fitsio.File, name string, models *model.Models) (*FluxPointsDataset, error) {
	p := FluxPointsDatasetParams{Name: name, Models: models}
	var err error
	if p.Energy, _, err = readImage(f, "ENERGY"); err != nil {
		return nil, err
	}
	if p.Dnde, _, err = readImage(f, "DNDE"); err != nil {
		return nil, err
	}
	if p.DndeErr, _, err = readImage(f, "DNDE_ERR"); err != nil {
		return nil, err
	}
	mask, _, err := readImage(f, "MASK_SAFE")
	if err != nil {
		return nil, err
	}
	if mask != nil {
		p.MaskSafe = floatToMask(mask)
	}
	return NewFluxPointsDataset(p)
}

// writeImage appends a float64 image HDU with an EXTNAME.
func writeImage(f *fitsio.File, name string, dims []int, data []float64, cards ...fitsio.Card) error {
	im := fitsio.NewImage(-64, dims)
	defer im.Close()
	all := append([]fitsio.Card{{Name: "EXTNAME", Value: name}}, cards...)
	if err := im.Header().Append(all...); err != nil {
		return err
	}
	if err := im.Write(data); err != nil {
		return err
	}
	return f.Write(im)
}

// readImage returns the data of the image HDU with the given EXTNAME,
// or nil when the HDU is absent.
func readImage(f *fitsio.File, name string) ([]float64, *fitsio.Header, error) {
	for _, hdu := range f.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok || hdu.Name() != name {
			continue
		}
		// fitsio.Image.Read never allocates: it calls SetLen on the
		// caller's slice, so the buffer must be pre-sized from the header.
		n := 1
		for _, dim := range hdu.Header().Axes() {
			n *= dim
		}
		data := make([]float64, n)
		if err := img.Read(&data); err != nil {
			return nil, nil, err
		}
		return data, hdu.Header(), nil
	}
	return nil, nil, nil
}

func cardFloat(hdr *fitsio.Header, name string) (float64, bool) {
	c := hdr.Get(name)
	if c == nil {
		return 0, false
	}
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func cardString(hdr *fitsio.Header, name, def string) string {
	c := hdr.Get(name)
	if c == nil {
		return def
	}
	if s, ok := c.Value.(string); ok {
		return s
	}
	return def
}

func rawDense(m *mat.Dense) []float64 { return m.RawMatrix().Data }

func maskToFloat(mask []bool) []float64 {
	out := make([]float64, len(mask))
	for i, ok := range mask {
		if ok {
			out[i] = 1
		}
	}
	return out
}

func floatToMask(data []float64) []bool {
	out := make([]bool, len(data))
	for i, v := range data {
		out[i] = v != 0
	}
	return out
}
