// Public domain.

// Command gammafit fits spectral models to a serialized bundle of
// counts datasets.
//
// Input is a bundle directory as written by gammasim or by the dataset
// package: <prefix>_datasets.yaml, <prefix>_models.yaml and one FITS
// file per dataset.  Output is a fit result with parameter values and
// errors, optionally preceded by an observation info table and
// followed by a statistic profile.
//
// Run gammafit -h for the configuration file quick reference.
package main

import "github.com/registerrier/gammapy/internal/gfit"

func main() {
	gfit.Main()
}
