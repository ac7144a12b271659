// Public domain.

// Package gfit is the program behind the gammafit command.  It loads a
// serialized dataset bundle, runs a joint fit and prints the results.
package gfit

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/soniakeys/exit"

	"github.com/registerrier/gammapy/dataset"
	"github.com/registerrier/gammapy/estimators"
	"github.com/registerrier/gammapy/fit"
)

const versionString = "gammafit version 0.1 Go source."
const copyrightString = "Public domain."

func Main() {
	defer exit.Handler()

	cl := parseCommandLine()
	cfg := readConfig(cl)

	ds, models, err := dataset.Read(cl.dir, cl.prefix)
	if err != nil {
		exit.Log(err)
	}
	if ds.Len() == 0 {
		exit.Log("empty dataset bundle")
	}
	fmt.Println(ds)
	fmt.Println(models)

	if cfg.stacked {
		stacked, err := ds.StackReduce("stacked")
		if err != nil {
			exit.Log(err)
		}
		ds, err = dataset.NewDatasets(stacked)
		if err != nil {
			exit.Log(err)
		}
	}

	if cfg.info {
		rows, err := ds.InfoTable(cfg.cumulative)
		if err != nil {
			exit.Log(err)
		}
		printInfoTable(rows)
	}

	if cfg.excess {
		rows, err := estimators.NewExcessProfileEstimator().Run(ds)
		if err != nil {
			exit.Log(err)
		}
		printExcessTable(rows)
	}

	f := fit.New(ds)
	f.Backend = cfg.backend
	res, err := f.Run()
	if err != nil {
		exit.Log(err)
	}
	fmt.Println(res)
	fmt.Println(res.Parameters.Table())

	if cfg.profile != "" {
		runProfile(f, res, cfg)
	}
}

func runProfile(f *fit.Fit, res *fit.Result, cfg *config) {
	p, err := res.Parameters.ByName(cfg.profile)
	if err != nil {
		exit.Log(err)
	}
	if p.Error == 0 || math.IsNaN(p.Error) {
		exit.Log(fmt.Sprintf("no error estimate for %s, cannot build a scan range", p.Name))
	}
	values := make([]float64, cfg.profileBins)
	for i := range values {
		w := -3 + 6*float64(i)/float64(cfg.profileBins-1)
		values[i] = p.Value + w*p.Error
	}
	stats, err := f.StatProfile(p, values, cfg.reoptimize)
	if err != nil {
		exit.Log(err)
	}
	fmt.Printf("stat profile %s\n", p.Name)
	for i, v := range values {
		fmt.Printf("%14.6e %12.3f\n", v, stats[i]-res.TotalStat)
	}
}

func printExcessTable(rows []estimators.ProfileRow) {
	fmt.Printf("%-12s %8s %8s %10s %10s %6s %8s %8s %8s\n",
		"name", "n_on", "bkg", "excess", "sig", "err", "errn", "errp", "ul")
	for _, r := range rows {
		fmt.Printf("%-12s %8.0f %8.2f %10.2f %10.2f %6.2f %8.2f %8.2f %8.2f\n",
			r.Name, r.Counts, r.Background, r.Excess, r.SqrtTS, r.Err, r.Errn, r.Errp, r.UL)
	}
	fmt.Println()
}

func printInfoTable(rows []dataset.InfoRow) {
	fmt.Printf("%-12s %8s %8s %8s %10s %10s %6s %12s\n",
		"name", "n_on", "n_off", "alpha", "background", "excess", "sig", "livetime")
	for _, r := range rows {
		fmt.Printf("%-12s %8.0f %8.0f %8.4f %10.2f %10.2f %6.2f %12.1f\n",
			r.Name, r.NOn, r.NOff, r.Alpha, r.Background, r.Excess, r.Significance, r.Livetime)
	}
	sum, err := dataset.Summarize(rows)
	if err != nil {
		exit.Log(err)
	}
	fmt.Printf("total n_on %.0f, livetime %.1f s, median sig %.2f\n\n",
		sum.NOn, sum.Livetime, sum.MedianSig)
}

type commandLine struct {
	dir    string // bundle directory
	prefix string // bundle prefix
	dc     string // config file
}

func parseCommandLine() *commandLine {
	var cl commandLine
	dh := flag.Bool("h", false, "")
	dv := flag.Bool("v", false, "")
	flag.StringVar(&cl.dc, "c", "", "")
	flag.StringVar(&cl.prefix, "p", "obs", "")
	flag.Usage = func() {
		os.Stderr.WriteString(`
Usage: gammafit [options] <bundle-dir>  fit datasets in directory
       gammafit -h                      display help and quick reference
       gammafit -v                      display version and copyright

Options:
       -c <config-file>
       -p <bundle-prefix>   default "obs"
`)
	}
	flag.Parse()
	switch {
	case *dh:
		printHelp()
		os.Exit(0)
	case *dv:
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	case flag.NArg() != 1:
		flag.Usage()
		os.Exit(1)
	}
	cl.dir = flag.Arg(0)
	return &cl
}

func printHelp() {
	fmt.Println(versionString)
	fmt.Print(`
A bundle directory holds <prefix>_datasets.yaml, <prefix>_models.yaml
and one FITS file per dataset, as written by gammasim or by the
dataset package.

Config file keywords:

   simplex       use the Nelder-Mead backend (default)
   levmar        use the Levenberg-Marquardt backend
   stacked       stack all datasets before fitting
   info          print an info table before fitting
   cumulative    make the info table cumulative
   excess        print excess, errors and upper limits per dataset
   reoptimize    refit free parameters at each profile point
   profile=<parameter name>
   profilebins=<n>
`)
}

type config struct {
	backend     string
	stacked     bool
	info        bool
	cumulative  bool
	excess      bool
	profile     string
	profileBins int
	reoptimize  bool
}

// readConfig parses the keyword configuration file.  An absent file
// with no -c option given means defaults.
func readConfig(cl *commandLine) *config {
	cfg := &config{backend: fit.BackendSimplex, profileBins: 11}
	f, err := os.Open(cl.dc)
	if err != nil {
		if cl.dc == "" {
			return cfg
		}
		exit.Log(err)
	}
	defer f.Close()

	for lr := bufio.NewReader(f); ; {
		l, isPre, err := lr.ReadLine()
		switch {
		case err == io.EOF:
			return cfg
		case err != nil:
			exit.Log(err)
		case isPre:
			exit.Log("Unexpected long line in config file.")
		case len(l) == 0:
			continue
		case l[0] == '#':
			continue
		}
		ls := strings.TrimSpace(string(l))
		switch ls {
		case "":
			continue
		case "simplex":
			cfg.backend = fit.BackendSimplex
			continue
		case "levmar":
			cfg.backend = fit.BackendLevMar
			continue
		case "stacked":
			cfg.stacked = true
			continue
		case "info":
			cfg.info = true
			continue
		case "cumulative":
			cfg.info = true
			cfg.cumulative = true
			continue
		case "excess":
			cfg.excess = true
			continue
		case "reoptimize":
			cfg.reoptimize = true
			continue
		}
		if k, v, ok := strings.Cut(ls, "="); ok {
			k = strings.TrimSpace(k)
			v = strings.TrimSpace(v)
			switch k {
			case "profile":
				cfg.profile = v
				continue
			case "profilebins":
				n, err := strconv.Atoi(v)
				if err != nil || n < 3 {
					exit.Log("Invalid profilebins in config file: " + ls)
				}
				cfg.profileBins = n
				continue
			}
		}
		exit.Log("Unrecognized line in config file: " + ls)
	}
}
