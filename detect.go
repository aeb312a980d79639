package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/524D/mzfeat/internal/binning"
	"github.com/524D/mzfeat/internal/config"
	"github.com/524D/mzfeat/internal/feature"
	"github.com/524D/mzfeat/internal/finder"
	"github.com/524D/mzfeat/internal/hypothesis"
	"github.com/524D/mzfeat/internal/isotope"
	"github.com/524D/mzfeat/internal/mzidentml"
	"github.com/524D/mzfeat/internal/mzml"
	"github.com/524D/mzfeat/internal/store"
)

// Command line parameters of detect
type detectOptions struct {
	output   string // JSON feature file
	dbFile   string // optional SQLite feature database
	mzid     string
	massList string
	masses   []float64
	debug    string // mass range of matrices to print

	// Overrides of configuration values
	charge        string
	scans         string
	mass          string
	rtWindow      string
	scoreFilter   string
	ppm           float64
	minIntens     float64
	minScore      float64
	binary        bool
	acceptProfile bool
	noRefine      bool
	bits          uint
	minMatched    int
	minCluster    int
	maxClusters   int
	workers       int
	inFlight      int
}

func newDetectCmd(g *globalOptions) *cobra.Command {
	var o detectOptions
	cmd := &cobra.Command{
		Use:   "detect [options] <mzMLfile>",
		Short: "Detect features in an mzML file",
		Long: `Detect features in the MS1 spectra of an mzML file and write them to
<mzMLfile without extension>-features.json.

Without --mzid, --mass-list or --masses, all masses in the sweep mass range are
searched, one hypothesis per mass bin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, g, &o, args[0])
		},
	}
	def := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", "",
		"`filename` of the JSON feature output (default <mzMLfile>-features.json)")
	f.StringVar(&o.dbFile, "db", "", "also write the features to SQLite database `file`")
	f.StringVar(&o.mzid, "mzid", "",
		"mzIdentMl `filename`; search the masses of the identified peptides")
	f.StringVar(&o.massList, "mass-list", "",
		"`file` with one neutral mass per line to search")
	f.Float64SliceVar(&o.masses, "masses", nil, "neutral masses to search")
	f.StringVar(&o.debug, "debug", "",
		"Print the signal matrix of hypotheses in mass `range` e.g. 1200:1210")

	f.StringVar(&o.charge, "charge", def.Search.Charge, "charge `range` of the features")
	f.StringVar(&o.scans, "scans", def.Search.Scans,
		"`range` of scan indices to search (e.g. 1000:2000). Default is all scans")
	f.StringVar(&o.mass, "mass", def.Sweep.Mass, "mass `range` (Da) of the sweep")
	f.StringVar(&o.rtWindow, "rt", def.Search.RTWindow,
		"rt window `range` (seconds) around identifications")
	f.StringVar(&o.scoreFilter, "scorefilter", def.Search.ScoreFilter,
		`filter for PSM scores to accept. Format:
<CVterm1|scorename1>([<minscore1>]:[<maxscore1>])...
When multiple score names/CV terms are specified, the first one on the list
that matches a score in the input file will be used.`)
	f.Float64Var(&o.ppm, "ppm", def.Search.TolerancePPM, "max m/z error (ppm) of isotope peaks")
	f.Float64Var(&o.minIntens, "minintens", def.Search.IntensityThreshold,
		"minimum intensity of the most abundant isotope peak")
	f.Float64Var(&o.minScore, "minscore", def.Scoring.MinScore, "minimum feature score to accept")
	f.BoolVar(&o.binary, "binary", def.Search.Binary,
		"mark scans present on peak presence alone, ignoring intensities")
	f.BoolVar(&o.acceptProfile, "acceptprofile", def.Search.AcceptProfile,
		"accept non-peak picked (profile) input")
	f.BoolVar(&o.noRefine, "norefine", !def.Search.RefineMass, "don't refine feature masses")
	f.UintVar(&o.bits, "bits", def.Sweep.Bits, "mantissa bits of the sweep mass bins")
	f.IntVar(&o.minMatched, "minisotopes", def.Search.MinMatchedIsotopes,
		"minimum number of matched isotopes per scan")
	f.IntVar(&o.minCluster, "minsize", def.Search.MinClusterSize,
		"minimum number of charge/scan cells of a feature")
	f.IntVar(&o.maxClusters, "maxclusters", def.Search.MaxClusters,
		"maximum number of clusters scored per hypothesis, <1 for all")
	f.IntVar(&o.workers, "workers", def.Runtime.Workers, "scans read in parallel per hypothesis")
	f.IntVar(&o.inFlight, "inflight", def.Runtime.MaxInFlight, "hypotheses searched in parallel")
	return cmd
}

// apply copies the flags set on the command line into cfg
func (o *detectOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("charge") {
		cfg.Search.Charge = o.charge
	}
	if changed("scans") {
		cfg.Search.Scans = o.scans
	}
	if changed("mass") {
		cfg.Sweep.Mass = o.mass
	}
	if changed("rt") {
		cfg.Search.RTWindow = o.rtWindow
	}
	if changed("scorefilter") {
		cfg.Search.ScoreFilter = o.scoreFilter
	}
	if changed("ppm") {
		cfg.Search.TolerancePPM = o.ppm
	}
	if changed("minintens") {
		cfg.Search.IntensityThreshold = o.minIntens
	}
	if changed("minscore") {
		cfg.Scoring.MinScore = o.minScore
	}
	if changed("binary") {
		cfg.Search.Binary = o.binary
	}
	if changed("acceptprofile") {
		cfg.Search.AcceptProfile = o.acceptProfile
	}
	if changed("norefine") {
		cfg.Search.RefineMass = !o.noRefine
	}
	if changed("bits") {
		cfg.Sweep.Bits = o.bits
	}
	if changed("minisotopes") {
		cfg.Search.MinMatchedIsotopes = o.minMatched
	}
	if changed("minsize") {
		cfg.Search.MinClusterSize = o.minCluster
	}
	if changed("maxclusters") {
		cfg.Search.MaxClusters = o.maxClusters
	}
	if changed("workers") {
		cfg.Runtime.Workers = o.workers
	}
	if changed("inflight") {
		cfg.Runtime.MaxInFlight = o.inFlight
	}
}

// hypotheses returns the masses to search
func (o *detectOptions) hypotheses(cfg *config.Config, logger *slog.Logger) ([]hypothesis.Hypothesis, error) {
	if o.mzid != "" {
		m, err := mzidentml.ReadFile(o.mzid)
		if err != nil {
			return nil, err
		}
		filt, err := hypothesis.ParseScoreFilter(cfg.Search.ScoreFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid score filter: %w", err)
		}
		lowRT, upRT, err := cfg.RTWindow()
		if err != nil {
			return nil, err
		}
		return hypothesis.FromIdentifications(&m, filt, lowRT, upRT, logger)
	}
	if o.massList != "" || len(o.masses) > 0 {
		masses := append([]float64(nil), o.masses...)
		if o.massList != "" {
			fromFile, err := readMassList(o.massList)
			if err != nil {
				return nil, err
			}
			masses = append(masses, fromFile...)
		}
		return hypothesis.FromMasses(masses)
	}
	lo, hi, err := cfg.MassRange()
	if err != nil {
		return nil, err
	}
	bn, err := binning.NewBitBinner(cfg.Sweep.Bits)
	if err != nil {
		return nil, err
	}
	return hypothesis.Sweep(bn, lo, hi)
}

// readMassList reads one mass per line. Empty lines and text after '#'
// are ignored.
func readMassList(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var masses []float64
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line, _, _ := strings.Cut(sc.Text(), "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid mass %q", path, n, line)
		}
		masses = append(masses, m)
	}
	return masses, sc.Err()
}

func runDetect(cmd *cobra.Command, g *globalOptions, o *detectOptions, mzMLFile string) error {
	logger := g.logger(cmd.ErrOrStderr())
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	o.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := finder.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if o.debug != "" {
		if opts.Debug, err = debugMatrices(o.debug, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("invalid debug range: %w", err)
		}
	}

	hyps, err := o.hypotheses(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("hypotheses", "count", len(hyps))

	model, err := isotope.NewModel(&isotope.Config{MinRelAbundance: cfg.Scoring.MinRelAbundance})
	if err != nil {
		return err
	}
	defer model.Close()

	run, err := mzml.OpenRun(mzMLFile, cfg.Runtime.SpectrumCache, logger)
	if err != nil {
		return err
	}
	// Ensure that the spectra are centroided (unless overruled by option acceptprofile)
	if n := run.ProfileScans(1); n > 0 {
		if !cfg.Search.AcceptProfile {
			return fmt.Errorf("input mzML file must contain centroid data, not profile data (%d profile MS1 spectra)", n)
		}
		logger.Warn("input contains non-peak picked (profile) spectra. This is currently not handled well by " + progName)
	}

	fdr, err := finder.New(run, model, opts, logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	features, stats, err := fdr.Sweep(ctx, hyps)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		logger.Warn("not all hypotheses could be searched", "failed", stats.Failed, "err", err)
	}

	output := o.output
	if output == "" {
		output = baseName(mzMLFile) + "-features.json"
	}
	doc := store.Document{
		Program:        progName,
		ProgramVersion: progVersion,
		Source:         mzMLFile,
		Params:         cfg,
		Stats:          stats,
		Features:       features,
	}
	if err := store.WriteJSON(output, doc); err != nil {
		return err
	}
	logger.Info("features written", "file", output, "features", len(features))

	if o.dbFile != "" {
		if err := writeDB(o.dbFile, mzMLFile, features); err != nil {
			return err
		}
		logger.Info("features written", "file", o.dbFile)
	}
	if !g.quiet {
		printSummary(cmd.OutOrStdout(), features)
	}
	return nil
}

func writeDB(path, source string, features []feature.Feature) error {
	w, err := store.NewSQLiteWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteFeatures(features); err != nil {
		w.Close()
		return err
	}
	return w.Finalize(source, progName+" "+progVersion)
}
