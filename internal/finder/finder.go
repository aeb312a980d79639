// Package finder runs feature detection for mass hypotheses: build the
// signal matrix, segment it, score the clusters and keep the accepted
// features. Sweep searches many hypotheses with a bounded number of
// concurrent searches.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/524D/mzfeat/internal/binning"
	"github.com/524D/mzfeat/internal/cluster"
	"github.com/524D/mzfeat/internal/config"
	"github.com/524D/mzfeat/internal/feature"
	"github.com/524D/mzfeat/internal/hypothesis"
	"github.com/524D/mzfeat/internal/isotope"
	"github.com/524D/mzfeat/internal/score"
	"github.com/524D/mzfeat/internal/signal"
	"github.com/524D/mzfeat/internal/spectrum"
)

// Options controls a Finder
type Options struct {
	MinCharge          int
	MaxCharge          int
	MinScan            int
	MaxScan            int
	Tolerance          spectrum.Tolerance
	IntensityThreshold float64
	Binary             bool
	MinMatchedIsotopes int
	MinClusterSize     int
	MaxClusters        int // per hypothesis, <1 for all
	RefineMass         bool
	MinScore           float64
	Likelihood         feature.Likelihood // nil for feature.DefaultWeightedSum
	Workers            int                // parallel scan fetches per hypothesis
	MaxInFlight        int                // hypotheses searched concurrently
	// MergeBinner finds duplicate features of neighbouring hypotheses.
	// Nil selects a BitBinner with DefaultMergeBits.
	MergeBinner binning.Binner
	// Debug, if set, is called with the signal matrix of every hypothesis
	// before segmentation. Sweep calls it from several goroutines.
	Debug func(*signal.Matrix)
}

// DefaultMergeBits is the bin resolution used for de-duplication when no
// binner is given
const DefaultMergeBits = 17

// OptionsFromConfig converts a validated configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	minCharge, maxCharge, err := cfg.ChargeRange()
	if err != nil {
		return Options{}, err
	}
	minScan, maxScan, err := cfg.ScanRange()
	if err != nil {
		return Options{}, err
	}
	bn, err := binning.NewBitBinner(cfg.Sweep.Bits)
	if err != nil {
		return Options{}, err
	}
	return Options{
		MinCharge:          minCharge,
		MaxCharge:          maxCharge,
		MinScan:            minScan,
		MaxScan:            maxScan,
		Tolerance:          cfg.Tolerance(),
		IntensityThreshold: cfg.Search.IntensityThreshold,
		Binary:             cfg.Search.Binary,
		MinMatchedIsotopes: cfg.Search.MinMatchedIsotopes,
		MinClusterSize:     cfg.Search.MinClusterSize,
		MaxClusters:        cfg.Search.MaxClusters,
		RefineMass:         cfg.Search.RefineMass,
		MinScore:           cfg.Scoring.MinScore,
		Likelihood:         feature.WeightedSum{Weights: cfg.Scoring.Weights},
		Workers:            cfg.Runtime.Workers,
		MaxInFlight:        cfg.Runtime.MaxInFlight,
		MergeBinner:        bn,
	}, nil
}

// Finder searches the spectra of one run. A Finder is safe for
// concurrent use as long as the provider is not modified.
type Finder struct {
	provider   spectrum.Provider
	builder    *signal.Builder
	scorer     *score.Scorer
	aggregator *feature.Aggregator
	opts       Options
	logger     *slog.Logger
}

// New returns a Finder over provider. A nil model selects
// isotope.Default(), a nil logger slog.Default().
func New(provider spectrum.Provider, model *isotope.Model, opts Options, logger *slog.Logger) (*Finder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MergeBinner == nil {
		bn, err := binning.NewBitBinner(DefaultMergeBits)
		if err != nil {
			return nil, err
		}
		opts.MergeBinner = bn
	}
	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = 1
	}
	// Parameter errors are reported here, not once per hypothesis
	probe := signal.Params{
		MinCharge:          opts.MinCharge,
		MaxCharge:          opts.MaxCharge,
		MinScan:            opts.MinScan,
		MaxScan:            opts.MaxScan,
		Tolerance:          opts.Tolerance,
		IntensityThreshold: opts.IntensityThreshold,
	}
	if err := probe.Validate(1000); err != nil {
		return nil, err
	}
	return &Finder{
		provider:   provider,
		builder:    signal.NewBuilder(provider, model, logger),
		scorer:     score.NewScorer(opts.Tolerance, opts.RefineMass, logger),
		aggregator: feature.NewAggregator(opts.Likelihood, opts.MinScore, logger),
		opts:       opts,
		logger:     logger,
	}, nil
}

// params returns the matrix parameters of hypothesis h. ok is false if
// the retention time window of h contains no MS1 scan.
func (f *Finder) params(h hypothesis.Hypothesis) (p signal.Params, ok bool, err error) {
	p = signal.Params{
		MinCharge:          f.opts.MinCharge,
		MaxCharge:          f.opts.MaxCharge,
		MinScan:            f.opts.MinScan,
		MaxScan:            f.opts.MaxScan,
		Tolerance:          f.opts.Tolerance,
		IntensityThreshold: f.opts.IntensityThreshold,
		Binary:             f.opts.Binary,
		MinMatchedIsotopes: f.opts.MinMatchedIsotopes,
		Concurrency:        f.opts.Workers,
	}
	if h.MinCharge > 0 {
		p.MinCharge = h.MinCharge
	}
	if h.MaxCharge > 0 {
		p.MaxCharge = h.MaxCharge
	}
	if !h.HasRTWindow() {
		return p, true, nil
	}
	lo, hi := math.MaxInt, math.MinInt
	for _, s := range f.provider.ScanNumbersOfLevel(1) {
		if s < p.MinScan || s > p.MaxScan {
			continue
		}
		rt, err := f.provider.ElutionTime(s)
		if err != nil {
			return p, false, fmt.Errorf("elution time of scan %d: %w", s, err)
		}
		if rt >= h.MinRT && rt <= h.MaxRT {
			lo = min(lo, s)
			hi = max(hi, s)
		}
	}
	if lo > hi {
		return p, false, nil
	}
	p.MinScan, p.MaxScan = lo, hi
	return p, true, nil
}

// Search returns the accepted features of one hypothesis, largest cluster
// first. No features is a normal outcome. The search stops with the
// context error when ctx is done at a stage boundary.
func (f *Finder) Search(ctx context.Context, h hypothesis.Hypothesis) ([]feature.Feature, error) {
	log := f.logger.With("mass", h.Mass)
	if h.Name != "" {
		log = log.With("name", h.Name)
	}
	p, ok, err := f.params(h)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(h.Mass); err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("no clusters", "reason", "no scans in retention time window",
			"rt", fmt.Sprintf("%.1f:%.1f", h.MinRT, h.MaxRT))
		return nil, nil
	}

	m, err := f.builder.Build(ctx, h.Mass, p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug("matrix built", "charges", fmt.Sprintf("%d:%d", p.MinCharge, p.MaxCharge),
		"scans", m.Cols(), "present", m.PresentCount())
	if f.opts.Debug != nil {
		f.opts.Debug(m)
	}

	clusters := cluster.Filter(cluster.Segment(m), max(f.opts.MinClusterSize, 1), f.opts.MaxClusters)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		log.Debug("no clusters")
		return nil, nil
	}
	log.Debug("segmented", "clusters", len(clusters), "largest", clusters[0].Size())

	bundles := make([]score.Bundle, len(clusters))
	for i, cl := range clusters {
		bundles[i] = f.scorer.Score(m, cl)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug("scored", "bundles", len(bundles))

	return f.aggregator.AggregateAll(bundles), nil
}

// SweepStats summarizes a sweep
type SweepStats struct {
	Hypotheses int // hypotheses searched
	Failed     int // hypotheses that ended with an error
	Found      int // accepted features before de-duplication
	Features   int // features after de-duplication
}

// Sweep searches all hypotheses, at most Options.MaxInFlight at a time.
// A failing hypothesis does not stop the others: the features of the
// successful ones are returned with the joined errors of the failed ones.
// Only cancellation of ctx aborts the sweep. Features are de-duplicated
// and ordered by mass.
func (f *Finder) Sweep(ctx context.Context, hyps []hypothesis.Hypothesis) ([]feature.Feature, SweepStats, error) {
	var stats SweepStats
	results := make([][]feature.Feature, len(hyps))
	errs := make([]error, len(hyps))
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.MaxInFlight)
	for i, h := range hyps {
		i, h := i, h
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fs, err := f.Search(gctx, h)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = fmt.Errorf("mass %.4f: %w", h.Mass, err)
				f.logger.Warn("hypothesis failed", "mass", h.Mass, "err", err)
				return nil
			}
			results[i] = fs
			mu.Lock()
			done++
			if done%1000 == 0 {
				f.logger.Info("sweep progress", "done", done, "total", len(hyps))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	var all []feature.Feature
	for i := range hyps {
		stats.Hypotheses++
		if errs[i] != nil {
			stats.Failed++
		}
		all = append(all, results[i]...)
	}
	stats.Found = len(all)
	merged := feature.Merge(all, f.opts.MergeBinner, f.opts.Tolerance)
	stats.Features = len(merged)
	f.logger.Info("sweep done", "hypotheses", stats.Hypotheses, "failed", stats.Failed,
		"found", stats.Found, "features", stats.Features)
	return merged, stats, errors.Join(errs...)
}
