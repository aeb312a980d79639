package main

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/524D/mzfeat/internal/config"
	"github.com/524D/mzfeat/internal/mzml"
	"github.com/524D/mzfeat/internal/synth"
)

type simulateOptions struct {
	scans      int
	masses     []float64
	charge     string
	height     float64
	sigma      float64
	noise      int
	noiseMax   float64
	seed       int64
	ms2Every   int
	mzShiftPpm float64
}

func newSimulateCmd(g *globalOptions) *cobra.Command {
	var o simulateOptions
	cmd := &cobra.Command{
		Use:   "simulate [options] <mzMLfile>",
		Short: "Write a synthetic LC-MS run as mzML",
		Long: `Write a centroided mzML file with one simulated feature per mass, with
apex scans evenly spread over the run, and uniform random noise peaks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, g, &o, args[0])
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.scans, "scans", 60, "number of scans")
	f.Float64SliceVar(&o.masses, "masses", []float64{1234.5, 2345.6}, "neutral masses of the features")
	f.StringVar(&o.charge, "charge", "2:3", "charge `range` of every feature")
	f.Float64Var(&o.height, "height", 5e4, "apex intensity of the most abundant isotope")
	f.Float64Var(&o.sigma, "sigma", 2.5, "elution peak width (scans)")
	f.IntVar(&o.noise, "noise", 200, "noise peaks per scan")
	f.Float64Var(&o.noiseMax, "noisemax", 1000, "maximum intensity of noise peaks")
	f.Int64Var(&o.seed, "seed", 1, "random seed of the noise")
	f.IntVar(&o.ms2Every, "ms2every", 4, "make every n-th scan an empty MS2 scan, 0 for none")
	f.Float64Var(&o.mzShiftPpm, "shift", 0, "m/z shift (ppm) of all feature peaks")
	return cmd
}

func runSimulate(cmd *cobra.Command, g *globalOptions, o *simulateOptions, path string) error {
	logger := g.logger(cmd.ErrOrStderr())
	if o.scans < 1 {
		return fmt.Errorf("invalid number of scans %d", o.scans)
	}
	minCharge, maxCharge, err := config.ParseIntRange(o.charge, 1, 5)
	if err != nil || minCharge < 1 {
		return fmt.Errorf("invalid charge range %q", o.charge)
	}
	var charges []int
	for z := minCharge; z <= maxCharge; z++ {
		charges = append(charges, z)
	}

	run := synth.NewRun(o.scans)
	if o.ms2Every > 0 {
		for s := o.ms2Every - 1; s < o.scans; s += o.ms2Every {
			run.SetLevel(s, 2)
		}
	}
	for i, m := range o.masses {
		if !(m > 0) || math.IsInf(m, 0) {
			return fmt.Errorf("invalid mass %v", m)
		}
		apex := (i + 1) * o.scans / (len(o.masses) + 1)
		run.AddFeature(synth.Feature{
			Mass:       m,
			Charges:    charges,
			ApexScan:   apex,
			Sigma:      o.sigma,
			Height:     o.height,
			MzShiftPpm: o.mzShiftPpm,
		})
		logger.Debug("feature", "mass", m, "apex_scan", apex)
	}
	if o.noise > 0 {
		run.AddNoise(o.seed, o.noise, 300, 2000, o.noiseMax)
	}

	p := run.Provider()
	doc := mzml.New(baseName(filepath.Base(path)))
	doc.AppendSoftwareInfo(progName, progVersion)
	for s := 0; s < o.scans; s++ {
		peaks, err := p.SpectrumPeaks(s)
		if err != nil {
			return err
		}
		rt, err := p.ElutionTime(s)
		if err != nil {
			return err
		}
		if _, err := doc.AddSpectrum(run.Level(s), rt, peaks, true); err != nil {
			return err
		}
	}
	if err := doc.WriteFile(path); err != nil {
		return err
	}
	logger.Info("simulated run written", "file", path, "scans", o.scans, "features", len(o.masses))
	return nil
}
