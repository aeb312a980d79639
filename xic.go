package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/524D/mzfeat/internal/config"
	"github.com/524D/mzfeat/internal/mzml"
	"github.com/524D/mzfeat/internal/spectrum"
	"github.com/524D/mzfeat/internal/xic"
)

func newXicCmd(g *globalOptions) *cobra.Command {
	var (
		mz    float64
		ppm   float64
		scans string
	)
	cmd := &cobra.Command{
		Use:   "xic --mz <m/z> [options] <mzMLfile>",
		Short: "Print an extracted ion chromatogram",
		Long: `Print the intensity of the highest peak within the m/z tolerance in every
MS1 scan, one line per scan: scan index, retention time (s), intensity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger(cmd.ErrOrStderr())
			tol := spectrum.NewPpm(ppm)
			if err := tol.Validate(); err != nil {
				return err
			}
			if !(mz > 0) || math.IsInf(mz, 0) {
				return fmt.Errorf("invalid m/z %v", mz)
			}
			minScan, maxScan, err := config.ParseIntRange(scans, 0, math.MaxInt32)
			if err != nil {
				return fmt.Errorf("invalid scan range: %w", err)
			}
			run, err := mzml.OpenRun(args[0], 0, logger)
			if err != nil {
				return err
			}
			var scanNums []int
			for _, s := range run.ScanNumbersOfLevel(1) {
				if s >= minScan && s <= maxScan {
					scanNums = append(scanNums, s)
				}
			}
			x, err := xic.Extract(run, mz, tol, scanNums)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range x.Points {
				rt, err := run.ElutionTime(p.ScanNum)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%.3f\t%g\n", p.ScanNum, rt, p.Intensity)
			}
			if apex, ok := x.Apex(); ok {
				logger.Info("xic", "mz", mz, "scans", x.Len(), "nonzero", x.NonZero(),
					"apex_scan", apex.ScanNum, "apex_intensity", apex.Intensity)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&mz, "mz", 0, "`m/z` to extract")
	cmd.Flags().Float64Var(&ppm, "ppm", 10, "m/z tolerance (ppm)")
	cmd.Flags().StringVar(&scans, "scans", "", "`range` of scan indices (e.g. 1000:2000). Default is all scans")
	cmd.MarkFlagRequired("mz")
	return cmd
}
