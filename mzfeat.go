// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/524D/mzfeat/internal/config"
)

// Program name and version, written to the feature files
const progName = "mzFeat"

var progVersion = `Unknown`

// Options shared by all commands
type globalOptions struct {
	verbose    bool
	quiet      bool
	configFile string
}

// logger returns a text logger on w. --verbose enables debug output,
// --quiet shows errors only.
func (g *globalOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	if g.quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig returns the configuration file given with --config, or the
// defaults
func (g *globalOptions) loadConfig() (*config.Config, error) {
	return config.Load(g.configFile)
}

// baseName returns path without extension
func baseName(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}

func newRootCmd() *cobra.Command {
	var g globalOptions
	cmd := &cobra.Command{
		Use:   "mzfeat",
		Short: "Detect LC-MS precursor features in mzML files",
		Long: `mzfeat finds the isotope and charge coherent signals of molecular species
(features) in the MS1 spectra of an mzML file.

For every neutral mass hypothesis, a charge by scan matrix of isotope envelope
matches is built. Connected regions of the matrix are scored on the fit to the
averagine isotope envelope, co-elution of the isotopes and co-elution of the
charge states. Regions that score high enough are reported as features.

Mass hypotheses come from a sweep over a mass range, from the peptides
identified in an mzIdentML file, or from a list of masses.`,
		Example: `  mzfeat detect yeast.mzML
    Sweep masses 500:5000 Da in yeast.mzML and write the features to
    yeast-features.json. Default parameters are used.

  mzfeat detect --mzid yeast.mzid --scorefilter 'MS:1002257(0.0:0.001)' yeast.mzML
    Search only the masses of peptides identified with a Comet expectation
    value <0.001, within the retention time window around each identification.

  mzfeat summarize yeast-features.json
    Show feature counts and score ranges per charge state.`,
		Version:      progVersion,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&g.verbose, "verbose", false,
		"Print more verbose progress information")
	cmd.PersistentFlags().BoolVar(&g.quiet, "quiet", false,
		"Don't print any output except for errors")
	cmd.PersistentFlags().StringVar(&g.configFile, "config", "",
		"YAML configuration `file`; command line flags override its values")

	cmd.AddCommand(
		newDetectCmd(&g),
		newXicCmd(&g),
		newSummarizeCmd(&g),
		newSimulateCmd(&g),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
