package main

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/524D/mzfeat/internal/feature"
	"github.com/524D/mzfeat/internal/store"
)

func newSummarizeCmd(g *globalOptions) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "summarize [options] <features.json>",
		Short: "Summarize a feature file",
		Long: `Show the number of features and their score range per representative
charge state of a feature file written by detect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := store.ReadJSON(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s, %s: %d hypotheses, %d failed, %d features\n",
				doc.Program, doc.ProgramVersion, doc.Source,
				doc.Stats.Hypotheses, doc.Stats.Failed, len(doc.Features))
			if list {
				printFeatures(w, doc.Features)
			}
			printSummary(w, doc.Features)
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "also list every feature")
	return cmd
}

type chargeSummary struct {
	count    int
	minScore float64
	maxScore float64
	sumScore float64
}

// printSummary prints feature counts and scores per representative charge
func printSummary(w io.Writer, features []feature.Feature) {
	byCharge := make(map[int]*chargeSummary)
	for _, f := range features {
		cs, ok := byCharge[f.RepCharge]
		if !ok {
			cs = &chargeSummary{minScore: math.MaxFloat64, maxScore: -math.MaxFloat64}
			byCharge[f.RepCharge] = cs
		}
		cs.count++
		cs.minScore = min(cs.minScore, f.Score)
		cs.maxScore = max(cs.maxScore, f.Score)
		cs.sumScore += f.Score
	}
	charges := make([]int, 0, len(byCharge))
	for z := range byCharge {
		charges = append(charges, z)
	}
	sort.Ints(charges)

	var tableBuffer bytes.Buffer
	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Charge", "Features", "Min score", "Mean score", "Max score"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, z := range charges {
		cs := byCharge[z]
		table.Append([]string{
			fmt.Sprintf("%d", z),
			fmt.Sprintf("%d", cs.count),
			fmt.Sprintf("%.3f", cs.minScore),
			fmt.Sprintf("%.3f", cs.sumScore/float64(cs.count)),
			fmt.Sprintf("%.3f", cs.maxScore),
		})
	}
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", len(features)), "", "", ""})
	table.Render()
	fmt.Fprintf(w, "\n%s", tableBuffer.String())
}

// printFeatures prints one line per feature
func printFeatures(w io.Writer, features []feature.Feature) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Mass", "Charges", "Scans", "RT", "Abundance", "Score"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	for _, f := range features {
		table.Append([]string{
			fmt.Sprintf("%.4f", f.Mass),
			fmt.Sprintf("%d:%d (%d)", f.MinCharge, f.MaxCharge, f.RepCharge),
			fmt.Sprintf("%d:%d (%d)", f.MinScan, f.MaxScan, f.RepScan),
			fmt.Sprintf("%.1f:%.1f", f.MinRT, f.MaxRT),
			fmt.Sprintf("%.4g", f.Abundance),
			fmt.Sprintf("%.3f", f.Score),
		})
	}
	table.Render()
}
