package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/legalrisk/eval"
)

var evalFlags struct {
	output    string
	threshold float64
}

var evalCmd = &cobra.Command{
	Use:   "eval <dataset.yaml>",
	Short: "Score analyses against a dataset of expected findings",
	Long: `Eval analyzes every document of a dataset and scores extraction,
statute retrieval, analysis facts and citation quality.

A dataset lists documents and what a good analysis of each contains:

  name: leases
  cases:
    - document: docs/lease.pdf
      category: lease
      expected_parties: [Asha Rao, Vikram Shah]
      expected_sources: [Rent Control Act]
      expected_facts:
        - security deposit|deposit
        - notice period
    - document: docs/blank.txt
      expect_error: input

Relative document paths are resolved against the dataset file.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	f := evalCmd.Flags()
	f.StringVarP(&evalFlags.output, "output", "o", "", "Also write the full report as JSON to this path")
	f.Float64Var(&evalFlags.threshold, "threshold", eval.DefaultPassThreshold, "Per-metric score a case needs to pass")
}

func runEval(cmd *cobra.Command, args []string) error {
	ds, err := eval.LoadDataset(args[0])
	if err != nil {
		return err
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	ev := eval.NewEvaluator(engine)
	ev.SetPassThreshold(evalFlags.threshold)
	rep, err := ev.Run(cmd.Context(), ds)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), eval.FormatReport(rep))

	if evalFlags.output != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		if err := os.WriteFile(evalFlags.output, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}

	if rep.Failed > 0 {
		return fmt.Errorf("%d of %d cases failed", rep.Failed, rep.TotalCases)
	}
	return nil
}
