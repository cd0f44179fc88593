package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sourcesFlags struct {
	deleteID int64
	refresh  bool
	history  int
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List, refresh or delete ingested statute sources",
	Long: `Sources prints every ingested statute with its status and clause count,
followed by index totals.

Usage:
  legalrisk sources
  legalrisk sources --refresh      # re-ingest changed files
  legalrisk sources --delete 3
  legalrisk sources --history 20   # recent analyses`,
	Args: cobra.NoArgs,
	RunE: runSources,
}

func init() {
	f := sourcesCmd.Flags()
	f.Int64Var(&sourcesFlags.deleteID, "delete", 0, "Delete the source with this ID")
	f.BoolVar(&sourcesFlags.refresh, "refresh", false, "Re-ingest every source whose file changed")
	f.IntVar(&sourcesFlags.history, "history", 0, "Show the N most recent analyses")
}

func runSources(cmd *cobra.Command, _ []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if sourcesFlags.deleteID != 0 {
		if err := engine.DeleteSource(ctx, sourcesFlags.deleteID); err != nil {
			return fmt.Errorf("deleting source %d: %w", sourcesFlags.deleteID, err)
		}
		fmt.Fprintf(out, "deleted source %d\n", sourcesFlags.deleteID)
		return nil
	}

	if sourcesFlags.refresh {
		results, err := engine.UpdateAll(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			switch {
			case r.Error != "":
				fmt.Fprintf(out, "FAIL    %s: %s\n", r.Path, r.Error)
			case r.Changed:
				fmt.Fprintf(out, "updated %s\n", r.Path)
			default:
				fmt.Fprintf(out, "same    %s\n", r.Path)
			}
		}
		return nil
	}

	if sourcesFlags.history > 0 {
		recs, err := engine.RecentAnalyses(ctx, sourcesFlags.history)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tSTATUS\tCLAUSES\tRETRIEVED\tDURATION\tDOCUMENT")
		for _, r := range recs {
			status := r.Status
			if r.ErrorKind != "" {
				status += " (" + r.ErrorKind + ")"
			} else if r.Degraded {
				status += " (degraded)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
				r.CreatedAt, status, r.ClauseQueries, r.Retrieved, r.Duration, r.DocumentPath)
		}
		return tw.Flush()
	}

	sources, err := engine.ListSources(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFORMAT\tSTATUS\tCLAUSES\tPATH")
	for _, s := range sources {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", s.ID, s.Name, s.Format, s.Status, s.ClauseCount, s.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d sources, %d clauses, %d embeddings, %d analyses (schema v%d)\n",
		stats.Sources, stats.Clauses, stats.Embeddings, stats.Analyses, stats.SchemaVersion)
	return nil
}
