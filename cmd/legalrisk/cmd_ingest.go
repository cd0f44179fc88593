package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/legalrisk"
)

var ingestFlags struct {
	force    bool
	name     string
	watchDir string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Add statute files to the clause index",
	Long: `Ingest parses statute, act or regulation files (.txt, .pdf, .docx, or
page-per-entry .json), splits them into clauses and embeds every clause.
Unchanged files are skipped unless --force is given.

With --watch the command keeps running and re-ingests files in the
directory as they change, dropping removed files from the index.

Usage:
  legalrisk ingest acts/rent_control_act.pdf acts/tenancy.json
  legalrisk ingest --watch acts/`,
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.BoolVar(&ingestFlags.force, "force", false, "Re-ingest even if the file is unchanged")
	f.StringVar(&ingestFlags.name, "name", "", "Source name (single file only; default: file title or name)")
	f.StringVar(&ingestFlags.watchDir, "watch", "", "Directory to ingest and keep in sync")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && ingestFlags.watchDir == "" {
		return fmt.Errorf("at least one file or --watch <dir> is required")
	}
	if ingestFlags.name != "" && len(args) != 1 {
		return fmt.Errorf("--name needs exactly one file")
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	var opts []legalrisk.IngestOption
	if ingestFlags.force {
		opts = append(opts, legalrisk.WithForceReparse())
	}
	if ingestFlags.name != "" {
		opts = append(opts, legalrisk.WithSourceName(ingestFlags.name))
	}

	out := cmd.OutOrStdout()
	var failed int
	for _, path := range args {
		id, err := engine.Ingest(cmd.Context(), path, opts...)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (source %d)\n", path, id)
	}

	if ingestFlags.watchDir != "" {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		slog.Info("ingest: watching, press Ctrl+C to stop", "dir", ingestFlags.watchDir)
		if err := engine.Watch(ctx, ingestFlags.watchDir); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to ingest", failed, len(args))
	}
	return nil
}
