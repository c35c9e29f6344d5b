// Command ingest reads the team spreadsheets into the master file, then
// refreshes the Parquet cache and SQL mirror when they are configured.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"pharmapulse/internal/app"
	"pharmapulse/internal/config"
	"pharmapulse/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("Ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stdout)
	envFile := fs.String("env", ".env", "dotenv file loaded before the configuration")
	configFile := fs.String("config", "", "path to config.yaml")
	force := fs.Bool("force", false, "ingest even when the master is newer than every spreadsheet")
	merge := fs.Bool("merge", false, "only read spreadsheets not yet in the master and merge them in")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := app.Bootstrap(*envFile, *configFile)
	if err != nil {
		return err
	}

	paths, err := config.GetPaths(cfg)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}
	paths.LogPathResolution(logger)

	core, err := app.NewCore(ctx, cfg, paths, app.CoreOptions{}, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	report, err := core.Ingest.Run(ctx, services.IngestOptions{Force: *force, Merge: *merge})
	if errors.Is(err, services.ErrNoSourceFiles) {
		fmt.Fprintln(stdout, "No spreadsheets to ingest.")
		return nil
	}
	if err != nil {
		return err
	}

	printReport(stdout, report)
	return nil
}

func printReport(w io.Writer, report services.IngestReport) {
	if report.Skipped {
		fmt.Fprintln(w, "Master is up to date; nothing to ingest. Use -force to re-read every spreadsheet.")
		return
	}

	m := report.Manifest
	fmt.Fprintf(w, "Ingest %s (%s) finished in %s\n", m.RunID, report.Mode, report.Duration.Round(1e6))
	fmt.Fprintf(w, "  files:      %d processed, %d failed\n", m.FilesProcessed, m.FilesFailed)
	fmt.Fprintf(w, "  rows:       %d read, %d dropped, %d rejected, %d duplicates\n",
		m.RowsRead, m.RowsDropped, m.RowsRejected, m.Duplicates)
	fmt.Fprintf(w, "  master:     %d added, %d replaced, %d total\n", report.Added, report.Replaced, report.TotalRows)
	if report.UnknownMol > 0 {
		fmt.Fprintf(w, "  molecules:  %d drugs without a molecule mapping\n", report.UnknownMol)
	}

	if len(m.DropReasons) > 0 {
		reasons := make([]string, 0, len(m.DropReasons))
		for reason := range m.DropReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		fmt.Fprintln(w, "  dropped by reason:")
		for _, reason := range reasons {
			fmt.Fprintf(w, "    %-24s %d\n", reason, m.DropReasons[reason])
		}
	}
}
