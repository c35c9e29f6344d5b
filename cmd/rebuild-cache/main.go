// Command rebuild-cache rewrites the Parquet cache from the master file and
// prints a summary of the resulting snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"pharmapulse/internal/app"
	"pharmapulse/internal/config"
	"pharmapulse/internal/validation"
	"pharmapulse/pkg/contracts/domain"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		slog.Error("Cache rebuild failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("rebuild-cache", flag.ContinueOnError)
	fs.SetOutput(stdout)
	envFile := fs.String("env", ".env", "dotenv file loaded before the configuration")
	configFile := fs.String("config", "", "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := app.Bootstrap(*envFile, *configFile)
	if err != nil {
		return err
	}
	cfg.Cache.UseParquet = true

	paths, err := config.GetPaths(cfg)
	if err != nil {
		return err
	}
	if !config.FileExists(paths.MasterFile) {
		return fmt.Errorf("master file %s not found, run ingest first", paths.MasterFile)
	}
	if err := validation.NewFileValidator(logger).ValidateMasterHeader(paths.MasterFile); err != nil {
		return err
	}

	core, err := app.NewCore(ctx, cfg, paths, app.CoreOptions{}, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	rows, err := core.Ingest.RebuildCache(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d rows to %s\n", rows, paths.CacheFile)

	snap, err := core.Snapshots.Get(ctx)
	if err != nil {
		return err
	}
	summary, err := core.Engine.Summary(ctx, domain.FactFilter{})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Snapshot: %d rows, %d regions, %d entities, %d periods, built %s\n",
		snap.Table.Len(), summary.Regions, summary.Entities, len(summary.Periods),
		snap.BuiltAt.Format("2006-01-02 15:04:05"))
	return nil
}
