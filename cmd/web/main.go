package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"pharmapulse/internal/app"
	"pharmapulse/pkg/contracts"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file loaded before the configuration")
	configFile := flag.String("config", "", "path to config.yaml (default: search config.yaml, configs/config.yaml)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, logger, err := app.Bootstrap(*envFile, *configFile)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
