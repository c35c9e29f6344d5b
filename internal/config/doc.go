// Package config provides centralized configuration management for Pharma Pulse.
// It loads configuration from multiple sources, validates it, and exposes
// typed sections for the server, ingestion, metrics, storage and telemetry.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. config.yaml
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern PHARMA_<SECTION>_<FIELD>:
//
//	PHARMA_SERVER_PORT=8080
//	PHARMA_STORE_DRIVER=sqlite
//	PHARMA_STORE_DSN=file:facts.db
//	PHARMA_INGEST_TEAMS="Team 1,Team 2"
//	PHARMA_METRICS_SHOW_EVOLUTION_INDEX=false
//
// # Path Management
//
// Paths resolves the data directory, team folders and the master, cache and
// molecule files against a root directory:
//
//	paths, err := config.GetPaths(cfg)
//	master := paths.MasterFile
package config
