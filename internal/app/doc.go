// Package app wires the Pharma Pulse components together and manages their
// lifecycle.
//
// # Components
//
// Core holds the ingestion and query stack: the molecule map, the master
// store with its optional SQL and Parquet mirrors, the ingestion pipeline,
// the snapshot cache and the engine. The command line tools build a Core
// directly; the web server wraps it in an Application, which adds:
//
//	- the HTTP router and middleware chain
//	- the WebSocket hub for ingest and snapshot events
//	- the health service
//	- the scheduled refresher
//	- OpenTelemetry providers and the Prometheus endpoint
//
// # Lifecycle
//
//	app, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return app.Run()
//
// Run blocks until SIGINT or SIGTERM. Stop drains HTTP requests, stops the
// refresher and the hub, closes the SQL connection and flushes telemetry.
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
