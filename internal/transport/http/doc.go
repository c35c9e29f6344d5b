// Package http implements the HTTP handlers of the Pharma Pulse web service.
// Handlers are a thin layer over the services package: they bind and
// validate query parameters, call one service method and render the result.
//
// # Routes
//
//	GET  /api/facts                     fact rows, ?format=csv for a download
//	GET  /api/periods                   chronologically sorted period labels
//	GET  /api/summary                   totals and per-period distributions
//	GET  /api/classes/ambiguous         sources with more than one class row
//	GET  /api/metrics/leaderboard       growth leaderboard
//	GET  /api/metrics/market-share      share of an entity within its class
//	GET  /api/metrics/evolution-index   entity growth against class growth
//	GET  /api/metrics/portfolio-ei      weighted evolution index
//	GET  /api/metrics/regional-benchmark
//	GET  /api/metrics/rank-shift
//	GET  /api/metrics/churn
//	POST /api/ingest/rebuild            rescan the team folders
//	POST /api/ingest/cache              rebuild the Parquet cache
//
// Period parameters are optional. With neither ref nor base the two most
// recent periods are compared; with only ref its predecessor is the base.
//
// # Error Handling
//
// Errors are rendered as RFC 7807 Problem Details by errors.ErrorHandler:
//
//	{
//	    "type": "/errors/metric/undefined",
//	    "title": "Metric Undefined",
//	    "status": 422,
//	    "detail": "evolution_index undefined for \"AERIUS\": no_matching_class",
//	    "reason": "no_matching_class",
//	    "trace_id": "6f1c..."
//	}
//
// # Testing
//
// Metric handlers are tested with httptest against a real EngineService over
// an in-memory snapshot. The ingest handler is tested against a testify mock.
package http
