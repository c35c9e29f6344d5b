// Package metrics computes derived comparisons over a fact table snapshot:
// growth, market share, evolution index, leaderboards and regional benchmarks.
//
// Every function is pure. A View aggregates a table once and answers many
// queries; the package-level functions build a throwaway view.
//
// Undefined results are explicit: values are domain.OptionalFloat, and
// functions that can fail for lack of a matched therapeutic class also return
// an *UndefinedMetricError naming the reason. A source with more than one
// class name is reported as ReasonAmbiguousClass instead of picking one.
package metrics
