// Package hierarchy recovers the Region → District → Therapeutic Class → Product
// structure encoded in the first column of brick-level sales exports.
//
// # Classification
//
// A Classifier evaluates named predicates in order. The default rules are:
//
//	empty            → Ignorable
//	aggregate_marker → Ignorable   ("GRAND TOTAL", "Total", "Total Regiones")
//	region_prefix    → Region      ("Region SOFIA")
//	district_code    → District    ("(SF) SOFIA CENTER")
//	atc_class        → TherapeuticClass ("R06A0 ANTIHISTAMINES")
//
// Anything else containing a letter is a Product. Additional layouts add rules
// with WithRule instead of changing control flow.
//
// # Fill
//
// The Filler is a three-state machine (NoRegion, InRegion, InRegionDistrict).
// Region rows reset the district. Product and class rows are emitted with the
// current context; header and ignorable rows are not emitted.
//
//	rows := hierarchy.ClassifyRows(hierarchy.NewClassifier(), raw)
//	filled := hierarchy.NewFiller(logger).Fill(rows)
package hierarchy
