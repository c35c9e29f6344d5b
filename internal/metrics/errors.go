package metrics

import (
	"errors"
	"fmt"
	"strings"
)

// UndefinedReason explains why a metric has no value.
type UndefinedReason string

const (
	ReasonNoClass             UndefinedReason = "no_matching_class"
	ReasonAmbiguousClass      UndefinedReason = "ambiguous_class_match"
	ReasonInsufficientPeriods UndefinedReason = "insufficient_periods"
	ReasonZeroDenominator     UndefinedReason = "zero_denominator"
	ReasonUnknownEntity       UndefinedReason = "unknown_entity"
)

// ErrUndefinedMetric is matched by every UndefinedMetricError.
var ErrUndefinedMetric = errors.New("metric undefined")

// ErrMetricDisabled is returned when configuration turns a metric off.
var ErrMetricDisabled = errors.New("metric disabled by configuration")

// UndefinedMetricError accompanies an absent metric value.
type UndefinedMetricError struct {
	Metric     string
	Entity     string
	Reason     UndefinedReason
	Candidates []string
}

func (e *UndefinedMetricError) Error() string {
	msg := fmt.Sprintf("%s undefined for %q: %s", e.Metric, e.Entity, e.Reason)
	if len(e.Candidates) > 0 {
		msg += " (" + strings.Join(e.Candidates, ", ") + ")"
	}
	return msg
}

func (e *UndefinedMetricError) Is(target error) bool {
	return target == ErrUndefinedMetric
}

// ReasonOf returns the undefined reason carried by err, or "".
func ReasonOf(err error) UndefinedReason {
	var ue *UndefinedMetricError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return ""
}
