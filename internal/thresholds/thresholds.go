// Package thresholds classifies sensor values against a plant profile's
// acceptable range.
package thresholds

import (
	"math"

	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// WarningMargin is the fraction of the range width beyond the nearer bound
// that is still reported as a warning rather than critical.
const WarningMargin = 0.2

// Classify maps a value and a closed interval [min, max] to a status.
//
// A nil value is offline. Values inside the interval are optimal. Outside it,
// a value within WarningMargin of the interval width from the nearer bound is
// a warning; anything further out is critical. A zero-width interval is
// optimal only on its single point. An inverted interval (min > max) contains
// nothing, so it never yields optimal.
func Classify(value *float64, min, max float64) models.MetricStatus {
	if value == nil {
		return models.StatusOffline
	}
	v := *value
	if math.IsNaN(v) {
		return models.StatusCritical
	}

	if min <= max && v >= min && v <= max {
		return models.StatusOptimal
	}

	width := math.Abs(max - min)
	if width == 0 {
		if v == min {
			return models.StatusOptimal
		}
		return models.StatusCritical
	}

	distance := math.Min(math.Abs(v-min), math.Abs(v-max))
	if distance < WarningMargin*width {
		return models.StatusWarning
	}
	return models.StatusCritical
}

// Progress returns where value sits inside [min, max] as a percentage clamped
// to [0, 100].
func Progress(value *float64, min, max float64) float64 {
	if value == nil || max == min || math.IsNaN(*value) {
		return 0
	}
	p := (*value - min) / (max - min) * 100
	return math.Max(0, math.Min(100, p))
}
