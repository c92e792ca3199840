// Package dashboard assembles the Command Center view from the latest
// reading and the active profile.
package dashboard

import (
	"github.com/sproutwatch/sproutwatch/internal/thresholds"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// Metric names used for cards and metric labels.
const (
	MetricTemperature = "temperature"
	MetricHumidity    = "humidity"
)

// Build produces a snapshot. A nil reading renders both cards offline.
func Build(reading *models.SensorReading, profile models.PlantProfile, lightOn bool) models.DashboardSnapshot {
	snap := models.DashboardSnapshot{
		Profile: profile,
		LightOn: lightOn,
	}

	var temp, hum *float64
	if reading != nil {
		temp, hum = reading.TempC, reading.HumidityPercent
		snap.Online = reading.OK
		snap.LastUpdate = reading.Timestamp
		snap.Error = reading.Error
	}

	snap.Temperature = Card("Temperature", "°C", temp, profile.TempMin, profile.TempMax)
	snap.Humidity = Card("Humidity", "%", hum, profile.HumidityMin, profile.HumidityMax)
	return snap
}

// Card classifies one metric against [min, max].
func Card(label, unit string, value *float64, min, max int) models.MetricCard {
	return models.MetricCard{
		Label:    label,
		Unit:     unit,
		Value:    value,
		Min:      min,
		Max:      max,
		Status:   thresholds.Classify(value, float64(min), float64(max)),
		Progress: thresholds.Progress(value, float64(min), float64(max)),
	}
}
