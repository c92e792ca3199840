// Package metrics exposes Prometheus collectors for the garden dashboard.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sproutwatch/sproutwatch/pkg/models"
)

const namespace = "sproutwatch"

type collectors struct {
	readingsTotal   *prometheus.CounterVec
	sensorValue     *prometheus.GaugeVec
	metricStatus    *prometheus.GaugeVec
	chatTotal       *prometheus.CounterVec
	profileChanges  *prometheus.CounterVec
	actionsTotal    *prometheus.CounterVec
	probeLatency    *prometheus.HistogramVec
	httpTotal       *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	liveConnections prometheus.Gauge
}

var get = sync.OnceValue(func() *collectors {
	return &collectors{
		readingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Sensor readings sampled, by outcome.",
		}, []string{"result"}),
		sensorValue: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Last sampled sensor value.",
		}, []string{"metric"}),
		metricStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_status",
			Help:      "1 for the current status of each metric, 0 otherwise.",
		}, []string{"metric", "status"}),
		chatTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests, by outcome.",
		}, []string{"result"}),
		profileChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_changes_total",
			Help:      "Active plant profile changes, by source.",
		}, []string{"source"}),
		actionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_actions_total",
			Help:      "Actuator commands sent to the device.",
		}, []string{"action", "result"}),
		probeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Connectivity probe round-trip latency.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"status"}),
		httpTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status class.",
		}, []string{"route", "method", "code"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		liveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Connected live-feed WebSocket clients.",
		}),
	}
})

var allStatuses = []models.MetricStatus{
	models.StatusOptimal, models.StatusWarning, models.StatusCritical, models.StatusOffline,
}

// ReadingSampled counts one sampler tick.
func ReadingSampled(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	get().readingsTotal.WithLabelValues(result).Inc()
}

// SetMetric records the latest value and status of one sensor metric.
func SetMetric(metric string, value *float64, status models.MetricStatus) {
	c := get()
	if value != nil {
		c.sensorValue.WithLabelValues(metric).Set(*value)
	} else {
		c.sensorValue.DeleteLabelValues(metric)
	}
	for _, s := range allStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		c.metricStatus.WithLabelValues(metric, string(s)).Set(v)
	}
}

// ChatCompleted counts one chat request by outcome label.
func ChatCompleted(result string) {
	get().chatTotal.WithLabelValues(result).Inc()
}

// ProfileChanged counts one active profile change.
func ProfileChanged(source models.ProfileSource) {
	get().profileChanges.WithLabelValues(string(source)).Inc()
}

// ActionSent counts one actuator command.
func ActionSent(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	get().actionsTotal.WithLabelValues(action, result).Inc()
}

// ProbeCompleted records a probe result.
func ProbeCompleted(status models.ProbeStatus, latency time.Duration) {
	get().probeLatency.WithLabelValues(string(status)).Observe(latency.Seconds())
}

// HTTPRequest records one served request. route should be a pattern, not a
// raw path, to keep label cardinality bounded.
func HTTPRequest(route, method string, status int, d time.Duration) {
	c := get()
	c.httpTotal.WithLabelValues(route, method, statusClass(status)).Inc()
	c.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// LiveConnectionsDelta adjusts the connected live-feed client gauge.
func LiveConnectionsDelta(delta int) {
	get().liveConnections.Add(float64(delta))
}

// Handler serves the default registry.
func Handler() http.Handler {
	get()
	return promhttp.Handler()
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}
