package models

import (
	"time"
)

// ── Plant Profiles ──────────────────────────────────────────

// PlantProfile is a named bundle of acceptable climate ranges and a target
// water level. Values are replaced wholesale, never edited in place.
type PlantProfile struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required,excludesall=:"`
	TempMin     int    `json:"temp_min"`
	TempMax     int    `json:"temp_max" validate:"gtefield=TempMin"`
	HumidityMin int    `json:"humidity_min"`
	HumidityMax int    `json:"humidity_max" validate:"gtefield=HumidityMin"`
	WaterLevel  int    `json:"water_level" validate:"gte=0,lte=100"`
	Icon        string `json:"icon"`
}

// ProfileSource records what caused an active profile change.
type ProfileSource string

const (
	ProfileSourceStartup   ProfileSource = "startup"
	ProfileSourceSelection ProfileSource = "selection"
	ProfileSourceAssistant ProfileSource = "assistant"
)

// ProfileChange is published after a new active profile has been persisted.
type ProfileChange struct {
	Profile PlantProfile  `json:"profile"`
	Source  ProfileSource `json:"source"`
}

// ── Sensor Readings ─────────────────────────────────────────

// SensorReading is one sample from the garden device. Nil metrics mean
// "no data", not zero.
type SensorReading struct {
	Timestamp       string   `json:"timestamp"`
	TempC           *float64 `json:"temp_c"`
	HumidityPercent *float64 `json:"humidity_percent"`
	OK              bool     `json:"ok"`
	Error           *string  `json:"error"`
}

// MetricStatus is the qualitative classification of a reading against a range.
type MetricStatus string

const (
	StatusOptimal  MetricStatus = "optimal"
	StatusWarning  MetricStatus = "warning"
	StatusCritical MetricStatus = "critical"
	StatusOffline  MetricStatus = "offline"
)

// ── Chat ────────────────────────────────────────────────────

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one transcript entry.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatPartial is the in-flight assistant reply, published after every fragment.
type ChatPartial struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// ── Notices & Activity ──────────────────────────────────────

// NoticeLevel is the severity of a transient notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a transient user-visible message (rendered as a toast by views).
type Notice struct {
	Level       NoticeLevel `json:"level"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
}

// ActivityEntry is one line of the recent-activity log.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Highlight string    `json:"highlight,omitempty"`
}

// ── Connectivity ────────────────────────────────────────────

// ProbeStatus is the outcome class of a connectivity probe.
type ProbeStatus string

const (
	ProbeOnline  ProbeStatus = "online"
	ProbeWarning ProbeStatus = "warning"
	ProbeOffline ProbeStatus = "offline"
)

// ProbeResult reports reachability and round-trip latency of the device endpoint.
type ProbeResult struct {
	URL         string      `json:"url"`
	Connected   bool        `json:"connected"`
	Status      ProbeStatus `json:"status"`
	LatencyMs   *int64      `json:"latency_ms"`
	LastCheck   time.Time   `json:"last_check"`
	Message     string      `json:"message"`
	Description string      `json:"description"`
	LatencyNote string      `json:"latency_note"`
}

// ── Dashboard ───────────────────────────────────────────────

// MetricCard is the classified view of one sensor metric.
type MetricCard struct {
	Label    string       `json:"label"`
	Unit     string       `json:"unit"`
	Value    *float64     `json:"value"`
	Min      int          `json:"min"`
	Max      int          `json:"max"`
	Status   MetricStatus `json:"status"`
	Progress float64      `json:"progress"`
}

// DashboardSnapshot is everything the main dashboard view renders at once.
type DashboardSnapshot struct {
	Profile     PlantProfile `json:"profile"`
	Temperature MetricCard   `json:"temperature"`
	Humidity    MetricCard   `json:"humidity"`
	Online      bool         `json:"online"`
	LightOn     bool         `json:"light_on"`
	LastUpdate  string       `json:"last_update,omitempty"`
	Error       *string      `json:"error,omitempty"`
}

// ── Live Feed ───────────────────────────────────────────────

// LiveEvent is a message pushed to WebSocket clients.
type LiveEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	LiveReading     = "reading"
	LiveProfile     = "profile"
	LiveActivity    = "activity"
	LiveChatPartial = "chat.partial"
	LiveNotice      = "notice"
)
