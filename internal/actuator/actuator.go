// Package actuator turns dashboard actions into device commands.
package actuator

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sproutwatch/sproutwatch/internal/device"
	"github.com/sproutwatch/sproutwatch/internal/metrics"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// Publisher delivers a command to the device.
type Publisher interface {
	Publish(ctx context.Context, cmd device.Command) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, cmd device.Command) error

func (f PublisherFunc) Publish(ctx context.Context, cmd device.Command) error { return f(ctx, cmd) }

// LogPublisher only logs commands. It is used when no broker is configured.
var LogPublisher = PublisherFunc(func(_ context.Context, cmd device.Command) error {
	log.Info().Str("action", cmd.Action).Str("plant", cmd.Plant).Msg("Device command (no broker configured)")
	return nil
})

// ActiveProfile supplies the profile watering targets.
type ActiveProfile interface {
	Active() models.PlantProfile
}

// Recorder receives activity log lines.
type Recorder interface {
	Add(message, highlight string) models.ActivityEntry
}

// Actuator sends water and light commands.
type Actuator struct {
	pub      Publisher
	profiles ActiveProfile
	activity Recorder

	mu      sync.Mutex
	lightOn bool
}

// New creates an actuator. A nil publisher falls back to LogPublisher.
func New(pub Publisher, profiles ActiveProfile, activity Recorder) *Actuator {
	if pub == nil {
		pub = LogPublisher
	}
	return &Actuator{pub: pub, profiles: profiles, activity: activity}
}

// Water starts a watering cycle towards the active profile's water level.
func (a *Actuator) Water(ctx context.Context) (models.ActivityEntry, error) {
	p := a.profiles.Active()
	level := p.WaterLevel
	cmd := device.Command{Action: "water", TargetLevel: &level, Plant: p.ID}

	err := a.pub.Publish(ctx, cmd)
	metrics.ActionSent(cmd.Action, err)
	if err != nil {
		return models.ActivityEntry{}, fmt.Errorf("water: %w", err)
	}

	log.Info().Str("plant", p.Name).Int("target_level", level).Msg("💧 Watering cycle started")
	return a.activity.Add("Watering cycle started for "+p.Name, p.Name), nil
}

// ToggleLight flips the grow light. The state only changes once the command
// has been accepted.
func (a *Actuator) ToggleLight(ctx context.Context) (bool, models.ActivityEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := !a.lightOn
	cmd := device.Command{Action: "light", On: &next}

	err := a.pub.Publish(ctx, cmd)
	metrics.ActionSent(cmd.Action, err)
	if err != nil {
		return a.lightOn, models.ActivityEntry{}, fmt.Errorf("light: %w", err)
	}
	a.lightOn = next

	state := "OFF"
	if next {
		state = "ON"
	}
	log.Info().Bool("on", next).Msg("Grow light toggled")
	return next, a.activity.Add("Grow light switched "+state, state), nil
}

// LightOn reports the last acknowledged light state.
func (a *Actuator) LightOn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lightOn
}
