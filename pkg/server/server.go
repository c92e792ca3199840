// Package server wires the SproutWatch components together.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	srv.Start(ctx)
//	defer srv.Close(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sproutwatch/sproutwatch/internal/activity"
	"github.com/sproutwatch/sproutwatch/internal/actuator"
	"github.com/sproutwatch/sproutwatch/internal/api"
	"github.com/sproutwatch/sproutwatch/internal/api/handlers"
	"github.com/sproutwatch/sproutwatch/internal/assistant"
	"github.com/sproutwatch/sproutwatch/internal/config"
	"github.com/sproutwatch/sproutwatch/internal/dashboard"
	"github.com/sproutwatch/sproutwatch/internal/device"
	"github.com/sproutwatch/sproutwatch/internal/live"
	"github.com/sproutwatch/sproutwatch/internal/llm"
	"github.com/sproutwatch/sproutwatch/internal/metrics"
	"github.com/sproutwatch/sproutwatch/internal/probe"
	"github.com/sproutwatch/sproutwatch/internal/profiles"
	"github.com/sproutwatch/sproutwatch/internal/sampler"
	"github.com/sproutwatch/sproutwatch/internal/store"
	"github.com/sproutwatch/sproutwatch/internal/telemetry"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// Server holds the initialized SproutWatch backend.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Config is the server configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	Store    store.Store
	Profiles *profiles.Service
	Activity *activity.Log
	Sampler  *sampler.Sampler
	Chat     *assistant.Session
	Actuator *actuator.Actuator
	Prober   *probe.Prober
	Hub      *live.Hub

	llm        *llm.Client
	httpSource *sampler.HTTPSource
	device     *device.Client
	watcher    *config.FileWatcher
	unsubs     []func()
	shutdown   telemetry.Shutdown
	reloadMu   sync.Mutex
}

// New loads configuration from the environment and builds the server.
func New(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig builds every component from cfg. Nothing runs in the
// background until Start.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		shutdown(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Server{
		Config:   cfg,
		Port:     cfg.Port,
		Store:    kv,
		Activity: activity.NewLog(activity.DefaultCapacity),
		Prober:   probe.New(cfg.Device.ProbeTimeout),
		Hub:      live.NewHub(),
		llm:      llm.NewClient(cfg.LLM),
		shutdown: shutdown,
	}

	s.Profiles = profiles.NewService(kv)
	active, err := s.Profiles.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not restore plant profile, using default")
	}
	log.Info().Str("plant", active.Name).Msg("🌱 Plant profile loaded")

	s.httpSource = sampler.NewHTTPSource(cfg.Device.URL, cfg.Device.ProbeTimeout)
	var (
		source    sampler.Source     = s.httpSource
		publisher actuator.Publisher = actuator.LogPublisher
	)
	if cfg.MQTT.Broker != "" {
		dc, err := device.Connect(cfg.MQTT)
		if err != nil {
			log.Warn().Err(err).Msg("MQTT unavailable, polling device over HTTP")
		} else {
			s.device = dc
			source, publisher = dc, dc
			log.Info().Str("broker", cfg.MQTT.Broker).Msg("✅ Device link over MQTT")
		}
	}

	s.Sampler = sampler.New(source, cfg.Device.SampleInterval)
	s.Actuator = actuator.New(publisher, s.Profiles, s.Activity)
	s.Chat = assistant.NewSession(s.llm, s.Profiles, s.Activity)
	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("LLM_API_KEY not set, chat requests will fail")
	}

	s.bridge()

	h := &handlers.Handlers{
		Profiles:  s.Profiles,
		Activity:  s.Activity,
		Sampler:   s.Sampler,
		Actuator:  s.Actuator,
		Chat:      s.Chat,
		Prober:    s.Prober,
		DeviceURL: s.httpSource.URL,
	}
	s.Handler = api.NewRouter(cfg, h, s.Hub)

	log.Info().Msg("✅ Command Center initialized")
	return s, nil
}

// bridge forwards component events to metrics, the activity log and the
// live feed.
func (s *Server) bridge() {
	s.unsubs = append(s.unsubs,
		s.Sampler.Subscribe(func(r models.SensorReading) {
			metrics.ReadingSampled(r.OK)
			snap := dashboard.Build(&r, s.Profiles.Active(), s.Actuator.LightOn())
			metrics.SetMetric(dashboard.MetricTemperature, snap.Temperature.Value, snap.Temperature.Status)
			metrics.SetMetric(dashboard.MetricHumidity, snap.Humidity.Value, snap.Humidity.Status)
			s.Hub.Publish(models.LiveReading, r)
		}),
		s.Profiles.Subscribe(func(c models.ProfileChange) {
			metrics.ProfileChanged(c.Source)
			if c.Source == models.ProfileSourceSelection {
				s.Activity.Add("Monitoring switched to "+c.Profile.Name, c.Profile.Name)
			}
			s.Hub.Publish(models.LiveProfile, c)
		}),
		s.Activity.Subscribe(func(e models.ActivityEntry) {
			s.Hub.Publish(models.LiveActivity, e)
		}),
		s.Chat.OnPartial(func(p models.ChatPartial) {
			s.Hub.Publish(models.LiveChatPartial, p)
		}),
		s.Chat.OnNotice(func(n models.Notice) {
			s.Hub.Publish(models.LiveNotice, n)
		}),
		s.Chat.OnResult(metrics.ChatCompleted),
	)
}

// Start launches the sampler and, when a settings file is configured, the
// file watcher.
func (s *Server) Start(ctx context.Context) error {
	s.Sampler.Start(ctx)

	if s.Config.ConfigFile == "" {
		return nil
	}
	w, err := config.NewFileWatcher(config.WatcherConfig{
		Path:    s.Config.ConfigFile,
		Handler: s.Reload,
	})
	if err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	s.watcher = w
	log.Info().Str("path", s.Config.ConfigFile).Msg("👀 Watching settings file")
	return nil
}

// Reload applies changed file settings to the running components.
// Environment variables still win over the file.
func (s *Server) Reload(fs *config.FileSettings) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	next := *s.Config
	fs.Apply(&next, config.EnvIsSet)

	if next.LogLevel != s.Config.LogLevel {
		if lvl, err := zerolog.ParseLevel(next.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		} else {
			log.Warn().Str("level", next.LogLevel).Msg("Ignoring unknown log level")
			next.LogLevel = s.Config.LogLevel
		}
	}
	if next.Device.URL != s.Config.Device.URL {
		s.httpSource.SetURL(next.Device.URL)
	}
	if next.Device.SampleInterval != s.Config.Device.SampleInterval {
		s.Sampler.SetInterval(next.Device.SampleInterval)
	}
	if next.Device.ProbeTimeout != s.Config.Device.ProbeTimeout {
		s.Prober.SetTimeout(next.Device.ProbeTimeout)
	}
	if next.LLM.Model != s.Config.LLM.Model {
		s.llm.SetModel(next.LLM.Model)
	}
	if next.MQTT.TopicPrefix != s.Config.MQTT.TopicPrefix && s.device != nil {
		log.Warn().Msg("mqtt.topic_prefix changes take effect after restart")
		next.MQTT.TopicPrefix = s.Config.MQTT.TopicPrefix
	}

	s.Config.LogLevel = next.LogLevel
	s.Config.Device = next.Device
	s.Config.LLM.Model = next.LLM.Model
	s.Config.MQTT.TopicPrefix = next.MQTT.TopicPrefix
	log.Info().
		Str("device_url", next.Device.URL).
		Dur("sample_interval", next.Device.SampleInterval).
		Str("model", next.LLM.Model).
		Msg("🔄 Settings reloaded")
}

// Close stops background work and releases resources.
func (s *Server) Close(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.Sampler.Stop()
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.Hub.Close()
	if s.device != nil {
		s.device.Close()
	}

	var errs []error
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := s.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	return errors.Join(errs...)
}
