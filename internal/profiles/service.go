package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sproutwatch/sproutwatch/internal/observe"
	"github.com/sproutwatch/sproutwatch/internal/store"
	"github.com/sproutwatch/sproutwatch/pkg/models"

	"github.com/rs/zerolog/log"
)

// ErrUnknownProfile is returned when selecting an id not in the catalog.
var ErrUnknownProfile = errors.New("unknown plant profile")

// Service holds the active plant profile, persists it and notifies
// subscribers whenever it is replaced.
type Service struct {
	store   store.Store
	changes *observe.Subject[models.ProfileChange]

	// applyMu serializes persist+swap+notify so notifications follow write order.
	applyMu sync.Mutex
	mu      sync.RWMutex
	active  models.PlantProfile
}

// NewService creates a service whose active profile is the catalog default
// until Load is called.
func NewService(s store.Store) *Service {
	return &Service{
		store:   s,
		changes: observe.NewSubject[models.ProfileChange](),
		active:  builtin[0],
	}
}

// Load restores the active profile from the store. The saved profile data
// wins when it decodes and validates; otherwise the saved name marker is
// matched against the catalog; otherwise the catalog default stays active.
// Load does not notify subscribers.
func (s *Service) Load(ctx context.Context) (models.PlantProfile, error) {
	p, err := s.restore(ctx)
	if err != nil {
		return models.PlantProfile{}, err
	}
	s.mu.Lock()
	s.active = p
	s.mu.Unlock()

	log.Info().Str("plant", p.Name).Str("id", p.ID).Msg("🌱 Active plant profile loaded")
	return p, nil
}

func (s *Service) restore(ctx context.Context) (models.PlantProfile, error) {
	raw, err := s.store.Get(ctx, store.KeySelectedPlantData)
	switch {
	case err == nil:
		var p models.PlantProfile
		if jerr := json.Unmarshal([]byte(raw), &p); jerr != nil {
			log.Warn().Err(jerr).Msg("Ignoring unreadable saved plant profile")
		} else if verr := Validate(p); verr != nil {
			log.Warn().Err(verr).Msg("Ignoring invalid saved plant profile")
		} else {
			return p, nil
		}
	case !store.IsNotFound(err):
		return models.PlantProfile{}, fmt.Errorf("load saved profile: %w", err)
	}

	name, err := s.store.Get(ctx, store.KeySelectedPlantName)
	switch {
	case err == nil:
		if p, ok := LookupName(name); ok {
			return p, nil
		}
		log.Warn().Str("plant", name).Msg("Saved plant name not in catalog")
	case !store.IsNotFound(err):
		return models.PlantProfile{}, fmt.Errorf("load saved profile name: %w", err)
	}

	return builtin[0], nil
}

// Active returns the current profile.
func (s *Service) Active() models.PlantProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Select makes the catalog profile with the given id active.
func (s *Service) Select(ctx context.Context, id string) (models.PlantProfile, error) {
	p, ok := Lookup(id)
	if !ok {
		return models.PlantProfile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, id)
	}
	if err := s.Apply(ctx, p, models.ProfileSourceSelection); err != nil {
		return models.PlantProfile{}, err
	}
	return p, nil
}

// Apply validates p, persists it, makes it active and then notifies
// subscribers exactly once. Nothing changes when validation or the write
// fails. Subscribers must not call Apply or Select from their handler.
func (s *Service) Apply(ctx context.Context, p models.PlantProfile, source models.ProfileSource) error {
	if err := Validate(p); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	prev, err := s.store.Get(ctx, store.KeySelectedPlantData)
	hadPrev := err == nil
	if err != nil && !store.IsNotFound(err) {
		return fmt.Errorf("read saved profile: %w", err)
	}

	if err := s.store.Set(ctx, store.KeySelectedPlantData, string(data)); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	if err := s.store.Set(ctx, store.KeySelectedPlantName, p.Name); err != nil {
		s.restoreData(ctx, prev, hadPrev)
		return fmt.Errorf("persist profile name: %w", err)
	}

	s.mu.Lock()
	s.active = p
	s.mu.Unlock()

	log.Info().
		Str("plant", p.Name).
		Str("id", p.ID).
		Str("source", string(source)).
		Msg("Active plant profile changed")

	s.changes.Publish(models.ProfileChange{Profile: p, Source: source})
	return nil
}

// restoreData puts the saved profile data back after a half-finished write so
// the next Load does not pick up a profile that was never applied.
func (s *Service) restoreData(ctx context.Context, prev string, hadPrev bool) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if hadPrev {
		err = s.store.Set(ctx, store.KeySelectedPlantData, prev)
	} else {
		err = s.store.Delete(ctx, store.KeySelectedPlantData)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to roll back saved plant profile")
	}
}

// Subscribe registers fn for profile changes and returns its unsubscribe func.
func (s *Service) Subscribe(fn func(models.ProfileChange)) func() {
	return s.changes.Subscribe(fn)
}
