package actuator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutwatch/sproutwatch/internal/activity"
	"github.com/sproutwatch/sproutwatch/internal/actuator"
	"github.com/sproutwatch/sproutwatch/internal/device"
	"github.com/sproutwatch/sproutwatch/internal/profiles"
	"github.com/sproutwatch/sproutwatch/internal/store"
)

type recordingPublisher struct {
	cmds []device.Command
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, cmd device.Command) error {
	if r.err != nil {
		return r.err
	}
	r.cmds = append(r.cmds, cmd)
	return nil
}

func TestWaterTargetsActiveProfile(t *testing.T) {
	pub := &recordingPublisher{}
	svc := profiles.NewService(store.NewMemoryStore())
	log := activity.NewLog(activity.DefaultCapacity)
	a := actuator.New(pub, svc, log)

	_, err := svc.Select(context.Background(), "basil")
	require.NoError(t, err)

	entry, err := a.Water(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Watering cycle started for Basil", entry.Message)
	assert.Equal(t, "Basil", entry.Highlight)

	require.Len(t, pub.cmds, 1)
	assert.Equal(t, "water", pub.cmds[0].Action)
	assert.Equal(t, "basil", pub.cmds[0].Plant)
	require.NotNil(t, pub.cmds[0].TargetLevel)
	assert.Equal(t, 65, *pub.cmds[0].TargetLevel)
}

func TestToggleLight(t *testing.T) {
	pub := &recordingPublisher{}
	log := activity.NewLog(activity.DefaultCapacity)
	a := actuator.New(pub, profiles.NewService(store.NewMemoryStore()), log)

	on, entry, err := a.ToggleLight(context.Background())
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, a.LightOn())
	assert.Equal(t, "Grow light switched ON", entry.Message)

	on, entry, err = a.ToggleLight(context.Background())
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, "Grow light switched OFF", entry.Message)

	require.Len(t, pub.cmds, 2)
	assert.True(t, *pub.cmds[0].On)
	assert.False(t, *pub.cmds[1].On)
}

func TestPublishFailureChangesNothing(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker gone")}
	log := activity.NewLog(activity.DefaultCapacity)
	a := actuator.New(pub, profiles.NewService(store.NewMemoryStore()), log)

	_, err := a.Water(context.Background())
	require.Error(t, err)

	on, _, err := a.ToggleLight(context.Background())
	require.Error(t, err)
	assert.False(t, on)
	assert.False(t, a.LightOn())
	assert.Zero(t, log.Len())
}

func TestNilPublisherLogsOnly(t *testing.T) {
	log := activity.NewLog(activity.DefaultCapacity)
	a := actuator.New(nil, profiles.NewService(store.NewMemoryStore()), log)

	_, err := a.Water(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, log.Len())
}
