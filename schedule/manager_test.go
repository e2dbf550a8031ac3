package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	specs, err := ParseSpecs("arithmetic,strings:0 2 * * *;smoke:0 3 * * *", testAvailableGroups)
	require.NoError(t, err)

	manager, err := NewManager(specs, &mockRunnable{}, discard)
	require.NoError(t, err)
	assert.Len(t, manager.triggers, 2)

	schedules := manager.Schedules()
	require.Len(t, schedules, 2)
	assert.Equal(t, []string{"arithmetic", "strings"}, schedules[0].Groups)
	assert.Equal(t, "0 3 * * *", schedules[1].Schedule)
	assert.Equal(t, 2, schedules[0].NextRun.Hour())
}

func TestNewManager_InvalidCron(t *testing.T) {
	_, err := NewManager([]Spec{{Groups: []string{"smoke"}, CronSpec: "bad"}}, &mockRunnable{}, discard)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCronSpec)
	assert.ErrorContains(t, err, "creating trigger for 'smoke:bad'")
}

func TestManager_NextRun(t *testing.T) {
	manager, err := NewManager(nil, &mockRunnable{}, discard)
	require.NoError(t, err)
	assert.True(t, manager.NextRun().IsZero())

	specs := []Spec{
		{Groups: []string{"arithmetic"}, CronSpec: "0 0 1 1 *"},
		{Groups: []string{"smoke"}, CronSpec: "* * * * *"},
	}
	manager, err = NewManager(specs, &mockRunnable{}, discard)
	require.NoError(t, err)

	next := manager.NextRun()
	assert.True(t, next.After(time.Now()))
	assert.WithinDuration(t, time.Now(), next, time.Minute+time.Second)
}

func TestManager_TriggerRunsItsGroups(t *testing.T) {
	runnable := &mockRunnable{}
	specs := []Spec{{Groups: []string{"arithmetic", "smoke"}, CronSpec: "0 0 1 1 *"}}
	manager, err := NewManager(specs, runnable, discard)
	require.NoError(t, err)

	manager.triggers[0].fire()

	assert.Equal(t, int32(1), runnable.runCount.Load())
	assert.Equal(t, []string{"arithmetic", "smoke"}, runnable.groups)
}

func TestManager_Start(t *testing.T) {
	specs := []Spec{{Groups: []string{"smoke"}, CronSpec: "0 0 1 1 *"}}
	runnable := &mockRunnable{}
	manager, err := NewManager(specs, runnable, discard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	cancel()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), runnable.runCount.Load())
}
