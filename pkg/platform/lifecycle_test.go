package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingHook(name string, calls *[]string, startErr error) Hook {
	return Hook{
		Name: name,
		Start: func(context.Context) error {
			*calls = append(*calls, "start "+name)
			return startErr
		},
		Stop: func(context.Context) error {
			*calls = append(*calls, "stop "+name)
			return nil
		},
	}
}

func TestLifecycle_StartAndStop(t *testing.T) {
	var calls []string
	lc := NewLifecycle()
	lc.Append(recordingHook("a", &calls, nil))
	lc.Append(recordingHook("b", &calls, nil))

	require.NoError(t, lc.Start(context.Background()))
	assert.True(t, lc.IsStarted())

	require.NoError(t, lc.Stop(context.Background()))
	assert.False(t, lc.IsStarted())

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, calls)
}

func TestLifecycle_StartTwice(t *testing.T) {
	lc := NewLifecycle()
	require.NoError(t, lc.Start(context.Background()))
	assert.Error(t, lc.Start(context.Background()))
}

func TestLifecycle_StopNotStarted(t *testing.T) {
	var calls []string
	lc := NewLifecycle()
	lc.Append(recordingHook("a", &calls, nil))

	assert.NoError(t, lc.Stop(context.Background()))
	assert.Empty(t, calls)
}

func TestLifecycle_RollbackStopsStartedHooksOnly(t *testing.T) {
	var calls []string
	lc := NewLifecycle()
	lc.Append(recordingHook("a", &calls, nil))
	lc.OnStop("closer", func(context.Context) error {
		calls = append(calls, "stop closer")
		return errors.New("close failed")
	})
	lc.Append(recordingHook("b", &calls, errors.New("boom")))
	lc.Append(recordingHook("c", &calls, nil))

	err := lc.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting b")
	assert.False(t, lc.IsStarted())

	assert.Equal(t, []string{"start a", "start b", "stop closer", "stop a"}, calls)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestLifecycle_StopJoinsErrors(t *testing.T) {
	lc := NewLifecycle()
	lc.RegisterCloser("first", closerFunc(func() error { return errors.New("first failed") }))
	lc.RegisterCloser("second", closerFunc(func() error { return errors.New("second failed") }))

	require.NoError(t, lc.Start(context.Background()))
	err := lc.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopping first")
	assert.Contains(t, err.Error(), "stopping second")
}
