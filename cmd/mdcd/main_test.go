package main

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/speters/mdcd/mdc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDisplayID(t *testing.T) {
	id, err := checkDisplayID(0)
	require.NoError(t, err)
	assert.Equal(t, mdc.DisplayID(0), id)

	id, err = checkDisplayID(0xFF)
	require.NoError(t, err)
	assert.Equal(t, mdc.DisplayID(0xFF), id)

	for _, bad := range []int{-1, 0xFE, 0x100} {
		_, err := checkDisplayID(bad)
		assert.Error(t, err, "id %d", bad)
	}
}

func TestParseOnOff(t *testing.T) {
	for _, arg := range []string{"on", "ON", "1", "true"} {
		on, err := parseOnOff(arg)
		require.NoError(t, err)
		assert.True(t, on, arg)
	}
	for _, arg := range []string{"off", "Off", "0", "false"} {
		on, err := parseOnOff(arg)
		require.NoError(t, err)
		assert.False(t, on, arg)
	}
	_, err := parseOnOff("maybe")
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging(false, "text", ""))
	assert.NoError(t, setupLogging(true, "json", ""))
	assert.Error(t, setupLogging(false, "xml", ""))
	t.Cleanup(func() { _ = setupLogging(false, "text", "") })
}

func TestOpenSessionNeedsLink(t *testing.T) {
	connTo = ""
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _, err := openSession(ctx)
	assert.Error(t, err)
}

func TestListenStop(t *testing.T) {
	ctx, stop := listenStop()
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled on SIGTERM")
	}
	stop()

	ctx, stop = listenStop()
	stop()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
