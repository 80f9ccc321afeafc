package hopper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wifitap/internal/config"
	"wifitap/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(&config.Config{TapUUID: "test-tap"}, "error", "text")
}

func TestRun_IdleWhenDisabled(t *testing.T) {
	h := New("wlan0mon", []int{1, 6, 11}, 10*time.Millisecond, false, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := h.Run(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, h.Current(), "a disabled hopper must never touch the interface")
}

func TestRun_IdleWhenPlanEmpty(t *testing.T) {
	h := New("wlan0mon", nil, 10*time.Millisecond, true, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := h.Run(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, h.Current())
}
