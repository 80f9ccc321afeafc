package watchdog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wifitap/internal/config"
	"wifitap/internal/correlator"
	"wifitap/internal/health"
	"wifitap/internal/hopper"
	"wifitap/internal/logging"
	"wifitap/internal/spoof"
)

type fakeFrameCounter struct {
	frames  uint64
	parsed  uint64
	errors  uint64
	running bool
}

func (f *fakeFrameCounter) FramesTotal() uint64    { return f.frames }
func (f *fakeFrameCounter) FramesParsed() uint64   { return f.parsed }
func (f *fakeFrameCounter) CaptureErrors() uint64  { return f.errors }
func (f *fakeFrameCounter) TsharkRunning() bool    { return f.running }

type fakeSampler struct {
	sample health.Sample
}

func (f *fakeSampler) Sample() health.Sample { return f.sample }

func testLogger() *logging.Logger {
	return logging.NewLogger(&config.Config{TapUUID: "test-tap"}, "error", "text")
}

func newTestWatchdog(t *testing.T, counter *fakeFrameCounter, sampler *fakeSampler, starvationTimeout time.Duration, memThreshold float64) *Watchdog {
	t.Helper()
	designations, err := correlator.NewDesignationLookup()
	if err != nil {
		t.Fatal(err)
	}
	corr := correlator.New(spoof.NewDetector(), designations)
	hop := hopper.New("wlan0mon", nil, time.Second, false, testLogger())

	return New(testLogger(), sampler, nil, counter, corr, hop, starvationTimeout, memThreshold, time.Second, 10*time.Second, "tap-uuid", "tap-name", "wlan0mon", "test", nil, nil, nil)
}

func TestCheck_NoErrorWhenFramesAdvancing(t *testing.T) {
	counter := &fakeFrameCounter{frames: 10, parsed: 10}
	sampler := &fakeSampler{sample: health.Sample{MemoryPercent: 10}}
	w := newTestWatchdog(t, counter, sampler, time.Minute, 90)

	assert.NoError(t, w.check())
}

func TestCheck_StarvationAfterTimeout(t *testing.T) {
	counter := &fakeFrameCounter{frames: 10, parsed: 10}
	sampler := &fakeSampler{sample: health.Sample{MemoryPercent: 10}}
	w := newTestWatchdog(t, counter, sampler, 10*time.Millisecond, 90)

	assert.NoError(t, w.check(), "first check observes the initial frame count and should not starve yet")

	time.Sleep(20 * time.Millisecond)

	err := w.check()
	assert.True(t, errors.Is(err, ErrStarvation))
	assert.Equal(t, ExitStarvation, exitCode(err))
}

func TestCheck_ResetsStarvationClockOnAdvance(t *testing.T) {
	counter := &fakeFrameCounter{frames: 10, parsed: 10}
	sampler := &fakeSampler{sample: health.Sample{MemoryPercent: 10}}
	w := newTestWatchdog(t, counter, sampler, 10*time.Millisecond, 90)

	assert.NoError(t, w.check())

	time.Sleep(5 * time.Millisecond)
	counter.frames = 20
	assert.NoError(t, w.check(), "a frame-count advance must reset the starvation clock")
}

func TestCheck_MemoryPressure(t *testing.T) {
	counter := &fakeFrameCounter{frames: 10, parsed: 10}
	sampler := &fakeSampler{sample: health.Sample{MemoryPercent: 95}}
	w := newTestWatchdog(t, counter, sampler, time.Minute, 90)

	err := w.check()
	assert.True(t, errors.Is(err, ErrMemoryPressure))
	assert.Equal(t, ExitMemoryPressure, exitCode(err))
}

func TestCheck_PipelineStallIsWarningOnlyNotExit(t *testing.T) {
	counter := &fakeFrameCounter{frames: 10, parsed: 10}
	sampler := &fakeSampler{sample: health.Sample{MemoryPercent: 10}}
	w := newTestWatchdog(t, counter, sampler, 10*time.Millisecond, 90)

	assert.NoError(t, w.check())

	counter.frames = 20 // capture still advancing
	time.Sleep(20 * time.Millisecond)

	err := w.check()
	assert.NoError(t, err, "a stalled parser must never trigger process exit, only a log warning")
}

func TestCheck_PipelineStallResetsClockWhenParsedAdvances(t *testing.T) {
	counter := &fakeFrameCounter{frames: 10, parsed: 10}
	sampler := &fakeSampler{sample: health.Sample{MemoryPercent: 10}}
	w := newTestWatchdog(t, counter, sampler, time.Minute, 90)

	assert.NoError(t, w.check())

	counter.frames = 20
	counter.parsed = 20
	assert.NoError(t, w.check())
	assert.Equal(t, uint64(20), w.lastFramesParsed)
}
