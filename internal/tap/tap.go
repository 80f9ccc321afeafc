// Package tap wires the capture, parsing, correlation, hopping,
// publishing, and watchdog tasks into the single process described in
// spec.md §5, and owns graceful shutdown.
package tap

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"wifitap/internal/astm"
	"wifitap/internal/capture"
	"wifitap/internal/config"
	"wifitap/internal/correlator"
	"wifitap/internal/health"
	"wifitap/internal/hopper"
	"wifitap/internal/logging"
	"wifitap/internal/publish"
	"wifitap/internal/spoof"
	"wifitap/internal/types"
	"wifitap/internal/watchdog"
)

// Version is set at build time via -ldflags, falling back to "dev".
var Version = "dev"

// frameQueueSize bounds the capture-to-parser handoff channel. Unlike the
// publisher's outbound queue, this one is never dropped from — the
// capture driver blocks on send, applying backpressure upstream to
// tshark's own internal buffering rather than losing frames silently.
const frameQueueSize = 2048

// Tap is the top-level orchestrator: one process, one monitor interface,
// one collector connection, per spec.md §1's scope.
type Tap struct {
	cfg    *config.Config
	logger *logging.Logger

	driver      *capture.Driver
	parser      *astm.Parser
	correlator  *correlator.Correlator
	hop         *hopper.Hopper
	publisher   *publish.Publisher
	watchdog    *watchdog.Watchdog

	framesParsed *uint64
}

// pipelineCounter adapts capture.Driver plus the tap's own parsed-frame
// counter to the watchdog.FrameCounter interface, since the capture driver
// itself has no notion of parse success or failure.
type pipelineCounter struct {
	driver *capture.Driver
	parsed *uint64
}

func (p *pipelineCounter) FramesTotal() uint64   { return p.driver.FramesTotal() }
func (p *pipelineCounter) FramesParsed() uint64  { return atomic.LoadUint64(p.parsed) }
func (p *pipelineCounter) CaptureErrors() uint64 { return p.driver.CaptureErrors() }
func (p *pipelineCounter) TsharkRunning() bool   { return p.driver.TsharkRunning() }

// New builds a Tap from the loaded config. It connects to the collector
// eagerly so a misconfigured address fails fast at startup rather than
// after capture has begun.
func New(cfg *config.Config, logger *logging.Logger) (*Tap, error) {
	pub, err := publish.New(
		fmt.Sprintf("nats://%s:%d", cfg.NodeHost, cfg.NodePort),
		cfg.ZMQBufferSize,
		cfg.ZMQHWM,
		logger.WithComponent("publish"),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing publisher: %w", err)
	}

	designations, err := correlator.NewDesignationLookup()
	if err != nil {
		return nil, fmt.Errorf("loading designation table: %w", err)
	}

	parser, err := astm.NewParser()
	if err != nil {
		return nil, fmt.Errorf("loading fingerprint table: %w", err)
	}

	detector := spoof.NewDetector()
	corr := correlator.New(detector, designations)

	plan := cfg.ChannelPlan()
	hop := hopper.New(
		cfg.Interface,
		plan,
		time.Duration(cfg.ChannelDwellMs)*time.Millisecond,
		cfg.AutoMonitor,
		logger.WithComponent("hopper"),
	)

	driver := capture.NewDriver(
		cfg.TsharkPath,
		cfg.Interface,
		time.Duration(cfg.TsharkRestartDelayS)*time.Second,
		logger.WithComponent("capture"),
		hop.Current,
	)

	sampler := health.New("/")

	var framesParsed uint64
	counter := &pipelineCounter{driver: driver, parsed: &framesParsed}

	wd := watchdog.New(
		logger.WithComponent("watchdog"),
		sampler,
		pub,
		counter,
		corr,
		hop,
		time.Duration(cfg.StarvationTimeoutS)*time.Second,
		cfg.MemoryPercentThreshold,
		5*time.Second,
		time.Duration(cfg.HeartbeatIntervalS)*time.Second,
		cfg.TapUUID,
		cfg.TapName,
		cfg.Interface,
		Version,
		cfg.TapLatitude,
		cfg.TapLongitude,
		plan,
	)

	return &Tap{
		cfg:          cfg,
		logger:       logger,
		driver:       driver,
		parser:       parser,
		correlator:   corr,
		hop:          hop,
		publisher:    pub,
		watchdog:     wd,
		framesParsed: &framesParsed,
	}, nil
}

// Run starts every task and blocks until ctx is cancelled, then drains in
// progress. The watchdog task may also terminate the process directly via
// os.Exit, in which case Run never returns at all, per spec.md §7.
func (t *Tap) Run(ctx context.Context) error {
	frames := make(chan types.FrameRecord, frameQueueSize)

	errs := make(chan error, 4)

	go func() {
		errs <- t.driver.Run(ctx, frames)
	}()
	go func() {
		errs <- t.hop.Run(ctx)
	}()
	go func() {
		errs <- t.publisher.Run(ctx)
	}()
	go func() {
		errs <- t.watchdog.Run(ctx)
	}()

	evictTicker := time.NewTicker(time.Duration(t.cfg.StarvationTimeoutS) * time.Second)
	defer evictTicker.Stop()

	starvationTimeout := time.Duration(t.cfg.StarvationTimeoutS) * time.Second

	for {
		select {
		case <-ctx.Done():
			t.driver.Stop()
			t.drainFrames(frames)
			t.publisher.Close()
			return nil

		case frame := <-frames:
			t.processFrame(frame)

		case <-evictTicker.C:
			evicted := t.correlator.EvictStale(time.Now(), starvationTimeout)
			if evicted > 0 {
				t.logger.LogCorrelatorEvent("uav_evicted", "count", evicted)
			}

		case err := <-errs:
			if err != nil {
				t.logger.LogWatchdogEvent("task_error", "error", err)
			}
		}
	}
}

// drainFrames processes whatever frames are already buffered in the
// capture channel, best-effort, per spec.md §5's shutdown sequence —
// the processor drains before closing the publisher rather than dropping
// in-flight work on the floor.
func (t *Tap) drainFrames(frames <-chan types.FrameRecord) {
	for {
		select {
		case frame := <-frames:
			t.processFrame(frame)
		default:
			return
		}
	}
}

func (t *Tap) processFrame(frame types.FrameRecord) {
	event, ok := t.parser.Parse(frame)
	if !ok {
		return
	}
	atomic.AddUint64(t.framesParsed, 1)

	state := t.correlator.Update(event)

	if len(state.SpoofFlags) > 0 {
		t.logger.LogSpoofEvent(state.MAC, sortedStrings(state.SpoofFlags), state.TrustScore)
	}

	report := correlator.BuildReport(t.cfg.TapUUID, state)
	t.publisher.PublishReport(report)
}

func sortedStrings(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
