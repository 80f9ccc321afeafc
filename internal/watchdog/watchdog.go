// Package watchdog periodically checks the tap's own health and exits the
// process with a distinguished code when it judges itself unrecoverable,
// per spec.md §4.H / §7. It also assembles the heartbeat document, since
// both tasks read the same underlying counters.
package watchdog

import (
	"context"
	"errors"
	"os"
	"time"

	"wifitap/internal/correlator"
	"wifitap/internal/health"
	"wifitap/internal/hopper"
	"wifitap/internal/logging"
	"wifitap/internal/publish"
	"wifitap/internal/types"
)

// Exit codes for the two deliberate watchdog-triggered exits. These are
// not mandated by spec.md, only required to be distinguished; original
// source's extra threshold checks (buffer depth, pipeline stall) are
// folded into warning logs rather than additional exit codes, per
// SPEC_FULL.md §4.H.
const (
	ExitStarvation      = 2
	ExitMemoryPressure  = 3
)

// ErrStarvation and ErrMemoryPressure are the sentinel causes logged
// before exit.
var (
	ErrStarvation     = errors.New("capture starved: no frames advanced within timeout")
	ErrMemoryPressure = errors.New("memory usage exceeded configured threshold")
)

// FrameCounter is the set of pipeline counters the watchdog needs to
// detect starvation (capture.Driver's counters plus the parsed-frame
// count), kept as an interface so this package does not import
// capture (which would create an import cycle were capture ever to need
// watchdog state).
type FrameCounter interface {
	FramesTotal() uint64
	FramesParsed() uint64
	CaptureErrors() uint64
	TsharkRunning() bool
}

// HealthSampler is the subset of health.Sampler the watchdog needs, kept
// as an interface so tests can supply fixed readings instead of real host
// metrics.
type HealthSampler interface {
	Sample() health.Sample
}

// Watchdog owns the starvation and memory-pressure checks, and assembles
// heartbeats from the frame counters, hopper, and health sampler.
type Watchdog struct {
	logger  *logging.Logger
	sampler HealthSampler
	pub     *publish.Publisher

	capture     FrameCounter
	correlator  *correlator.Correlator
	hopper      *hopper.Hopper

	starvationTimeout time.Duration
	memoryThreshold   float64

	checkInterval     time.Duration
	heartbeatInterval time.Duration

	tapUUID   string
	tapName   string
	iface     string
	version   string
	startedAt time.Time

	latitude  *float64
	longitude *float64
	channels  []int

	lastFramesTotal  uint64
	lastAdvance      time.Time
	lastFramesParsed uint64
	lastParsedAdvance time.Time
}

// New returns a Watchdog wired to its dependencies. checkInterval governs
// how often the starvation/memory checks run; heartbeatInterval governs
// how often a Heartbeat is published.
func New(
	logger *logging.Logger,
	sampler HealthSampler,
	pub *publish.Publisher,
	capture FrameCounter,
	corr *correlator.Correlator,
	hop *hopper.Hopper,
	starvationTimeout time.Duration,
	memoryThreshold float64,
	checkInterval, heartbeatInterval time.Duration,
	tapUUID, tapName, iface, version string,
	latitude, longitude *float64,
	channels []int,
) *Watchdog {
	now := time.Now()
	return &Watchdog{
		logger:            logger,
		sampler:           sampler,
		pub:               pub,
		capture:           capture,
		correlator:        corr,
		hopper:            hop,
		starvationTimeout: starvationTimeout,
		memoryThreshold:   memoryThreshold,
		checkInterval:     checkInterval,
		heartbeatInterval: heartbeatInterval,
		tapUUID:           tapUUID,
		tapName:           tapName,
		iface:             iface,
		version:           version,
		startedAt:         now,
		lastAdvance:       now,
		lastParsedAdvance: now,
		latitude:          latitude,
		longitude:         longitude,
		channels:          channels,
	}
}

// Run checks health and publishes heartbeats until ctx is cancelled. On a
// starvation or memory-pressure verdict it logs, publishes a final
// heartbeat best-effort, and calls os.Exit with a distinguished code —
// this task never returns control to the orchestrator in that case, since
// the tap is presumed unrecoverable, per spec.md §7.
func (w *Watchdog) Run(ctx context.Context) error {
	checkTicker := time.NewTicker(w.checkInterval)
	defer checkTicker.Stop()

	heartbeatTicker := time.NewTicker(w.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-checkTicker.C:
			if err := w.check(); err != nil {
				w.logger.LogWatchdogEvent(exitEventName(err), "error", err)
				w.pub.PublishHeartbeat(w.buildHeartbeat())
				os.Exit(exitCode(err))
			}

		case <-heartbeatTicker.C:
			w.pub.PublishHeartbeat(w.buildHeartbeat())
		}
	}
}

// check runs the two exit-triggering verdicts (starvation, memory-pressure)
// plus two diagnostic-only checks carried from original_source's watchdog
// (buffer-depth, pipeline-stall) that spec.md narrows to warning-only
// logging rather than additional exit codes, per SPEC_FULL.md §4.H.
func (w *Watchdog) check() error {
	framesNow := w.capture.FramesTotal()
	if framesNow != w.lastFramesTotal {
		w.lastFramesTotal = framesNow
		w.lastAdvance = time.Now()
	} else if time.Since(w.lastAdvance) > w.starvationTimeout {
		return ErrStarvation
	}

	w.checkPipelineStall()
	w.checkBufferDepth()

	sample := w.sampler.Sample()
	if sample.MemoryPercent >= w.memoryThreshold {
		return ErrMemoryPressure
	}

	return nil
}

// checkPipelineStall warns when frames are being captured but the parser
// has stopped producing detections — capture is healthy but something
// downstream (parser/correlator) is stuck.
func (w *Watchdog) checkPipelineStall() {
	parsedNow := w.capture.FramesParsed()
	if parsedNow != w.lastFramesParsed {
		w.lastFramesParsed = parsedNow
		w.lastParsedAdvance = time.Now()
		return
	}
	if w.capture.FramesTotal() > 0 && time.Since(w.lastParsedAdvance) > w.starvationTimeout {
		w.logger.LogWatchdogEvent("pipeline_stall", "frames_total", w.capture.FramesTotal())
	}
}

// checkBufferDepth warns when the publisher's outbound queue is
// approaching its high-water mark, ahead of the drop-newest overflow
// policy actually kicking in.
func (w *Watchdog) checkBufferDepth() {
	if w.pub == nil {
		return
	}
	hwm := w.pub.HWM()
	if hwm <= 0 {
		return
	}
	if depth := w.pub.QueueDepth(); depth >= hwm*8/10 {
		w.logger.LogWatchdogEvent("buffer_depth_high", "depth", depth, "hwm", hwm)
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, ErrStarvation):
		return ExitStarvation
	case errors.Is(err, ErrMemoryPressure):
		return ExitMemoryPressure
	default:
		return 1
	}
}

func exitEventName(err error) string {
	switch {
	case errors.Is(err, ErrStarvation):
		return "starvation_exit"
	case errors.Is(err, ErrMemoryPressure):
		return "memory_pressure_exit"
	default:
		return "unknown_exit"
	}
}

func (w *Watchdog) buildHeartbeat() types.Heartbeat {
	sample := w.sampler.Sample()

	return types.Heartbeat{
		Type:            "tap_heartbeat",
		ProtocolVersion: correlator.ProtocolVersion,
		TapUUID:         w.tapUUID,
		TapName:         w.tapName,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Version:         w.version,
		Interface:       w.iface,

		Channel: w.hopper.Current(),

		CPULoad:         sample.CPULoad,
		CPUPercent:      sample.CPUPercent,
		MemoryUsed:      sample.MemoryUsed,
		MemoryPercent:   sample.MemoryPercent,
		Temperature:     sample.Temperature,
		DiskFree:        sample.DiskFree,
		DiskWritesTotal: sample.DiskWritesTotal,

		Latitude:  w.latitude,
		Longitude: w.longitude,

		FramesTotal:   w.capture.FramesTotal(),
		FramesParsed:  w.capture.FramesParsed(),
		TsharkRunning: w.capture.TsharkRunning(),
		TapUptime:     time.Since(w.startedAt).Seconds(),
		Channels:      w.channels,
		CaptureErrors: w.capture.CaptureErrors(),
	}
}
