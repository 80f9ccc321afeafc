// Package hopper implements the cooperative channel sequencer described in
// spec.md §4.F: a single dwell time applied across the merged channel
// plan, deliberately simpler than original_source's adaptive
// scanning/tracking-mode hopper.
package hopper

import (
	"context"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"

	"wifitap/internal/logging"
)

// Hopper cycles the monitor interface across a fixed channel plan with a
// single dwell time, setting the OS-level channel via `iw`. When the plan
// is empty or hopping is disabled, Hopper stays idle and Current reports 0,
// since it never sets a channel.
type Hopper struct {
	iface   string
	plan    []int
	dwell   time.Duration
	enabled bool
	logger  *logging.Logger

	current int32
}

// New returns a Hopper for iface, cycling through plan with the given
// dwell. If plan is empty or enabled is false, Run becomes a no-op.
func New(iface string, plan []int, dwell time.Duration, enabled bool, logger *logging.Logger) *Hopper {
	return &Hopper{
		iface:   iface,
		plan:    plan,
		dwell:   dwell,
		enabled: enabled,
		logger:  logger,
	}
}

// Current returns the channel the hopper last set, or 0 if it has not set
// one yet (or is disabled).
func (h *Hopper) Current() int {
	return int(atomic.LoadInt32(&h.current))
}

// Run cycles through the channel plan until ctx is cancelled. With an
// empty plan or enabled=false it blocks on ctx and returns nil on
// cancellation without touching the interface.
func (h *Hopper) Run(ctx context.Context) error {
	if !h.enabled || len(h.plan) == 0 {
		<-ctx.Done()
		return nil
	}

	idx := 0
	if err := h.setChannel(ctx, h.plan[idx]); err != nil {
		h.logger.LogCaptureEvent("channel_set_failed", "channel", h.plan[idx], "error", err)
	}

	ticker := time.NewTicker(h.dwell)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			idx = (idx + 1) % len(h.plan)
			if err := h.setChannel(ctx, h.plan[idx]); err != nil {
				h.logger.LogCaptureEvent("channel_set_failed", "channel", h.plan[idx], "error", err)
			}
		}
	}
}

// setChannel invokes `iw dev <iface> set channel <n>`, the same mechanism
// original_source/core/channel_hopper.py shells out to.
func (h *Hopper) setChannel(ctx context.Context, channel int) error {
	cmd := exec.CommandContext(ctx, "iw", "dev", h.iface, "set", "channel", strconv.Itoa(channel))
	if err := cmd.Run(); err != nil {
		return err
	}
	atomic.StoreInt32(&h.current, int32(channel))
	return nil
}
