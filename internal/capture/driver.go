// Package capture owns the tshark dissector subprocess: spawning it,
// respawning it on exit, and turning its NDJSON output into typed
// FrameRecords, per spec.md §4.B.
package capture

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"wifitap/internal/logging"
	"wifitap/internal/types"
)

// Driver supervises the tshark subprocess and emits FrameRecords onto a
// bounded channel. The capture filter is fixed to "type mgt" and a
// display filter (-Y) is never passed, per spec.md §4.B's enforced
// invariant.
type Driver struct {
	tsharkPath    string
	iface         string
	restartDelay  time.Duration
	logger        *logging.Logger
	channelReader func() int

	framesTotal   uint64
	captureErrors uint64
	shuttingDown  int32
	tsharkRunning int32
}

// NewDriver returns a Driver for the given interface and tshark binary
// path, restarting the dissector after restartDelay on exit. channelReader
// is polled once per captured line to stamp FrameRecord.Channel; pass the
// hopper's Current method so frames carry the channel they were actually
// captured on, per spec.md §5's shared-resource policy (the hopper is the
// sole owner of the NIC channel, the driver only reads it).
func NewDriver(tsharkPath, iface string, restartDelay time.Duration, logger *logging.Logger, channelReader func() int) *Driver {
	return &Driver{
		tsharkPath:    tsharkPath,
		iface:         iface,
		restartDelay:  restartDelay,
		logger:        logger,
		channelReader: channelReader,
	}
}

// FramesTotal returns the count of dissector lines read so far.
func (d *Driver) FramesTotal() uint64 { return atomic.LoadUint64(&d.framesTotal) }

// CaptureErrors returns the count of dissector exits observed while the
// driver was not shutting down, per spec.md §9's Open Question resolution.
func (d *Driver) CaptureErrors() uint64 { return atomic.LoadUint64(&d.captureErrors) }

// TsharkRunning reports whether a dissector subprocess is currently alive.
func (d *Driver) TsharkRunning() bool { return atomic.LoadInt32(&d.tsharkRunning) == 1 }

// Run spawns and supervises the dissector until ctx is cancelled, emitting
// FrameRecords onto out. out must be a bounded channel the caller drains;
// Run blocks sending to it rather than dropping, per spec.md §9 (the
// reader must apply backpressure, unlike the publisher downstream).
func (d *Driver) Run(ctx context.Context, out chan<- types.FrameRecord) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := d.runOnce(ctx, out); err != nil {
			d.logger.LogCaptureEvent("tshark_exited", "error", err)
		}

		if atomic.LoadInt32(&d.shuttingDown) == 1 || ctx.Err() != nil {
			return nil
		}

		atomic.AddUint64(&d.captureErrors, 1)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.restartDelay):
		}

		d.logger.LogCaptureEvent("tshark_respawn")
	}
}

// Stop marks the driver as deliberately shutting down, so the next
// dissector exit does not increment capture_errors, per spec.md §9's Open
// Question resolution.
func (d *Driver) Stop() {
	atomic.StoreInt32(&d.shuttingDown, 1)
}

func (d *Driver) runOnce(ctx context.Context, out chan<- types.FrameRecord) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// -T ek: NDJSON (Elasticsearch) output. -n: no name resolution, keeps
	// MACs numeric. -l: line-buffered stdout. -f: capture-time BPF filter
	// only — -Y (display filter) must never appear here.
	cmd := exec.CommandContext(runCtx, d.tsharkPath,
		"-i", d.iface,
		"-T", "ek",
		"-n",
		"-l",
		"-f", "type mgt",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting tshark: %w", err)
	}
	atomic.StoreInt32(&d.tsharkRunning, 1)
	d.logger.LogCaptureEvent("tshark_started", "pid", cmd.Process.Pid)

	defer func() {
		atomic.StoreInt32(&d.tsharkRunning, 0)
		d.stopProcess(cmd)
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		atomic.AddUint64(&d.framesTotal, 1)

		record, ok := parseEKLine(scanner.Bytes(), d.currentChannel())
		if !ok {
			continue
		}

		select {
		case out <- record:
		case <-ctx.Done():
			return nil
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("reading tshark output: %w", err)
	}

	return cmd.Wait()
}

// currentChannel reads the hopper-owned channel cell, or 0 if no reader
// was wired (e.g. in tests).
func (d *Driver) currentChannel() int {
	if d.channelReader == nil {
		return 0
	}
	return d.channelReader()
}

// stopProcess sends SIGINT and waits briefly, falling back to SIGKILL,
// grounded on original_source/core/capture.py's TsharkCapture.stop().
func (d *Driver) stopProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	_ = cmd.Process.Signal(syscall.SIGINT)

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		_ = cmd.Process.Kill()
	}
}

// parseEKLine extracts the fields the parser needs from one tshark -T ek
// NDJSON line. Index/metadata lines (which lack a "layers" key) are
// skipped. Malformed lines are skipped, not treated as fatal.
func parseEKLine(line []byte, channel int) (types.FrameRecord, bool) {
	doc, ok := decodeEK(line)
	if !ok {
		return types.FrameRecord{}, false
	}

	layers, ok := doc["layers"].(map[string]interface{})
	if !ok {
		return types.FrameRecord{}, false
	}

	wlan, _ := layers["wlan"].(map[string]interface{})
	radiotap, _ := layers["radiotap"].(map[string]interface{})

	mac := ekString(wlan, "wlan_wlan_sa")
	if mac == "" {
		return types.FrameRecord{}, false
	}

	subtype := ekInt(wlan, "wlan_wlan_fc_type_subtype")

	fields := make(map[string]string)
	for k, v := range wlan {
		if s, ok := v.(string); ok {
			fields[strings.TrimPrefix(k, "wlan_wlan_")] = s
		}
	}

	var rssi *int
	if v := ekInt(radiotap, "radiotap_radiotap_dbm_antsignal"); v != 0 {
		rssi = &v
	}

	var vendor []byte
	if tag := ekString(wlan, "wlan_wlan_tag_vendor_oui_type"); tag != "" {
		if b, err := hex.DecodeString(strings.ReplaceAll(tag, ":", "")); err == nil {
			vendor = b
		}
	}

	return types.FrameRecord{
		CapturedAt: time.Now().UTC(),
		FrameType:  types.FrameType(subtype),
		SourceMAC:  strings.ToLower(mac),
		Channel:    channel,
		RSSI:       rssi,
		Fields:     fields,
		VendorData: vendor,
	}, true
}

// decodeEK unmarshals one NDJSON line from tshark's -T ek output. Index
// metadata lines ({"index":{...}}) decode fine but are filtered out by
// the caller's "layers" key check.
func decodeEK(line []byte) (map[string]interface{}, bool) {
	line = bytesTrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(line, &doc); err != nil {
		return nil, false
	}
	return doc, true
}

func bytesTrimSpace(b []byte) []byte {
	return []byte(strings.TrimSpace(string(b)))
}

func ekString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func ekInt(m map[string]interface{}, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
