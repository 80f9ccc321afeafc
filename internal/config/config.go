// Package config loads and validates the tap's configuration document.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// Config holds the tap configuration, as read from a single JSON document
// per spec.md §4.A / §6.
type Config struct {
	TapUUID     string `json:"tap_uuid"`
	TapName     string `json:"tap_name"`
	Interface   string `json:"interface"`
	AutoMonitor bool   `json:"auto_monitor"`

	// TapLatitude/TapLongitude are the tap's own static position, per
	// spec.md's Non-goals note ("its own location is static config"), not
	// derived from GPS. Nil when the tap's position is unknown.
	TapLatitude  *float64 `json:"tap_latitude,omitempty"`
	TapLongitude *float64 `json:"tap_longitude,omitempty"`

	Channels24GHz []int `json:"channels_24ghz"`
	Channels5GHz  []int `json:"channels_5ghz"`
	Channels6GHz  []int `json:"channels_6ghz"`

	// Channels is the legacy flat channel list, accepted for backward
	// compatibility and migrated into Channels24GHz on load.
	Channels []int `json:"channels,omitempty"`

	ChannelDwellMs int `json:"channel_dwell_ms"`

	NodeHost string `json:"node_host"`
	NodePort int    `json:"node_port"`

	TsharkPath          string `json:"tshark_path"`
	StarvationTimeoutS  int    `json:"starvation_timeout_s"`
	TsharkRestartDelayS int    `json:"tshark_restart_delay_s"`
	HeartbeatIntervalS  int    `json:"heartbeat_interval_s"`

	ZMQBufferSize int `json:"zmq_buffer_size"`
	ZMQHWM        int `json:"zmq_hwm"`

	MemoryPercentThreshold float64 `json:"memory_percent_threshold"`

	LogLevel string `json:"log_level"`

	// path is the file the document was loaded from. Nothing writes the
	// document back; migrated keys exist only in memory.
	path string
}

// uuidFallbackPaths mirrors system/config.py's _UUID_PATHS search order: the
// first existing or writable path wins. Resolved at call time, not init
// time, so it honors the environment the process is actually running in.
func uuidFallbackPaths() []string {
	return []string{
		"/etc/wifi-tap/tap_uuid",
		"/var/lib/wifi-tap/tap_uuid",
		filepath.Join(os.Getenv("HOME"), ".wifi-tap", "tap_uuid"),
	}
}

func defaults() *Config {
	return &Config{
		TapName:                "wifi-tap",
		AutoMonitor:            true,
		Channels24GHz:          []int{1, 6, 11},
		ChannelDwellMs:         350,
		NodeHost:               "127.0.0.1",
		NodePort:               5590,
		TsharkPath:             "tshark",
		StarvationTimeoutS:     30,
		TsharkRestartDelayS:    1,
		HeartbeatIntervalS:     10,
		ZMQBufferSize:          1000,
		ZMQHWM:                 1000,
		MemoryPercentThreshold: 90.0,
		LogLevel:               "info",
	}
}

// Load reads the configuration document at path, applies defaults for
// unset fields, migrates the legacy flat "channels" key, and resolves a
// persistent tap UUID.
func Load(path string) (*Config, error) {
	cfg := defaults()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	// Decode onto the defaults so unset JSON keys keep their default value.
	// DisallowUnknownFields rejects any top-level key with no matching
	// struct field (the legacy "channels" key is itself a declared field,
	// so migration below still works), per spec.md §7 / SPEC_FULL.md §4.A's
	// unknown-key-is-fatal rule.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.path = path

	cfg.migrateLegacyChannels()

	if cfg.TapUUID == "" {
		tapUUID, err := resolveTapUUID()
		if err != nil {
			return nil, fmt.Errorf("resolving tap uuid: %w", err)
		}
		cfg.TapUUID = tapUUID
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// migrateLegacyChannels folds the deprecated flat "channels" key into
// Channels24GHz, per spec.md §4.A.
func (c *Config) migrateLegacyChannels() {
	if len(c.Channels) == 0 {
		return
	}
	merged := append(append([]int{}, c.Channels24GHz...), c.Channels...)
	c.Channels24GHz = dedupInts(merged)
	c.Channels = nil
}

func dedupInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Validate checks required fields and value ranges. Failures here are
// fatal at startup per spec.md §7's Config error policy.
func (c *Config) Validate() error {
	if c.NodeHost == "" {
		return fmt.Errorf("node_host cannot be empty")
	}
	if c.NodePort <= 0 {
		return fmt.Errorf("node_port must be positive")
	}
	if c.Interface == "" {
		return fmt.Errorf("interface cannot be empty")
	}
	if c.ChannelDwellMs <= 0 {
		return fmt.Errorf("channel_dwell_ms must be positive")
	}
	if c.StarvationTimeoutS <= 0 {
		return fmt.Errorf("starvation_timeout_s must be positive")
	}
	if c.TsharkRestartDelayS < 0 {
		return fmt.Errorf("tshark_restart_delay_s cannot be negative")
	}
	if c.HeartbeatIntervalS <= 0 {
		return fmt.Errorf("heartbeat_interval_s must be positive")
	}
	if c.ZMQBufferSize <= 0 || c.ZMQHWM <= 0 {
		return fmt.Errorf("zmq_buffer_size and zmq_hwm must be positive")
	}
	if c.MemoryPercentThreshold <= 0 || c.MemoryPercentThreshold > 100 {
		return fmt.Errorf("memory_percent_threshold must be in (0, 100]")
	}
	return nil
}

// ChannelPlan merges the per-band channel lists into a single ordered,
// deduplicated sequence, 2.4 -> 5 -> 6 GHz, per spec.md §4.F.
func (c *Config) ChannelPlan() []int {
	plan := make([]int, 0, len(c.Channels24GHz)+len(c.Channels5GHz)+len(c.Channels6GHz))
	seen := make(map[int]struct{})
	for _, band := range [][]int{c.Channels24GHz, c.Channels5GHz, c.Channels6GHz} {
		for _, ch := range band {
			if _, ok := seen[ch]; ok {
				continue
			}
			seen[ch] = struct{}{}
			plan = append(plan, ch)
		}
	}
	return plan
}

// resolveTapUUID generates a UUID if none of the fallback paths hold one
// yet, and persists it to the first writable path, mode 0600, matching
// system/config.py's UUID fallback-file behavior.
func resolveTapUUID() (string, error) {
	paths := uuidFallbackPaths()

	for _, p := range paths {
		if data, err := os.ReadFile(p); err == nil {
			id := string(data)
			if id != "" {
				return id, nil
			}
		}
	}

	id := uuid.NewString()

	var lastErr error
	for _, p := range paths {
		if err := atomicWriteFile(p, []byte(id), 0600); err != nil {
			lastErr = err
			continue
		}
		return id, nil
	}
	return "", fmt.Errorf("no writable uuid fallback path: %w", lastErr)
}

// atomicWriteFile writes data to path via a tempfile-fsync-rename sequence
// so a power loss mid-write cannot corrupt the persisted file, grounded on
// system/config.py's _atomic_write.
func atomicWriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting mode on temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file to %s: %w", path, err)
	}
	return nil
}
