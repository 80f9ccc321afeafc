// Package logging wraps log/slog with the tap's structured event helpers
// and systemd-aware output routing.
package logging

import (
	"io"
	"log/slog"
	"os"

	"wifitap/internal/config"
)

// Logger is a thin wrapper around *slog.Logger carrying domain-typed
// event-logging helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new structured logger for the given config and
// level/format overrides. format is "json" or "text"; an empty format
// falls back to JSON under systemd and text otherwise.
func NewLogger(cfg *config.Config, levelOverride, formatOverride string) *Logger {
	level := cfg.LogLevel
	if levelOverride != "" {
		level = levelOverride
	}

	format := formatOverride
	if format == "" {
		if isSystemd() {
			format = "json"
		} else {
			format = "text"
		}
	}

	var output io.Writer = os.Stdout
	if isSystemd() {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	base := slog.New(handler).With(
		"tap_uuid", cfg.TapUUID,
		"service", "wifi-tap",
	)

	return &Logger{Logger: base}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isSystemd reports whether the process appears to be running under
// systemd supervision.
func isSystemd() bool {
	if os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getenv("NOTIFY_SOCKET") != "" {
		return true
	}
	return os.Getpid() == 1
}

// WithComponent returns a logger with a "component" field attached.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// LogCaptureEvent logs capture-driver events: dissector spawn, exit,
// respawn.
func (l *Logger) LogCaptureEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	switch event {
	case "tshark_started":
		l.Info("dissector started", args...)
	case "tshark_exited":
		l.Warn("dissector exited", args...)
	case "tshark_respawn":
		l.Info("dissector respawning", args...)
	default:
		l.Info("capture event", args...)
	}
}

// LogParseEvent logs parser decode outcomes.
func (l *Logger) LogParseEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	switch event {
	case "parse_error":
		l.Debug("frame parse error", args...)
	case "detection":
		l.Debug("detection parsed", args...)
	default:
		l.Info("parse event", args...)
	}
}

// LogCorrelatorEvent logs correlator state transitions.
func (l *Logger) LogCorrelatorEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	switch event {
	case "uav_created":
		l.Info("uav state created", args...)
	case "uav_evicted":
		l.Info("uav state evicted", args...)
	default:
		l.Debug("correlator event", args...)
	}
}

// LogSpoofEvent logs spoof-detector flag transitions.
func (l *Logger) LogSpoofEvent(mac string, flags []string, trustScore int) {
	if len(flags) == 0 {
		return
	}
	l.Warn("spoof flags raised", "mac", mac, "flags", flags, "trust_score", trustScore)
}

// LogPublishEvent logs publisher queue/transport events.
func (l *Logger) LogPublishEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	switch event {
	case "queue_full":
		l.Warn("publisher queue full, dropping newest", args...)
	case "nats_connected":
		l.Info("connected to collector", args...)
	case "nats_disconnected":
		l.Warn("disconnected from collector", args...)
	default:
		l.Debug("publish event", args...)
	}
}

// LogWatchdogEvent logs watchdog checks and recovery triggers.
func (l *Logger) LogWatchdogEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	switch event {
	case "starvation_exit", "memory_pressure_exit":
		l.Error("watchdog triggered process exit", args...)
	default:
		l.Info("watchdog event", args...)
	}
}
