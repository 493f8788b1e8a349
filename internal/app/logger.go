package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the gateway logger. Production always logs JSON so the
// impersonation audit trail (denied selections, denied actions) stays
// machine-parseable; elsewhere LOG_FORMAT picks between json and text.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
}
