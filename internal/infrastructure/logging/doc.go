// Package logging provides structured logging for wsn-deviceutils.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the tools.
//
// # Features
//
//   - Text output for interactive use (default)
//   - JSON output for machine consumption
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (trace, debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// Logs go to stderr unless configured otherwise, so standard output stays
// free for captured messages, device events and MAC addresses.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("observer started", "interval", cfg.Observer.PollInterval)
//	logger.Error("connect failed", "error", err)
package logging
