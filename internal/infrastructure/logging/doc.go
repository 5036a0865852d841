// Package logging provides structured logging for the edge link service.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same shape: JSON for production, text for development, with
// service and version fields on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	l, _ := link.New(link.Config{Host: host, Logger: logger.Component("link")})
//
// # Security
//
// Never log secrets, device tokens or broker passwords.
package logging
