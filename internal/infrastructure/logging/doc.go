// Package logging provides structured logging for the weather station.
//
// It wraps log/slog with JSON or text output, level filtering and the
// default fields service and version on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file:/var/log/weatherstation.log
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("connectivity").Info("link up", "interface", "wlan0")
//
// Never log broker passwords or InfluxDB tokens.
package logging
