package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// SetupLogger installs the global slog default from the logging section of the
// configuration.
//
// format "json" selects the JSONHandler for production; any other value falls
// back to the TextHandler for local development. level accepts "debug",
// "info", "warn" and "error" (case-insensitive) and defaults to "info".
// Source locations are attached only at debug level.
//
// Installing the default means handlers and services log through the bare
// slog package functions without threading a *slog.Logger around.
func SetupLogger(format, level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}
