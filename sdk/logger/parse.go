package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// outputs maps LOG_OUTPUT values to writers; anything else goes to stderr.
var outputs = map[string]io.Writer{
	"stdout":  os.Stdout,
	"stderr":  os.Stderr,
	"discard": io.Discard,
	"none":    io.Discard,
}

func parseOutput(name string) io.Writer {
	if w, ok := outputs[strings.ToLower(strings.TrimSpace(name))]; ok {
		return w
	}
	return os.Stderr
}

// parseLevel accepts slog's own level syntax ("debug", "warn", "INFO+2")
// plus "warning". Unrecognised values log at info.
func parseLevel(name string) slog.Level {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
