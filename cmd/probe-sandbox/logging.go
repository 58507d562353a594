package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	logDir      = "logs"
	logFileName = "probe-sandbox.log"
)

// setupLogging returns a file logger when debug is set, otherwise a disabled logger and nil file
// An existing log is rotated to a timestamped name. path overrides the default location
func setupLogging(debug bool, path string, level zerolog.Level) (zerolog.Logger, *os.File) {
	if !debug {
		return zerolog.Nop(), nil
	}
	if path == "" {
		path = filepath.Join(logDir, logFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "log directory: %v\n", err)
		return zerolog.Nop(), nil
	}
	if _, err := os.Stat(path); err == nil {
		ext := filepath.Ext(path)
		rotated := fmt.Sprintf("%s_%s%s", path[:len(path)-len(ext)], time.Now().Format("20060102_150405"), ext)
		if err := os.Rename(path, rotated); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation: %v\n", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file: %v\n", err)
		return zerolog.Nop(), nil
	}
	logger := zerolog.New(f).Level(level).With().Timestamp().Logger()
	logger.Info().Str("path", path).Msg("logging started")
	return logger, f
}
