// Package logging holds the process-wide zerolog logger. Binaries
// configure it once at startup; every other package just writes to L.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var (
	// L is the shared logger. Defaults to console output at info level.
	L zerolog.Logger

	logFile *os.File
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	L = zerolog.New(consoleWriter()).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

func consoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
}

func SetLogLevel(level zerolog.Level) {
	L = L.Level(level)
}

// SetLogOutput routes log output to a file under dir, optionally keeping
// the console stream alongside it.
func SetLogOutput(dir, filename string, alsoConsole bool) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, filename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return err
	}
	logFile = f

	var w io.Writer = f
	if alsoConsole {
		w = io.MultiWriter(f, consoleWriter())
	}
	L = L.Output(w)
	return nil
}

func Close() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
