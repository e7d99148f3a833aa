// Package log wraps gopkg.in/op/go-logging.v1 into a per-module logger
// factory, the way github.com/katzenpost/katzenpost/core/log does for
// the rest of the mix node (see server/cborplugin/client.go's use of
// *log.Backend).
package log

import (
	"fmt"
	"io"
	"os"

	logging "gopkg.in/op/go-logging.v1"
)

// Backend owns the destination writer and level, and mints loggers for
// individual subsystems.
type Backend struct {
	backend logging.LeveledBackend
}

// New creates a Backend writing to w at the given level ("ERROR",
// "WARNING", "NOTICE", "INFO", "DEBUG").
func New(w io.Writer, level string) (*Backend, error) {
	lvl, err := levelFromString(level)
	if err != nil {
		return nil, err
	}
	fmtr := logging.MustStringFormatter("%{time:15:04:05.000} %{level:.4s} %{module}: %{message}")
	b := logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), fmtr)
	leveled := logging.AddModuleLevel(b)
	leveled.SetLevel(lvl, "")
	return &Backend{backend: leveled}, nil
}

// NewFile opens (creating if necessary) the log file at path and
// returns a Backend writing to it, or os.Stdout when path is empty.
func NewFile(path, level string, disable bool) (*Backend, error) {
	if disable {
		return New(io.Discard, level)
	}
	if path == "" {
		return New(os.Stdout, level)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("log: failed to open log file: %w", err)
	}
	return New(f, level)
}

// GetLogger returns a logger for the named subsystem/module.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b.backend)
	return l
}

func levelFromString(l string) (logging.Level, error) {
	switch l {
	case "ERROR":
		return logging.ERROR, nil
	case "WARNING":
		return logging.WARNING, nil
	case "NOTICE":
		return logging.NOTICE, nil
	case "INFO":
		return logging.INFO, nil
	case "DEBUG":
		return logging.DEBUG, nil
	default:
		return 0, fmt.Errorf("log: invalid level: %q", l)
	}
}
