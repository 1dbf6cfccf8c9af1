// Package logging configures the process-wide phuslu logger.
package logging

import (
	"os"

	"github.com/phuslu/log"
)

// Setup installs a console logger at the given level ("debug", "info", ...).
// Unknown levels fall back to info.
func Setup(level string) {
	lvl := log.ParseLevel(level)
	if level == "" {
		lvl = log.InfoLevel
	}

	log.DefaultLogger = log.Logger{
		Level:      lvl,
		Caller:     0,
		TimeFormat: "15:04:05.000",
		Writer: &log.ConsoleWriter{
			Writer:      os.Stderr,
			ColorOutput: log.IsTerminal(os.Stderr.Fd()),
		},
	}
}
