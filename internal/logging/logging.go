// Package logging builds the logr.Logger handed to every nodekit component.
//
// Library code never logs through a global: components take a logr.Logger
// and fall back to Discard. The CLI composition root calls New to get a
// zap-backed logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Discard returns a logger that drops everything.
func Discard() logr.Logger {
	return logr.Discard()
}

// OrDiscard returns log, or a discarding logger when log has no sink.
func OrDiscard(log logr.Logger) logr.Logger {
	if log.GetSink() == nil {
		return logr.Discard()
	}
	return log
}

// New returns a zap-backed logger writing to stderr.
// level is a zap level name (debug, info, warn, error); format is
// "console" or "json".
func New(level, format string) (logr.Logger, error) {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(level, format string, w io.Writer) (logr.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return logr.Discard(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch format {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return logr.Discard(), fmt.Errorf("invalid log format %q", format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return zapr.NewLogger(zap.New(core)), nil
}
