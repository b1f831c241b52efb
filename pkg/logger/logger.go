// Package logger provides opinionated logging capabilities for quizagent
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// NewLogger returns a console logger writing to stderr. Stdout is left to
// command output and the MCP stdio transport.
func NewLogger(debug bool) *zap.Logger {
	return NewLoggerTo(os.Stderr, debug)
}

// NewLoggerTo returns a console logger writing to out. Levels are colored
// only when out is a terminal.
func NewLoggerTo(out *os.File, debug bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if term.IsTerminal(int(out.Fd())) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	// Set log level
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(out),
		level,
	)

	return zap.New(core, zap.AddCaller())
}
