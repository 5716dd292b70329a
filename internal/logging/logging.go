// Package logging builds the zap logger shared by every service.
//
// Output always goes to stderr: stdout belongs to the MCP stdio transport.
package logging

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production zap logger. Setting UNSTRUCTURED_LOGS=true switches
// to the human readable console encoder.
func New(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	if unstructured, err := strconv.ParseBool(os.Getenv("UNSTRUCTURED_LOGS")); err == nil && unstructured {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l.Sugar(), nil
}

// Nop returns a logger that discards everything. Services fall back to it
// when no logger is injected.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
