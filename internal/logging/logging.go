package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger: human-readable console output,
// plus a JSON file sink when path is non-empty.
func New(level, path string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	console, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return console, nil
	}

	fileCfg := zap.NewProductionConfig()
	fileCfg.Level = zap.NewAtomicLevelAt(lvl)
	fileCfg.OutputPaths = []string{path}
	fileCfg.ErrorOutputPaths = []string{path}
	file, err := fileCfg.Build()
	if err != nil {
		return nil, err
	}

	core := zapcore.NewTee(console.Core(), file.Core())
	return zap.New(core), nil
}
