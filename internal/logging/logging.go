// Package logging builds the zap.Logger every component in this repo is
// constructed with, per spec.md's ambient logging concern.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's level and encoding.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // console-encoded, human-readable output
}

// DefaultConfig is info-level, production (JSON) encoding.
func DefaultConfig() Config {
	return Config{Level: "info", Development: false}
}

// New builds a *zap.Logger from cfg. Development mode uses
// zap.NewDevelopmentConfig's console encoder; otherwise the production
// JSON encoder, matching the two constructors the pack reaches for
// (zap.NewProduction/zap.NewDevelopment) rather than a hand-assembled
// zapcore.Core.
func New(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return l, nil
}
