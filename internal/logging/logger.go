// Package logging holds the process-wide zap logger. Commands configure it
// once; components receive a structured child through Component.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"

	serviceName = "mailkeys"
)

var logger *zap.SugaredLogger

func init() {
	InitLogger(ModeProduction)
}

// InitLogger builds the process-wide logger for mode. MAILKEYS_LOG_LEVEL
// overrides the level and MAILKEYS_LOG_FILE adds a file to the outputs.
func InitLogger(mode string) {
	l, err := newConfig(mode, os.Getenv).Build(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		panic(err)
	}
	logger = l.Sugar()
}

func newConfig(mode string, getenv func(string) string) zap.Config {
	var cfg zap.Config
	if mode == ModeDevelopment {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if file := getenv("MAILKEYS_LOG_FILE"); file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, file)
	}

	if raw := getenv("MAILKEYS_LOG_LEVEL"); raw != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(raw)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(level)
		}
	}
	return cfg
}

// SetLogger replaces the process-wide logger.
func SetLogger(l *zap.Logger) {
	logger = l.Sugar()
}

func Get() *zap.SugaredLogger {
	return logger
}

// Component returns a structured logger tagged with the component name.
func Component(name string) *zap.Logger {
	return logger.Desugar().With(zap.String("component", name))
}

func WithRequestID(requestID string) *zap.SugaredLogger {
	return logger.With("request_id", requestID)
}

func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
