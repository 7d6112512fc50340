package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds the process logger. "dev" and "local" get a colored console
// encoder; everything else (uat, prod) logs JSON to stdout.
func Init(service, env, level string) {
	cfg := Config(env, level)

	l, err := cfg.Build(
		zap.AddCaller(),
		zap.Fields(zap.String("service", service), zap.String("env", env)),
	)
	if err != nil {
		panic("logger: build: " + err.Error())
	}

	base = l
	sugar = l.Sugar()
	base.Debug("logger.initialized", zap.String("level", cfg.Level.String()))
}

// Config returns the zap configuration used by Init.
func Config(env, level string) zap.Config {
	var cfg zap.Config
	if IsDev(env) {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// workflow step logs must not be sampled away
		cfg.Sampling = nil
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}

// IsDev reports whether env selects the console encoder.
func IsDev(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "":
		return true
	}
	return false
}

// L returns the structured logger, initialising a dev logger if needed.
func L() *zap.Logger {
	if base == nil {
		Init("unknown", "dev", "info")
	}
	return base
}

// S returns the sugared logger.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init("unknown", "dev", "info")
	}
	return sugar
}

// Named scopes the logger to a component, e.g. Named("wallet").
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes buffered entries. Defer it in main.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
