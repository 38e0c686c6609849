package log

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/n-h-n/go-bq/env"
)

type ScopedLogger struct {
	ShowContext bool
	*zap.SugaredLogger
}

var (
	Log            = ScopedLogger{}
	LogWithContext = ScopedLogger{}
	level          = zap.NewAtomicLevelAt(zap.WarnLevel)
	levels         = map[string]zapcore.Level{
		"debug": zap.DebugLevel,
		"info":  zap.InfoLevel,
		"warn":  zap.WarnLevel,
		"error": zap.ErrorLevel,
	}
)

// SetLevel adjusts the minimum level of the package loggers at runtime.
// Unrecognized names are ignored.
func SetLevel(name string) {
	if l, ok := levels[name]; ok {
		level.SetLevel(l)
	}
}

// CustomEncoderConfig creates a human-readable log format
func CustomEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     CustomTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// CustomTimeEncoder formats timestamps as "2006-01-02 15:04:05"
func CustomTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05"))
}

func NewEnvLogger(options ...zap.Option) *zap.SugaredLogger {
	var cfg zap.Config

	if env.IsDevelopment() {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig = CustomEncoderConfig()
	cfg.Encoding = "console"
	cfg.Level = level

	logger, initErr := cfg.Build(options...)
	if initErr != nil {
		panic(initErr)
	}
	return logger.Sugar()
}

func Scope(z *zap.SugaredLogger, showContext bool) ScopedLogger {
	return ScopedLogger{showContext, z.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func NewEnvScopedLogger(showContext bool, options ...zap.Option) ScopedLogger {
	return Scope(NewEnvLogger(options...), showContext)
}

func (w ScopedLogger) Info(ctx context.Context, args ...any) {
	if w.ShowContext {
		w.SugaredLogger.With("ctx", ctx).Info(args...)
	} else {
		w.SugaredLogger.Info(args...)
	}
}

func (w ScopedLogger) Infof(ctx context.Context, pattern string, args ...any) {
	if w.ShowContext {
		w.SugaredLogger.With("ctx", ctx).Infof(pattern, args...)
	} else {
		w.SugaredLogger.Infof(pattern, args...)
	}
}

func (w ScopedLogger) Debug(ctx context.Context, args ...any) {
	if w.ShowContext {
		w.SugaredLogger.With("ctx", ctx).Debug(args...)
	} else {
		w.SugaredLogger.Debug(args...)
	}
}

func (w ScopedLogger) Debugf(ctx context.Context, pattern string, args ...any) {
	if w.ShowContext {
		w.SugaredLogger.With("ctx", ctx).Debugf(pattern, args...)
	} else {
		w.SugaredLogger.Debugf(pattern, args...)
	}
}

func (w ScopedLogger) Warn(ctx context.Context, args ...any) {
	if w.ShowContext {
		w.SugaredLogger.With("ctx", ctx).Warn(args...)
	} else {
		w.SugaredLogger.Warn(args...)
	}
}

func (w ScopedLogger) Warnf(ctx context.Context, pattern string, args ...any) {
	if w.ShowContext {
		w.SugaredLogger.With("ctx", ctx).Warnf(pattern, args...)
	} else {
		w.SugaredLogger.Warnf(pattern, args...)
	}
}

func (w ScopedLogger) Error(ctx context.Context, args ...any) {
	if w.ShowContext {
		w.SugaredLogger.With("ctx", ctx).Error(args...)
	} else {
		w.SugaredLogger.Error(args...)
	}
}

func (w ScopedLogger) Errorf(ctx context.Context, pattern string, args ...any) {
	if w.ShowContext {
		w.SugaredLogger.With("ctx", ctx).Errorf(pattern, args...)
	} else {
		w.SugaredLogger.Errorf(pattern, args...)
	}
}

func init() {
	Log = NewEnvScopedLogger(false)
	LogWithContext = NewEnvScopedLogger(true)
}
