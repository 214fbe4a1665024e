// Package logger provides the application's structured logging facade.
// Two backends are available: logrus (the default) and zap, selected at
// construction time. Both write to stdout.
package logger

import (
    "io"
    "os"

    "github.com/sirupsen/logrus"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// Logger is the logging interface used across the application.
type Logger interface {
    Debugf(format string, args ...interface{})
    Infof(format string, args ...interface{})
    Warnf(format string, args ...interface{})
    Errorf(format string, args ...interface{})
    Fatalf(format string, args ...interface{})
    WithField(key string, value interface{}) Logger
}

// New constructs a Logger. backend selects "logrus" (default) or
// "zap"; level is a standard level name ("debug", "info", "warn",
// "error"); format is "text" or "json".
func New(backend, level, format string) Logger {
    if backend == "zap" {
        return newZapLogger(level, format)
    }
    return newLogrusLogger(level, format)
}

// NewNop returns a Logger that discards everything. Intended for tests.
func NewNop() Logger {
    l := logrus.New()
    l.SetOutput(io.Discard)
    return &logrusLogger{entry: logrus.NewEntry(l)}
}

type logrusLogger struct {
    entry *logrus.Entry
}

func newLogrusLogger(level, format string) *logrusLogger {
    l := logrus.New()
    lvl, err := logrus.ParseLevel(level)
    if err != nil {
        lvl = logrus.InfoLevel
    }
    l.SetLevel(lvl)
    if format == "json" {
        l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
    } else {
        l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
    }
    l.SetOutput(os.Stdout)
    return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *logrusLogger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
    return &logrusLogger{entry: l.entry.WithField(key, value)}
}

type zapLogger struct {
    sugar *zap.SugaredLogger
}

func newZapLogger(level, format string) *zapLogger {
    var zapLevel zapcore.Level
    switch level {
    case "debug":
        zapLevel = zapcore.DebugLevel
    case "warn":
        zapLevel = zapcore.WarnLevel
    case "error":
        zapLevel = zapcore.ErrorLevel
    default:
        zapLevel = zapcore.InfoLevel
    }

    encoderConfig := zap.NewProductionEncoderConfig()
    encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
    var encoder zapcore.Encoder
    if format == "json" {
        encoder = zapcore.NewJSONEncoder(encoderConfig)
    } else {
        encoder = zapcore.NewConsoleEncoder(encoderConfig)
    }

    core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapLevel)
    return &zapLogger{sugar: zap.New(core).Sugar()}
}

func (l *zapLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *zapLogger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

func (l *zapLogger) WithField(key string, value interface{}) Logger {
    return &zapLogger{sugar: l.sugar.With(key, value)}
}
