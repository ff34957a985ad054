// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package commons

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the logging facade threaded through every worker constructor.
// Structured variants take alternating key/value pairs; the printf variants
// exist for the hot paths where building pairs is noise.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Sync() error
}

type loggerOptions struct {
	name    string
	path    string
	level   string
	console bool
}

// Option customizes NewApplicationLogger.
type Option func(*loggerOptions)

// Name sets the logger/service name; it also names the rotated log file.
func Name(name string) Option {
	return func(o *loggerOptions) { o.name = name }
}

// Path sets the directory the rotated log file is written under.
func Path(path string) Option {
	return func(o *loggerOptions) { o.path = path }
}

// Level sets the minimum level: debug, info, warn or error.
func Level(level string) Option {
	return func(o *loggerOptions) { o.level = level }
}

// Console mirrors log output to stderr in addition to the file.
func Console(enabled bool) Option {
	return func(o *loggerOptions) { o.console = enabled }
}

type applicationLogger struct {
	sugar *zap.SugaredLogger
}

// NewApplicationLogger builds the production logger: a zap sugared core
// writing JSON lines to a size-rotated file, optionally mirrored to stderr.
func NewApplicationLogger(opts ...Option) (Logger, error) {
	options := loggerOptions{
		name:    "callstream",
		path:    ".",
		level:   "info",
		console: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	level, err := zapcore.ParseLevel(options.level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(options.path, options.name+".log"),
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	})

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileSink, level),
	}
	if options.console {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.AddSync(os.Stderr),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).
		Named(options.name)

	return &applicationLogger{sugar: logger.Sugar()}, nil
}

// NewNopLogger returns a logger that discards everything. Handy in tests.
func NewNopLogger() Logger {
	return &applicationLogger{sugar: zap.NewNop().Sugar()}
}

func (l *applicationLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *applicationLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *applicationLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *applicationLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *applicationLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *applicationLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *applicationLogger) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *applicationLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *applicationLogger) Sync() error { return l.sugar.Sync() }
