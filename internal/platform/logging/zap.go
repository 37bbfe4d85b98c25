package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the zap-backed Logger. The zero value is not usable;
// call DefaultOptions and override fields as needed.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// ToConsole mirrors every entry to stdout in addition to FilePath.
	ToConsole bool
	// FilePath is the rotating log file's path. Empty disables file output.
	FilePath string

	MaxSizeMB  int // per-file size before rotation
	MaxBackups int // retained rotated files
	MaxAgeDays int
	Compress   bool

	EnableCaller     bool
	EnableStacktrace bool
}

// DefaultOptions mirrors this codebase's usual log defaults: info level, console
// enabled, caller enabled, no file rotation until a path is set.
func DefaultOptions() Options {
	return Options{
		Level:            "info",
		ToConsole:        true,
		MaxSizeMB:        100,
		MaxBackups:       7,
		MaxAgeDays:       28,
		Compress:         true,
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func (o Options) zapLevel() zapcore.Level {
	switch o.Level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type logger struct {
	zl    *zap.Logger
	sugar *zap.SugaredLogger
}

// New builds a Logger from Options, wiring console and/or rotating-file
// cores the same way sibling services' log packages
// does, minus its global-singleton plumbing (Starstream wires loggers
// through fx rather than a package-level mutable default).
func New(opts Options) (Logger, error) {
	level := opts.zapLevel()
	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	var cores []zapcore.Core
	if opts.ToConsole {
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(level)))
	}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
		cores = append(cores, zapcore.NewCore(fileEncoder, fileWriter, zap.NewAtomicLevelAt(level)))
	}

	var zapOpts []zap.Option
	if opts.EnableCaller {
		zapOpts = append(zapOpts, zap.AddCaller())
	}
	if opts.EnableStacktrace {
		zapOpts = append(zapOpts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	zl := zap.New(zapcore.NewTee(cores...), zapOpts...)
	return &logger{zl: zl, sugar: zl.Sugar()}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger {
	zl := zap.NewNop()
	return &logger{zl: zl, sugar: zl.Sugar()}
}

func (l *logger) Debug(msg string)                          { l.sugar.Debug(msg) }
func (l *logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *logger) Info(msg string)                           { l.sugar.Info(msg) }
func (l *logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *logger) Warn(msg string)                           { l.sugar.Warn(msg) }
func (l *logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *logger) Error(msg string)                          { l.sugar.Error(msg) }
func (l *logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *logger) Fatal(msg string)                          { l.sugar.Fatal(msg) }
func (l *logger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

func (l *logger) With(args ...interface{}) Logger {
	return &logger{zl: l.zl.With(toFields(args...)...), sugar: l.sugar.With(args...)}
}

func (l *logger) Sync() error { return l.zl.Sync() }
func (l *logger) Zap() *zap.Logger { return l.zl }

func toFields(args ...interface{}) []zap.Field {
	if len(args)%2 != 0 {
		args = args[:len(args)-1]
	}
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
