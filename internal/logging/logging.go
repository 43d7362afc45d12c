package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileOptions struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`    // megabytes
	MaxBackups int    `mapstructure:"max_backups"` // number of backups
	MaxAge     int    `mapstructure:"max_age"`     // days
	Compress   bool   `mapstructure:"compress"`
}

type Options struct {
	Level  string      `mapstructure:"level"`
	Format string      `mapstructure:"format"`
	File   FileOptions `mapstructure:"file"`
}

func DefaultOptions() Options {
	return Options{
		Level:  "info",
		Format: "text",
		File: FileOptions{
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures the standard logrus logger. When a log file is set,
// output goes to stdout and to the rotated file; the returned Closer
// releases the file.
func Setup(opts Options) (io.Closer, error) {
	return apply(logrus.StandardLogger(), opts, os.Stdout)
}

func apply(l *logrus.Logger, opts Options, stdout io.Writer) (io.Closer, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrap(err, "logrus.ParseLevel")
		}
	}

	var formatter logrus.Formatter
	switch strings.ToLower(opts.Format) {
	case "", "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"}
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		return nil, errors.Errorf("unknown log format %q", opts.Format)
	}

	l.SetLevel(level)
	l.SetFormatter(formatter)

	if opts.File.Filename == "" {
		l.SetOutput(stdout)
		return nopCloser{}, nil
	}

	defaults := DefaultOptions().File
	file := &lumberjack.Logger{
		Filename:   opts.File.Filename,
		MaxSize:    orDefault(opts.File.MaxSize, defaults.MaxSize),
		MaxBackups: orDefault(opts.File.MaxBackups, defaults.MaxBackups),
		MaxAge:     orDefault(opts.File.MaxAge, defaults.MaxAge),
		Compress:   opts.File.Compress,
	}
	l.SetOutput(io.MultiWriter(stdout, file))
	return file, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Named returns an entry of the standard logger tagged with the component name.
func Named(name string) *logrus.Entry {
	return logrus.WithField("logger", name)
}
