package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much the service logs.
type Options struct {
	Dir        string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger writes leveled, structured entries to a rotated file and stdout.
type Logger struct {
	*logrus.Logger
	file io.Closer
}

func New(opts Options) (*Logger, error) {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create logs folder failed: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "dispatch-service.log"),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	l := newLogrus(io.MultiWriter(file, os.Stdout), opts.Level)
	return &Logger{Logger: l, file: file}, nil
}

// NewWithWriter builds a logger that only writes to w.
func NewWithWriter(w io.Writer, level string) *Logger {
	return &Logger{Logger: newLogrus(w, level)}
}

func newLogrus(w io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Close flushes and closes the rotated log file, if any.
func (l *Logger) Close() {
	if l.file == nil {
		return
	}
	_ = l.file.Close()
}
