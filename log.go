package strale

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const logFlags = log.Ldate | log.Ltime | log.Lshortfile

// Logger carries the info, warning, error and fatal channels every component
// writes to. A Logger is shared down the ownership tree: instance, device,
// swapchain, renderer.
type Logger struct {
	info_log  *log.Logger
	warn_log  *log.Logger
	error_log *log.Logger
	fatal_log *log.Logger
	files     []*os.File
}

func newLogger(info, warn, errw, fatal io.Writer) *Logger {
	return &Logger{
		info_log:  log.New(info, "INFO: ", logFlags),
		warn_log:  log.New(warn, "WARNING: ", logFlags),
		error_log: log.New(errw, "ERROR: ", logFlags),
		fatal_log: log.New(fatal, "FATAL: ", logFlags),
	}
}

// NewLogger writes to stderr when dir is empty, otherwise to append-mode
// info_log.txt, warn_log.txt, error_log.txt and fatal_log.txt under dir.
func NewLogger(dir string) (*Logger, error) {
	if dir == "" {
		return newLogger(os.Stderr, os.Stderr, os.Stderr, os.Stderr), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	var files []*os.File
	open := func(name string) (io.Writer, error) {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", name)
		}
		files = append(files, f)
		return f, nil
	}
	var ws [4]io.Writer
	for i, name := range []string{"info_log.txt", "warn_log.txt", "error_log.txt", "fatal_log.txt"} {
		w, err := open(name)
		if err != nil {
			for _, f := range files {
				f.Close()
			}
			return nil, err
		}
		ws[i] = w
	}
	l := newLogger(ws[0], ws[1], ws[2], io.MultiWriter(ws[3], os.Stderr))
	l.files = files
	return l, nil
}

// DiscardLogger drops everything.
func DiscardLogger() *Logger {
	return newLogger(io.Discard, io.Discard, io.Discard, io.Discard)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.info_log.Output(2, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.warn_log.Output(2, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.error_log.Output(2, fmt.Sprintf(format, args...))
}

// Fatal is the package Fatal writing to this logger's fatal channel.
func (l *Logger) Fatal(err error, finalizers ...func()) {
	fatalTo(l.fatal_log, err, finalizers...)
}

// Close releases log files. Stderr loggers are left alone.
func (l *Logger) Close() error {
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files = nil
	return first
}
