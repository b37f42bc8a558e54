// Package log is a minimal logger for long-running batch jobs.
// Messages go to stdout and, after Init, to <dir>/log.txt.
// Events go to <dir>/events.txt.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

var (
	log       *logFile
	eventsLog *logFile
	onLog     func(s string)

	// if true, Verbosef() will log messages
	Verbose bool
)

// logFile is opened lazily in append mode on first write
// all methods are safe to call on nil receiver
type logFile struct {
	path string
	file *os.File
	mu   sync.Mutex
	// first error, after that we stop trying
	err error
}

func newLogFile(path string) *logFile {
	return &logFile{
		path: path,
	}
}

func (w *logFile) Write(d []byte) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return w.err
	}
	if w.file == nil {
		if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
			w.err = err
			return err
		}
		f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			w.err = err
			return err
		}
		w.file = f
	}
	_, err := w.file.Write(d)
	return err
}

func (w *logFile) WriteString(s string) error {
	return w.Write([]byte(s))
}

func (w *logFile) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	errSync := w.file.Sync()
	err := w.file.Close()
	w.file = nil
	if err == nil {
		err = errSync
	}
	return err
}

type Config struct {
	// directory where log.txt and events.txt are written
	Dir string
	// called for every Logf() call
	OnLog func(s string)
}

// LogPath returns path of the log file in a given directory
func LogPath(dir string) string {
	return filepath.Join(dir, "log.txt")
}

// EventsPath returns path of the events file in a given directory
func EventsPath(dir string) string {
	return filepath.Join(dir, "events.txt")
}

// Init starts logging to files in config.Dir
// files are only created when something is logged
func Init(config *Config) {
	Close()
	log = newLogFile(LogPath(config.Dir))
	eventsLog = newLogFile(EventsPath(config.Dir))
	onLog = config.OnLog
}

// Close flushes and closes log files. Logging after Close only
// goes to stdout.
func Close() {
	_ = log.Close()
	_ = eventsLog.Close()
	log = nil
	eventsLog = nil
	onLog = nil
}

func Logf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	fmt.Print(s)
	_ = log.WriteString(s)
	if onLog != nil {
		onLog(s)
	}
}

func Verbosef(format string, args ...any) {
	if !Verbose {
		return
	}
	Logf(format, args...)
}

// Warnf logs a message prefixed with "warning: "
func Warnf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	Logf("warning: %s", s)
}

func GetCallstackFrames(skip int) []string {
	var callers [32]uintptr
	n := runtime.Callers(skip+1, callers[:])
	frames := runtime.CallersFrames(callers[:n])
	var cs []string
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		cs = append(cs, frame.File+":"+strconv.Itoa(frame.Line))
	}
	return cs
}

func GetCallstack(skip int) string {
	frames := GetCallstackFrames(skip + 1)
	return strings.Join(frames, "\n")
}

// Errorf logs an error message along with the callstack
func Errorf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	cs := GetCallstack(1)
	Logf("error: %s\n%s\n", strings.TrimSuffix(s, "\n"), cs)
}

// if err != nil, log and return true
// IfErrf(err) => logs err.Error()
// IfErrf(err, "error is: %v", err) => logs message formatted
func IfErrf(err error, a ...any) bool {
	if err == nil {
		return false
	}
	if len(a) == 0 {
		Errorf("%s", err.Error())
		return true
	}
	s, ok := a[0].(string)
	if !ok {
		s = fmt.Sprintf("%s", a[0])
	}
	if len(a) > 1 {
		s = fmt.Sprintf(s, a[1:]...)
	}
	Errorf("%s", s)
	return true
}
