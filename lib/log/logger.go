package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime/debug"
	"strings"
	"sync"
)

type LogLevel int

const (
	TRACE LogLevel = 5
	DEBUG LogLevel = 10
	INFO  LogLevel = 20
	WARN  LogLevel = 30
	ERROR LogLevel = 40
)

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "trace"
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

type sinks struct {
	trace    *log.Logger
	dbg      *log.Logger
	info     *log.Logger
	warn     *log.Logger
	err      *log.Logger
	minLevel LogLevel
}

func (s *sinks) forLevel(level LogLevel) *log.Logger {
	if s == nil || level < s.minLevel {
		return nil
	}
	switch level {
	case TRACE:
		return s.trace
	case DEBUG:
		return s.dbg
	case INFO:
		return s.info
	case WARN:
		return s.warn
	}
	return s.err
}

var (
	mu      sync.RWMutex
	current *sinks
)

// Init directs all log output to w. A nil writer disables logging.
func Init(w io.Writer, level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		current = nil
		return
	}
	flags := log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	current = &sinks{
		trace:    log.New(w, "TRACE ", flags),
		dbg:      log.New(w, "DEBUG ", flags),
		info:     log.New(w, "INFO  ", flags),
		warn:     log.New(w, "WARN  ", flags),
		err:      log.New(w, "ERROR ", flags),
		minLevel: level,
	}
}

func ParseLevel(value string) (LogLevel, error) {
	switch strings.ToLower(value) {
	case "trace":
		return TRACE, nil
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "err", "error":
		return ERROR, nil
	}
	return 0, fmt.Errorf("%s: invalid log level", value)
}

// ErrorLogger returns a stdlib logger writing at the ERROR level, for
// libraries which want one.
func ErrorLogger() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return log.New(io.Discard, "", log.LstdFlags)
	}
	return current.err
}

type Logger interface {
	Tracef(string, ...any)
	Debugf(string, ...any)
	Infof(string, ...any)
	Warnf(string, ...any)
	Errorf(string, ...any)
}

type logger struct {
	name      string
	calldepth int
}

// NewLogger returns a logger which prefixes every message with [name].
func NewLogger(name string) Logger {
	return &logger{name: name, calldepth: 3}
}

func (l *logger) output(level LogLevel, message string, args ...any) {
	mu.RLock()
	out := current.forLevel(level)
	mu.RUnlock()
	if out == nil {
		return
	}
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	if l.name != "" {
		message = fmt.Sprintf("[%s] %s", l.name, message)
	}
	out.Output(l.calldepth, message) //nolint:errcheck // we can't do anything with what we log
}

func (l *logger) Tracef(message string, args ...any) {
	l.output(TRACE, message, args...)
}

func (l *logger) Debugf(message string, args ...any) {
	l.output(DEBUG, message, args...)
}

func (l *logger) Infof(message string, args ...any) {
	l.output(INFO, message, args...)
}

func (l *logger) Warnf(message string, args ...any) {
	l.output(WARN, message, args...)
}

func (l *logger) Errorf(message string, args ...any) {
	l.output(ERROR, message, args...)
}

var root = logger{calldepth: 3}

func Tracef(message string, args ...any) {
	root.output(TRACE, message, args...)
}

func Debugf(message string, args ...any) {
	root.output(DEBUG, message, args...)
}

func Infof(message string, args ...any) {
	root.output(INFO, message, args...)
}

func Warnf(message string, args ...any) {
	root.output(WARN, message, args...)
}

func Errorf(message string, args ...any) {
	root.output(ERROR, message, args...)
}

// PanicHandler logs the panic and its stack trace before passing it on. It
// must be deferred at the top of every goroutine.
func PanicHandler() {
	r := recover()
	if r == nil {
		return
	}
	Errorf("PANIC: %v\n%s", r, debug.Stack())
	fmt.Fprintf(os.Stderr, "msglist: unrecoverable error: %v\n", r)
	panic(r)
}
