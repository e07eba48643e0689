package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	FatalLevel: "FATAL",
}

func (l LogLevel) String() string {
	if l < DebugLevel || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a configured level name to a LogLevel, defaulting to info.
// "warning" is accepted for WARN.
func ParseLevel(name string) LogLevel {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "WARNING" {
		return WarnLevel
	}
	for level, levelName := range levelNames {
		if levelName == name && LogLevel(level) != FatalLevel {
			return LogLevel(level)
		}
	}
	return InfoLevel
}

// Fields represents structured log fields
type Fields map[string]interface{}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
)

// WithRequestID tags ctx so every entry logged with it carries the request ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithRunID tags ctx with a scoring or ingestion run ID
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RequestID returns the request ID stored in ctx, if any
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// RunID returns the run ID stored in ctx, if any
func RunID(ctx context.Context) string {
	return stringValue(ctx, runIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// LogEntry is one line of log output
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Level      string    `json:"level"`
	Service    string    `json:"service"`
	Version    string    `json:"version"`
	Hostname   string    `json:"hostname"`
	Message    string    `json:"message"`
	Fields     Fields    `json:"fields,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	File       string    `json:"file,omitempty"`
	Line       int       `json:"line,omitempty"`
	Function   string    `json:"function,omitempty"`
	Error      string    `json:"error,omitempty"`
	StackTrace string    `json:"stack_trace,omitempty"`
}

// StructuredLogger writes one JSON object per line. Entries at ERROR and
// above carry the caller; FATAL entries with an error also carry a stack.
type StructuredLogger struct {
	mu       sync.Mutex
	level    LogLevel
	out      io.Writer
	service  string
	version  string
	hostname string
}

// NewStructuredLogger creates a logger writing to stdout
func NewStructuredLogger(service, version string, level LogLevel) *StructuredLogger {
	hostname, _ := os.Hostname()
	return &StructuredLogger{
		level:    level,
		out:      os.Stdout,
		service:  service,
		version:  version,
		hostname: hostname,
	}
}

// NewNopLogger discards everything
func NewNopLogger() *StructuredLogger {
	return &StructuredLogger{level: FatalLevel + 1, out: io.Discard, service: "nop"}
}

func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *StructuredLogger) enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

func (l *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	l.emit(ctx, DebugLevel, message, fields, nil, 0)
}

func (l *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	l.emit(ctx, InfoLevel, message, fields, nil, 0)
}

func (l *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	l.emit(ctx, WarnLevel, message, fields, nil, 0)
}

func (l *StructuredLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	l.emit(ctx, ErrorLevel, message, fields, err, 0)
}

// Fatal logs and exits with status 1
func (l *StructuredLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	l.emit(ctx, FatalLevel, message, fields, err, 0)
	os.Exit(1)
}

// emit builds and writes an entry. depth counts wrapper frames between the
// exported method and the user's call site.
func (l *StructuredLogger) emit(ctx context.Context, level LogLevel, message string, fields Fields, err error, depth int) {
	if !l.enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Service:   l.service,
		Version:   l.version,
		Hostname:  l.hostname,
		Message:   message,
		Fields:    fields,
		RequestID: RequestID(ctx),
		RunID:     RunID(ctx),
	}
	if level >= ErrorLevel {
		entry.setCaller(3 + depth)
		if err != nil {
			entry.Error = err.Error()
		}
		if err != nil && level == FatalLevel {
			buf := make([]byte, 4096)
			entry.StackTrace = string(buf[:runtime.Stack(buf, false)])
		}
	}

	data, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		// unencodable field values; keep the message
		fmt.Fprintf(os.Stderr, "%s [%s] %s (log encode failed: %v)\n",
			entry.Timestamp.Format(time.RFC3339), entry.Level, message, marshalErr)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(append(data, '\n'))
}

func (e *LogEntry) setCaller(skip int) {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return
	}
	e.File, e.Line = file, line
	if fn := runtime.FuncForPC(pc); fn != nil {
		e.Function = fn.Name()
	}
}

// WithFields returns a logger that adds fields to every entry; call-site
// fields win on key collisions
func (l *StructuredLogger) WithFields(fields Fields) *ContextLogger {
	return &ContextLogger{logger: l, fields: fields}
}

// ContextLogger is a StructuredLogger with fixed fields
type ContextLogger struct {
	logger *StructuredLogger
	fields Fields
}

func (c *ContextLogger) Debug(ctx context.Context, message string, fields Fields) {
	c.logger.emit(ctx, DebugLevel, message, c.merge(fields), nil, 0)
}

func (c *ContextLogger) Info(ctx context.Context, message string, fields Fields) {
	c.logger.emit(ctx, InfoLevel, message, c.merge(fields), nil, 0)
}

func (c *ContextLogger) Warn(ctx context.Context, message string, fields Fields) {
	c.logger.emit(ctx, WarnLevel, message, c.merge(fields), nil, 0)
}

func (c *ContextLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	c.logger.emit(ctx, ErrorLevel, message, c.merge(fields), err, 0)
}

func (c *ContextLogger) merge(fields Fields) Fields {
	merged := make(Fields, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}
