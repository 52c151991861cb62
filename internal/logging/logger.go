package logging

import (
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Logger writes leveled entries with string fields to an output and a Buffer.
type Logger struct {
	buffer   *Buffer
	output   *log.Logger
	minLevel Level
	fields   map[string]string
}

// New creates a Logger writing to stderr.
func New(buffer *Buffer, minLevel Level) *Logger {
	return NewWithOutput(buffer, minLevel, os.Stderr)
}

// NewWithOutput creates a Logger writing to output. A nil output discards lines.
func NewWithOutput(buffer *Buffer, minLevel Level, output io.Writer) *Logger {
	if output == nil {
		output = io.Discard
	}
	return &Logger{
		buffer:   buffer,
		output:   log.New(output, "", log.LstdFlags),
		minLevel: normalizeLevel(minLevel),
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWithOutput(nil, LevelError, io.Discard)
}

// Buffer returns the in-memory buffer of recent entries.
func (l *Logger) Buffer() *Buffer {
	if l == nil {
		return nil
	}
	return l.buffer
}

// With returns a Logger that adds fields to every entry.
func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		buffer:   l.buffer,
		output:   l.output,
		minLevel: l.minLevel,
		fields:   mergeFields(l.fields, fields),
	}
}

func (l *Logger) Debug(message string, fields map[string]string) {
	l.log(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]string) {
	l.log(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]string) {
	l.log(LevelWarning, message, fields)
}

func (l *Logger) Error(message string, fields map[string]string) {
	l.log(LevelError, message, fields)
}

// Enabled reports whether entries at level are written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	return levelRank(level) >= levelRank(l.minLevel)
}

func (l *Logger) log(level Level, message string, fields map[string]string) {
	if !l.Enabled(level) {
		return
	}
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Fields:    mergeFields(l.fields, fields),
	}
	if l.buffer != nil {
		l.buffer.Add(entry)
	}
	l.output.Print(formatEntry(entry))
}

// ParseLevel maps a user supplied name to a Level.
func ParseLevel(value string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warning", "warn":
		return LevelWarning, true
	case "error":
		return LevelError, true
	default:
		return "", false
	}
}

// AtLeast reports whether level is as severe as min.
func AtLeast(level, min Level) bool {
	return levelRank(level) >= levelRank(min)
}

func normalizeLevel(level Level) Level {
	if _, ok := ParseLevel(string(level)); ok {
		return level
	}
	return LevelInfo
}

func levelRank(level Level) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

func mergeFields(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}

func formatEntry(entry Entry) string {
	var builder strings.Builder
	builder.WriteString("level=")
	builder.WriteString(string(entry.Level))
	builder.WriteString(" msg=")
	builder.WriteString(strconv.Quote(entry.Message))

	keys := make([]string, 0, len(entry.Fields))
	for key := range entry.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		builder.WriteByte(' ')
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(strconv.Quote(entry.Fields[key]))
	}
	return builder.String()
}
