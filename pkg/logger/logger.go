package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Logger writes leveled key/value lines. Loggers derived through WithField,
// WithFields and WithMode share the output writer.
type Logger struct {
	level  LogLevel
	out    *output
	fields map[string]interface{}
	mode   string
	format string
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

type Config struct {
	Level  LogLevel
	Output io.Writer
	Format string // "json" or "text" (default)
	Mode   string
}

// New returns an INFO logger writing text to stderr. Stdout is left to
// command output.
func New() *Logger {
	return NewWithConfig(Config{
		Level:  INFO,
		Output: os.Stderr,
		Format: "text",
	})
}

func NewWithConfig(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}
	if config.Format == "" {
		config.Format = "text"
	}

	return &Logger{
		level:  config.Level,
		out:    &output{w: config.Output},
		fields: make(map[string]interface{}),
		mode:   config.Mode,
		format: config.Format,
	}
}

// SetMode sets the tag printed in brackets after the level
func (l *Logger) SetMode(mode string) {
	l.mode = mode
}

func (l *Logger) GetMode() string {
	return l.mode
}

func (l *Logger) clone() *Logger {
	newLogger := &Logger{
		level:  l.level,
		out:    l.out,
		fields: make(map[string]interface{}, len(l.fields)),
		mode:   l.mode,
		format: l.format,
	}
	for k, v := range l.fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

// WithFields returns a logger carrying the given key/value pairs. A trailing
// key without a value is dropped.
func (l *Logger) WithFields(keyVals ...interface{}) *Logger {
	newLogger := l.clone()
	for i := 0; i+1 < len(keyVals); i += 2 {
		newLogger.fields[fmt.Sprintf("%v", keyVals[i])] = keyVals[i+1]
	}
	return newLogger
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(key, value)
}

func (l *Logger) WithMode(mode string) *Logger {
	newLogger := l.clone()
	newLogger.mode = mode
	return newLogger
}

func (l *Logger) Debug(msg string, keyVals ...interface{}) {
	l.log(DEBUG, msg, keyVals...)
}

func (l *Logger) Info(msg string, kv ...interface{}) {
	l.log(INFO, msg, kv...)
}

func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.log(WARN, msg, kv...)
}

func (l *Logger) Error(msg string, kv ...interface{}) {
	l.log(ERROR, msg, kv...)
}

func (l *Logger) log(level LogLevel, msg string, kv ...interface{}) {
	if level < l.level {
		return
	}

	allFields := make(map[string]interface{}, len(l.fields)+len(kv)/2)
	for k, v := range l.fields {
		allFields[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		allFields[fmt.Sprintf("%v", kv[i])] = kv[i+1]
	}

	timestamp := time.Now().Format(timeLayout)

	var line string
	if l.format == "json" {
		line = l.formatJSONLine(timestamp, level, msg, allFields)
	} else {
		line = l.formatLogLine(timestamp, level, msg, allFields)
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = io.WriteString(l.out.w, line+"\n")
}

func (l *Logger) formatLogLine(timestamp string, level LogLevel, msg string, fields map[string]interface{}) string {
	parts := []string{
		fmt.Sprintf("[%s]", timestamp),
		fmt.Sprintf("[%s]", level.String()),
	}
	if l.mode != "" {
		parts = append(parts, fmt.Sprintf("[%s]", l.mode))
	}
	parts = append(parts, msg)

	if len(fields) > 0 {
		fieldParts := make([]string, 0, len(fields))
		for _, key := range sortedKeys(fields) {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", key, formatValue(fields[key])))
		}
		parts = append(parts, "| "+strings.Join(fieldParts, " "))
	}

	return strings.Join(parts, " ")
}

func (l *Logger) formatJSONLine(timestamp string, level LogLevel, msg string, fields map[string]interface{}) string {
	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		switch val := v.(type) {
		case error:
			entry[k] = val.Error()
		case time.Duration:
			entry[k] = val.String()
		default:
			entry[k] = v
		}
	}
	entry["time"] = timestamp
	entry["level"] = level.String()
	entry["msg"] = msg
	if l.mode != "" {
		entry["mode"] = l.mode
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return l.formatLogLine(timestamp, level, msg, fields)
	}
	return string(data)
}

func sortedKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		// Quote strings that contain spaces
		if strings.Contains(v, " ") {
			return fmt.Sprintf(`"%s"`, v)
		}
		return v
	case error:
		return fmt.Sprintf(`"%s"`, v.Error())
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format("2006-01-02T15:04:05.000000000Z07:00")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *Logger) GetLevel() LogLevel {
	return l.level
}

func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", level)
	}
}
