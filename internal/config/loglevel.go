package config

import (
	"fmt"
	"strings"
)

// LogLevel is the minimum severity a named logger emits.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

// Logger names that carry their own level variable.
const (
	LoggerFramework = "django"
	LoggerPayments  = "payments"
)

var logLevelVars = []struct {
	logger string
	env    string
}{
	{LoggerFramework, "DJANGO_LOG_LEVEL"},
	{LoggerPayments, "PAYMENTS_LOG_LEVEL"},
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// ParseLogLevel accepts the level names case-insensitively. WARN is an alias
// of WARNING; CRITICAL and FATAL collapse into ERROR.
func ParseLogLevel(raw string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARNING", "WARN":
		return LevelWarning, nil
	case "ERROR", "CRITICAL", "FATAL":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", raw)
}

// MarshalText implements encoding.TextMarshaler.
func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LogLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseLogLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
