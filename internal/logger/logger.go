package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"idlegate/internal/constants"
)

// LogEntry is one line of a tab's event log.
type LogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Direction   string    `json:"direction"`
	Type        string    `json:"type"`
	Phase       string    `json:"phase,omitempty"`
	SecondsLeft int       `json:"seconds_left,omitempty"`
	Route       string    `json:"route,omitempty"`
	Error       string    `json:"error,omitempty"`
	Message     string    `json:"message,omitempty"`
}

type Logger struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	logDir string
	tabID  string
}

func NewLogger(tabID string) (*Logger, error) {
	logDir, err := getLogDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get log directory: %w", err)
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("%s.log", tabID))

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file:   file,
		enc:    json.NewEncoder(file),
		logDir: logDir,
		tabID:  tabID,
	}, nil
}

func getLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	var logDir string
	switch runtime.GOOS {
	case "windows":
		logDir = filepath.Join(homeDir, "AppData", "Local", constants.AppName, "logs")
	case "darwin":
		logDir = filepath.Join(homeDir, "Library", "Logs", constants.AppName)
	default:
		logDir = filepath.Join(homeDir, ".local", "share", constants.AppName, "logs")
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			logDir = filepath.Join(xdgData, constants.AppName, "logs")
		}
	}

	return logDir, nil
}

// Log writes entry as one JSON line. A nil logger drops it.
func (l *Logger) Log(entry LogEntry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}
	entry.Timestamp = time.Now()
	l.enc.Encode(entry)
}

func (l *Logger) LogSent(msgType, detail string) {
	l.Log(LogEntry{
		Direction: "out",
		Type:      msgType,
		Message:   detail,
	})
}

func (l *Logger) LogState(phase string, secondsLeft int, route string) {
	l.Log(LogEntry{
		Direction:   "in",
		Type:        "state",
		Phase:       phase,
		SecondsLeft: secondsLeft,
		Route:       route,
	})
}

func (l *Logger) LogNavigate(route string) {
	l.Log(LogEntry{
		Direction: "in",
		Type:      "navigate",
		Route:     route,
	})
}

func (l *Logger) LogError(direction string, err error) {
	l.Log(LogEntry{
		Direction: direction,
		Type:      "error",
		Error:     err.Error(),
	})
}

func (l *Logger) LogEvent(message string) {
	l.Log(LogEntry{
		Direction: "client",
		Type:      "event",
		Message:   message,
	})
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) GetLogPath() string {
	if l != nil && l.file != nil {
		return l.file.Name()
	}
	return ""
}

func (l *Logger) GetLogDir() string {
	return l.logDir
}
