package security

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"idlegate/internal/constants"
	"idlegate/internal/utils"
)

const EnvAuditDir = "IDLEGATE_AUDIT_DIR"

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	IP        string    `json:"ip,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	TabID     string    `json:"tab_id,omitempty"`
	Details   string    `json:"details"`
	Severity  string    `json:"severity"`
}

type AuditLogger struct {
	mu          sync.Mutex
	logDir      string
	file        *os.File
	enc         *json.Encoder
	logCount    int
	windowStart time.Time
	diskOK      bool
}

var (
	instance *AuditLogger
	once     sync.Once
)

func GetAuditLogger() (*AuditLogger, error) {
	var err error
	once.Do(func() {
		var dir string
		dir, err = getAuditLogDir()
		if err != nil {
			return
		}
		instance, err = NewAuditLogger(dir)
	})
	return instance, err
}

// NewAuditLogger opens today's audit file under dir.
func NewAuditLogger(dir string) (*AuditLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("audit-%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	al := &AuditLogger{
		logDir:      dir,
		file:        file,
		enc:         json.NewEncoder(file),
		windowStart: time.Now(),
	}
	al.diskOK = al.hasEnoughDiskSpace()
	return al, nil
}

func getAuditLogDir() (string, error) {
	if dir := utils.GetEnv(EnvAuditDir, ""); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", constants.AppName, "audit"), nil
	case "darwin":
		return filepath.Join(home, "Library", "Logs", constants.AppName, "audit"), nil
	default:
		return filepath.Join(home, ".local", "share", constants.AppName, "audit"), nil
	}
}

// Log writes one JSON line. Events beyond the per-minute budget, or while
// the disk is nearly full, are dropped. A nil logger is a no-op.
func (al *AuditLogger) Log(event AuditEvent) {
	if al == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()

	now := time.Now()

	if now.Sub(al.windowStart) > time.Minute {
		al.windowStart = now
		al.logCount = 0
		al.diskOK = al.hasEnoughDiskSpace()
	}

	if !al.diskOK || al.logCount >= constants.MaxAuditLogsPerMinute {
		return
	}

	al.logCount++
	event.Timestamp = now
	al.enc.Encode(event)
}

func (al *AuditLogger) LogAuthFailure(ip, userID, reason string) {
	al.Log(AuditEvent{
		EventType: "auth_failure",
		IP:        ip,
		UserID:    userID,
		Details:   reason,
		Severity:  "warning",
	})
}

func (al *AuditLogger) LogAuthSuccess(ip, userID, sessionID string) {
	al.Log(AuditEvent{
		EventType: "auth_success",
		IP:        ip,
		UserID:    userID,
		SessionID: sessionID,
		Details:   "Signed in",
		Severity:  "info",
	})
}

func (al *AuditLogger) LogBruteForce(ip string, attempts int) {
	al.Log(AuditEvent{
		EventType: "brute_force",
		IP:        ip,
		Details:   fmt.Sprintf("Multiple failed attempts: %d", attempts),
		Severity:  "critical",
	})
}

func (al *AuditLogger) LogConnectionLimit(ip string) {
	al.Log(AuditEvent{
		EventType: "connection_limit",
		IP:        ip,
		Details:   "Connection limit exceeded",
		Severity:  "warning",
	})
}

func (al *AuditLogger) LogSignOut(userID, sessionID, reason string) {
	al.Log(AuditEvent{
		EventType: "sign_out",
		UserID:    userID,
		SessionID: sessionID,
		Details:   reason,
		Severity:  "info",
	})
}

func (al *AuditLogger) LogIdleLogout(userID, sessionID, tabID, reason string) {
	al.Log(AuditEvent{
		EventType: "idle_logout",
		UserID:    userID,
		SessionID: sessionID,
		TabID:     tabID,
		Details:   fmt.Sprintf("Forced logout: %s", reason),
		Severity:  "warning",
	})
}

func (al *AuditLogger) LogTabConnect(ip, sessionID, tabID string) {
	al.Log(AuditEvent{
		EventType: "tab_connect",
		IP:        ip,
		SessionID: sessionID,
		TabID:     tabID,
		Details:   "Tab connected via WebSocket",
		Severity:  "info",
	})
}

func (al *AuditLogger) LogTabDisconnect(ip, sessionID, tabID, reason string) {
	al.Log(AuditEvent{
		EventType: "tab_disconnect",
		IP:        ip,
		SessionID: sessionID,
		TabID:     tabID,
		Details:   fmt.Sprintf("Tab disconnected: %s", reason),
		Severity:  "info",
	})
}

func (al *AuditLogger) LogInvalidRequest(ip, path, reason string) {
	al.Log(AuditEvent{
		EventType: "invalid_request",
		IP:        ip,
		Details:   fmt.Sprintf("Invalid request to %s: %s", path, reason),
		Severity:  "warning",
	})
}

func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	if al.file != nil {
		err := al.file.Close()
		al.file = nil
		return err
	}
	return nil
}
