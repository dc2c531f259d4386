package constants

import (
	"net/http"
	"time"
)

const (
	AppName = "idlegate"
	Version = "0.3.0"
)

// Network defaults
const (
	DefaultHost      = "localhost:8080"
	DefaultPort      = "8080"
	DefaultServerURL = "http://localhost:8080"
	WSBufferSize     = 4096
	CleanupInterval  = 30 * time.Second
	ShutdownTimeout  = 5 * time.Second
	WSWriteTimeout   = 5 * time.Second
	WSPongWait       = 60 * time.Second
	WSPingInterval   = 25 * time.Second
	MaxWSMessageSize = 4096
	TabSendBuffer    = 32
)

// Idle policy defaults
const (
	DefaultIdleMax     = 15 * time.Minute
	DefaultWarning     = 60 * time.Second
	DefaultExemptRoute = "/login"
	DefaultRoute       = "/"
	CountdownInterval  = time.Second
	IdleStateTTL       = 24 * time.Hour
	StorageTimeout     = 2 * time.Second
	SignOutTimeout     = 5 * time.Second
)

// Shared storage keys and broadcast channel
const (
	KeyLastActiveAt     = "idle:lastActiveAt"
	KeyReset            = "idle:reset"
	KeyForceLogout      = "idle:forceLogout"
	BroadcastChannel    = "idle"
	RedisKeyPrefix      = "idlegate:"
	RedisChangesChannel = "idlegate:changes"
	RedisBroadcastPref  = "idlegate:bc:"
	RedisSessionPrefix  = "idlegate:session:"
)

// Session settings
const (
	SessionDuration       = 12 * time.Hour
	SessionCookieName     = "idlegate_session"
	SessionCookieMaxAge   = 12 * 3600
	SessionCookieSameSite = http.SameSiteStrictMode
)

// Rate limiting
const (
	MaxConnectionsPerIP = 20
	MaxAuthAttempts     = 5
	BlockDuration       = 15 * time.Minute
	MaxLoginBodySize    = 4 * 1024
	MaxItemBodySize     = 16 * 1024
	ActivityRate        = 2 // touches per second per tab
	ActivityBurst       = 4
)

// Audit
const (
	MaxAuditLogsPerMinute = 600
	MinDiskSpaceRequired  = 50 * 1024 * 1024
	MaxRecentEvents       = 200
)

// API endpoints
const (
	EndpointLogin      = "/api/login"
	EndpointLogout     = "/api/logout"
	EndpointMe         = "/api/me"
	EndpointTabs       = "/api/tabs"
	EndpointActivities = "/api/activities/"
	EndpointYears      = "/api/years"
	EndpointZones      = "/api/zones"
	EndpointSubzones   = "/api/subzones"
	EndpointTabWS      = "/ws/tab"
	EndpointStats      = "/api/stats"
	EndpointHealth     = "/health"
)

// Time formats
const (
	TimeFormatShort = "15:04:05"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
	ColorPurple = "\033[35m"
)

// Messages
const (
	MsgInvalidJSON      = "Invalid JSON"
	MsgMethodNotAllowed = "Method not allowed"
	MsgUnauthorized     = "Unauthorized"
	MsgInvalidUser      = "Invalid user id"
	MsgNotFound         = "Not found"
	MsgTooManyAttempts  = "Too many failed attempts. Try again later."
	MsgConnectionLimit  = "Connection limit exceeded"
)
