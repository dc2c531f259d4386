package types

import "time"

type LoginRequest struct {
	UserID string `json:"user_id"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TabInfo struct {
	ID          string    `json:"id"`
	Route       string    `json:"route"`
	Phase       string    `json:"phase"`
	SecondsLeft int       `json:"seconds_left"`
	Hidden      bool      `json:"hidden"`
	ConnectedAt time.Time `json:"connected_at"`
	RemoteAddr  string    `json:"remote_addr,omitempty"`
}

type TabsResponse struct {
	UserID string    `json:"user_id"`
	Tabs   []TabInfo `json:"tabs"`
}

type ActivityRequest struct {
	Label        string    `json:"label"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	YearID       string    `json:"year_id"`
	ZoneID       string    `json:"zone_id"`
	SubzoneID    string    `json:"subzone_id"`
	Observations string    `json:"observations,omitempty"`
}

type YearRequest struct {
	Label string `json:"label"`
}

type ZoneRequest struct {
	Name   string `json:"name"`
	YearID string `json:"year_id"`
}

type SubzoneRequest struct {
	Name   string `json:"name"`
	ZoneID string `json:"zone_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
