package types

// Client → server message types on the tab socket.
const (
	TabMsgActivity   = "activity"
	TabMsgVisibility = "visibility"
	TabMsgRoute      = "route"
	TabMsgExtend     = "extend"
)

// Server → client message types.
const (
	TabMsgState    = "state"
	TabMsgNavigate = "navigate"
	TabMsgError    = "error"
)

type TabMessage struct {
	Type   string `json:"type"`
	Kind   string `json:"kind,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
	Route  string `json:"route,omitempty"`
}

type StateMessage struct {
	Type        string `json:"type"`
	TabID       string `json:"tab_id"`
	Phase       string `json:"phase"`
	SecondsLeft int    `json:"seconds_left"`
	MsLeft      int64  `json:"ms_before_logout"`
	Active      bool   `json:"active"`
	Hidden      bool   `json:"hidden"`
	Route       string `json:"route"`
	IdleMaxMs   int64  `json:"idle_max_ms"`
	LogoutAtMs  int64  `json:"logout_at_ms,omitempty"`
}

// NavigateMessage ends the tab. Reason says why, e.g. "idle timeout" or
// "logout".
type NavigateMessage struct {
	Type   string `json:"type"`
	Route  string `json:"route"`
	Reason string `json:"reason,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
