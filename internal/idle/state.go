package idle

import "time"

type Phase string

const (
	PhaseActive    Phase = "active"
	PhaseWarning   Phase = "warning"
	PhaseLoggedOut Phase = "logged_out"
)

// State is what a tab shows. SecondsLeft is only meaningful in
// PhaseWarning; LogoutAt and MsBeforeLogout are zero while the coordinator
// is suspended or signed out.
type State struct {
	Phase          Phase     `json:"phase"`
	SecondsLeft    int       `json:"seconds_left"`
	MsBeforeLogout int64     `json:"ms_before_logout"`
	Active         bool      `json:"active"`
	Hidden         bool      `json:"hidden"`
	IdleMax        int64     `json:"idle_max_ms"`
	LogoutAt       time.Time `json:"logout_at"`
}

type ActivityKind string

const (
	ActivityMouseMove        ActivityKind = "mousemove"
	ActivityKeyDown          ActivityKind = "keydown"
	ActivityClick            ActivityKind = "click"
	ActivityScroll           ActivityKind = "scroll"
	ActivityTouchStart       ActivityKind = "touchstart"
	ActivityVisibilityChange ActivityKind = "visibilitychange"
)

var activityKinds = map[ActivityKind]bool{
	ActivityMouseMove:        true,
	ActivityKeyDown:          true,
	ActivityClick:            true,
	ActivityScroll:           true,
	ActivityTouchStart:       true,
	ActivityVisibilityChange: true,
}

// ParseActivityKind reports whether s names a qualifying interaction.
func ParseActivityKind(s string) (ActivityKind, bool) {
	k := ActivityKind(s)
	return k, activityKinds[k]
}
