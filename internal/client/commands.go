package client

import (
	"strings"

	"idlegate/internal/types"
)

// ParseCommand maps one line of terminal input to a tab message.
//
//	<enter>   activity (keydown)
//	s         stay signed in
//	h / v     hide / show the tab
//	r /path   navigate
//	q         quit
func ParseCommand(line string) (msg types.TabMessage, quit bool, ok bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return types.TabMessage{Type: types.TabMsgActivity, Kind: "keydown"}, false, true
	case line == "s":
		return types.TabMessage{Type: types.TabMsgExtend}, false, true
	case line == "h":
		return types.TabMessage{Type: types.TabMsgVisibility, Hidden: true}, false, true
	case line == "v":
		return types.TabMessage{Type: types.TabMsgVisibility, Hidden: false}, false, true
	case line == "q":
		return types.TabMessage{}, true, true
	case strings.HasPrefix(line, "r "):
		route := strings.TrimSpace(strings.TrimPrefix(line, "r "))
		if !strings.HasPrefix(route, "/") {
			route = "/" + route
		}
		return types.TabMessage{Type: types.TabMsgRoute, Route: route}, false, true
	}
	return types.TabMessage{}, false, false
}
