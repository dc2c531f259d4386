package utils

import (
	"net/url"
	"strings"
)

// ConstructWSURL turns an http(s) server URL into the ws(s) URL of path.
func ConstructWSURL(serverURL, path string, query url.Values) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String(), nil
}
