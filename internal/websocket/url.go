package websocket

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// BuildURL returns the interview socket URL for sessionID under base.
// http and https bases are mapped to ws and wss.
func BuildURL(base, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", errors.New("session id is required")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid websocket base url: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("websocket base url has no host")
	}

	escapedPrefix := strings.TrimSuffix(u.EscapedPath(), "/")
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/interview/" + sessionID
	u.RawPath = escapedPrefix + "/ws/interview/" + url.PathEscape(sessionID)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
