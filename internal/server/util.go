package server

import (
	"crypto/rand"
	"strings"
)

// newSessionToken mints a token a viewer attaches to its outbound
// messages so it can discard its own echo.
func newSessionToken() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "AAAAAAAA"
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return string(buf)
}

// parseGamePath extracts the game id following prefix and returns any
// trailing subroute ("votes", "state", "").
func parseGamePath(path, prefix string) (gameID, rest string, ok bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.SplitN(trimmed, "/", 2)
	gameID = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return gameID, rest, true
}
