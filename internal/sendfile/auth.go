package sendfile

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"time"
)

// Authenticator validates the credential carried by a claimed connection's
// first request. Exactly one of Authorization/Cookie/X-Emby-Token is
// expected to be present; authenticate reports whether any of the presented
// credentials is valid.
type Authenticator interface {
	CheckBearer(token string) bool
	CheckSessionCookie(cookie string) bool
	CheckEmbyToken(token string) bool
}

// StaticTokenAuthenticator authenticates against a single configured API
// token, compared in constant time to avoid timing side-channels. The
// session cookie carries no token of its own — per spec.md §6's wire
// format, it is `base64(JSON{username, expires_at_unix})` and is valid
// whenever it decodes and hasn't expired, exactly as the original
// SessionData::is_valid check never compares it against the API key either.
type StaticTokenAuthenticator struct {
	Token string
}

// sessionData mirrors the original SessionData{username, expires_at}: a
// base64-encoded JSON payload carried verbatim in the session cookie.
type sessionData struct {
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at_unix"`
}

func (a StaticTokenAuthenticator) CheckBearer(token string) bool {
	return constantTimeEqual(bearerValue(token), a.Token)
}

func (a StaticTokenAuthenticator) CheckSessionCookie(cookie string) bool {
	session, ok := decodeSessionCookie(cookieValue(cookie, "mediavault_session"))
	if !ok {
		return false
	}
	return time.Now().Unix() < session.ExpiresAt
}

func (a StaticTokenAuthenticator) CheckEmbyToken(token string) bool {
	return constantTimeEqual(token, a.Token)
}

// decodeSessionCookie base64-decodes and JSON-unmarshals encoded into a
// sessionData, as the original SessionData::decode does.
func decodeSessionCookie(encoded string) (sessionData, bool) {
	if encoded == "" {
		return sessionData{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return sessionData{}, false
	}
	var session sessionData
	if err := json.Unmarshal(raw, &session); err != nil {
		return sessionData{}, false
	}
	return session, true
}

func constantTimeEqual(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func bearerValue(authorizationHeader string) string {
	const prefix = "Bearer "
	if len(authorizationHeader) <= len(prefix) || authorizationHeader[:len(prefix)] != prefix {
		return ""
	}
	return authorizationHeader[len(prefix):]
}

func cookieValue(cookieHeader, name string) string {
	rest := cookieHeader
	for len(rest) > 0 {
		var pair string
		if i := indexByte(rest, ';'); i >= 0 {
			pair, rest = rest[:i], rest[i+1:]
		} else {
			pair, rest = rest, ""
		}
		for len(pair) > 0 && pair[0] == ' ' {
			pair = pair[1:]
		}
		k, v, ok := cut(pair, '=')
		if ok && k == name {
			return v
		}
	}
	return ""
}

func cut(s string, sep byte) (before, after string, found bool) {
	i := indexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// authenticate reports whether req carries a valid credential via any of
// the three accepted mechanisms (spec.md §4.8 step 2).
func authenticate(a Authenticator, req parsedRequest) bool {
	if req.Authorization != "" && a.CheckBearer(req.Authorization) {
		return true
	}
	if req.Cookie != "" && a.CheckSessionCookie(req.Cookie) {
		return true
	}
	if req.EmbyToken != "" && a.CheckEmbyToken(req.EmbyToken) {
		return true
	}
	return false
}
