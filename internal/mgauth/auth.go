// Package mgauth implements the site's session authentication: a single
// configured admin credential pair, checked in constant time, with logged-in
// state carried by a signed (not encrypted) cookie.
package mgauth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/xerrors"
)

// SecretLength is the size in bytes of the secret that signs session cookies.
const SecretLength = 32

// SessionCookie is the name of the session cookie.
const SessionCookie = "session"

// sessionMaxAge is how long a session stays valid once issued.
const sessionMaxAge = 30 * 24 * time.Hour

// ErrBadCredentials is returned by HandleLogin when the submitted credentials
// don't match the expected ones.
var ErrBadCredentials = xerrors.New("bad credentials")

// Secret signs session cookies. In production it's generated once and
// persisted to storage; outside production it's DevelopmentSecret.
type Secret []byte

// DevelopmentSecret is the well-known signing secret used outside production,
// where cookie integrity doesn't matter and losing every session on restart
// would be annoying.
var DevelopmentSecret = Secret("0000000000000000-not-for-prod-00")

// GenerateSecret returns a new random secret suitable for signing session
// cookies.
func GenerateSecret() Secret {
	return Secret(securecookie.GenerateRandomKey(SecretLength))
}

// Login is a username/password credential pair. Expected values come from
// server configuration; submitted ones from the login form.
type Login struct {
	Username string
	Password string
}

// session is what actually gets signed into the cookie.
type session struct {
	Username string
}

// IsLoggedIn reports whether the request carries a valid session for the
// expected login. It's always false when no admin password is configured:
// with nothing to log in with, nobody can be logged in.
func IsLoggedIn(secret Secret, expected Login, r *http.Request) bool {
	if expected.Password == "" {
		return false
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}

	var sess session
	if err := codec(secret).Decode(SessionCookie, cookie.Value, &sess); err != nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(sess.Username), []byte(expected.Username)) == 1
}

// HandleLogin checks submitted credentials against the expected ones and on
// success returns a session cookie for the response. Failure is always
// ErrBadCredentials regardless of which part didn't match.
func HandleLogin(secret Secret, expected, submitted Login) (*http.Cookie, error) {
	if expected.Password == "" {
		return nil, ErrBadCredentials
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(expected.Username), []byte(submitted.Username)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(expected.Password), []byte(submitted.Password)) == 1
	if !usernameOK || !passwordOK {
		return nil, ErrBadCredentials
	}

	encoded, err := codec(secret).Encode(SessionCookie, session{Username: expected.Username})
	if err != nil {
		return nil, xerrors.Errorf("error encoding session cookie: %w", err)
	}

	return &http.Cookie{
		Name:     SessionCookie,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// HandleLogout returns a cookie that clears any session.
func HandleLogout() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// codec builds the signing codec for a secret. Only a hash key is set, so
// cookies are tamper-proof but not encrypted; they carry nothing secret.
func codec(secret Secret) *securecookie.SecureCookie {
	sc := securecookie.New(secret, nil)
	sc.MaxAge(int(sessionMaxAge.Seconds()))
	return sc
}
