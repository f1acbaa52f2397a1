package store

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/rampforge/agent/common"
)

// SessionExpiration is how long a token remains valid after issuance.
const SessionExpiration = 12 * time.Hour

// Session is a bearer token attached to a User record.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// NewSession mints a fresh session with a random 32-byte base64url token.
func NewSession() (Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, common.NewSystemError(common.ErrInternalError, "failed to draw random session token")
	}
	return Session{
		Token:     base64.RawURLEncoding.EncodeToString(buf),
		ExpiresAt: time.Now().Add(SessionExpiration),
	}, nil
}

// Validate checks the provided token against the session, distinguishing a
// mismatched token from an expired one.
func (s Session) Validate(providedToken string) error {
	if s.Token != providedToken {
		return common.NewUserError(common.ErrTokenInvalid)
	}
	if time.Now().After(s.ExpiresAt) {
		return common.NewUserError(common.ErrTokenExpired)
	}
	return nil
}
