// Package auth verifies the platform's access tokens. The accounts service
// signs HS256 tokens with a shared secret; this service only ever verifies.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller extracted from a verified token.
type Identity struct {
	UserID   string
	Username string
}

// Claims is the token payload the platform issues: registered claims plus
// the preferred_username the accounts service always includes.
type Claims struct {
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}

// Verifier validates access tokens against the shared signing secret.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier builds a Verifier for the given secret and expected issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates tokenStr and returns the caller's identity.
// Expiry and issuer are checked by the parser; a token without a subject is
// rejected even if otherwise valid.
func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &Identity{UserID: claims.Subject, Username: claims.PreferredUsername}, nil
}
