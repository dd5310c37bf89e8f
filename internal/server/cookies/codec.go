// Package cookies signs and verifies session cookie values. A value is an
// HS256 JWT whose subject is the session id and whose "cid" claim is the
// company the cookie was issued for.
package cookies

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/extsession/internal/common"
	"github.com/dmitrijs2005/extsession/internal/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a session cookie.
type Claims struct {
	jwt.RegisteredClaims
	CompanyID string `json:"cid"`
}

type Codec struct {
	key   []byte
	keyID string
	now   func() time.Time
}

// NewCodec derives the signing key from secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("cookie secret is empty")
	}
	key := cryptox.DeriveSigningKey(secret)
	return &Codec{key: key, keyID: cryptox.KeyID(key), now: time.Now}, nil
}

// WithNow returns a copy of c using now as its clock.
func (c *Codec) WithNow(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Sign returns the cookie value for sessionID. A zero expires yields a value
// without an exp claim.
func (c *Codec) Sign(sessionID, companyID string, expires time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sessionID,
			IssuedAt: jwt.NewNumericDate(c.now()),
		},
		CompanyID: companyID,
	}
	if !expires.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expires)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = c.keyID

	s, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign cookie: %w", err)
	}
	return s, nil
}

// Verify checks the signature, expiry and company binding of value and
// returns the session id. Every failure wraps common.ErrorUnauthorized.
func (c *Codec) Verify(value, companyID string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: invalid cookie", common.ErrorUnauthorized)
	}
	if claims.CompanyID != companyID {
		return "", fmt.Errorf("%w: cookie issued for another company", common.ErrorUnauthorized)
	}
	return claims.Subject, nil
}
