// Package tokens issues and verifies signed, time-limited bearer tokens.
//
// Tokens are stateless and self-contained: validity is purely computational
// (signature plus expiry), never looked up in storage. There is no
// revocation, no logout and no refresh rotation.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every verification failure: bad signature,
// malformed structure, expiry in the past or a missing subject. Callers map
// it to an authentication failure without distinguishing the cause.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the claim set carried by issued tokens: subject (the user's
// email) and expiry.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with a shared HMAC secret
type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
}

// NewIssuer creates an issuer. Construction fails on a missing secret or an
// unknown algorithm; both are configuration errors and fatal at startup.
func NewIssuer(secret, algorithm string, ttlMinutes int) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	if ttlMinutes <= 0 {
		return nil, errors.New("token TTL must be positive")
	}

	var method jwt.SigningMethod
	switch algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}

	return &Issuer{
		secret: []byte(secret),
		method: method,
		ttl:    time.Duration(ttlMinutes) * time.Minute,
	}, nil
}

// Issue mints a token with the given subject and an expiry of now + TTL
func (i *Issuer) Issue(subject string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(i.method, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the subject.
// Every failure mode collapses to ErrInvalidToken; partial claims are never
// returned and untrusted input never panics.
func (i *Issuer) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != i.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{i.method.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// TTL returns the configured token lifetime
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}
