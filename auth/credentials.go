package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential errors.
var (
	ErrMissingCredentials = errors.New("auth: no credentials configured")
	ErrTokenExpired       = errors.New("auth: bearer token expired")
)

// Credentials attach authentication to an outgoing request.
type Credentials interface {
	// Apply sets the authentication headers on req. It returns an error
	// when the credentials are known to be unusable, such as an expired
	// token; callers treat that as an authentication failure without
	// making a network attempt.
	Apply(req *http.Request) error
}

// APIKey authenticates with a static key in the x-api-key header.
type APIKey struct {
	Key string
}

// NewAPIKey creates API-key credentials.
func NewAPIKey(key string) *APIKey {
	return &APIKey{Key: key}
}

// Apply sets the x-api-key header.
func (a *APIKey) Apply(req *http.Request) error {
	if a.Key == "" {
		return ErrMissingCredentials
	}
	req.Header.Set("x-api-key", a.Key)
	return nil
}

// BearerToken authenticates with an Authorization: Bearer header. Leeway
// is subtracted from the token's expiry when checking freshness, so a
// token about to expire mid-stream is rejected up front.
type BearerToken struct {
	Token  string
	Leeway time.Duration
}

// NewBearerToken creates bearer-token credentials with a 30 second
// expiry leeway.
func NewBearerToken(token string) *BearerToken {
	return &BearerToken{Token: token, Leeway: 30 * time.Second}
}

// Apply sets the Authorization header after checking token freshness.
func (b *BearerToken) Apply(req *http.Request) error {
	if b.Token == "" {
		return ErrMissingCredentials
	}
	if err := b.checkExpiry(); err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// checkExpiry inspects the token's exp claim without verifying the
// signature; the server remains the authority, this only short-circuits
// tokens that are certainly dead. Opaque (non-JWT) tokens pass through.
func (b *BearerToken) checkExpiry() error {
	if strings.Count(b.Token, ".") != 2 {
		return nil
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(b.Token, jwt.MapClaims{})
	if err != nil {
		// Not a parsable JWT; let the server decide.
		return nil
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().Add(b.Leeway).After(exp.Time) {
		return fmt.Errorf("%w: expired at %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}
	return nil
}
