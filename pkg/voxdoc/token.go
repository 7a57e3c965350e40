package voxdoc

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// GatewayToken is a short-lived bearer credential for self-hosted gateway
// deployments, where the live socket sits behind a proxy that verifies HS256
// tokens instead of forwarding raw API keys to clients.
type GatewayToken struct {
	Token     string
	ExpiresAt int64 // unix milliseconds
}

// MintGatewayToken signs a fresh token for one session.
func MintGatewayToken(secret, sessionID string, ttl time.Duration) Result[*GatewayToken] {
	if secret == "" {
		return Err[*GatewayToken](NewTokenError("gateway secret is empty"))
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"iss": "voxdoc-go",
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return Err[*GatewayToken](WrapError(err, ErrCodeTokenError))
	}

	return Ok(&GatewayToken{Token: signed, ExpiresAt: expiresAt.UnixMilli()})
}

// IsGatewayTokenExpired reports whether the token's expiry has passed.
func IsGatewayTokenExpired(token *GatewayToken) bool {
	return time.Now().UnixMilli() > token.ExpiresAt
}

// GetTokenTTL returns seconds of validity remaining, floored at zero.
func GetTokenTTL(token *GatewayToken) int {
	ttl := (token.ExpiresAt - time.Now().UnixMilli()) / 1000
	if ttl < 0 {
		return 0
	}
	return int(ttl)
}

// ParseGatewayToken verifies a token against the secret and returns its
// claims.
func ParseGatewayToken(token, secret string) Result[map[string]interface{}] {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Err[map[string]interface{}](WrapError(err, ErrCodeTokenError))
	}

	if claims, ok := parsed.Claims.(jwt.MapClaims); ok && parsed.Valid {
		return Ok(map[string]interface{}(claims))
	}
	return Err[map[string]interface{}](NewTokenError("invalid gateway token"))
}

// GatewayTokenSource hands out cached tokens, reminting when the current one
// is inside the refresh buffer of its expiry.
type GatewayTokenSource struct {
	secret        string
	ttl           time.Duration
	refreshBuffer time.Duration

	mu     sync.Mutex
	cached *GatewayToken
}

func NewGatewayTokenSource(secret string, ttl, refreshBuffer time.Duration) *GatewayTokenSource {
	return &GatewayTokenSource{
		secret:        secret,
		ttl:           ttl,
		refreshBuffer: refreshBuffer,
	}
}

// Token returns a valid bearer token, minting one if needed.
func (ts *GatewayTokenSource) Token() (string, *VoxdocError) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cached != nil {
		deadline := ts.cached.ExpiresAt - ts.refreshBuffer.Milliseconds()
		if time.Now().UnixMilli() < deadline {
			return ts.cached.Token, nil
		}
	}

	res := MintGatewayToken(ts.secret, uuid.New().String(), ts.ttl)
	if !res.Success {
		return "", res.Error
	}
	ts.cached = res.Data
	return res.Data.Token, nil
}

// Clear drops the cached token so the next call mints a fresh one.
func (ts *GatewayTokenSource) Clear() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.cached = nil
}
