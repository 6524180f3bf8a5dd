package mpesa

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	tokenPath = "/v1/token/generate"
	grantType = "client_credentials"
)

// Credentials are the consumer key pair issued by the gateway
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
}

// String keeps the pair out of logs and error messages
func (c Credentials) String() string {
	return "Credentials{ConsumerKey: [REDACTED], ConsumerSecret: [REDACTED]}"
}

// GoString keeps the pair out of %#v output
func (c Credentials) GoString() string {
	return c.String()
}

func (c Credentials) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.ConsumerKey + ":" + c.ConsumerSecret))
}

// Session is the access token handed out by the token endpoint
type Session struct {
	AccessToken string
	ExpiresIn   string
	ObtainedAt  time.Time
}

// ExpiresAt returns when the token lapses. ok is false when expires_in is
// not a number of seconds.
func (s Session) ExpiresAt() (at time.Time, ok bool) {
	seconds, err := strconv.Atoi(strings.TrimSpace(s.ExpiresIn))
	if err != nil {
		return time.Time{}, false
	}
	return s.ObtainedAt.Add(time.Duration(seconds) * time.Second), true
}

// Expired reports whether the token has lapsed at now. Tokens with an
// unknown lifetime never report expiry.
func (s Session) Expired(now time.Time) bool {
	at, ok := s.ExpiresAt()
	return ok && !now.Before(at)
}

// TokenManager owns the access token. It starts unauthenticated and only
// talks to the network when Authenticate is called; expired tokens are not
// renewed on their own.
type TokenManager struct {
	creds   Credentials
	gateway *RequestGateway
	now     func() time.Time

	mu      sync.RWMutex
	session *Session
}

// NewTokenManager creates an unauthenticated manager that fetches tokens
// through gateway
func NewTokenManager(creds Credentials, gateway *RequestGateway, now func() time.Time) *TokenManager {
	if now == nil {
		now = time.Now
	}
	return &TokenManager{creds: creds, gateway: gateway, now: now}
}

// Authenticate fetches a new token and caches it. On failure the previously
// cached session, if any, is kept.
func (m *TokenManager) Authenticate(ctx context.Context) (Session, error) {
	result, err := m.gateway.Send(ctx, OperationRequest{
		Method:  http.MethodGet,
		Path:    tokenPath,
		Query:   map[string]string{"grant_type": grantType},
		Headers: map[string]string{"Authorization": "Basic " + m.creds.basicAuth()},
	})
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.StatusCode != 0 {
			var body Result
			if json.Unmarshal(gwErr.Body, &body) == nil {
				if code, ok := resultCode(body); ok {
					return Session{}, &AuthenticationError{Code: code, HasCode: true, Err: err}
				}
			}
		}
		return Session{}, err
	}

	token := result.String("access_token")
	if _, present := result["access_token"]; !present || token == "" {
		code, ok := resultCode(result)
		return Session{}, &AuthenticationError{Code: code, HasCode: ok}
	}

	session := Session{
		AccessToken: token,
		ExpiresIn:   result.String("expires_in"),
		ObtainedAt:  m.now(),
	}

	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()

	return session, nil
}

// CurrentToken returns the cached token without network activity
func (m *TokenManager) CurrentToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return "", false
	}
	return m.session.AccessToken, true
}

// Session returns a copy of the cached session
func (m *TokenManager) Session() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// resultCode reads resultCode as either a JSON number or a numeric string.
// Fractional or out of range numbers count as no code.
func resultCode(body Result) (int, bool) {
	switch v := body["resultCode"].(type) {
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return 0, false
		}
		return int(v), true
	case string:
		code, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return 0, false
		}
		return int(code), true
	default:
		return 0, false
	}
}
