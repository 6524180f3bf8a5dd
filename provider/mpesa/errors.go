package mpesa

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrConfiguration matches every *ConfigurationError
	ErrConfiguration = errors.New("mpesa: configuration error")
	// ErrAuthentication matches every *AuthenticationError
	ErrAuthentication = errors.New("mpesa: authentication failed")
	// ErrGateway matches every *GatewayError
	ErrGateway = errors.New("mpesa: gateway request failed")
	// ErrInvalidRequest is returned when operation parameters fail validation.
	// Nothing is sent in that case.
	ErrInvalidRequest = errors.New("mpesa: invalid request")
)

// ConfigurationError reports a missing or unusable setting
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("mpesa: %s %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Result codes returned by the token endpoint
const (
	CodeSuccess            = 0
	CodeInvalidClientID    = 999991
	CodeInvalidAuthType    = 999996
	CodeInvalidAuthHeader  = 999997
	CodeInvalidGrantType   = 999998
	defaultAuthFailMessage = "Failed to obtain access token from Mpesa API."
)

var authMessages = map[int]string{
	CodeSuccess:           "Request successful",
	CodeInvalidClientID:   "Invalid client id passed: Incorrect basic Authorization username. Input the correct username.",
	CodeInvalidAuthType:   "Invalid Authentication passed: Incorrect authorization type. Select type as Basic Auth.",
	CodeInvalidAuthHeader: "Invalid Authorization Header: Incorrect basic authorization password. Input the correct password.",
	CodeInvalidGrantType:  "Required parameter [grant_type] is invalid or empty: Incorrect grant type. Select grant type as client credentials.",
}

// AuthenticationError is returned when the token endpoint answers without
// an access token. HasCode is false when the answer carried no resultCode.
type AuthenticationError struct {
	Code    int
	HasCode bool
	Err     error
}

// Message returns the human readable text for the result code
func (e *AuthenticationError) Message() string {
	if !e.HasCode {
		return "access token missing from response and no result code given"
	}
	if msg, ok := authMessages[e.Code]; ok {
		return msg
	}
	return fmt.Sprintf("%s (result code %d)", defaultAuthFailMessage, e.Code)
}

func (e *AuthenticationError) Error() string {
	return "mpesa: authentication failed: " + e.Message()
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// GatewayError wraps any failure of a request/response cycle: transport
// errors, timeouts, non-2xx answers and bodies that are not JSON objects.
type GatewayError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mpesa: API request failed: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// Timeout reports whether the request gave up waiting for the gateway
func (e *GatewayError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
