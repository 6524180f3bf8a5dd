// Package mpesatest provides an in-process fake of the M-Pesa gateway for
// tests. It checks credentials and bearer tokens the way the real gateway
// does, records every request and lets tests replace the answer of a route.
package mpesatest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/mstgnz/gompesa/infra/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Default credentials accepted by the fake
const (
	ConsumerKey    = "test-consumer-key"
	ConsumerSecret = "test-consumer-secret"
	AccessToken    = "test-access-token"
	ExpiresIn      = "3599"
)

// Gateway routes served by the fake
const (
	TokenPath             = "/v1/token/generate"
	USSDPushPath          = "/mpesa/stkpush/v3/processrequest"
	RegisterURLPath       = "/v1/c2b-register-url/register"
	SimulateC2BPath       = "/mpesa/b2c/simulatetransaction/v1/request"
	PayoutPath            = "/mpesa/b2c/v2/paymentrequest"
	TransactionStatusPath = "/mpesa/transactionstatus/v1/query"
	ReversalPath          = "/mpesa/reversal/v2"
	AccountBalancePath    = "/mpesa/accountbalance/v2/query"

	// ValidationPath is a merchant validation endpoint, the target of C2B
	// validation requests
	ValidationPath = "/merchant/validation"
)

var operationPaths = []string{
	USSDPushPath,
	RegisterURLPath,
	SimulateC2BPath,
	PayoutPath,
	TransactionStatusPath,
	ReversalPath,
	AccountBalancePath,
}

// Request is a request received by the fake
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   map[string]any
}

// Server is a fake gateway listening on a local port
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []Request
	overrides map[string]http.HandlerFunc
	key       string
	secret    string
	token     string
}

// NewServer starts a fake gateway. Close it when done.
func NewServer() *Server {
	s := &Server{
		overrides: make(map[string]http.HandlerFunc),
		key:       ConsumerKey,
		secret:    ConsumerSecret,
		token:     AccessToken,
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Get(TokenPath, s.dispatch(TokenPath, s.handleToken))
	for _, path := range operationPaths {
		r.Post(path, s.dispatch(path, s.requireBearer(s.handleOperation)))
	}
	r.Post(ValidationPath, s.dispatch(ValidationPath, s.handleValidation))

	s.Server = httptest.NewServer(r)
	return s
}

// Config returns the settings a client needs to authenticate against the
// fake. Pair it with the server URL as base URL.
func (s *Server) Config() config.MapProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return config.MapProvider{
		"MPESA_CONSUMER_KEY":    s.key,
		"MPESA_CONSUMER_SECRET": s.secret,
		"MPESA_ENV":             "sandbox",
	}
}

// SetCredentials changes the consumer key pair the fake accepts
func (s *Server) SetCredentials(key, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key, s.secret = key, secret
}

// SetAccessToken changes the token issued and accepted from now on
func (s *Server) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Handle replaces the handler of path
func (s *Server) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[path] = h
}

// Respond makes path answer with a fixed status and body
func (s *Server) Respond(path string, status int, body string) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// Reset drops recorded requests and overrides
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.overrides = make(map[string]http.HandlerFunc)
}

// Requests returns the requests received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request to path
func (s *Server) LastRequest(path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

// Count returns how many requests hit path
func (s *Server) Count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(raw))

		var body map[string]any
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) dispatch(path string, fallback http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		h, ok := s.overrides[path]
		s.mu.Unlock()
		if ok {
			h(w, r)
			return
		}
		fallback(w, r)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	key, secret, token := s.key, s.secret, s.token
	s.mu.Unlock()

	if r.URL.Query().Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, authFailure("999998", "Required parameter [grant_type] is invalid or empty"))
		return
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
		writeJSON(w, http.StatusBadRequest, authFailure("999996", "Invalid Authentication passed"))
		return
	}
	user, pass, ok := r.BasicAuth()
	if !ok || user != key {
		writeJSON(w, http.StatusBadRequest, authFailure("999991", "Invalid client id passed"))
		return
	}
	if pass != secret {
		writeJSON(w, http.StatusBadRequest, authFailure("999997", "Invalid Authorization Header"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   ExpiresIn,
	})
}

func (s *Server) requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"requestId":    "",
				"errorCode":    "404.001.03",
				"errorMessage": "Invalid Access Token",
			})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errorCode":    "400.002.02",
			"errorMessage": "Bad Request - Invalid Body",
		})
		return
	}

	resp := map[string]any{
		"ResponseCode":        "0",
		"ResponseDescription": "Success",
		"ConversationID":      fmt.Sprintf("AG_%d", s.Count(r.URL.Path)),
	}
	if id, ok := body["OriginatorConversationID"]; ok {
		resp["OriginatorConversationID"] = id
	}
	if id, ok := body["MerchantRequestID"]; ok {
		resp["MerchantRequestID"] = id
		resp["CheckoutRequestID"] = fmt.Sprintf("ws_CO_%d", s.Count(r.URL.Path))
		resp["CustomerMessage"] = "Success. Request accepted for processing"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ResultCode": "0",
		"ResultDesc": "Accepted",
	})
}

func authFailure(code, message string) map[string]any {
	return map[string]any{
		"resultCode": code,
		"resultDesc": message,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
