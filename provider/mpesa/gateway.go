package mpesa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mstgnz/gompesa/infra/logger"
	"github.com/mstgnz/gompesa/provider"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	errEmptyBody = errors.New("response body is empty")
	errNotObject = errors.New("response body is not a JSON object")
)

// Result is the decoded response body of an operation, returned as-is
type Result map[string]any

// String renders the scalar value stored under key. Missing keys and null
// values yield an empty string.
func (r Result) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// OperationRequest describes a single call to the gateway. RequestID is the
// identifier generated for the call, if any, and only goes to the logs.
type OperationRequest struct {
	Method    string
	Path      string
	Query     map[string]string
	Headers   map[string]string
	Body      any
	RequestID string
}

// tokenSource hands out the bearer token attached to requests
type tokenSource interface {
	CurrentToken() (string, bool)
}

// RequestGateway sends authenticated requests and maps every failure to a
// *GatewayError. It never retries.
type RequestGateway struct {
	http   *provider.ProviderHTTPClient
	tokens tokenSource
	log    *logger.SystemLogger
}

// NewRequestGateway creates a gateway over the given transport. tokens may
// be nil, in which case no Authorization header is added by default.
func NewRequestGateway(httpClient *provider.ProviderHTTPClient, tokens tokenSource, log *logger.SystemLogger) *RequestGateway {
	if log == nil {
		log = logger.Nop()
	}
	return &RequestGateway{http: httpClient, tokens: tokens, log: log}
}

// Send dispatches req and decodes the JSON object in the response. The bearer
// token is only attached when req.Path is relative or points at the gateway
// host itself.
func (g *RequestGateway) Send(ctx context.Context, req OperationRequest) (Result, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	if g.tokens != nil && g.ownsEndpoint(req.Path) {
		if token, ok := g.tokens.CurrentToken(); ok {
			headers["Authorization"] = "Bearer " + token
		}
	}
	for key, value := range req.Headers {
		headers[key] = value
	}

	started := time.Now()
	resp, err := g.http.SendJSON(ctx, &provider.HTTPRequest{
		Method:      req.Method,
		Endpoint:    req.Path,
		Headers:     headers,
		Body:        req.Body,
		QueryParams: req.Query,
	})

	log := g.log.WithContext(logger.LogContext{Provider: "mpesa"}).
		SetRequestID(req.RequestID).
		AddField("method", req.Method).
		AddField("path", req.Path).
		AddField("latency", time.Since(started))

	if err != nil {
		gwErr := &GatewayError{Method: req.Method, Path: req.Path, Err: err}
		var httpErr *provider.HTTPError
		if errors.As(err, &httpErr) {
			gwErr.StatusCode = httpErr.Response.StatusCode
			gwErr.Body = httpErr.Response.Body
			log = log.AddField("status", gwErr.StatusCode)
		}
		log.Error("mpesa request failed", err)
		return nil, gwErr
	}
	log = log.AddField("status", resp.StatusCode)

	var result Result
	err = errEmptyBody
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		err = g.http.ParseJSONResponse(resp, &result)
	}
	if err != nil || result == nil {
		if err == nil {
			err = errNotObject
		}
		err = fmt.Errorf("malformed response: %w", err)
		log.Error("mpesa response rejected", err)
		return nil, &GatewayError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Err:        err,
		}
	}

	log.Debug("mpesa request completed")
	return result, nil
}

// ownsEndpoint reports whether path resolves against the gateway base URL
func (g *RequestGateway) ownsEndpoint(path string) bool {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		return true
	}
	target, err := url.Parse(path)
	if err != nil {
		return false
	}
	base, err := url.Parse(g.http.BaseURL())
	if err != nil {
		return false
	}
	return strings.EqualFold(target.Scheme, base.Scheme) && strings.EqualFold(target.Host, base.Host)
}
