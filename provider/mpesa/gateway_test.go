package mpesa

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mstgnz/gompesa/infra/logger"
	"github.com/mstgnz/gompesa/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) CurrentToken() (string, bool) {
	return string(s), s != ""
}

func newTestGateway(t *testing.T, handler http.HandlerFunc, tokens tokenSource, timeout time.Duration) *RequestGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewRequestGateway(provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(server.URL, timeout)), tokens, nil)
}

func TestRequestGateway_Send(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mpesa/accountbalance/v2/query", r.URL.Path)
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"PartyA":"101010"}`, string(body))

		_, _ = w.Write([]byte(`{"ResponseCode":"0","Nested":{"a":[1,2]},"Count":3}`))
	}, staticToken("T"), time.Second)

	result, err := gateway.Send(context.Background(), OperationRequest{
		Method: http.MethodPost,
		Path:   "/mpesa/accountbalance/v2/query",
		Body:   map[string]any{"PartyA": "101010"},
	})
	require.NoError(t, err)

	assert.Equal(t, "0", result["ResponseCode"])
	assert.Equal(t, float64(3), result["Count"])
	assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, result["Nested"])
}

func TestRequestGateway_HeaderOverride(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Basic abc", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		_, _ = w.Write([]byte(`{}`))
	}, staticToken("T"), time.Second)

	_, err := gateway.Send(context.Background(), OperationRequest{
		Method:  http.MethodGet,
		Path:    "/v1/token/generate",
		Headers: map[string]string{"Authorization": "Basic abc", "X-Extra": "yes"},
	})
	require.NoError(t, err)
}

func TestRequestGateway_NoTokenOmitsAuthorization(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{}`))
	}, staticToken(""), time.Second)

	_, err := gateway.Send(context.Background(), OperationRequest{Method: http.MethodPost, Path: "/x", Body: map[string]any{}})
	require.NoError(t, err)
}

func TestRequestGateway_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantText   string
	}{
		{"non 2xx", http.StatusUnauthorized, `{"errorCode":"404.001.03","errorMessage":"Invalid Access Token"}`, http.StatusUnauthorized, "HTTP error 401"},
		{"server error", http.StatusInternalServerError, `oops`, http.StatusInternalServerError, "HTTP error 500"},
		{"not json", http.StatusOK, `<html>gateway</html>`, http.StatusOK, "malformed response"},
		{"json null", http.StatusOK, `null`, http.StatusOK, "not a JSON object"},
		{"json array", http.StatusOK, `[1,2]`, http.StatusOK, "malformed response"},
		{"empty body", http.StatusOK, ``, http.StatusOK, "malformed response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, staticToken("T"), time.Second)

			result, err := gateway.Send(context.Background(), OperationRequest{Method: http.MethodPost, Path: "/x", Body: map[string]any{}})
			require.Error(t, err)
			assert.Nil(t, result)

			var gwErr *GatewayError
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, tt.wantStatus, gwErr.StatusCode)
			assert.Equal(t, tt.body, string(gwErr.Body))
			assert.Contains(t, err.Error(), tt.wantText)
			assert.ErrorIs(t, err, ErrGateway)
			assert.False(t, gwErr.Timeout())
		})
	}
}

func TestRequestGateway_Timeout(t *testing.T) {
	release := make(chan struct{})
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{}`))
	}, staticToken("T"), 50*time.Millisecond)
	defer close(release)

	_, err := gateway.Send(context.Background(), OperationRequest{Method: http.MethodPost, Path: "/slow", Body: map[string]any{}})
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Timeout())
	assert.Zero(t, gwErr.StatusCode)
}

func TestRequestGateway_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	gateway := NewRequestGateway(provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(url, time.Second)), nil, nil)

	_, err := gateway.Send(context.Background(), OperationRequest{Method: http.MethodGet, Path: "/"})
	assert.ErrorIs(t, err, ErrGateway)
}

func TestRequestGateway_Logging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSystemLogger(logger.SystemLoggerConfig{EnableConsole: true, JSON: true, MinLevel: logger.LevelDebug, Output: &buf})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	gateway := NewRequestGateway(provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(server.URL, time.Second)), staticToken("secret-token"), log)
	_, err := gateway.Send(context.Background(), OperationRequest{
		Method:    http.MethodPost,
		Path:      "/mpesa/b2c/v2/paymentrequest",
		Headers:   map[string]string{"Authorization": "Basic c2VjcmV0"},
		Body:      map[string]any{"OriginatorConversationID": "Partner name -abc"},
		RequestID: "Partner name -abc",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "secret-token")
	assert.NotContains(t, out, "c2VjcmV0")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "mpesa request completed", entry["message"])
	assert.Equal(t, "mpesa", entry["provider"])
	assert.Equal(t, "Partner name -abc", entry["request_id"])
	assert.Equal(t, "/mpesa/b2c/v2/paymentrequest", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
}

func TestRequestGateway_ForeignHostGetsNoToken(t *testing.T) {
	var gotAuth []string
	var mu sync.Mutex
	record := func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}

	foreign := httptest.NewServer(http.HandlerFunc(record))
	defer foreign.Close()
	gateway := newTestGateway(t, record, staticToken("T"), time.Second)

	for _, path := range []string{
		"/relative",
		gateway.http.BaseURL() + "/absolute-same-host",
		foreign.URL + "/merchant/validation",
	} {
		_, err := gateway.Send(context.Background(), OperationRequest{Method: http.MethodPost, Path: path, Body: map[string]any{}})
		require.NoError(t, err, path)
	}

	assert.Equal(t, []string{"Bearer T", "Bearer T", ""}, gotAuth)
}

func TestResult_String(t *testing.T) {
	r := Result{
		"str":   "abc",
		"int":   float64(3599),
		"float": 1.5,
		"bool":  true,
		"null":  nil,
		"obj":   map[string]any{"k": "v"},
	}

	assert.Equal(t, "abc", r.String("str"))
	assert.Equal(t, "3599", r.String("int"))
	assert.Equal(t, "1.5", r.String("float"))
	assert.Equal(t, "true", r.String("bool"))
	assert.Equal(t, "", r.String("null"))
	assert.Equal(t, "", r.String("missing"))
	assert.Equal(t, `{"k":"v"}`, r.String("obj"))
}
