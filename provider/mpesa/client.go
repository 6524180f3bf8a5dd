// Package mpesa is a client for the Safaricom Ethiopia M-Pesa gateway.
//
// A Client is created with New, which reads the consumer key pair from a
// config.Provider and authenticates before returning. Every operation is a
// single blocking round trip that returns the decoded response body or one
// of *ConfigurationError, *AuthenticationError or *GatewayError.
//
//	cfg, _ := config.NewEnvProvider()
//	client, err := mpesa.New(ctx, cfg, mpesa.WithCallbackURL("https://example.com/mpesa"))
//	if err != nil {
//		return err
//	}
//	res, err := client.AccountBalance(ctx, mpesa.AccountBalanceRequest{ShortCode: "101010", PassKey: passKey})
//
// The token is not refreshed automatically. Call Authenticate again when
// operations start failing with authorization errors.
package mpesa

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mstgnz/gompesa/infra/config"
	"github.com/mstgnz/gompesa/infra/logger"
	"github.com/mstgnz/gompesa/infra/validate"
	"github.com/mstgnz/gompesa/provider"
)

// Configuration keys
const (
	EnvConsumerKey    = "MPESA_CONSUMER_KEY"
	EnvConsumerSecret = "MPESA_CONSUMER_SECRET"
	EnvEnvironment    = "MPESA_ENV"
)

const (
	apiSandboxURL    = "https://apisandbox.safaricom.et"
	apiProductionURL = "https://api.safaricom.et"

	DefaultCallbackURL = "https://www.myservice:8080"
	DefaultPartnerName = "Partner name"
)

// Environment selects the gateway the client talks to
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

// BaseURL returns the API root of the environment
func (e Environment) BaseURL() string {
	if e == Production {
		return apiProductionURL
	}
	return apiSandboxURL
}

// ParseEnvironment accepts "sandbox" and "production", case-insensitively.
// An empty value means sandbox.
func ParseEnvironment(value string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(value))) {
	case "", Sandbox:
		return Sandbox, nil
	case Production:
		return Production, nil
	default:
		return "", &ConfigurationError{Key: EnvEnvironment, Reason: fmt.Sprintf("must be %q or %q, got %q", Sandbox, Production, value)}
	}
}

type options struct {
	callbackURL string
	baseURL     string
	timeout     time.Duration
	httpClient  *http.Client
	log         *logger.SystemLogger
	now         func() time.Time
	location    *time.Location
	partnerName string
	newID       func() string
	validate    *validator.Validate
}

// Option customizes a Client
type Option func(*options)

// WithCallbackURL sets the base the result, timeout, confirmation and
// validation callback URLs are derived from
func WithCallbackURL(url string) Option {
	return func(o *options) { o.callbackURL = strings.TrimRight(url, "/") }
}

// WithBaseURL points the client at another gateway root, e.g. a test server
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithTimeout bounds every round trip. Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client. A client without its own
// Timeout is given the configured one; c itself is not modified.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger enables request logging. Nothing is logged by default.
func WithLogger(l *logger.SystemLogger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces time.Now for timestamps and session bookkeeping
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the time zone of generated timestamps. The gateway
// validates passwords against its own local time, so this must match it.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// WithPartnerName sets the label of generated request identifiers
func WithPartnerName(name string) Option {
	return func(o *options) { o.partnerName = name }
}

// WithIDGenerator replaces the unique suffix of generated request identifiers
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithValidator replaces the validator used on operation requests. The
// msisdn and shortcode tags are registered on it.
func WithValidator(v *validator.Validate) Option {
	return func(o *options) { o.validate = v }
}

// Client exposes the gateway operations. It is safe for concurrent use.
type Client struct {
	env         Environment
	callbackURL string
	tokens      *TokenManager
	gateway     *RequestGateway
	log         *logger.SystemLogger
	validate    *validator.Validate
	now         func() time.Time
	location    *time.Location
	partnerName string
	newID       func() string
}

// New resolves credentials and environment from cfg, then authenticates.
// It returns either a ready client or an error, never both.
func New(ctx context.Context, cfg config.Provider, opts ...Option) (*Client, error) {
	o := options{
		callbackURL: DefaultCallbackURL,
		timeout:     provider.DefaultTimeout,
		log:         logger.Nop(),
		now:         time.Now,
		location:    time.Local,
		partnerName: DefaultPartnerName,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validate == nil {
		o.validate = config.App().Validator
	}
	if err := validate.Register(o.validate); err != nil {
		return nil, &ConfigurationError{Key: "validator", Reason: err.Error()}
	}
	if cfg == nil {
		cfg = config.EnvProvider{}
	}

	creds := Credentials{
		ConsumerKey:    strings.TrimSpace(cfg.Get(EnvConsumerKey, "")),
		ConsumerSecret: strings.TrimSpace(cfg.Get(EnvConsumerSecret, "")),
	}
	if creds.ConsumerKey == "" {
		return nil, &ConfigurationError{Key: EnvConsumerKey, Reason: "is required"}
	}
	if creds.ConsumerSecret == "" {
		return nil, &ConfigurationError{Key: EnvConsumerSecret, Reason: "is required"}
	}

	env, err := ParseEnvironment(cfg.Get(EnvEnvironment, string(Sandbox)))
	if err != nil {
		return nil, err
	}

	baseURL := o.baseURL
	if baseURL == "" {
		baseURL = env.BaseURL()
	}

	httpConfig := provider.CreateHTTPClientConfig(baseURL, o.timeout)
	if o.httpClient != nil {
		hc := *o.httpClient
		if hc.Timeout == 0 {
			hc.Timeout = httpConfig.Timeout
		}
		httpConfig.Client = &hc
	}

	gateway := NewRequestGateway(provider.NewProviderHTTPClient(httpConfig), nil, o.log)
	tokens := NewTokenManager(creds, gateway, o.now)
	gateway.tokens = tokens

	c := &Client{
		env:         env,
		callbackURL: o.callbackURL,
		tokens:      tokens,
		gateway:     gateway,
		log:         o.log,
		validate:    o.validate,
		now:         o.now,
		location:    o.location,
		partnerName: o.partnerName,
		newID:       o.newID,
	}

	if _, err := c.Authenticate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Authenticate requests a fresh access token and makes it current
func (c *Client) Authenticate(ctx context.Context) (Session, error) {
	session, err := c.tokens.Authenticate(ctx)
	if err != nil {
		c.log.Error("mpesa authentication failed", err, logger.LogContext{Provider: "mpesa"})
		return Session{}, err
	}
	c.log.Info("mpesa access token obtained", logger.LogContext{
		Provider: "mpesa",
		Fields:   map[string]any{"environment": string(c.env), "expires_in": session.ExpiresIn},
	})
	return session, nil
}

// AccessToken returns the current bearer token
func (c *Client) AccessToken() string {
	token, _ := c.tokens.CurrentToken()
	return token
}

// ExpiresIn returns the lifetime reported with the current token, in seconds
func (c *Client) ExpiresIn() string {
	session, _ := c.tokens.Session()
	return session.ExpiresIn
}

// Session returns the current session
func (c *Client) Session() (Session, bool) {
	return c.tokens.Session()
}

// Environment returns the environment the client was configured for
func (c *Client) Environment() Environment {
	return c.env
}

// CallbackURL returns the base of the derived callback URLs
func (c *Client) CallbackURL() string {
	return c.callbackURL
}

func (c *Client) callback(suffix string) string {
	return c.callbackURL + suffix
}

// sign returns a fresh timestamp and the credential derived from it
func (c *Client) sign(shortCode, passKey string) (credential, timestamp string) {
	timestamp = Timestamp(c.now(), c.location)
	return DeriveSecurityCredential(shortCode, passKey, timestamp), timestamp
}

// requestID returns a process-unique identifier for a signed operation
func (c *Client) requestID() string {
	return c.partnerName + " -" + c.newID()
}
