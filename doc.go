// Package gompesa is a Go client for the Safaricom Ethiopia M-Pesa API.
//
// # Overview
//
// The gateway authenticates callers with an OAuth style client credentials
// exchange and expects a bearer token on every call. Signed operations also
// carry a password derived from the merchant short code, the pass key and the
// current timestamp. gompesa handles both and exposes each API as a plain
// blocking method that returns the decoded response body.
//
// # Architecture
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │   mpesa.Client  │    │                 │
//	│    Your App     │◄──►│  TokenManager   │◄──►│  M-Pesa API     │
//	│                 │    │  RequestGateway │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// # Packages
//
//   - provider/mpesa: the client, token lifecycle, signing and error types
//   - provider/mpesa/mpesatest: an in-process fake gateway for tests
//   - provider: the JSON over HTTP transport
//   - infra/config: configuration providers and the shared validator
//   - infra/validate: custom validation tags for phone numbers and short codes
//   - infra/logger: structured logging on top of zerolog
//
// # Quick Start
//
//	cfg, err := config.NewEnvProvider()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := mpesa.New(ctx, cfg, mpesa.WithCallbackURL("https://example.com/mpesa"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := client.USSDPush(ctx, mpesa.USSDPushRequest{
//	    PhoneNumber:       "251700404709",
//	    Amount:            decimal.NewFromInt(100),
//	    Reference:         "INV-1",
//	    BusinessShortCode: "101010",
//	    PassKey:           passKey,
//	})
//
// # Configuration
//
// Credentials are read from MPESA_CONSUMER_KEY and MPESA_CONSUMER_SECRET.
// MPESA_ENV selects "sandbox" (default) or "production". Logging follows
// LOG_JSON, LOGGING_LEVEL and ENVIRONMENT.
//
// # Error Handling
//
// Failures are one of three types, each matchable with errors.Is:
//
//   - *mpesa.ConfigurationError (mpesa.ErrConfiguration)
//   - *mpesa.AuthenticationError (mpesa.ErrAuthentication)
//   - *mpesa.GatewayError (mpesa.ErrGateway)
//
// Requests that fail local validation wrap mpesa.ErrInvalidRequest and are
// never sent.
package gompesa
