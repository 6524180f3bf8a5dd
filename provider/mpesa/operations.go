package mpesa

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// API Endpoints
const (
	endpointUSSDPush          = "/mpesa/stkpush/v3/processrequest"
	endpointRegisterURL       = "/v1/c2b-register-url/register"
	endpointSimulateC2B       = "/mpesa/b2c/simulatetransaction/v1/request"
	endpointPayout            = "/mpesa/b2c/v2/paymentrequest"
	endpointTransactionStatus = "/mpesa/transactionstatus/v1/query"
	endpointReversal          = "/mpesa/reversal/v2"
	endpointAccountBalance    = "/mpesa/accountbalance/v2/query"
)

// Command IDs and fixed payload values
const (
	commandCustomerPayBill   = "CustomerPayBillOnline"
	commandBusinessPayment   = "BusinessPayment"
	commandTransactionStatus = "TransactionStatusQuery"
	commandReversal          = "TransactionReversal"
	commandAccountBalance    = "AccountBalance"

	responseTypeCompleted = "Completed"
	identifierShortCode   = "4"
)

// Callback URL suffixes
const (
	callbackResult       = "/result"
	callbackTimeout      = "/timeout"
	callbackConfirmation = "/confirmation"
	callbackValidation   = "/validation"
)

// USSDPushRequest prompts a subscriber's phone to authorize a payment
type USSDPushRequest struct {
	PhoneNumber       string          `validate:"required,msisdn"`
	Amount            decimal.Decimal `validate:"-"`
	Reference         string          `validate:"required"`
	ThirdPartyID      string
	BusinessShortCode string `validate:"required,shortcode"`
	PassKey           string `validate:"required"`
}

// RegisterURLRequest registers C2B confirmation and validation URLs. Empty
// URLs fall back to the client's callback base.
type RegisterURLRequest struct {
	ShortCode       string `validate:"required,shortcode"`
	ConfirmationURL string `validate:"omitempty,url"`
	ValidationURL   string `validate:"omitempty,url"`
}

// SimulateC2BRequest simulates a customer paying into a short code
type SimulateC2BRequest struct {
	ShortCode   string          `validate:"required,shortcode"`
	PhoneNumber string          `validate:"required,msisdn"`
	Amount      decimal.Decimal `validate:"-"`
	Reference   string
}

// ValidateC2BRequest posts a C2B validation request to a caller supplied URL
type ValidateC2BRequest struct {
	CheckURL          string          `validate:"required,url"`
	TransactionType   string          `validate:"required"`
	TransID           string          `validate:"required"`
	TransTime         string          `validate:"required,numeric,len=14"`
	TransAmount       decimal.Decimal `validate:"-"`
	BusinessShortCode string          `validate:"required,shortcode"`
	BillRefNumber     string
	MSISDN            string `validate:"required,msisdn"`
	FirstName         string
	MiddleName        string
	LastName          string
	InvoiceNumber     string
	OrgAccountBalance string
	ThirdPartyTransID string
}

// PayoutRequest sends money from a short code to a subscriber
type PayoutRequest struct {
	ShortCode   string          `validate:"required,shortcode"`
	PhoneNumber string          `validate:"required,msisdn"`
	Amount      decimal.Decimal `validate:"-"`
	PassKey     string          `validate:"required"`
}

// TransactionStatusRequest queries the outcome of a transaction
type TransactionStatusRequest struct {
	TransactionID string `validate:"required"`
	ShortCode     string `validate:"required,shortcode"`
	PassKey       string `validate:"required"`
}

// ReversalRequest reverses a completed transaction
type ReversalRequest struct {
	TransactionID          string          `validate:"required"`
	ShortCode              string          `validate:"required,shortcode"`
	Amount                 decimal.Decimal `validate:"-"`
	Receiver               string          `validate:"required"`
	ReceiverType           string          `validate:"required"`
	PassKey                string          `validate:"required"`
	OriginalConversationID string          `validate:"required"`
}

// AccountBalanceRequest queries the balance of a short code
type AccountBalanceRequest struct {
	ShortCode string `validate:"required,shortcode"`
	PassKey   string `validate:"required"`
}

// check validates req and the amounts it carries
func (c *Client) check(operation string, req any, amounts ...decimal.Decimal) error {
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRequest, operation, err)
	}
	for _, amount := range amounts {
		if !amount.IsPositive() {
			return fmt.Errorf("%w: %s: amount must be greater than 0", ErrInvalidRequest, operation)
		}
	}
	return nil
}

// post sends body to path. requestID is the identifier generated for the
// payload, empty for operations that carry none.
func (c *Client) post(ctx context.Context, path, requestID string, body map[string]any) (Result, error) {
	return c.gateway.Send(ctx, OperationRequest{Method: http.MethodPost, Path: path, Body: body, RequestID: requestID})
}

// USSDPush starts an STK push collection
func (c *Client) USSDPush(ctx context.Context, req USSDPushRequest) (Result, error) {
	if err := c.check("ussd push", req, req.Amount); err != nil {
		return nil, err
	}

	password, timestamp := c.sign(req.BusinessShortCode, req.PassKey)
	id := c.requestID()
	return c.post(ctx, endpointUSSDPush, id, map[string]any{
		"MerchantRequestID": id,
		"BusinessShortCode": req.BusinessShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   commandCustomerPayBill,
		"Amount":            req.Amount.String(),
		"PartyA":            req.PhoneNumber,
		"PartyB":            req.BusinessShortCode,
		"PhoneNumber":       req.PhoneNumber,
		"CallBackURL":       c.callback(callbackResult),
		"AccountReference":  req.Reference,
		"TransactionDesc":   "Payment Reason",
		"ReferenceData": []map[string]string{
			{"Key": "ThirdPartyReference", "Value": req.ThirdPartyID},
		},
	})
}

// RegisterURL registers the C2B confirmation and validation URLs
func (c *Client) RegisterURL(ctx context.Context, req RegisterURLRequest) (Result, error) {
	if err := c.check("register url", req); err != nil {
		return nil, err
	}

	confirmationURL := req.ConfirmationURL
	if confirmationURL == "" {
		confirmationURL = c.callback(callbackConfirmation)
	}
	validationURL := req.ValidationURL
	if validationURL == "" {
		validationURL = c.callback(callbackValidation)
	}

	return c.post(ctx, endpointRegisterURL, "", map[string]any{
		"ShortCode":       req.ShortCode,
		"ResponseType":    responseTypeCompleted,
		"ConfirmationURL": confirmationURL,
		"ValidationURL":   validationURL,
	})
}

// SimulateC2B simulates an inbound customer payment
func (c *Client) SimulateC2B(ctx context.Context, req SimulateC2BRequest) (Result, error) {
	if err := c.check("simulate c2b", req, req.Amount); err != nil {
		return nil, err
	}

	return c.post(ctx, endpointSimulateC2B, "", map[string]any{
		"ShortCode":     req.ShortCode,
		"CommandID":     commandCustomerPayBill,
		"Amount":        req.Amount.String(),
		"Msisdn":        req.PhoneNumber,
		"BillRefNumber": req.Reference,
	})
}

// ValidateC2B posts a validation request to req.CheckURL. The access token is
// only sent along when CheckURL is on the gateway host.
func (c *Client) ValidateC2B(ctx context.Context, req ValidateC2BRequest) (Result, error) {
	if err := c.check("validate c2b", req, req.TransAmount); err != nil {
		return nil, err
	}

	return c.post(ctx, req.CheckURL, "", map[string]any{
		"RequestType":       "Validation",
		"TransactionType":   req.TransactionType,
		"TransID":           req.TransID,
		"TransTime":         req.TransTime,
		"TransAmount":       req.TransAmount.String(),
		"BusinessShortCode": req.BusinessShortCode,
		"BillRefNumber":     req.BillRefNumber,
		"InvoiceNumber":     req.InvoiceNumber,
		"OrgAccountBalance": req.OrgAccountBalance,
		"ThirdPartyTransID": req.ThirdPartyTransID,
		"MSISDN":            req.MSISDN,
		"FirstName":         req.FirstName,
		"MiddleName":        req.MiddleName,
		"LastName":          req.LastName,
	})
}

// Payout sends a B2C business payment
func (c *Client) Payout(ctx context.Context, req PayoutRequest) (Result, error) {
	if err := c.check("payout", req, req.Amount); err != nil {
		return nil, err
	}

	credential, _ := c.sign(req.ShortCode, req.PassKey)
	id := c.requestID()
	return c.post(ctx, endpointPayout, id, map[string]any{
		"OriginatorConversationID": id,
		"InitiatorName":            req.ShortCode,
		"SecurityCredential":       credential,
		"CommandID":                commandBusinessPayment,
		"Amount":                   req.Amount.String(),
		"PartyA":                   req.ShortCode,
		"PartyB":                   req.PhoneNumber,
		"Remarks":                  "Payment",
		"QueueTimeOutURL":          c.callback(callbackTimeout),
		"ResultURL":                c.callback(callbackResult),
		"Occasion":                 "Payment",
	})
}

// QueryTransactionStatus asks for the outcome of a transaction. The answer
// itself is delivered to the result callback.
func (c *Client) QueryTransactionStatus(ctx context.Context, req TransactionStatusRequest) (Result, error) {
	if err := c.check("transaction status", req); err != nil {
		return nil, err
	}

	credential, _ := c.sign(req.ShortCode, req.PassKey)
	return c.post(ctx, endpointTransactionStatus, "", map[string]any{
		"Initiator":          req.ShortCode,
		"SecurityCredential": credential,
		"CommandID":          commandTransactionStatus,
		"TransactionID":      req.TransactionID,
		"PartyA":             req.ShortCode,
		"IdentifierType":     identifierShortCode,
		"ResultURL":          c.callback(callbackResult),
		"QueueTimeOutURL":    c.callback(callbackTimeout),
		"Remarks":            "Transaction status query",
		"Occasion":           "Transaction status query",
	})
}

// ReverseTransaction reverses a B2C transaction
func (c *Client) ReverseTransaction(ctx context.Context, req ReversalRequest) (Result, error) {
	if err := c.check("reversal", req, req.Amount); err != nil {
		return nil, err
	}

	credential, _ := c.sign(req.ShortCode, req.PassKey)
	id := c.requestID()
	return c.post(ctx, endpointReversal, id, map[string]any{
		"OriginatorConversationID": id,
		"Initiator":                req.ShortCode,
		"SecurityCredential":       credential,
		"CommandID":                commandReversal,
		"TransactionID":            req.TransactionID,
		"Amount":                   req.Amount.String(),
		"OriginalConversationID":   req.OriginalConversationID,
		"PartyA":                   req.ShortCode,
		"ReceiverIdentifierType":   req.ReceiverType,
		"ReceiverParty":            req.Receiver,
		"ResultURL":                c.callback(callbackResult),
		"QueueTimeOutURL":          c.callback(callbackTimeout),
		"Remarks":                  "B2C Reversal",
		"Occasion":                 "Payout",
	})
}

// AccountBalance asks for the balance of a short code. The balance itself is
// delivered to the result callback.
func (c *Client) AccountBalance(ctx context.Context, req AccountBalanceRequest) (Result, error) {
	if err := c.check("account balance", req); err != nil {
		return nil, err
	}

	credential, _ := c.sign(req.ShortCode, req.PassKey)
	id := c.requestID()
	return c.post(ctx, endpointAccountBalance, id, map[string]any{
		"OriginatorConversationID": id,
		"Initiator":                req.ShortCode,
		"SecurityCredential":       credential,
		"CommandID":                commandAccountBalance,
		"PartyA":                   req.ShortCode,
		"IdentifierType":           identifierShortCode,
		"ResultURL":                c.callback(callbackResult),
		"QueueTimeOutURL":          c.callback(callbackTimeout),
		"Remarks":                  "Account balance query",
		"Occasion":                 "Account balance query",
	})
}

// IsInvalidRequest reports whether err came from request validation
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
