package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/pkg/codes"
)

// Gateway error codes reported in PaymentResult.ErrorCode.
const (
	CodeCardDeclined      = "CARD_DECLINED"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeInvalidMethod     = "INVALID_METHOD"
	CodePlanInactive      = "PLAN_INACTIVE"
	CodeGatewayTimeout    = "GATEWAY_TIMEOUT"
)

// Provider names.
const (
	ProviderSSLCommerz = "sslcommerz"
	ProviderStripe     = "stripe"
)

var codeMessages = map[string]string{
	CodeCardDeclined:      "the card was declined",
	CodeInsufficientFunds: "insufficient funds",
	CodeInvalidMethod:     "payment method is not supported",
	CodePlanInactive:      "plan is not available for purchase",
	CodeGatewayTimeout:    "payment gateway did not respond in time",
}

// ChargeRequest asks a gateway to collect Amount.
type ChargeRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Method    string
	Reference string
}

// ChargeResult is a gateway's answer. An empty ErrorCode means success.
type ChargeResult struct {
	TransactionID string
	ErrorCode     string
	Message       string
}

func (r ChargeResult) OK() bool { return r.ErrorCode == "" }

// PaymentGateway collects money through one provider. Declines are
// reported in the result; the error is reserved for transport failures.
type PaymentGateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// ProviderFor maps a checkout method to the provider that handles it.
func ProviderFor(method string) (string, bool) {
	switch method {
	case codes.PayBkash, codes.PayNagad, codes.PayRocket, codes.PaySSLCommerz:
		return ProviderSSLCommerz, true
	case codes.PayCard, codes.PayStripe:
		return ProviderStripe, true
	}
	return "", false
}

// Sandbox is a simulated gateway. It waits Delay, then approves the charge
// unless the amount's minor units select a decline:
//
//	xx.51  CARD_DECLINED
//	xx.52  INSUFFICIENT_FUNDS
type Sandbox struct {
	name    string
	prefix  string
	delay   time.Duration
	methods map[string]bool
}

// NewSandbox returns a sandbox named name that accepts the given methods.
func NewSandbox(name string, delay time.Duration, methods ...string) *Sandbox {
	prefix := "TXN-"
	switch name {
	case ProviderSSLCommerz:
		prefix = "SSLCZ-"
	case ProviderStripe:
		prefix = "pi_"
	}
	m := make(map[string]bool, len(methods))
	for _, v := range methods {
		m[v] = true
	}
	return &Sandbox{name: name, prefix: prefix, delay: delay, methods: m}
}

// DefaultGateways returns the SSLCommerz and Stripe sandboxes.
func DefaultGateways(delay time.Duration) []PaymentGateway {
	return []PaymentGateway{
		NewSandbox(ProviderSSLCommerz, delay, codes.PayBkash, codes.PayNagad, codes.PayRocket, codes.PaySSLCommerz),
		NewSandbox(ProviderStripe, delay, codes.PayCard, codes.PayStripe),
	}
}

func (s *Sandbox) Name() string { return s.name }

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ChargeResult{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}

	if !s.methods[req.Method] {
		return failure(CodeInvalidMethod), nil
	}
	switch req.Amount.Mul(decimal.NewFromInt(100)).Mod(decimal.NewFromInt(100)).IntPart() {
	case 51:
		return failure(CodeCardDeclined), nil
	case 52:
		return failure(CodeInsufficientFunds), nil
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if s.name == ProviderSSLCommerz {
		id = strings.ToUpper(id[:12])
	}
	return ChargeResult{TransactionID: s.prefix + id}, nil
}

func failure(code string) ChargeResult {
	return ChargeResult{ErrorCode: code, Message: codeMessages[code]}
}

// timeoutResult converts a cancelled or expired context into a
// GATEWAY_TIMEOUT decline. Other errors are returned unchanged.
func timeoutResult(err error) (ChargeResult, error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return failure(CodeGatewayTimeout), nil
	}
	return ChargeResult{}, fmt.Errorf("charge: %w", err)
}
