package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/dzpay/chargily-bridge/internal/common"
	"github.com/dzpay/chargily-bridge/internal/ledger"
)

// ProviderCode identifies the Chargily gateway in host provider records.
const ProviderCode = "chargily"

// Webhook event types delivered by Chargily.
const (
	EventCheckoutPaid     = "checkout.paid"
	EventCheckoutFailed   = "checkout.failed"
	EventCheckoutExpired  = "checkout.expired"
	EventCheckoutCanceled = "checkout.canceled"
)

// ProviderConfig is the host-owned credential record for one gateway.
// APIKey must never appear in logs or responses.
type ProviderConfig struct {
	Code     string
	Endpoint string
	APIKey   string
}

// ProviderStore resolves gateway credentials. Persistence is host-owned; the
// integration only reads.
type ProviderStore interface {
	Provider(ctx context.Context, code string) (ProviderConfig, error)
}

// ErrProviderNotConfigured is returned when the requested gateway has no
// usable credential record.
var ErrProviderNotConfigured = errors.New("payment: provider not configured")

// StaticProviders is a ProviderStore backed by a fixed map, typically built
// from environment configuration.
type StaticProviders map[string]ProviderConfig

// Provider returns the configuration registered under code.
func (s StaticProviders) Provider(_ context.Context, code string) (ProviderConfig, error) {
	cfg, ok := s[code]
	if !ok {
		return ProviderConfig{}, ErrProviderNotConfigured
	}
	return cfg, nil
}

// ErrAmountBelowMinimum rejects checkout attempts under the gateway minimum.
var ErrAmountBelowMinimum = &common.AppError{
	Code:       "AMOUNT_BELOW_MINIMUM",
	Message:    "the payment amount must be at least 50 DZD",
	HTTPStatus: http.StatusBadRequest,
}

// Provider abstracts a hosted-checkout gateway integration: open a checkout
// session for a pending transaction, and reconcile transaction state from an
// authenticated webhook notification.
type Provider interface {
	// InitiateCheckout returns the URL the end user should be redirected to.
	// An empty URL with a nil error means the gateway call failed and checkout
	// should proceed without a redirect.
	InitiateCheckout(ctx context.Context, tx ledger.Transaction, baseURL string) (string, error)
	// HandleNotification verifies and applies one webhook delivery, returning
	// the HTTP status and plaintext body to answer with.
	HandleNotification(ctx context.Context, body []byte, signature string) (int, string)
}
