package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dzpay/chargily-bridge/internal/ledger"
	"github.com/dzpay/chargily-bridge/internal/obs"
)

// MinAmount is the smallest amount Chargily accepts, in minor units.
const MinAmount = 50

// Currency is the only currency the gateway supports.
const Currency = "dzd"

const defaultCheckoutTimeout = 10 * time.Second

// Chargily implements the Provider capability for the Chargily payment-links API.
type Chargily struct {
	Providers ProviderStore
	Client    *http.Client
	Log       zerolog.Logger
	Ledger    ledger.Store
	// Replay and ReplayTTL enable best-effort duplicate suppression on the
	// webhook path. Optional; the ledger is idempotent without them.
	Replay    ReplayStore
	ReplayTTL time.Duration
}

type checkoutMetadata struct {
	Reference string `json:"reference"`
}

// checkoutRequest field order is load-bearing: the marshalled bytes are the
// signing input and the gateway recomputes the signature over exactly them.
type checkoutRequest struct {
	Metadata   []checkoutMetadata `json:"metadata"`
	Amount     int64              `json:"amount"`
	Currency   string             `json:"currency"`
	SuccessURL string             `json:"success_url"`
	FailureURL string             `json:"failure_url"`
}

// CheckoutPayload renders the canonical compact-JSON signing input for a
// payment-link request.
func CheckoutPayload(reference string, amount int64, successURL, failureURL string) ([]byte, error) {
	return json.Marshal(checkoutRequest{
		Metadata:   []checkoutMetadata{{Reference: reference}},
		Amount:     amount,
		Currency:   Currency,
		SuccessURL: successURL,
		FailureURL: failureURL,
	})
}

// InitiateCheckout opens a hosted checkout session for tx and returns the
// redirect URL. Amounts below MinAmount are a hard error; gateway or transport
// failures are logged and yield an empty URL so checkout can proceed without a
// redirect. No retries are attempted.
func (c Chargily) InitiateCheckout(ctx context.Context, tx ledger.Transaction, baseURL string) (string, error) {
	ctx, span := otel.Tracer("payment.Chargily").Start(ctx, "Chargily.InitiateCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("payment.reference", tx.Reference))

	result := "error"
	defer func() {
		if obs.CheckoutRequestTotal != nil {
			obs.CheckoutRequestTotal.WithLabelValues(result).Inc()
		}
	}()

	cfg, err := c.resolveConfig(ctx)
	if err != nil {
		result = "not_configured"
		return "", err
	}
	if tx.Amount < MinAmount {
		result = "below_minimum"
		return "", ErrAmountBelowMinimum
	}

	statusURL := strings.TrimRight(baseURL, "/") + "/payment/status"
	payload, err := CheckoutPayload(tx.Reference, tx.Amount, statusURL, statusURL)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Signature", Sign(cfg.APIKey, payload))

	resp, err := c.client().Do(req)
	if err != nil {
		span.RecordError(err)
		c.Log.Warn().Err(err).Str("reference", tx.Reference).Msg("chargily payment-link request failed")
		result = "transport_error"
		return "", nil
	}
	defer func() { _ = resp.Body.Close() }()

	var linkResp struct {
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&linkResp); err != nil {
		span.RecordError(err)
		c.Log.Warn().Err(err).Str("reference", tx.Reference).Int("status", resp.StatusCode).Msg("chargily response is not valid JSON")
		result = "bad_response"
		return "", nil
	}
	if strings.TrimSpace(linkResp.CheckoutURL) == "" {
		c.Log.Warn().Str("reference", tx.Reference).Int("status", resp.StatusCode).Msg("chargily response carries no checkout_url")
		result = "bad_response"
		return "", nil
	}
	result = "success"
	return linkResp.CheckoutURL, nil
}

func (c Chargily) resolveConfig(ctx context.Context) (ProviderConfig, error) {
	if c.Providers == nil {
		return ProviderConfig{}, ErrProviderNotConfigured
	}
	cfg, err := c.Providers.Provider(ctx, ProviderCode)
	if err != nil {
		return ProviderConfig{}, err
	}
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.Endpoint) == "" {
		return ProviderConfig{}, ErrProviderNotConfigured
	}
	return cfg, nil
}

func (c Chargily) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: defaultCheckoutTimeout}
}
