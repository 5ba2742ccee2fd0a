package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dzpay/chargily-bridge/internal/common"
	"github.com/dzpay/chargily-bridge/internal/ledger"
	"github.com/dzpay/chargily-bridge/internal/obs"
)

// ReplayStore marks webhook bodies as seen so redeliveries can be skipped.
type ReplayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// SignatureHeader is the request header carrying the hex HMAC digest.
const SignatureHeader = "signature"

type notification struct {
	Type string `json:"type"`
	Data struct {
		Metadata []struct {
			Reference string `json:"reference"`
		} `json:"metadata"`
	} `json:"data"`
}

// ServeWebhook is the HTTP adapter for POST /payment/chargily/webhook. It
// hands the raw body and signature header to HandleNotification and writes
// the plaintext verdict.
func (c Chargily) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		body = nil
	}
	status, msg := c.HandleNotification(r.Context(), body, r.Header.Get(SignatureHeader))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if msg != "" {
		_, _ = w.Write([]byte(msg))
	}
}

// HandleNotification authenticates one webhook delivery and reconciles the
// referenced transaction. Only authentication failures reject with 403;
// everything after verification answers 200 so the gateway never retries a
// data problem.
func (c Chargily) HandleNotification(ctx context.Context, body []byte, signature string) (int, string) {
	ctx, span := otel.Tracer("payment.Chargily").Start(ctx, "Chargily.HandleNotification")
	defer span.End()

	result := "error"
	defer func() {
		if obs.PaymentWebhookTotal != nil {
			obs.PaymentWebhookTotal.WithLabelValues(ProviderCode, result).Inc()
		}
	}()

	if strings.TrimSpace(signature) == "" {
		c.Log.Warn().Msg("webhook received without signature header")
		result = "missing_signature"
		return http.StatusForbidden, "Missing signature"
	}

	cfg, err := c.lookupKey(ctx)
	if err != nil {
		c.Log.Warn().Msg("chargily api key not found in provider settings")
		result = "no_api_key"
		return http.StatusForbidden, "API key not found"
	}

	if !VerifySignature(cfg.APIKey, body, signature) {
		// Both digests help the operator diagnose key mismatches; the secret
		// itself stays out of the log.
		c.Log.Warn().
			Str("received", signature).
			Str("computed", Sign(cfg.APIKey, body)).
			Msg("webhook signature mismatch")
		result = "invalid_signature"
		return http.StatusForbidden, "Invalid signature"
	}

	if c.Replay != nil && c.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:%s:%s", ProviderCode, common.Sha256Hex(string(body)))
		fresh, err := c.Replay.SetNX(ctx, key, "1", c.ReplayTTL).Result()
		if err == nil && !fresh {
			c.Log.Info().Msg("duplicate webhook delivery skipped")
			result = "duplicate"
			return http.StatusOK, ""
		}
		// A replay-store failure falls through; ledger transitions are
		// idempotent regardless.
	}

	var note notification
	if err := json.Unmarshal(body, &note); err != nil {
		span.RecordError(err)
		c.Log.Warn().Err(err).Msg("webhook payload is not valid JSON")
		result = "bad_payload"
		return http.StatusOK, ""
	}

	reference := ""
	if len(note.Data.Metadata) > 0 {
		reference = strings.TrimSpace(note.Data.Metadata[0].Reference)
	}
	if reference == "" {
		c.Log.Warn().Str("type", note.Type).Msg("webhook metadata carries no reference")
		result = "no_reference"
		return http.StatusOK, ""
	}
	span.SetAttributes(
		attribute.String("payment.reference", reference),
		attribute.String("payment.event", note.Type),
	)

	if c.Ledger == nil {
		// Misconfiguration, not a processing failure; keep it distinguishable
		// from the error label so an alert can name the real problem.
		c.Log.Error().Msg("webhook handler has no ledger configured")
		result = "no_ledger"
		return http.StatusOK, ""
	}
	if _, err := c.Ledger.FindByReference(ctx, reference); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.Log.Warn().Str("reference", reference).Msg("no transaction found for webhook reference")
			result = "unknown_reference"
		} else {
			span.RecordError(err)
			c.Log.Error().Err(err).Str("reference", reference).Msg("ledger lookup failed")
		}
		return http.StatusOK, ""
	}

	var applyErr error
	switch note.Type {
	case EventCheckoutPaid:
		applyErr = c.Ledger.MarkPaid(ctx, reference, "Payment completed")
		result = "paid"
	case EventCheckoutFailed, EventCheckoutExpired:
		applyErr = c.Ledger.MarkFailed(ctx, reference, "Payment Failed")
		result = "failed"
	case EventCheckoutCanceled:
		applyErr = c.Ledger.MarkCanceled(ctx, reference, "Payment Canceled")
		result = "canceled"
	default:
		c.Log.Info().Str("type", note.Type).Msg("ignoring unrecognised webhook event type")
		result = "ignored"
	}
	if applyErr != nil {
		span.RecordError(applyErr)
		c.Log.Error().Err(applyErr).Str("reference", reference).Str("type", note.Type).Msg("apply transaction transition")
		result = "error"
	}
	return http.StatusOK, ""
}

func (c Chargily) lookupKey(ctx context.Context) (ProviderConfig, error) {
	if c.Providers == nil {
		return ProviderConfig{}, ErrProviderNotConfigured
	}
	cfg, err := c.Providers.Provider(ctx, ProviderCode)
	if err != nil {
		return ProviderConfig{}, err
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return ProviderConfig{}, ErrProviderNotConfigured
	}
	return cfg, nil
}
