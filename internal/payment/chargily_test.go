package payment_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dzpay/chargily-bridge/internal/ledger"
	"github.com/dzpay/chargily-bridge/internal/payment"
)

func newProviders(endpoint, key string) payment.StaticProviders {
	return payment.StaticProviders{
		payment.ProviderCode: {Code: payment.ProviderCode, Endpoint: endpoint, APIKey: key},
	}
}

func TestCheckoutPayloadIsCanonical(t *testing.T) {
	t.Parallel()

	got, err := payment.CheckoutPayload("R1", 1000, "https://shop.example/payment/status", "https://shop.example/payment/status")
	require.NoError(t, err)
	want := `{"metadata":[{"reference":"R1"}],"amount":1000,"currency":"dzd","success_url":"https://shop.example/payment/status","failure_url":"https://shop.example/payment/status"}`
	require.Equal(t, want, string(got), "signing input must be byte-for-byte stable")
}

func TestInitiateCheckoutRejectsLowAmountBeforeNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	gw := payment.Chargily{Providers: newProviders(srv.URL, "sk"), Log: zerolog.Nop()}
	tx := ledger.Transaction{Reference: "TX-1", Amount: 49, Currency: "dzd", Status: ledger.StatusPending}
	_, err := gw.InitiateCheckout(context.Background(), tx, "https://shop.example")
	require.ErrorIs(t, err, payment.ErrAmountBelowMinimum)
	require.Zero(t, calls.Load(), "validation must happen before any network call")
}

func TestInitiateCheckoutSignsAndExtractsURL(t *testing.T) {
	t.Parallel()

	const key = "chargily_sk_test"
	var gotBody []byte
	var gotAuth, gotSig, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotAuth = r.Header.Get("Authorization")
		gotSig = r.Header.Get("Signature")
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"checkout_url":"https://pay.chargily.dz/checkout/abc"}`))
	}))
	defer srv.Close()

	gw := payment.Chargily{Providers: newProviders(srv.URL, key), Log: zerolog.Nop()}
	tx := ledger.Transaction{Reference: "TX-1", Amount: 1000, Currency: "dzd", Status: ledger.StatusPending}
	url, err := gw.InitiateCheckout(context.Background(), tx, "https://shop.example/")
	require.NoError(t, err)
	require.Equal(t, "https://pay.chargily.dz/checkout/abc", url)

	require.Equal(t, "Bearer "+key, gotAuth)
	require.Equal(t, "application/json", gotContentType)
	// The Signature header must verify against the exact transmitted bytes.
	require.True(t, payment.VerifySignature(key, gotBody, gotSig))

	want, err := payment.CheckoutPayload("TX-1", 1000, "https://shop.example/payment/status", "https://shop.example/payment/status")
	require.NoError(t, err)
	require.Equal(t, string(want), string(gotBody))
}

func TestInitiateCheckoutSwallowsTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	gw := payment.Chargily{Providers: newProviders(srv.URL, "sk"), Log: zerolog.Nop()}
	tx := ledger.Transaction{Reference: "TX-1", Amount: 1000, Currency: "dzd", Status: ledger.StatusPending}
	url, err := gw.InitiateCheckout(context.Background(), tx, "https://shop.example")
	require.NoError(t, err, "transport failures must not abort checkout")
	require.Empty(t, url)
}

func TestInitiateCheckoutSwallowsMalformedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	gw := payment.Chargily{Providers: newProviders(srv.URL, "sk"), Log: zerolog.Nop()}
	tx := ledger.Transaction{Reference: "TX-1", Amount: 1000, Currency: "dzd", Status: ledger.StatusPending}
	url, err := gw.InitiateCheckout(context.Background(), tx, "https://shop.example")
	require.NoError(t, err)
	require.Empty(t, url)
}

func TestInitiateCheckoutRequiresConfiguration(t *testing.T) {
	t.Parallel()

	gw := payment.Chargily{Providers: newProviders("https://pay.chargily.com/api/v2/payment-links", ""), Log: zerolog.Nop()}
	tx := ledger.Transaction{Reference: "TX-1", Amount: 1000, Currency: "dzd", Status: ledger.StatusPending}
	_, err := gw.InitiateCheckout(context.Background(), tx, "https://shop.example")
	require.ErrorIs(t, err, payment.ErrProviderNotConfigured)
}
