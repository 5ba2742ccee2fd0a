package payment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dzpay/chargily-bridge/internal/payment"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	secrets := []string{"k", "chargily_sk_test", "a-much-longer-secret-key-with-entropy-0123456789"}
	bodies := [][]byte{
		[]byte(""),
		[]byte("{}"),
		[]byte(`{"type":"checkout.paid","data":{"metadata":[{"reference":"TX-100"}]}}`),
	}
	for _, secret := range secrets {
		for _, body := range bodies {
			sig := payment.Sign(secret, body)
			require.True(t, payment.VerifySignature(secret, body, sig))
		}
	}
}

func TestVerifyRejectsMutations(t *testing.T) {
	t.Parallel()

	secret := "chargily_sk_test"
	body := []byte(`{"type":"checkout.paid","data":{"metadata":[{"reference":"TX-100"}]}}`)
	sig := payment.Sign(secret, body)

	// Flip a single bit anywhere in the body.
	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		require.False(t, payment.VerifySignature(secret, mutated, sig), "bit flip at byte %d must invalidate", i)
	}

	// Corrupt any hex digit of the signature.
	for i := range sig {
		altered := []byte(sig)
		if altered[i] == 'a' {
			altered[i] = 'b'
		} else {
			altered[i] = 'a'
		}
		require.False(t, payment.VerifySignature(secret, body, string(altered)))
	}

	require.False(t, payment.VerifySignature(secret, body, sig[:len(sig)-1]), "truncated signature must fail")
	require.False(t, payment.VerifySignature("other-secret", body, sig))
}
