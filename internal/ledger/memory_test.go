package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dzpay/chargily-bridge/internal/ledger"
)

func TestMarkPaidIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ledger.NewMemStore()
	store.Put(ledger.Transaction{Reference: "TX-100", Amount: 1000, Currency: "dzd"})

	require.NoError(t, store.MarkPaid(ctx, "TX-100", "Payment completed"))
	require.NoError(t, store.MarkPaid(ctx, "TX-100", "Payment completed"))

	tx, err := store.FindByReference(ctx, "TX-100")
	require.NoError(t, err)
	require.Equal(t, ledger.StatusPaid, tx.Status)
	require.Equal(t, "Payment completed", tx.StatusMessage)
	require.Len(t, store.Events(), 1, "redelivery must not record a second transition")
}

func TestLaterTerminalStatusOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ledger.NewMemStore()
	store.Put(ledger.Transaction{Reference: "TX-200", Amount: 500, Currency: "dzd"})

	require.NoError(t, store.MarkPaid(ctx, "TX-200", "Payment completed"))
	require.NoError(t, store.MarkCanceled(ctx, "TX-200", "Payment Canceled"))

	tx, err := store.FindByReference(ctx, "TX-200")
	require.NoError(t, err)
	require.Equal(t, ledger.StatusCanceled, tx.Status)

	events := store.Events()
	require.Len(t, events, 2)
	require.Equal(t, ledger.StatusPaid, events[1].From)
	require.Equal(t, ledger.StatusCanceled, events[1].To)
}

func TestFindByReferenceUnknown(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemStore()
	_, err := store.FindByReference(context.Background(), "TX-999")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}
