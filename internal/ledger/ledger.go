package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Transaction is the ledger record correlated with a gateway checkout session
// through its Reference. Amount is in minor units of Currency.
type Transaction struct {
	ID            uuid.UUID
	Reference     string
	Amount        int64
	Currency      string
	Status        Status
	StatusMessage string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event records a status transition. Stores append one only when the status
// actually changed, so hosts can safely tie side effects to events.
type Event struct {
	Reference  string
	From       Status
	To         Status
	Message    string
	OccurredAt time.Time
}

// ErrNotFound is returned when no transaction matches the given reference.
var ErrNotFound = errors.New("ledger: transaction not found")

// Store is the host-owned transaction ledger consumed by gateway integrations.
//
// MarkPaid, MarkFailed and MarkCanceled are idempotent: re-applying the
// current status is a no-op and records no Event. A later different terminal
// status overwrites an earlier one (last writer wins); out-of-order gateway
// deliveries can therefore flip a terminal state, which is accepted as a known
// ordering gap rather than guarded against here.
type Store interface {
	FindByReference(ctx context.Context, reference string) (Transaction, error)
	MarkPaid(ctx context.Context, reference, message string) error
	MarkFailed(ctx context.Context, reference, message string) error
	MarkCanceled(ctx context.Context, reference, message string) error
}
