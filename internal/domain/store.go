package domain

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence collaborator used by the challan services.
//
// Lookups return ENOTFOUND when the record is missing. Any other failure
// is EINTERNAL. TransitionChallan and UpdatePayment are conditional on the
// record still being in the given status and return ETRANSITION otherwise.
type Store interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	FindChallanByID(ctx context.Context, id uuid.UUID) (*Challan, error)
	// SaveChallan inserts a new challan. A duplicate number is ECONFLICT.
	SaveChallan(ctx context.Context, c *Challan) error
	// TransitionChallan persists c's status fields if the stored status is from.
	TransitionChallan(ctx context.Context, c *Challan, from ChallanStatus) error

	FindPaymentByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindPaymentsByChallan(ctx context.Context, challanID uuid.UUID) ([]Payment, error)
	SavePayment(ctx context.Context, p *Payment) error
	// UpdatePayment persists p's status and refund fields if the stored
	// status is from.
	UpdatePayment(ctx context.Context, p *Payment, from PaymentStatus) error

	CountChallans(ctx context.Context, q ChallanQuery) (int64, error)
	ListChallans(ctx context.Context, q ChallanQuery, limit, offset int) ([]Challan, error)
	SummarizeChallans(ctx context.Context, q ChallanQuery) ([]StatusSummary, error)

	// InTx runs fn against a Store bound to one transaction. The
	// transaction commits if fn returns nil.
	InTx(ctx context.Context, fn func(Store) error) error
}
