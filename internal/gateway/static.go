package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
)

// SourceDeclined makes the static provider reject the charge. Used in dev
// and tests to exercise the failure path end to end.
const SourceDeclined = "source:declined"

// Static is an in-process provider that settles every charge immediately.
// It remembers the charges it approved so reconciliation and tests can
// inspect them.
type Static struct {
	mu      sync.Mutex
	charges map[string]ChargeRequest
}

// NewStatic builds the in-process provider.
func NewStatic() *Static {
	return &Static{charges: make(map[string]ChargeRequest)}
}

func (s *Static) Name() string {
	return ProviderStatic
}

func (s *Static) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}
	if req.SourceID == SourceDeclined {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "charge declined by provider").
			WithDetails(map[string]any{"topup_id": req.TopUpID})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Same idempotency key settles once.
	if req.IdempotencyKey != "" {
		for ref, prior := range s.charges {
			if prior.IdempotencyKey == req.IdempotencyKey {
				return &ChargeResult{Reference: ref}, nil
			}
		}
	}

	ref := fmt.Sprintf("static-%s", uuid.NewString())
	s.charges[ref] = req
	return &ChargeResult{Reference: ref}, nil
}

// ChargeCount reports how many distinct charges the provider settled.
func (s *Static) ChargeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.charges)
}
