package controllers

import (
	"time"

	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/types"
)

// Views translate storage models into API payloads. Amounts always go out as
// decimal strings; cents never cross the HTTP boundary.

type walletView struct {
	ID                  string      `json:"id"`
	AccountID           string      `json:"account_id"`
	Currency            string      `json:"currency"`
	Status              string      `json:"status"`
	Available           types.Money `json:"available"`
	Reserved            types.Money `json:"reserved"`
	Effective           types.Money `json:"effective"`
	LowBalanceThreshold types.Money `json:"low_balance_threshold"`
	AutoTopUpEnabled    bool        `json:"auto_topup_enabled"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func newWalletView(w *models.Wallet) walletView {
	currency := string(w.Currency)
	return walletView{
		ID:                  w.ID.String(),
		AccountID:           w.AccountID.String(),
		Currency:            currency,
		Status:              string(w.Status),
		Available:           types.MoneyFromCents(w.AvailableCents, currency),
		Reserved:            types.MoneyFromCents(w.ReservedCents, currency),
		Effective:           types.MoneyFromCents(w.EffectiveCents(), currency),
		LowBalanceThreshold: types.MoneyFromCents(w.LowBalanceThresholdCents, currency),
		AutoTopUpEnabled:    w.AutoTopUpEnabled,
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}
}

type balanceView struct {
	WalletID  string      `json:"wallet_id"`
	Currency  string      `json:"currency"`
	Status    string      `json:"status"`
	Available types.Money `json:"available"`
	Reserved  types.Money `json:"reserved"`
	Effective types.Money `json:"effective"`
}

func newBalanceView(b *wallet.Balance) balanceView {
	currency := string(b.Currency)
	return balanceView{
		WalletID:  b.WalletID.String(),
		Currency:  currency,
		Status:    string(b.Status),
		Available: types.MoneyFromCents(b.AvailableCents, currency),
		Reserved:  types.MoneyFromCents(b.ReservedCents, currency),
		Effective: types.MoneyFromCents(b.EffectiveCents, currency),
	}
}

type entryView struct {
	ID             string      `json:"id"`
	WalletID       string      `json:"wallet_id"`
	Sequence       int64       `json:"sequence"`
	Direction      string      `json:"direction"`
	Amount         types.Money `json:"amount"`
	RunningBalance types.Money `json:"running_balance"`
	Type           string      `json:"type"`
	ReferenceType  string      `json:"reference_type"`
	ReferenceID    string      `json:"reference_id"`
	ReversalOf     *string     `json:"reversal_of,omitempty"`
	CorrelationID  string      `json:"correlation_id"`
	CreatedAt      time.Time   `json:"created_at"`
}

func newEntryView(e *models.LedgerEntry, currency string) entryView {
	view := entryView{
		ID:             e.ID.String(),
		WalletID:       e.WalletID.String(),
		Sequence:       e.Sequence,
		Direction:      string(e.Direction),
		Amount:         types.MoneyFromCents(e.AmountCents, currency),
		RunningBalance: types.MoneyFromCents(e.RunningBalanceCents, currency),
		Type:           string(e.Type),
		ReferenceType:  e.ReferenceType,
		ReferenceID:    e.ReferenceID,
		CorrelationID:  e.CorrelationID,
		CreatedAt:      e.CreatedAt,
	}
	if e.ReversalOf != nil {
		id := e.ReversalOf.String()
		view.ReversalOf = &id
	}
	return view
}

type statementView struct {
	Items  []entryView `json:"items"`
	Cursor string      `json:"cursor,omitempty"`
}

func newStatementView(result *ledger.StatementResult, currency string) statementView {
	items := make([]entryView, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, newEntryView(&result.Items[i], currency))
	}
	return statementView{Items: items, Cursor: result.Cursor}
}

type holdView struct {
	ID            string      `json:"id"`
	WalletID      string      `json:"wallet_id"`
	ReferenceType string      `json:"reference_type"`
	ReferenceID   string      `json:"reference_id"`
	Amount        types.Money `json:"amount"`
	Status        string      `json:"status"`
	ExpiresAt     time.Time   `json:"expires_at"`
	CapturedAt    *time.Time  `json:"captured_at,omitempty"`
	ReleasedAt    *time.Time  `json:"released_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func newHoldView(h *models.Hold, currency string) holdView {
	return holdView{
		ID:            h.ID.String(),
		WalletID:      h.WalletID.String(),
		ReferenceType: h.ReferenceType,
		ReferenceID:   h.ReferenceID,
		Amount:        types.MoneyFromCents(h.AmountCents, currency),
		Status:        string(h.Status),
		ExpiresAt:     h.ExpiresAt,
		CapturedAt:    h.CapturedAt,
		ReleasedAt:    h.ReleasedAt,
		CreatedAt:     h.CreatedAt,
	}
}

type topUpView struct {
	ID               string      `json:"id"`
	WalletID         string      `json:"wallet_id"`
	Amount           types.Money `json:"amount"`
	Status           string      `json:"status"`
	Gateway          string      `json:"gateway"`
	GatewayReference *string     `json:"gateway_reference,omitempty"`
	FailureReason    *string     `json:"failure_reason,omitempty"`
	ExpiresAt        time.Time   `json:"expires_at"`
	ConfirmedAt      *time.Time  `json:"confirmed_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

func newTopUpView(t *models.TopUp) topUpView {
	return topUpView{
		ID:               t.ID.String(),
		WalletID:         t.WalletID.String(),
		Amount:           types.MoneyFromCents(t.AmountCents, string(t.Currency)),
		Status:           string(t.Status),
		Gateway:          t.Gateway,
		GatewayReference: t.GatewayReference,
		FailureReason:    t.FailureReason,
		ExpiresAt:        t.ExpiresAt,
		ConfirmedAt:      t.ConfirmedAt,
		CreatedAt:        t.CreatedAt,
	}
}

type refundView struct {
	ID              string      `json:"id"`
	WalletID        string      `json:"wallet_id"`
	OriginalEntryID string      `json:"original_entry_id"`
	LedgerEntryID   string      `json:"ledger_entry_id"`
	Amount          types.Money `json:"amount"`
	Status          string      `json:"status"`
	Reason          string      `json:"reason"`
	CreatedAt       time.Time   `json:"created_at"`
}

func newRefundView(r *models.Refund, currency string) refundView {
	return refundView{
		ID:              r.ID.String(),
		WalletID:        r.WalletID.String(),
		OriginalEntryID: r.OriginalEntryID.String(),
		LedgerEntryID:   r.LedgerEntryID.String(),
		Amount:          types.MoneyFromCents(r.AmountCents, currency),
		Status:          string(r.Status),
		Reason:          r.Reason,
		CreatedAt:       r.CreatedAt,
	}
}

type notificationView struct {
	ID           string      `json:"id"`
	WalletID     string      `json:"wallet_id"`
	Kind         string      `json:"kind"`
	Effective    types.Money `json:"effective"`
	Threshold    types.Money `json:"threshold"`
	DispatchedAt *time.Time  `json:"dispatched_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

func newNotificationView(n *models.Notification, currency string) notificationView {
	return notificationView{
		ID:           n.ID.String(),
		WalletID:     n.WalletID.String(),
		Kind:         n.Kind,
		Effective:    types.MoneyFromCents(n.EffectiveCents, currency),
		Threshold:    types.MoneyFromCents(n.ThresholdCents, currency),
		DispatchedAt: n.DispatchedAt,
		CreatedAt:    n.CreatedAt,
	}
}

type reportView struct {
	ID               string    `json:"id"`
	Gateway          string    `json:"gateway"`
	ReportDate       string    `json:"report_date"`
	GatewayCount     int       `json:"gateway_count"`
	LedgerCount      int       `json:"ledger_count"`
	MatchedCount     int       `json:"matched_count"`
	UnmatchedGateway int       `json:"unmatched_gateway"`
	UnmatchedLedger  int       `json:"unmatched_ledger"`
	GatewayTotal     int64     `json:"gateway_total_cents"`
	LedgerTotal      int64     `json:"ledger_total_cents"`
	Discrepancy      int64     `json:"discrepancy_cents"`
	Anomalies        []string  `json:"anomalies"`
	CreatedAt        time.Time `json:"created_at"`
}

func newReportView(r *models.ReconciliationReport) reportView {
	anomalies := make([]string, len(r.Anomalies))
	copy(anomalies, r.Anomalies)
	return reportView{
		ID:               r.ID.String(),
		Gateway:          r.Gateway,
		ReportDate:       r.ReportDate.Format("2006-01-02"),
		GatewayCount:     r.GatewayCount,
		LedgerCount:      r.LedgerCount,
		MatchedCount:     r.MatchedCount,
		UnmatchedGateway: r.UnmatchedGateway,
		UnmatchedLedger:  r.UnmatchedLedger,
		GatewayTotal:     r.GatewayTotalCents,
		LedgerTotal:      r.LedgerTotalCents,
		Discrepancy:      r.DiscrepancyCents,
		Anomalies:        anomalies,
		CreatedAt:        r.CreatedAt,
	}
}
