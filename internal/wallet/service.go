package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/internal/ledger"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/paypal"
)

// Gateway is the slice of the payment processor the wallet flows need.
type Gateway interface {
	CreateOrder(ctx context.Context, userID, amount, returnURL, cancelURL string) (*paypal.Order, string, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Capture, error)
}

// Service handles wallet balance reads and gateway-backed top-ups.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// Deposit opens a gateway order for the amount and returns the approval
	// URL the client redirects the payer to. No balance changes yet.
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, returnURL, cancelURL string) (*DepositIntent, error)
	// Capture confirms a previously approved order and applies the credit.
	// Replays of the same capture are no-ops.
	Capture(ctx context.Context, userID uuid.UUID, orderID string) (*CaptureResult, error)
	ListCredits(ctx context.Context, userID uuid.UUID, limit int, cursor string) (*ledger.CreditListResult, error)
}

// DepositIntent is the pending gateway order awaiting payer approval.
type DepositIntent struct {
	OrderID     string `json:"order_id"`
	ApprovalURL string `json:"approval_url"`
}

// CaptureResult reports the applied (or replayed) top-up.
type CaptureResult struct {
	ConfirmationID string          `json:"confirmation_id"`
	Amount         decimal.Decimal `json:"amount"`
	Applied        bool            `json:"applied"`
}

type service struct {
	ledger  ledger.Service
	gateway Gateway
	logg    *logger.Logger
}

// NewService wires the wallet service.
func NewService(ledgerSvc ledger.Service, gateway Gateway, logg *logger.Logger) (Service, error) {
	if ledgerSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger service required")
	}
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{ledger: ledgerSvc, gateway: gateway, logg: logg}, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.ledger.Balance(ctx, userID)
}

func (s *service) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, returnURL, cancelURL string) (*DepositIntent, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
	}

	order, approvalURL, err := s.gateway.CreateOrder(ctx, userID.String(), amount.StringFixed(2), returnURL, cancelURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":  userID.String(),
		"order_id": order.ID,
		"amount":   amount.StringFixed(2),
	})
	s.logg.Info(logCtx, "wallet deposit initiated")

	return &DepositIntent{OrderID: order.ID, ApprovalURL: approvalURL}, nil
}

func (s *service) Capture(ctx context.Context, userID uuid.UUID, orderID string) (*CaptureResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	capture, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture gateway order")
	}
	if capture.UserID != "" && capture.UserID != userID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}

	amount, err := decimal.NewFromString(capture.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned an invalid amount")
	}

	applied, err := s.ledger.Credit(ctx, userID, capture.ID, amount)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":         userID.String(),
		"confirmation_id": capture.ID,
		"applied":         applied,
	})
	s.logg.Info(logCtx, "wallet capture processed")

	return &CaptureResult{
		ConfirmationID: capture.ID,
		Amount:         amount,
		Applied:        applied,
	}, nil
}

func (s *service) ListCredits(ctx context.Context, userID uuid.UUID, limit int, cursor string) (*ledger.CreditListResult, error) {
	return s.ledger.ListCredits(ctx, userID, limit, cursor)
}
