package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/internal/ledger"
	"github.com/nexusauctions/nexus-backend/internal/wallet"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
)

type testWalletService struct {
	balanceFn     func(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	depositFn     func(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, returnURL, cancelURL string) (*wallet.DepositIntent, error)
	captureFn     func(ctx context.Context, userID uuid.UUID, orderID string) (*wallet.CaptureResult, error)
	listCreditsFn func(ctx context.Context, userID uuid.UUID, limit int, cursor string) (*ledger.CreditListResult, error)
}

func (s *testWalletService) Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if s.balanceFn != nil {
		return s.balanceFn(ctx, userID)
	}
	return &models.Wallet{UserID: userID, Balance: decimal.Zero}, nil
}

func (s *testWalletService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, returnURL, cancelURL string) (*wallet.DepositIntent, error) {
	if s.depositFn != nil {
		return s.depositFn(ctx, userID, amount, returnURL, cancelURL)
	}
	return &wallet.DepositIntent{OrderID: "order-1", ApprovalURL: "https://gateway.example/approve"}, nil
}

func (s *testWalletService) Capture(ctx context.Context, userID uuid.UUID, orderID string) (*wallet.CaptureResult, error) {
	if s.captureFn != nil {
		return s.captureFn(ctx, userID, orderID)
	}
	return &wallet.CaptureResult{ConfirmationID: orderID, Amount: decimal.Zero, Applied: true}, nil
}

func (s *testWalletService) ListCredits(ctx context.Context, userID uuid.UUID, limit int, cursor string) (*ledger.CreditListResult, error) {
	if s.listCreditsFn != nil {
		return s.listCreditsFn(ctx, userID, limit, cursor)
	}
	return &ledger.CreditListResult{}, nil
}

func TestWalletBalanceReturnsWallet(t *testing.T) {
	userID := uuid.New()
	svc := &testWalletService{
		balanceFn: func(ctx context.Context, uid uuid.UUID) (*models.Wallet, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			return &models.Wallet{UserID: uid, Balance: decimal.RequireFromString("42.50")}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	req = asUser(req, userID, enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	WalletBalance(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data walletResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Balance.Equal(decimal.RequireFromString("42.50")) {
		t.Fatalf("unexpected balance %s", envelope.Data.Balance)
	}
}

func TestWalletDepositReturnsApprovalURL(t *testing.T) {
	userID := uuid.New()
	var gotAmount decimal.Decimal
	svc := &testWalletService{
		depositFn: func(ctx context.Context, uid uuid.UUID, amount decimal.Decimal, returnURL, cancelURL string) (*wallet.DepositIntent, error) {
			gotAmount = amount
			return &wallet.DepositIntent{OrderID: "order-9", ApprovalURL: "https://gateway.example/approve/order-9"}, nil
		},
	}

	body := `{"amount":"30.00","return_url":"https://app.example/return","cancel_url":"https://app.example/cancel"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/deposits", strings.NewReader(body))
	req = asUser(req, userID, enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	WalletDeposit(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !gotAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("amount not forwarded: %s", gotAmount)
	}
}

func TestWalletDepositRequiresURLs(t *testing.T) {
	body := `{"amount":"30.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/deposits", strings.NewReader(body))
	req = asUser(req, uuid.New(), enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	WalletDeposit(&testWalletService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestWalletCaptureAppliesCredit(t *testing.T) {
	userID := uuid.New()
	svc := &testWalletService{
		captureFn: func(ctx context.Context, uid uuid.UUID, orderID string) (*wallet.CaptureResult, error) {
			if orderID != "order-7" {
				t.Fatalf("unexpected order %s", orderID)
			}
			return &wallet.CaptureResult{ConfirmationID: "cap-7", Amount: decimal.RequireFromString("15.00"), Applied: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/deposits/capture", strings.NewReader(`{"order_id":"order-7"}`))
	req = asUser(req, userID, enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	WalletCapture(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data wallet.CaptureResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Applied || envelope.Data.ConfirmationID != "cap-7" {
		t.Fatalf("unexpected capture result: %+v", envelope.Data)
	}
}

func TestWalletCreditsForwardsPagination(t *testing.T) {
	userID := uuid.New()
	svc := &testWalletService{
		listCreditsFn: func(ctx context.Context, uid uuid.UUID, limit int, cursor string) (*ledger.CreditListResult, error) {
			if limit != 2 || cursor != "next" {
				t.Fatalf("pagination not forwarded: %d %s", limit, cursor)
			}
			return &ledger.CreditListResult{Credits: []models.WalletCredit{{ID: uuid.New(), UserID: uid, ConfirmationID: "cap-1", Amount: decimal.RequireFromString("5.00")}}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/credits?limit=2&cursor=next", nil)
	req = asUser(req, userID, enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	WalletCredits(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data creditListResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Credits) != 1 || envelope.Data.Credits[0].ConfirmationID != "cap-1" {
		t.Fatalf("unexpected credits: %+v", envelope.Data)
	}
}
