package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/internal/transactions"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

type testTransactionsService struct {
	getFn          func(ctx context.Context, transactionID, userID uuid.UUID) (*models.Transaction, error)
	listByBuyerFn  func(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*transactions.ListResult, error)
	listBySellerFn func(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*transactions.ListResult, error)
	payFn          func(ctx context.Context, transactionID, buyerID uuid.UUID) (*models.Transaction, error)
}

func (s *testTransactionsService) Get(ctx context.Context, transactionID, userID uuid.UUID) (*models.Transaction, error) {
	if s.getFn != nil {
		return s.getFn(ctx, transactionID, userID)
	}
	return &models.Transaction{ID: transactionID}, nil
}

func (s *testTransactionsService) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*transactions.ListResult, error) {
	if s.listByBuyerFn != nil {
		return s.listByBuyerFn(ctx, buyerID, params)
	}
	return &transactions.ListResult{}, nil
}

func (s *testTransactionsService) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*transactions.ListResult, error) {
	if s.listBySellerFn != nil {
		return s.listBySellerFn(ctx, sellerID, params)
	}
	return &transactions.ListResult{}, nil
}

func (s *testTransactionsService) Pay(ctx context.Context, transactionID, buyerID uuid.UUID) (*models.Transaction, error) {
	if s.payFn != nil {
		return s.payFn(ctx, transactionID, buyerID)
	}
	return &models.Transaction{ID: transactionID, BuyerID: buyerID, Status: enums.TransactionStatusPaid}, nil
}

func TestPayTransactionSuccess(t *testing.T) {
	transactionID := uuid.New()
	buyerID := uuid.New()
	svc := &testTransactionsService{
		payFn: func(ctx context.Context, tid, bid uuid.UUID) (*models.Transaction, error) {
			if tid != transactionID || bid != buyerID {
				t.Fatalf("unexpected ids %s %s", tid, bid)
			}
			return &models.Transaction{
				ID:      tid,
				BuyerID: bid,
				Amount:  decimal.RequireFromString("12.00"),
				Status:  enums.TransactionStatusPaid,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/"+transactionID.String()+"/pay", nil)
	req = asUser(req, buyerID, enums.UserRoleBuyer)
	req = addRouteParam(req, "transactionId", transactionID.String())

	resp := httptest.NewRecorder()
	PayTransaction(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPayTransactionAlreadyPaid(t *testing.T) {
	svc := &testTransactionsService{
		payFn: func(ctx context.Context, transactionID, buyerID uuid.UUID) (*models.Transaction, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "transaction is not awaiting payment")
		},
	}
	transactionID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/"+transactionID.String()+"/pay", nil)
	req = asUser(req, uuid.New(), enums.UserRoleBuyer)
	req = addRouteParam(req, "transactionId", transactionID.String())

	resp := httptest.NewRecorder()
	PayTransaction(svc, testLogger())(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	apiErr := decodeError(t, resp.Body.Bytes())
	if apiErr.Code != string(pkgerrors.CodeInvalidState) {
		t.Fatalf("unexpected code %s", apiErr.Code)
	}
}

func TestGetTransactionForbidden(t *testing.T) {
	svc := &testTransactionsService{
		getFn: func(ctx context.Context, transactionID, userID uuid.UUID) (*models.Transaction, error) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another user")
		},
	}
	transactionID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+transactionID.String(), nil)
	req = asUser(req, uuid.New(), enums.UserRoleBuyer)
	req = addRouteParam(req, "transactionId", transactionID.String())

	resp := httptest.NewRecorder()
	GetTransaction(svc, testLogger())(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	apiErr := decodeError(t, resp.Body.Bytes())
	if apiErr.Message != "access denied" {
		t.Fatalf("internal message leaked: %s", apiErr.Message)
	}
}

func TestListPurchasesForwardsPagination(t *testing.T) {
	buyerID := uuid.New()
	var got pagination.Params
	svc := &testTransactionsService{
		listByBuyerFn: func(ctx context.Context, uid uuid.UUID, params pagination.Params) (*transactions.ListResult, error) {
			if uid != buyerID {
				t.Fatalf("unexpected buyer %s", uid)
			}
			got = params
			return &transactions.ListResult{Cursor: "next"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/purchases?limit=3&cursor=abc", nil)
	req = asUser(req, buyerID, enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	ListPurchases(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got.Limit != 3 || got.Cursor != "abc" {
		t.Fatalf("pagination not forwarded: %+v", got)
	}
}
