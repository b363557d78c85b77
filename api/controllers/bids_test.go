package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/internal/bidding"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
)

type testBiddingService struct {
	placeBidFn func(ctx context.Context, itemID, bidderID uuid.UUID, amount decimal.Decimal) (*bidding.PlaceBidResult, error)
	buyNowFn   func(ctx context.Context, itemID, buyerID uuid.UUID) (*models.Transaction, error)
}

func (s *testBiddingService) PlaceBid(ctx context.Context, itemID, bidderID uuid.UUID, amount decimal.Decimal) (*bidding.PlaceBidResult, error) {
	if s.placeBidFn != nil {
		return s.placeBidFn(ctx, itemID, bidderID, amount)
	}
	return &bidding.PlaceBidResult{
		Item: &models.AuctionItem{ID: itemID, CurrentHighestBid: amount},
		Bid:  &models.Bid{ID: uuid.New(), ItemID: itemID, BidderID: bidderID, Amount: amount},
	}, nil
}

func (s *testBiddingService) BuyNow(ctx context.Context, itemID, buyerID uuid.UUID) (*models.Transaction, error) {
	if s.buyNowFn != nil {
		return s.buyNowFn(ctx, itemID, buyerID)
	}
	return &models.Transaction{ID: uuid.New(), ItemID: itemID, BuyerID: buyerID}, nil
}

func TestPlaceBidCreated(t *testing.T) {
	itemID := uuid.New()
	bidderID := uuid.New()
	extendedEnd := time.Date(2026, 3, 1, 12, 1, 10, 0, time.UTC)
	var gotAmount decimal.Decimal
	svc := &testBiddingService{
		placeBidFn: func(ctx context.Context, iid, bid uuid.UUID, amount decimal.Decimal) (*bidding.PlaceBidResult, error) {
			if iid != itemID || bid != bidderID {
				t.Fatalf("unexpected ids %s %s", iid, bid)
			}
			gotAmount = amount
			return &bidding.PlaceBidResult{
				Item: &models.AuctionItem{ID: iid, CurrentHighestBid: amount, AuctionEndTime: &extendedEnd},
				Bid:  &models.Bid{ID: uuid.New(), ItemID: iid, BidderID: bid, Amount: amount},
			}, nil
		},
	}

	body := strings.NewReader(`{"amount":"25.50"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/bids", body)
	req = asUser(req, bidderID, "BUYER")
	req = addRouteParam(req, "itemId", itemID.String())

	resp := httptest.NewRecorder()
	PlaceBid(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !gotAmount.Equal(decimal.RequireFromString("25.50")) {
		t.Fatalf("amount not forwarded: %s", gotAmount)
	}

	var envelope struct {
		Data struct {
			Bid struct {
				Amount string `json:"amount"`
			} `json:"bid"`
			Item struct {
				CurrentHighestBid string     `json:"current_highest_bid"`
				AuctionEndTime    *time.Time `json:"auction_end_time"`
			} `json:"item"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Item.CurrentHighestBid != "25.5" {
		t.Fatalf("item state missing from response: %q", envelope.Data.Item.CurrentHighestBid)
	}
	if envelope.Data.Item.AuctionEndTime == nil || !envelope.Data.Item.AuctionEndTime.Equal(extendedEnd) {
		t.Fatalf("extended deadline not surfaced: %v", envelope.Data.Item.AuctionEndTime)
	}
}

func TestPlaceBidTooLowSurfacesCode(t *testing.T) {
	svc := &testBiddingService{
		placeBidFn: func(ctx context.Context, itemID, bidderID uuid.UUID, amount decimal.Decimal) (*bidding.PlaceBidResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeBidTooLow, "bid must be at least 12.00")
		},
	}

	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/bids", strings.NewReader(`{"amount":"1.00"}`))
	req = asUser(req, uuid.New(), "BUYER")
	req = addRouteParam(req, "itemId", itemID.String())

	resp := httptest.NewRecorder()
	PlaceBid(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	apiErr := decodeError(t, resp.Body.Bytes())
	if apiErr.Code != string(pkgerrors.CodeBidTooLow) {
		t.Fatalf("unexpected code %s", apiErr.Code)
	}
	if apiErr.Message != "bid must be at least 12.00" {
		t.Fatalf("service message not surfaced: %s", apiErr.Message)
	}
}

func TestPlaceBidRejectsMalformedBody(t *testing.T) {
	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/bids", strings.NewReader(`{"amount":`))
	req = asUser(req, uuid.New(), "BUYER")
	req = addRouteParam(req, "itemId", itemID.String())

	resp := httptest.NewRecorder()
	PlaceBid(&testBiddingService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPlaceBidRequiresAuth(t *testing.T) {
	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/bids", strings.NewReader(`{"amount":"5.00"}`))
	req = addRouteParam(req, "itemId", itemID.String())
	resp := httptest.NewRecorder()
	PlaceBid(&testBiddingService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestBuyNowCreated(t *testing.T) {
	itemID := uuid.New()
	buyerID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/buy", nil)
	req = asUser(req, buyerID, "BUYER")
	req = addRouteParam(req, "itemId", itemID.String())

	resp := httptest.NewRecorder()
	BuyNow(&testBiddingService{}, testLogger())(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestBuyNowInsufficientFunds(t *testing.T) {
	svc := &testBiddingService{
		buyNowFn: func(ctx context.Context, itemID, buyerID uuid.UUID) (*models.Transaction, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "wallet balance too low")
		},
	}
	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/buy", nil)
	req = asUser(req, uuid.New(), "BUYER")
	req = addRouteParam(req, "itemId", itemID.String())

	resp := httptest.NewRecorder()
	BuyNow(svc, testLogger())(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	apiErr := decodeError(t, resp.Body.Bytes())
	if apiErr.Code != string(pkgerrors.CodeInsufficient) {
		t.Fatalf("unexpected code %s", apiErr.Code)
	}
}
