package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/api/responses"
	"github.com/nexusauctions/nexus-backend/api/validators"
	"github.com/nexusauctions/nexus-backend/internal/items"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

type createItemRequest struct {
	Category       string     `json:"category" validate:"required"`
	Title          string     `json:"title" validate:"required,max=200"`
	Description    string     `json:"description"`
	Condition      string     `json:"condition" validate:"required"`
	SalesType      string     `json:"sales_type" validate:"required"`
	InitialPrice   string     `json:"initial_price" validate:"required"`
	BuyNowPrice    *string    `json:"buy_now_price"`
	ReservePrice   *string    `json:"reserve_price"`
	AuctionEndTime *time.Time `json:"auction_end_time"`
}

type itemResponse struct {
	ID                uuid.UUID           `json:"id"`
	SellerID          uuid.UUID           `json:"seller_id"`
	Category          string              `json:"category"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Condition         enums.ItemCondition `json:"condition"`
	SalesType         enums.SalesType     `json:"sales_type"`
	InitialPrice      decimal.Decimal     `json:"initial_price"`
	BuyNowPrice       *decimal.Decimal    `json:"buy_now_price,omitempty"`
	CurrentHighestBid decimal.Decimal     `json:"current_highest_bid"`
	AuctionEndTime    *time.Time          `json:"auction_end_time,omitempty"`
	Status            enums.ItemStatus    `json:"status"`
	CreatedAt         time.Time           `json:"created_at"`
}

type itemListResponse struct {
	Items  []itemResponse `json:"items"`
	Cursor string         `json:"cursor,omitempty"`
}

type bidResponse struct {
	ID        uuid.UUID       `json:"id"`
	ItemID    uuid.UUID       `json:"item_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

type bidListResponse struct {
	Bids   []bidResponse `json:"bids"`
	Cursor string        `json:"cursor,omitempty"`
}

func newItemResponse(item *models.AuctionItem) itemResponse {
	return itemResponse{
		ID:                item.ID,
		SellerID:          item.SellerID,
		Category:          item.Category,
		Title:             item.Title,
		Description:       item.Description,
		Condition:         item.Condition,
		SalesType:         item.SalesType,
		InitialPrice:      item.InitialPrice,
		BuyNowPrice:       item.BuyNowPrice,
		CurrentHighestBid: item.CurrentHighestBid,
		AuctionEndTime:    item.AuctionEndTime,
		Status:            item.Status,
		CreatedAt:         item.CreatedAt,
	}
}

func newBidResponse(bid *models.Bid) bidResponse {
	return bidResponse{
		ID:        bid.ID,
		ItemID:    bid.ItemID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		Timestamp: bid.Timestamp,
	}
}

func parseAmount(raw, name string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return value, nil
}

// CreateItem lists a new item for the authenticated seller.
func CreateItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "items service unavailable"))
			return
		}

		sellerID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		condition, err := enums.ParseItemCondition(payload.Condition)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid condition"))
			return
		}
		salesType, err := enums.ParseSalesType(payload.SalesType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sales type"))
			return
		}
		initialPrice, err := parseAmount(payload.InitialPrice, "initial price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := items.CreateInput{
			SellerID:       sellerID,
			Category:       payload.Category,
			Title:          payload.Title,
			Description:    payload.Description,
			Condition:      condition,
			SalesType:      salesType,
			InitialPrice:   initialPrice,
			AuctionEndTime: payload.AuctionEndTime,
		}
		if payload.BuyNowPrice != nil {
			price, err := parseAmount(*payload.BuyNowPrice, "buy-now price")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.BuyNowPrice = &price
		}
		if payload.ReservePrice != nil {
			price, err := parseAmount(*payload.ReservePrice, "reserve price")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.ReservePrice = price
		}

		item, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newItemResponse(item))
	}
}

// GetItem returns one listing by id.
func GetItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "items service unavailable"))
			return
		}

		itemID, err := parseUUIDParam(chi.URLParam(r, "itemId"), "item id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Get(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(item))
	}
}

// ListItems returns a page of listings, optionally filtered by seller or status.
func ListItems(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "items service unavailable"))
			return
		}

		params := items.ListParams{}

		if raw := strings.TrimSpace(r.URL.Query().Get("seller_id")); raw != "" {
			sellerID, err := parseUUIDParam(raw, "seller id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.SellerID = &sellerID
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseItemStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		limit, err := parseLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		if raw := cursorParam(r); raw != "" {
			cursor, err := pagination.ParseCursor(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
			params.Cursor = cursor
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := itemListResponse{Items: make([]itemResponse, len(result.Items)), Cursor: result.Cursor}
		for i := range result.Items {
			resp.Items[i] = newItemResponse(&result.Items[i])
		}
		responses.WriteSuccess(w, resp)
	}
}

// ListItemBids returns the bid history of one listing, newest first.
func ListItemBids(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "items service unavailable"))
			return
		}

		itemID, err := parseUUIDParam(chi.URLParam(r, "itemId"), "item id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := parseLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListBids(r.Context(), itemID, pagination.Params{Limit: limit, Cursor: cursorParam(r)})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := bidListResponse{Bids: make([]bidResponse, len(result.Bids)), Cursor: result.Cursor}
		for i := range result.Bids {
			resp.Bids[i] = newBidResponse(&result.Bids[i])
		}
		responses.WriteSuccess(w, resp)
	}
}
