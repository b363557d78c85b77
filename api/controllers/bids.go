package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusauctions/nexus-backend/api/responses"
	"github.com/nexusauctions/nexus-backend/api/validators"
	"github.com/nexusauctions/nexus-backend/internal/bidding"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

type placeBidRequest struct {
	Amount string `json:"amount" validate:"required"`
}

type placeBidResponse struct {
	Bid  bidResponse  `json:"bid"`
	Item itemResponse `json:"item"`
}

// PlaceBid records a bid on an active auction listing.
func PlaceBid(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		bidderID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := parseUUIDParam(chi.URLParam(r, "itemId"), "item id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeBidRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmount(payload.Amount, "bid amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceBid(r.Context(), itemID, bidderID, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, placeBidResponse{
			Bid:  newBidResponse(result.Bid),
			Item: newItemResponse(result.Item),
		})
	}
}

// BuyNow purchases a fixed-price listing outright.
func BuyNow(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		buyerID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := parseUUIDParam(chi.URLParam(r, "itemId"), "item id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transaction, err := svc.BuyNow(r.Context(), itemID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(transaction))
	}
}
