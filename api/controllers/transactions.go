package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/api/responses"
	"github.com/nexusauctions/nexus-backend/internal/transactions"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

type transactionResponse struct {
	ID        uuid.UUID               `json:"id"`
	BuyerID   uuid.UUID               `json:"buyer_id"`
	SellerID  uuid.UUID               `json:"seller_id"`
	ItemID    uuid.UUID               `json:"item_id"`
	Amount    decimal.Decimal         `json:"amount"`
	Status    enums.TransactionStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type transactionListResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Cursor       string                `json:"cursor,omitempty"`
}

func newTransactionResponse(transaction *models.Transaction) transactionResponse {
	return transactionResponse{
		ID:        transaction.ID,
		BuyerID:   transaction.BuyerID,
		SellerID:  transaction.SellerID,
		ItemID:    transaction.ItemID,
		Amount:    transaction.Amount,
		Status:    transaction.Status,
		CreatedAt: transaction.CreatedAt,
		UpdatedAt: transaction.UpdatedAt,
	}
}

func newTransactionListResponse(result *transactions.ListResult) transactionListResponse {
	resp := transactionListResponse{
		Transactions: make([]transactionResponse, len(result.Transactions)),
		Cursor:       result.Cursor,
	}
	for i := range result.Transactions {
		resp.Transactions[i] = newTransactionResponse(&result.Transactions[i])
	}
	return resp
}

// GetTransaction returns one transaction visible to the caller.
func GetTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transactionID, err := parseUUIDParam(chi.URLParam(r, "transactionId"), "transaction id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transaction, err := svc.Get(r.Context(), transactionID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionResponse(transaction))
	}
}

// ListPurchases returns transactions where the caller is the buyer.
func ListPurchases(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return listTransactions(svc, logg, func(ctx *http.Request, userID uuid.UUID, params pagination.Params) (*transactions.ListResult, error) {
		return svc.ListByBuyer(ctx.Context(), userID, params)
	})
}

// ListSales returns transactions where the caller is the seller.
func ListSales(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return listTransactions(svc, logg, func(ctx *http.Request, userID uuid.UUID, params pagination.Params) (*transactions.ListResult, error) {
		return svc.ListBySeller(ctx.Context(), userID, params)
	})
}

func listTransactions(svc transactions.Service, logg *logger.Logger, fetch func(*http.Request, uuid.UUID, pagination.Params) (*transactions.ListResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		userID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := parseLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := fetch(r, userID, pagination.Params{Limit: limit, Cursor: cursorParam(r)})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionListResponse(result))
	}
}

// PayTransaction settles a pending transaction from the buyer's wallet.
func PayTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		buyerID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transactionID, err := parseUUIDParam(chi.URLParam(r, "transactionId"), "transaction id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transaction, err := svc.Pay(r.Context(), transactionID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionResponse(transaction))
	}
}
