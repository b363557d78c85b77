package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/api/responses"
	"github.com/nexusauctions/nexus-backend/api/validators"
	"github.com/nexusauctions/nexus-backend/internal/wallet"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

type depositRequest struct {
	Amount    string `json:"amount" validate:"required"`
	ReturnURL string `json:"return_url" validate:"required,url"`
	CancelURL string `json:"cancel_url" validate:"required,url"`
}

type captureRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

type walletResponse struct {
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type creditResponse struct {
	ID             uuid.UUID       `json:"id"`
	ConfirmationID string          `json:"confirmation_id"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

type creditListResponse struct {
	Credits []creditResponse `json:"credits"`
	Cursor  string           `json:"cursor,omitempty"`
}

func newWalletResponse(w *models.Wallet) walletResponse {
	return walletResponse{UserID: w.UserID, Balance: w.Balance, UpdatedAt: w.UpdatedAt}
}

// WalletBalance returns the caller's wallet.
func WalletBalance(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		userID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(record))
	}
}

// WalletDeposit opens a gateway order and returns its approval URL.
func WalletDeposit(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		userID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload depositRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmount(payload.Amount, "deposit amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.Deposit(r.Context(), userID, amount, payload.ReturnURL, payload.CancelURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intent)
	}
}

// WalletCapture confirms an approved gateway order and credits the wallet.
func WalletCapture(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		userID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload captureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Capture(r.Context(), userID, payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// WalletCredits returns the caller's top-up history.
func WalletCredits(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
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

		result, err := svc.ListCredits(r.Context(), userID, limit, cursorParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := creditListResponse{Credits: make([]creditResponse, len(result.Credits)), Cursor: result.Cursor}
		for i, credit := range result.Credits {
			resp.Credits[i] = creditResponse{
				ID:             credit.ID,
				ConfirmationID: credit.ConfirmationID,
				Amount:         credit.Amount,
				CreatedAt:      credit.CreatedAt,
			}
		}
		responses.WriteSuccess(w, resp)
	}
}
