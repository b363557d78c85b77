package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/internal/items"
	"github.com/nexusauctions/nexus-backend/internal/ledger"
	"github.com/nexusauctions/nexus-backend/internal/notifications"
	"github.com/nexusauctions/nexus-backend/pkg/config"
	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/keylock"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

// Service exposes settlement records and the buyer payment flow.
type Service interface {
	Get(ctx context.Context, transactionID, userID uuid.UUID) (*models.Transaction, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*ListResult, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ListResult, error)
	// Pay moves the winning amount from the buyer to the seller and marks
	// both the transaction and the item sold, all in one transaction.
	Pay(ctx context.Context, transactionID, buyerID uuid.UUID) (*models.Transaction, error)
}

// ListResult wraps a page of transactions.
type ListResult struct {
	Transactions []models.Transaction `json:"transactions"`
	Cursor       string               `json:"cursor"`
}

// ServiceParams collects the transactions service dependencies.
type ServiceParams struct {
	Client *db.Client
	Repo   Repository
	Items  items.Repository
	Ledger ledger.Service
	Sink   notifications.Sink
	Locks  *keylock.Set
	Config config.AuctionConfig
	Logger *logger.Logger
}

type service struct {
	client   *db.Client
	repo     Repository
	items    items.Repository
	ledger   ledger.Service
	sink     notifications.Sink
	locks    *keylock.Set
	lockWait time.Duration
	logg     *logger.Logger
}

// NewService wires the transactions service.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transactions repository required")
	}
	if params.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger service required")
	}
	if params.Sink == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification sink required")
	}
	if params.Locks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lock set required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	lockWait := params.Config.LockWaitTimeout
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &service{
		client:   params.Client,
		repo:     params.Repo,
		items:    params.Items,
		ledger:   params.Ledger,
		sink:     params.Sink,
		locks:    params.Locks,
		lockWait: lockWait,
		logg:     params.Logger,
	}, nil
}

func itemKey(itemID uuid.UUID) string {
	return "item:" + itemID.String()
}

func (s *service) Get(ctx context.Context, transactionID, userID uuid.UUID) (*models.Transaction, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	transaction, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.BuyerID != userID && transaction.SellerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another user")
	}
	return transaction, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	rows, next, err := s.repo.ListByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, err
	}
	return wrapList(rows, next), nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	rows, next, err := s.repo.ListBySeller(ctx, sellerID, params)
	if err != nil {
		return nil, err
	}
	return wrapList(rows, next), nil
}

func wrapList(rows []models.Transaction, next *pagination.Cursor) *ListResult {
	out := &ListResult{Transactions: rows}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out
}

func (s *service) Pay(ctx context.Context, transactionID, buyerID uuid.UUID) (*models.Transaction, error) {
	if transactionID == uuid.Nil || buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id and buyer id required")
	}

	preview, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if preview.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another buyer")
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	releaseItem, err := s.locks.Acquire(lockCtx, itemKey(preview.ItemID))
	cancel()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeBusy, err, "item busy")
	}
	defer releaseItem()

	releasePair, err := s.ledger.LockPair(ctx, buyerID, preview.SellerID)
	if err != nil {
		return nil, err
	}
	defer releasePair()

	var paid *models.Transaction

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transaction, err := repo.FindByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if transaction.Status != enums.TransactionStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "transaction is not awaiting payment")
		}

		if err := s.ledger.ApplyTransfer(ctx, tx, transaction.BuyerID, transaction.SellerID, transaction.Amount); err != nil {
			return err
		}

		if err := repo.UpdateStatus(ctx, transaction.ID, enums.TransactionStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction paid")
		}

		itemsRepo := s.items.WithTx(tx)
		item, err := itemsRepo.FindByIDForUpdate(ctx, transaction.ItemID)
		if err != nil {
			return err
		}
		if item.Status == enums.ItemStatusPendingPayment {
			item.Status = enums.ItemStatusSold
			if err := itemsRepo.Save(ctx, item); err != nil {
				return err
			}
		}

		transaction.Status = enums.TransactionStatusPaid
		paid = transaction
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Notify(ctx, notifications.Event{
		UserID:  paid.SellerID,
		Type:    enums.NotificationItemSold,
		Title:   "Payment received",
		Message: fmt.Sprintf("The buyer paid %s for your item.", paid.Amount.StringFixed(2)),
	})

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"transaction_id": paid.ID.String(),
		"item_id":        paid.ItemID.String(),
		"amount":         paid.Amount.StringFixed(2),
	})
	s.logg.Info(logCtx, "transaction paid")
	return paid, nil
}
