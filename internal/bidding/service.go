package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/internal/items"
	"github.com/nexusauctions/nexus-backend/internal/ledger"
	"github.com/nexusauctions/nexus-backend/internal/notifications"
	"github.com/nexusauctions/nexus-backend/internal/transactions"
	"github.com/nexusauctions/nexus-backend/pkg/config"
	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/keylock"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

// Service is the bid engine. Both entry points serialize on a per-item lock
// so at most one mutation is in flight per item at any moment.
type Service interface {
	// PlaceBid validates and records a bid. Validation happens under the item
	// lock in a fixed order: item state, auction deadline, minimum amount,
	// then self-bidding. A bid near the deadline pushes the end time out so
	// others get a chance to respond. The result carries the item as this bid
	// left it, so callers observe the new high and any deadline extension.
	PlaceBid(ctx context.Context, itemID, bidderID uuid.UUID, amount decimal.Decimal) (*PlaceBidResult, error)
	// BuyNow purchases a fixed-price listing outright: funds move and the
	// settlement record is written in the same transaction that marks the
	// item sold.
	BuyNow(ctx context.Context, itemID, buyerID uuid.UUID) (*models.Transaction, error)
}

// PlaceBidResult pairs an accepted bid with the updated item state.
type PlaceBidResult struct {
	Item *models.AuctionItem
	Bid  *models.Bid
}

// ServiceParams collects the bid engine dependencies.
type ServiceParams struct {
	Client       *db.Client
	Items        items.Repository
	Ledger       ledger.Service
	Transactions transactions.Repository
	Sink         notifications.Sink
	Locks        *keylock.Set
	Config       config.AuctionConfig
	Logger       *logger.Logger
	Clock        func() time.Time
}

type service struct {
	client       *db.Client
	items        items.Repository
	ledger       ledger.Service
	transactions transactions.Repository
	sink         notifications.Sink
	locks        *keylock.Set
	minIncrement decimal.Decimal
	snipeWindow  time.Duration
	snipeExt     time.Duration
	lockWait     time.Duration
	logg         *logger.Logger
	clock        func() time.Time
}

// NewService wires the bid engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if params.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger service required")
	}
	if params.Transactions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transactions repository required")
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

	minIncrement, err := decimal.NewFromString(params.Config.MinIncrement)
	if err != nil || !minIncrement.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "minimum increment must be a positive decimal")
	}

	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	lockWait := params.Config.LockWaitTimeout
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}

	return &service{
		client:       params.Client,
		items:        params.Items,
		ledger:       params.Ledger,
		transactions: params.Transactions,
		sink:         params.Sink,
		locks:        params.Locks,
		minIncrement: minIncrement,
		snipeWindow:  params.Config.SnipeWindow,
		snipeExt:     params.Config.SnipeExtension,
		lockWait:     lockWait,
		logg:         params.Logger,
		clock:        clock,
	}, nil
}

func itemKey(itemID uuid.UUID) string {
	return "item:" + itemID.String()
}

func (s *service) acquireItem(ctx context.Context, itemID uuid.UUID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	release, err := s.locks.Acquire(lockCtx, itemKey(itemID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeBusy, err, "item busy")
	}
	return release, nil
}

func (s *service) PlaceBid(ctx context.Context, itemID, bidderID uuid.UUID, amount decimal.Decimal) (*PlaceBidResult, error) {
	if itemID == uuid.Nil || bidderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id and bidder id required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid amount must be positive")
	}

	release, err := s.acquireItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.clock()
	var bid *models.Bid
	var outbid *models.Bid
	var updated *models.AuctionItem

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.items.WithTx(tx)

		item, err := repo.FindByIDForUpdate(ctx, itemID)
		if err != nil {
			return err
		}

		if item.Status != enums.ItemStatusActive || !item.SalesType.Auctionable() || item.AuctionEndTime == nil {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "item does not accept bids")
		}
		if !now.Before(*item.AuctionEndTime) {
			return pkgerrors.New(pkgerrors.CodeAuctionEnded, "auction has ended")
		}

		prior, err := repo.HighestBid(ctx, itemID)
		if err != nil {
			return err
		}
		required := item.InitialPrice
		if prior != nil {
			required = prior.Amount.Add(s.minIncrement)
		}
		if amount.LessThan(required) {
			return pkgerrors.New(pkgerrors.CodeBidTooLow, "bid below required minimum").
				WithDetails(map[string]string{"required": required.StringFixed(2)})
		}
		if bidderID == item.SellerID {
			return pkgerrors.New(pkgerrors.CodeSelfBid, "sellers cannot bid on their own items")
		}

		// A bid landing inside the closing window pushes the deadline out so
		// the auction cannot be decided by timing alone. Extensions stack as
		// long as bidding keeps the item inside the window.
		if item.AuctionEndTime.Sub(now) < s.snipeWindow {
			extended := item.AuctionEndTime.Add(s.snipeExt)
			item.AuctionEndTime = &extended
		}

		bid = &models.Bid{
			ID:        uuid.New(),
			ItemID:    itemID,
			BidderID:  bidderID,
			Amount:    amount,
			Timestamp: now,
		}
		if err := repo.AppendBid(ctx, bid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record bid")
		}

		item.CurrentHighestBid = amount
		if err := repo.Save(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		updated = item

		if prior != nil && prior.BidderID != bidderID {
			outbid = prior
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outbid != nil {
		s.sink.Notify(ctx, notifications.Event{
			UserID:  outbid.BidderID,
			Type:    enums.NotificationOutbid,
			Title:   "You have been outbid",
			Message: fmt.Sprintf("A bid of %s has topped yours.", amount.StringFixed(2)),
		})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"item_id":   itemID.String(),
		"bidder_id": bidderID.String(),
		"amount":    amount.StringFixed(2),
	})
	s.logg.Info(logCtx, "bid accepted")
	return &PlaceBidResult{Item: updated, Bid: bid}, nil
}

func (s *service) BuyNow(ctx context.Context, itemID, buyerID uuid.UUID) (*models.Transaction, error) {
	if itemID == uuid.Nil || buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id and buyer id required")
	}

	release, err := s.acquireItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Peek at the listing to learn the counterparty before taking wallet
	// locks. Everything is re-validated under FOR UPDATE inside the
	// transaction.
	preview, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if buyerID == preview.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeSelfBid, "sellers cannot buy their own items")
	}

	releasePair, err := s.ledger.LockPair(ctx, buyerID, preview.SellerID)
	if err != nil {
		return nil, err
	}
	defer releasePair()

	var transaction *models.Transaction
	var sellerID uuid.UUID

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.items.WithTx(tx)

		item, err := repo.FindByIDForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		sellerID = item.SellerID

		if item.Status != enums.ItemStatusActive {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "item is no longer for sale")
		}
		if item.SalesType == enums.SalesTypeAuction || item.BuyNowPrice == nil {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "item has no buy-now price")
		}
		if item.SellerID != preview.SellerID {
			return pkgerrors.New(pkgerrors.CodeConflict, "listing changed, retry")
		}

		price := *item.BuyNowPrice
		if err := s.ledger.ApplyTransfer(ctx, tx, buyerID, item.SellerID, price); err != nil {
			return err
		}

		transaction = &models.Transaction{
			ID:       uuid.New(),
			BuyerID:  buyerID,
			SellerID: item.SellerID,
			ItemID:   itemID,
			Amount:   price,
			Status:   enums.TransactionStatusPaid,
		}
		created, err := s.transactions.WithTx(tx).CreateIfAbsent(ctx, transaction)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transaction")
		}
		if !created {
			return pkgerrors.New(pkgerrors.CodeAlreadySettled, "item already settled")
		}

		item.Status = enums.ItemStatusSold
		return repo.Save(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.sink.Notify(ctx, notifications.Event{
		UserID:  sellerID,
		Type:    enums.NotificationItemSold,
		Title:   "Item sold",
		Message: fmt.Sprintf("Your listing sold for %s.", transaction.Amount.StringFixed(2)),
	})

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"item_id":  itemID.String(),
		"buyer_id": buyerID.String(),
		"amount":   transaction.Amount.StringFixed(2),
	})
	s.logg.Info(logCtx, "buy-now completed")
	return transaction, nil
}
