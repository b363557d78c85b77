package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/internal/items"
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

// Service closes auctions whose end time has passed. The sweep is safe to run
// concurrently and to re-run: the per-item settlement record is created at
// most once no matter how many sweeps observe the same expired auction.
type Service interface {
	CloseExpired(ctx context.Context, now time.Time) (Report, error)
}

// Report summarizes one sweep.
type Report struct {
	Scanned int
	Settled int
	Expired int
	Skipped int
}

// Closed counts items moved out of ACTIVE by the sweep.
func (r Report) Closed() int {
	return r.Settled + r.Expired
}

// ServiceParams collects the settlement dependencies.
type ServiceParams struct {
	Client       *db.Client
	Items        items.Repository
	Transactions transactions.Repository
	Sink         notifications.Sink
	Locks        *keylock.Set
	Config       config.AuctionConfig
	Logger       *logger.Logger
}

type service struct {
	client       *db.Client
	items        items.Repository
	transactions transactions.Repository
	sink         notifications.Sink
	locks        *keylock.Set
	lockWait     time.Duration
	logg         *logger.Logger
}

// NewService wires the settlement engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if params.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
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
	lockWait := params.Config.LockWaitTimeout
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &service{
		client:       params.Client,
		items:        params.Items,
		transactions: params.Transactions,
		sink:         params.Sink,
		locks:        params.Locks,
		lockWait:     lockWait,
		logg:         params.Logger,
	}, nil
}

func itemKey(itemID uuid.UUID) string {
	return "item:" + itemID.String()
}

func (s *service) CloseExpired(ctx context.Context, now time.Time) (Report, error) {
	candidates, err := s.items.ListExpired(ctx, now)
	if err != nil {
		return Report{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired auctions")
	}

	report := Report{Scanned: len(candidates)}
	var errs error

	// One failed item never blocks the rest of the sweep; it stays expired
	// and the next run picks it up again.
	for _, candidate := range candidates {
		outcome, err := s.closeOne(ctx, candidate.ID, now)
		if err != nil {
			report.Skipped++
			errs = multierr.Append(errs, fmt.Errorf("item %s: %w", candidate.ID, err))
			logCtx := s.logg.WithItemID(ctx, candidate.ID.String())
			s.logg.Error(logCtx, "settlement failed for item", err)
			continue
		}
		switch outcome {
		case outcomeSettled:
			report.Settled++
		case outcomeExpired:
			report.Expired++
		default:
			report.Skipped++
		}
	}

	if report.Closed() > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"scanned": report.Scanned,
			"settled": report.Settled,
			"expired": report.Expired,
			"skipped": report.Skipped,
		})
		s.logg.Info(logCtx, "settlement sweep completed")
	}
	return report, errs
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSettled
	outcomeExpired
)

func (s *service) closeOne(ctx context.Context, itemID uuid.UUID, now time.Time) (outcome, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	release, err := s.locks.Acquire(lockCtx, itemKey(itemID))
	cancel()
	if err != nil {
		return outcomeSkipped, pkgerrors.Wrap(pkgerrors.CodeBusy, err, "item busy")
	}
	defer release()

	var result outcome
	var winner *models.Bid
	var sellerID uuid.UUID

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.items.WithTx(tx)

		item, err := repo.FindByIDForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		sellerID = item.SellerID

		// A concurrent bid may have extended the deadline, or a concurrent
		// sweep/buy-now may have closed the item already.
		if item.Status != enums.ItemStatusActive ||
			!item.SalesType.Auctionable() ||
			item.AuctionEndTime == nil ||
			item.AuctionEndTime.After(now) {
			result = outcomeSkipped
			return nil
		}

		highest, err := repo.HighestBid(ctx, itemID)
		if err != nil {
			return err
		}

		if highest == nil {
			item.Status = enums.ItemStatusExpired
			if err := repo.Save(ctx, item); err != nil {
				return err
			}
			result = outcomeExpired
			return nil
		}

		transaction := &models.Transaction{
			ID:       uuid.New(),
			BuyerID:  highest.BidderID,
			SellerID: item.SellerID,
			ItemID:   itemID,
			Amount:   highest.Amount,
			Status:   enums.TransactionStatusPending,
		}
		created, err := s.transactions.WithTx(tx).CreateIfAbsent(ctx, transaction)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record settlement")
		}
		if !created {
			// A previous sweep wrote the record but the item update was lost.
			// Converge the item state instead of failing.
			logCtx := s.logg.WithItemID(ctx, itemID.String())
			s.logg.Warn(logCtx, "settlement record already present, converging item state")
		}

		item.Status = enums.ItemStatusPendingPayment
		if err := repo.Save(ctx, item); err != nil {
			return err
		}

		winner = highest
		result = outcomeSettled
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}

	switch result {
	case outcomeSettled:
		s.sink.Notify(ctx, notifications.Event{
			UserID:  winner.BidderID,
			Type:    enums.NotificationAuctionWon,
			Title:   "Auction won",
			Message: fmt.Sprintf("You won the auction with a bid of %s. Complete payment to finish the purchase.", winner.Amount.StringFixed(2)),
		})
		s.sink.Notify(ctx, notifications.Event{
			UserID:  sellerID,
			Type:    enums.NotificationAuctionEnded,
			Title:   "Auction ended",
			Message: fmt.Sprintf("Your auction closed with a winning bid of %s.", winner.Amount.StringFixed(2)),
		})
	case outcomeExpired:
		s.sink.Notify(ctx, notifications.Event{
			UserID:  sellerID,
			Type:    enums.NotificationAuctionEnded,
			Title:   "Auction ended",
			Message: "Your auction closed without bids.",
		})
	}
	return result, nil
}
