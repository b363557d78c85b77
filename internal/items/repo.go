package items

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

// Repository owns auction item rows and their append-only bid history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.AuctionItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AuctionItem, error)
	// FindByIDForUpdate re-reads the row under a SELECT ... FOR UPDATE so the
	// row stays pinned for the remainder of the surrounding transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.AuctionItem, error)
	Save(ctx context.Context, item *models.AuctionItem) error
	List(ctx context.Context, params ListParams) ([]models.AuctionItem, *pagination.Cursor, error)
	// ListExpired returns active auctionable items whose end time has lapsed.
	// Callers must not rely on the snapshot staying fresh; each row is
	// re-validated under lock before it is acted on.
	ListExpired(ctx context.Context, now time.Time) ([]models.AuctionItem, error)
	AppendBid(ctx context.Context, bid *models.Bid) error
	// HighestBid returns the winning bid candidate: maximum amount, earliest
	// timestamp on ties. Nil when the item has no bids.
	HighestBid(ctx context.Context, itemID uuid.UUID) (*models.Bid, error)
	ListBids(ctx context.Context, itemID uuid.UUID, params pagination.Params) ([]models.Bid, *pagination.Cursor, error)
	CountBids(ctx context.Context, itemID uuid.UUID) (int64, error)
}

// ListParams configures catalog listing queries.
type ListParams struct {
	SellerID *uuid.UUID
	Status   *enums.ItemStatus
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an items repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.AuctionItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AuctionItem, error) {
	var item models.AuctionItem
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.AuctionItem, error) {
	var item models.AuctionItem
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) Save(ctx context.Context, item *models.AuctionItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) List(ctx context.Context, params ListParams) ([]models.AuctionItem, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.AuctionItem{})
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.AuctionItem
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[normalized-1]
		return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}

func (r *repository) ListExpired(ctx context.Context, now time.Time) ([]models.AuctionItem, error) {
	var rows []models.AuctionItem
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ItemStatusActive).
		Where("sales_type IN ?", []enums.SalesType{enums.SalesTypeAuction, enums.SalesTypeHybrid}).
		Where("auction_end_time IS NOT NULL AND auction_end_time <= ?", now).
		Order("auction_end_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) AppendBid(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *repository) HighestBid(ctx context.Context, itemID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("amount DESC, timestamp ASC, id ASC").
		First(&bid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}

func (r *repository) ListBids(ctx context.Context, itemID uuid.UUID, params pagination.Params) ([]models.Bid, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Bid{}).Where("item_id = ?", itemID)
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		if cursor != nil {
			query = query.Where("(timestamp, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	var rows []models.Bid
	if err := query.Order("timestamp DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[normalized-1]
		return rows, &pagination.Cursor{CreatedAt: last.Timestamp, ID: last.ID}, nil
	}
	return rows, nil, nil
}

func (r *repository) CountBids(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Bid{}).Where("item_id = ?", itemID).Count(&count).Error
	return count, err
}
