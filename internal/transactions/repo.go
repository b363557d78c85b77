package transactions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

// Repository handles settlement record persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// CreateIfAbsent inserts the transaction unless one already exists for the
	// item. The boolean reports whether a new row was created. Re-running a
	// settlement sweep therefore never produces a duplicate.
	CreateIfAbsent(ctx context.Context, transaction *models.Transaction) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByItem(ctx context.Context, itemID uuid.UUID) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transactions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateIfAbsent(ctx context.Context, transaction *models.Transaction) (bool, error) {
	err := r.db.WithContext(ctx).Create(transaction).Error
	if err == nil {
		return true, nil
	}
	if db.IsUniqueViolation(err, "uniq_transactions_item") {
		return false, nil
	}
	return false, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).First(&transaction, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		First(&transaction, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) FindByItem(ctx context.Context, itemID uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).First(&transaction, "item_id = ?", itemID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error) {
	return r.list(ctx, "buyer_id = ?", buyerID, params)
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error) {
	return r.list(ctx, "seller_id = ?", sellerID, params)
}

func (r *repository) list(ctx context.Context, where string, userID uuid.UUID, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Transaction{}).Where(where, userID)
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		if cursor != nil {
			query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	var rows []models.Transaction
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
