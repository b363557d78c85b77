package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

// Repository persists wallets and applied top-up credits.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// FindByUserForUpdate pins the wallet row for the rest of the surrounding
	// transaction so concurrent debits cannot interleave.
	FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Save(ctx context.Context, wallet *models.Wallet) error
	CreateCredit(ctx context.Context, credit *models.WalletCredit) error
	ListCredits(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletCredit, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		First(&wallet, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) Save(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Save(wallet).Error
}

func (r *repository) CreateCredit(ctx context.Context, credit *models.WalletCredit) error {
	return r.db.WithContext(ctx).Create(credit).Error
}

func (r *repository) ListCredits(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletCredit, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.WalletCredit{}).Where("user_id = ?", userID)
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		if cursor != nil {
			query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	var rows []models.WalletCredit
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
