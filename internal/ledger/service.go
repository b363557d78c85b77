package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/keylock"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

// Service is the wallet ledger. Every balance mutation flows through here as a
// paired debit/credit inside a single transaction, so the sum of balances is
// preserved and no wallet can go negative.
type Service interface {
	CreateWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error)
	Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// LockPair takes the in-process locks for both wallets in ascending user-id
	// order. Two transfers touching the same wallets in opposite directions
	// therefore always acquire in the same order and cannot deadlock.
	LockPair(ctx context.Context, a, b uuid.UUID) (func(), error)
	// Transfer debits from and credits to atomically. Fails with
	// INSUFFICIENT_FUNDS when the source balance cannot cover the amount.
	Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal) error
	// ApplyTransfer runs the debit/credit pair inside the caller's transaction.
	// The caller must already hold the pair locks via LockPair.
	ApplyTransfer(ctx context.Context, tx *gorm.DB, fromUserID, toUserID uuid.UUID, amount decimal.Decimal) error
	// Credit applies a gateway top-up keyed by its confirmation id. Replays of
	// a confirmation already applied return applied=false with the wallet
	// untouched.
	Credit(ctx context.Context, userID uuid.UUID, confirmationID string, amount decimal.Decimal) (bool, error)
	ListCredits(ctx context.Context, userID uuid.UUID, limit int, cursor string) (*CreditListResult, error)
}

// CreditListResult wraps a page of applied top-ups.
type CreditListResult struct {
	Credits []models.WalletCredit `json:"credits"`
	Cursor  string                `json:"cursor"`
}

type service struct {
	client   *db.Client
	repo     Repository
	locks    *keylock.Set
	lockWait time.Duration
	logg     *logger.Logger
}

// NewService wires the ledger service.
func NewService(client *db.Client, repo Repository, locks *keylock.Set, lockWait time.Duration, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger repository required")
	}
	if locks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lock set required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &service{
		client:   client,
		repo:     repo,
		locks:    locks,
		lockWait: lockWait,
		logg:     logg,
	}, nil
}

func walletKey(userID uuid.UUID) string {
	return "wallet:" + userID.String()
}

func (s *service) CreateWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	wallet := &models.Wallet{
		ID:      uuid.New(),
		UserID:  userID,
		Balance: decimal.Zero,
	}
	if err := s.repo.WithTx(tx).CreateWallet(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return wallet, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.FindByUser(ctx, userID)
}

func (s *service) LockPair(ctx context.Context, a, b uuid.UUID) (func(), error) {
	first, second := a, b
	if second.String() < first.String() {
		first, second = second, first
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	releaseFirst, err := s.locks.Acquire(lockCtx, walletKey(first))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeBusy, err, "wallet lock contended")
	}
	if first == second {
		return releaseFirst, nil
	}
	releaseSecond, err := s.locks.Acquire(lockCtx, walletKey(second))
	if err != nil {
		releaseFirst()
		return nil, pkgerrors.Wrap(pkgerrors.CodeBusy, err, "wallet lock contended")
	}
	return func() {
		releaseSecond()
		releaseFirst()
	}, nil
}

func (s *service) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal) error {
	if fromUserID == uuid.Nil || toUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "both user ids required")
	}
	if fromUserID == toUserID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer to the same wallet")
	}
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}

	release, err := s.LockPair(ctx, fromUserID, toUserID)
	if err != nil {
		return err
	}
	defer release()

	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ApplyTransfer(ctx, tx, fromUserID, toUserID, amount)
	})
}

func (s *service) ApplyTransfer(ctx context.Context, tx *gorm.DB, fromUserID, toUserID uuid.UUID, amount decimal.Decimal) error {
	repo := s.repo.WithTx(tx)

	// Row locks follow the same ascending user-id order as LockPair. The
	// in-process locks only cover one replica; two replicas running opposite
	// transfers would otherwise take the FOR UPDATE locks in opposite orders
	// and trip the database deadlock detector.
	first, second := fromUserID, toUserID
	if second.String() < first.String() {
		first, second = second, first
	}
	locked := make(map[uuid.UUID]*models.Wallet, 2)
	for _, userID := range []uuid.UUID{first, second} {
		wallet, err := repo.FindByUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		locked[userID] = wallet
	}
	from, to := locked[fromUserID], locked[toUserID]

	if from.Balance.LessThan(amount) {
		return pkgerrors.New(pkgerrors.CodeInsufficient, "balance cannot cover amount").
			WithDetails(map[string]string{
				"balance":  from.Balance.StringFixed(2),
				"required": amount.StringFixed(2),
			})
	}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)

	if err := repo.Save(ctx, from); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
	}
	if err := repo.Save(ctx, to); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
	}
	return nil
}

var errCreditReplayed = pkgerrors.New(pkgerrors.CodeConflict, "confirmation already applied")

func (s *service) Credit(ctx context.Context, userID uuid.UUID, confirmationID string, amount decimal.Decimal) (bool, error) {
	if userID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if confirmationID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "confirmation id required")
	}
	if !amount.IsPositive() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	release, err := s.locks.Acquire(lockCtx, walletKey(userID))
	cancel()
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeBusy, err, "wallet lock contended")
	}
	defer release()

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		credit := &models.WalletCredit{
			ID:             uuid.New(),
			UserID:         userID,
			ConfirmationID: confirmationID,
			Amount:         amount,
		}
		if err := repo.CreateCredit(ctx, credit); err != nil {
			if db.IsUniqueViolation(err, "uniq_wallet_credits_confirmation") {
				return errCreditReplayed
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record credit")
		}

		wallet, err := repo.FindByUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		wallet.Balance = wallet.Balance.Add(amount)
		return repo.Save(ctx, wallet)
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			ctx = s.logg.WithFields(ctx, map[string]any{
				"user_id":         userID.String(),
				"confirmation_id": confirmationID,
			})
			s.logg.Info(ctx, "duplicate top-up confirmation ignored")
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *service) ListCredits(ctx context.Context, userID uuid.UUID, limit int, cursor string) (*CreditListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, next, err := s.repo.ListCredits(ctx, userID, pagination.Params{Limit: limit, Cursor: cursor})
	if err != nil {
		return nil, err
	}
	out := &CreditListResult{Credits: rows}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}
