package ledger

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/keylock"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:ledger_test_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  balance NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	credits := `
CREATE TABLE IF NOT EXISTS wallet_credits (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  confirmation_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  created_at DATETIME,
  CONSTRAINT uniq_wallet_credits_confirmation UNIQUE (confirmation_id)
);`
	require.NoError(t, conn.Exec(wallets).Error)
	require.NoError(t, conn.Exec(credits).Error)
	return conn
}

func newLedgerService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "ledger-test", Output: io.Discard})
	svc, err := NewService(db.FromConn(conn), NewRepository(conn), keylock.NewSet(), time.Second, logg)
	require.NoError(t, err)
	return svc
}

func seedWallet(t *testing.T, conn *gorm.DB, userID uuid.UUID, balance string) {
	t.Helper()

	wallet := &models.Wallet{
		ID:      uuid.New(),
		UserID:  userID,
		Balance: decimal.RequireFromString(balance),
	}
	require.NoError(t, conn.Create(wallet).Error)
}

func walletBalance(t *testing.T, conn *gorm.DB, userID uuid.UUID) decimal.Decimal {
	t.Helper()

	var wallet models.Wallet
	require.NoError(t, conn.First(&wallet, "user_id = ?", userID).Error)
	return wallet.Balance
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	conn := setupLedgerTestDB(t)
	svc := newLedgerService(t, conn)

	alice := uuid.New()
	bob := uuid.New()
	seedWallet(t, conn, alice, "100.00")
	seedWallet(t, conn, bob, "20.00")

	err := svc.Transfer(context.Background(), alice, bob, decimal.RequireFromString("30.00"))
	require.NoError(t, err)

	assert.True(t, walletBalance(t, conn, alice).Equal(decimal.RequireFromString("70.00")))
	assert.True(t, walletBalance(t, conn, bob).Equal(decimal.RequireFromString("50.00")))
}

func TestTransferInsufficientFundsLeavesBalancesUntouched(t *testing.T) {
	conn := setupLedgerTestDB(t)
	svc := newLedgerService(t, conn)

	alice := uuid.New()
	bob := uuid.New()
	seedWallet(t, conn, alice, "10.00")
	seedWallet(t, conn, bob, "0.00")

	err := svc.Transfer(context.Background(), alice, bob, decimal.RequireFromString("10.01"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficient, pkgerrors.As(err).Code())

	assert.True(t, walletBalance(t, conn, alice).Equal(decimal.RequireFromString("10.00")))
	assert.True(t, walletBalance(t, conn, bob).Equal(decimal.Zero))
}

func TestTransferRejectsSameWallet(t *testing.T) {
	conn := setupLedgerTestDB(t)
	svc := newLedgerService(t, conn)

	user := uuid.New()
	seedWallet(t, conn, user, "10.00")

	err := svc.Transfer(context.Background(), user, user, decimal.RequireFromString("1.00"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestOppositeTransfersDoNotDeadlockAndPreserveTotal(t *testing.T) {
	conn := setupLedgerTestDB(t)
	svc := newLedgerService(t, conn)

	alice := uuid.New()
	bob := uuid.New()
	seedWallet(t, conn, alice, "500.00")
	seedWallet(t, conn, bob, "500.00")

	const rounds = 20
	one := decimal.RequireFromString("1.00")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			require.NoError(t, svc.Transfer(context.Background(), alice, bob, one))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			require.NoError(t, svc.Transfer(context.Background(), bob, alice, one))
		}
	}()
	wg.Wait()

	total := walletBalance(t, conn, alice).Add(walletBalance(t, conn, bob))
	assert.True(t, total.Equal(decimal.RequireFromString("1000.00")), "total drifted to %s", total)
}

// lockOrderRepo records the order wallet rows are pinned FOR UPDATE in.
type lockOrderRepo struct {
	Repository
	mu    *sync.Mutex
	calls *[]uuid.UUID
}

func (r *lockOrderRepo) WithTx(tx *gorm.DB) Repository {
	return &lockOrderRepo{Repository: r.Repository.WithTx(tx), mu: r.mu, calls: r.calls}
}

func (r *lockOrderRepo) FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	r.mu.Lock()
	*r.calls = append(*r.calls, userID)
	r.mu.Unlock()
	return r.Repository.FindByUserForUpdate(ctx, userID)
}

func TestTransferLocksRowsInAscendingOrderBothDirections(t *testing.T) {
	conn := setupLedgerTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "ledger-test", Output: io.Discard})

	var mu sync.Mutex
	var calls []uuid.UUID
	repo := &lockOrderRepo{Repository: NewRepository(conn), mu: &mu, calls: &calls}
	svc, err := NewService(db.FromConn(conn), repo, keylock.NewSet(), time.Second, logg)
	require.NoError(t, err)

	alice := uuid.New()
	bob := uuid.New()
	seedWallet(t, conn, alice, "50.00")
	seedWallet(t, conn, bob, "50.00")

	low, high := alice, bob
	if high.String() < low.String() {
		low, high = high, low
	}

	require.NoError(t, svc.Transfer(context.Background(), alice, bob, decimal.RequireFromString("1.00")))
	require.NoError(t, svc.Transfer(context.Background(), bob, alice, decimal.RequireFromString("1.00")))

	// Both directions must pin rows low-then-high so concurrent replicas
	// cannot wait on each other in a cycle.
	require.Len(t, calls, 4)
	assert.Equal(t, []uuid.UUID{low, high, low, high}, calls)

	assert.True(t, walletBalance(t, conn, alice).Equal(decimal.RequireFromString("50.00")))
	assert.True(t, walletBalance(t, conn, bob).Equal(decimal.RequireFromString("50.00")))
}

func TestLockPairOrdersAcquisition(t *testing.T) {
	conn := setupLedgerTestDB(t)
	svc := newLedgerService(t, conn)

	a := uuid.New()
	b := uuid.New()

	release, err := svc.LockPair(context.Background(), a, b)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		reverse, err := svc.LockPair(context.Background(), b, a)
		if err == nil {
			reverse()
		}
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("reverse pair acquired while pair lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	require.NoError(t, <-done)
}

func TestCreditAppliesOnce(t *testing.T) {
	conn := setupLedgerTestDB(t)
	svc := newLedgerService(t, conn)

	user := uuid.New()
	seedWallet(t, conn, user, "0.00")

	amount := decimal.RequireFromString("25.00")
	applied, err := svc.Credit(context.Background(), user, "PAY-123", amount)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = svc.Credit(context.Background(), user, "PAY-123", amount)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.True(t, walletBalance(t, conn, user).Equal(amount))

	var count int64
	require.NoError(t, conn.Model(&models.WalletCredit{}).Where("user_id = ?", user).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	conn := setupLedgerTestDB(t)
	svc := newLedgerService(t, conn)

	_, err := svc.Credit(context.Background(), uuid.New(), "PAY-456", decimal.Zero)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
