package settlement

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

	"github.com/nexusauctions/nexus-backend/internal/items"
	"github.com/nexusauctions/nexus-backend/internal/notifications"
	"github.com/nexusauctions/nexus-backend/internal/transactions"
	"github.com/nexusauctions/nexus-backend/pkg/config"
	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	"github.com/nexusauctions/nexus-backend/pkg/keylock"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:settlement_test_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS auction_items (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  condition TEXT NOT NULL DEFAULT 'USED',
  sales_type TEXT NOT NULL DEFAULT 'AUCTION',
  initial_price NUMERIC NOT NULL DEFAULT 0,
  buy_now_price NUMERIC,
  current_highest_bid NUMERIC NOT NULL DEFAULT 0,
  reserve_price NUMERIC NOT NULL DEFAULT 0,
  auction_end_time DATETIME,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS bids (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  bidder_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  timestamp DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  item_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT uniq_transactions_item UNIQUE (item_id)
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

type captureSink struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (c *captureSink) Notify(ctx context.Context, event notifications.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) byType(kind enums.NotificationType) []notifications.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notifications.Event
	for _, event := range c.events {
		if event.Type == kind {
			out = append(out, event)
		}
	}
	return out
}

type settlementFixture struct {
	conn  *gorm.DB
	svc   Service
	sink  *captureSink
	locks *keylock.Set
	now   time.Time
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()

	conn := setupSettlementTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "settlement-test", Output: io.Discard})
	locks := keylock.NewSet()
	sink := &captureSink{}

	svc, err := NewService(ServiceParams{
		Client:       db.FromConn(conn),
		Items:        items.NewRepository(conn),
		Transactions: transactions.NewRepository(conn),
		Sink:         sink,
		Locks:        locks,
		Config:       config.AuctionConfig{LockWaitTimeout: 200 * time.Millisecond},
		Logger:       logg,
	})
	require.NoError(t, err)

	return &settlementFixture{
		conn:  conn,
		svc:   svc,
		sink:  sink,
		locks: locks,
		now:   time.Now().UTC().Truncate(time.Second),
	}
}

func (f *settlementFixture) seedExpiredAuction(t *testing.T, sellerID uuid.UUID) *models.AuctionItem {
	t.Helper()

	end := f.now.Add(-time.Minute)
	item := &models.AuctionItem{
		ID:             uuid.New(),
		SellerID:       sellerID,
		Condition:      enums.ItemConditionUsed,
		SalesType:      enums.SalesTypeAuction,
		InitialPrice:   decimal.RequireFromString("10.00"),
		AuctionEndTime: &end,
		Status:         enums.ItemStatusActive,
	}
	require.NoError(t, f.conn.Create(item).Error)
	return item
}

func (f *settlementFixture) seedBid(t *testing.T, itemID, bidderID uuid.UUID, amount string, at time.Time) *models.Bid {
	t.Helper()

	bid := &models.Bid{
		ID:        uuid.New(),
		ItemID:    itemID,
		BidderID:  bidderID,
		Amount:    decimal.RequireFromString(amount),
		Timestamp: at,
	}
	require.NoError(t, f.conn.Create(bid).Error)
	return bid
}

func (f *settlementFixture) reload(t *testing.T, id uuid.UUID) *models.AuctionItem {
	t.Helper()
	var item models.AuctionItem
	require.NoError(t, f.conn.First(&item, "id = ?", id).Error)
	return &item
}

func TestCloseExpiredSettlesToHighestBidder(t *testing.T) {
	f := newSettlementFixture(t)
	seller := uuid.New()
	winner := uuid.New()
	loser := uuid.New()
	item := f.seedExpiredAuction(t, seller)

	f.seedBid(t, item.ID, loser, "11.00", f.now.Add(-10*time.Minute))
	f.seedBid(t, item.ID, winner, "12.00", f.now.Add(-5*time.Minute))

	report, err := f.svc.CloseExpired(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, 1, report.Closed())

	var transaction models.Transaction
	require.NoError(t, f.conn.First(&transaction, "item_id = ?", item.ID).Error)
	assert.Equal(t, winner, transaction.BuyerID)
	assert.Equal(t, seller, transaction.SellerID)
	assert.True(t, transaction.Amount.Equal(decimal.RequireFromString("12.00")))
	assert.Equal(t, enums.TransactionStatusPending, transaction.Status)

	assert.Equal(t, enums.ItemStatusPendingPayment, f.reload(t, item.ID).Status)

	won := f.sink.byType(enums.NotificationAuctionWon)
	require.Len(t, won, 1)
	assert.Equal(t, winner, won[0].UserID)
	ended := f.sink.byType(enums.NotificationAuctionEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, seller, ended[0].UserID)
}

func TestCloseExpiredTieGoesToEarliestBid(t *testing.T) {
	f := newSettlementFixture(t)
	seller := uuid.New()
	early := uuid.New()
	late := uuid.New()
	item := f.seedExpiredAuction(t, seller)

	f.seedBid(t, item.ID, early, "15.00", f.now.Add(-10*time.Minute))
	f.seedBid(t, item.ID, late, "15.00", f.now.Add(-5*time.Minute))

	_, err := f.svc.CloseExpired(context.Background(), f.now)
	require.NoError(t, err)

	var transaction models.Transaction
	require.NoError(t, f.conn.First(&transaction, "item_id = ?", item.ID).Error)
	assert.Equal(t, early, transaction.BuyerID)
}

func TestCloseExpiredWithoutBidsExpiresItem(t *testing.T) {
	f := newSettlementFixture(t)
	seller := uuid.New()
	item := f.seedExpiredAuction(t, seller)

	report, err := f.svc.CloseExpired(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	assert.Equal(t, enums.ItemStatusExpired, f.reload(t, item.ID).Status)

	var count int64
	require.NoError(t, f.conn.Model(&models.Transaction{}).Where("item_id = ?", item.ID).Count(&count).Error)
	assert.Zero(t, count)

	ended := f.sink.byType(enums.NotificationAuctionEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, seller, ended[0].UserID)
}

func TestCloseExpiredIsIdempotent(t *testing.T) {
	f := newSettlementFixture(t)
	item := f.seedExpiredAuction(t, uuid.New())
	f.seedBid(t, item.ID, uuid.New(), "20.00", f.now.Add(-time.Hour))

	_, err := f.svc.CloseExpired(context.Background(), f.now)
	require.NoError(t, err)
	report, err := f.svc.CloseExpired(context.Background(), f.now)
	require.NoError(t, err)
	assert.Zero(t, report.Settled)

	var count int64
	require.NoError(t, f.conn.Model(&models.Transaction{}).Where("item_id = ?", item.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCloseExpiredSkipsActiveAuctions(t *testing.T) {
	f := newSettlementFixture(t)
	seller := uuid.New()
	end := f.now.Add(time.Hour)
	item := &models.AuctionItem{
		ID:             uuid.New(),
		SellerID:       seller,
		Condition:      enums.ItemConditionUsed,
		SalesType:      enums.SalesTypeAuction,
		InitialPrice:   decimal.RequireFromString("10.00"),
		AuctionEndTime: &end,
		Status:         enums.ItemStatusActive,
	}
	require.NoError(t, f.conn.Create(item).Error)

	report, err := f.svc.CloseExpired(context.Background(), f.now)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Equal(t, enums.ItemStatusActive, f.reload(t, item.ID).Status)
}

func TestCloseExpiredIncludesHybridListings(t *testing.T) {
	f := newSettlementFixture(t)
	seller := uuid.New()
	end := f.now.Add(-time.Minute)
	price := decimal.RequireFromString("50.00")
	item := &models.AuctionItem{
		ID:             uuid.New(),
		SellerID:       seller,
		Condition:      enums.ItemConditionUsed,
		SalesType:      enums.SalesTypeHybrid,
		InitialPrice:   decimal.RequireFromString("10.00"),
		BuyNowPrice:    &price,
		AuctionEndTime: &end,
		Status:         enums.ItemStatusActive,
	}
	require.NoError(t, f.conn.Create(item).Error)

	report, err := f.svc.CloseExpired(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)
}

func TestCloseExpiredIsolatesLockedItems(t *testing.T) {
	f := newSettlementFixture(t)
	blocked := f.seedExpiredAuction(t, uuid.New())
	open := f.seedExpiredAuction(t, uuid.New())

	release, err := f.locks.Acquire(context.Background(), "item:"+blocked.ID.String())
	require.NoError(t, err)
	defer release()

	report, err := f.svc.CloseExpired(context.Background(), f.now)
	require.Error(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 1, report.Skipped)

	assert.Equal(t, enums.ItemStatusActive, f.reload(t, blocked.ID).Status)
	assert.Equal(t, enums.ItemStatusExpired, f.reload(t, open.ID).Status)
}
