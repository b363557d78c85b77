package notifications

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/pagination"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:notifications_test_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  read_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard})
}

func TestDispatcherPersistsEvents(t *testing.T) {
	conn := setupNotificationsTestDB(t)
	repo := NewRepository(conn)

	dispatcher, err := NewDispatcher(repo, testLogger(), 8)
	require.NoError(t, err)

	userID := uuid.New()
	dispatcher.Notify(context.Background(), Event{
		UserID:  userID,
		Type:    enums.NotificationOutbid,
		Title:   "You have been outbid",
		Message: "Another buyer placed a higher bid.",
	})
	dispatcher.Close()

	var rows []models.Notification
	require.NoError(t, conn.Find(&rows, "user_id = ?", userID).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.NotificationOutbid, rows[0].Type)
	assert.Nil(t, rows[0].ReadAt)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	repo := &blockingRepo{release: block}

	dispatcher, err := NewDispatcher(repo, testLogger(), 1)
	require.NoError(t, err)

	// First event occupies the worker, second fills the buffer, third must be
	// dropped without blocking the caller.
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		go func() {
			dispatcher.Notify(context.Background(), Event{UserID: uuid.New(), Type: enums.NotificationOutbid})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Notify blocked")
		}
	}

	close(block)
	dispatcher.Close()
	assert.LessOrEqual(t, repo.created, 2)
}

func TestDispatcherSurvivesPersistFailure(t *testing.T) {
	repo := &failingRepo{}

	dispatcher, err := NewDispatcher(repo, testLogger(), 4)
	require.NoError(t, err)

	dispatcher.Notify(context.Background(), Event{UserID: uuid.New(), Type: enums.NotificationAuctionWon})
	dispatcher.Notify(context.Background(), Event{UserID: uuid.New(), Type: enums.NotificationItemSold})
	dispatcher.Close()

	assert.Equal(t, 2, repo.attempts)
}

func TestNotifyIgnoresMissingUser(t *testing.T) {
	repo := &failingRepo{}

	dispatcher, err := NewDispatcher(repo, testLogger(), 4)
	require.NoError(t, err)

	dispatcher.Notify(context.Background(), Event{Type: enums.NotificationOutbid})
	dispatcher.Close()

	assert.Zero(t, repo.attempts)
}

type blockingRepo struct {
	release chan struct{}
	created int
}

func (b *blockingRepo) WithTx(tx *gorm.DB) Repository { return b }
func (b *blockingRepo) Create(ctx context.Context, notification *models.Notification) error {
	<-b.release
	b.created++
	return nil
}
func (b *blockingRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	return nil, nil, nil
}
func (b *blockingRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	return notificationMarkResult{}, nil
}
func (b *blockingRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	return 0, nil
}

type failingRepo struct {
	attempts int
}

func (f *failingRepo) WithTx(tx *gorm.DB) Repository { return f }
func (f *failingRepo) Create(ctx context.Context, notification *models.Notification) error {
	f.attempts++
	return errors.New("storage offline")
}
func (f *failingRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	return nil, nil, nil
}
func (f *failingRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	return notificationMarkResult{}, nil
}
func (f *failingRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	return 0, nil
}
