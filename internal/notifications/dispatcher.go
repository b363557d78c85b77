package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

const (
	defaultQueueSize    = 256
	persistTimeout      = 5 * time.Second
	dispatcherComponent = "notification-dispatcher"
)

// Event is a notification to deliver to a single user.
type Event struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
}

// Sink accepts events without ever failing the caller. Delivery is best
// effort: a full queue or a storage error drops the event with a log line and
// nothing else.
type Sink interface {
	Notify(ctx context.Context, event Event)
}

// Dispatcher persists events on a background goroutine, decoupling delivery
// from the bidding and settlement paths that emit them.
type Dispatcher struct {
	repo      Repository
	logg      *logger.Logger
	queue     chan Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDispatcher builds and starts a dispatcher. queueSize <= 0 selects the
// default buffer.
func NewDispatcher(repo Repository, logg *logger.Logger, queueSize int) (*Dispatcher, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	d := &Dispatcher{
		repo:  repo,
		logg:  logg,
		queue: make(chan Event, queueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d, nil
}

// Notify enqueues the event. It never blocks: when the queue is full the
// event is dropped and logged.
func (d *Dispatcher) Notify(ctx context.Context, event Event) {
	if event.UserID == uuid.Nil {
		return
	}
	select {
	case d.queue <- event:
	default:
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"component": dispatcherComponent,
			"user_id":   event.UserID.String(),
			"type":      event.Type.String(),
		})
		d.logg.Warn(logCtx, "notification queue full, event dropped")
	}
}

// Close stops intake and waits for queued events to drain.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for event := range d.queue {
		d.persist(event)
	}
}

func (d *Dispatcher) persist(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  event.UserID,
		Type:    event.Type,
		Title:   event.Title,
		Message: event.Message,
	}
	if err := d.repo.Create(ctx, notification); err != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"component": dispatcherComponent,
			"user_id":   event.UserID.String(),
			"type":      event.Type.String(),
		})
		d.logg.Warn(logCtx, "notification persist failed, event dropped")
	}
}
