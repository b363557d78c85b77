package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/nexusauctions/nexus-backend/internal/settlement"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/metrics"
)

const auctionCloseJobName = "auction-close"

// AuctionCloseJob runs the settlement sweep on each cron cycle.
type AuctionCloseJob struct {
	settlement settlement.Service
	metrics    *metrics.CronJobMetrics
	logg       *logger.Logger
	clock      func() time.Time
}

// NewAuctionCloseJob builds the sweep job.
func NewAuctionCloseJob(settlementSvc settlement.Service, cronMetrics *metrics.CronJobMetrics, logg *logger.Logger) (*AuctionCloseJob, error) {
	if settlementSvc == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &AuctionCloseJob{
		settlement: settlementSvc,
		metrics:    cronMetrics,
		logg:       logg,
		clock:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Name identifies the job in logs and metrics.
func (j *AuctionCloseJob) Name() string {
	return auctionCloseJobName
}

// Run executes one sweep. Partial failures surface as an error so the cycle
// is recorded as failed, but every closable item has already been closed.
func (j *AuctionCloseJob) Run(ctx context.Context) error {
	report, err := j.settlement.CloseExpired(ctx, j.clock())
	if j.metrics != nil && report.Closed() > 0 {
		j.metrics.AddClosed(report.Closed())
	}
	if err != nil {
		return fmt.Errorf("sweep finished with failures: %w", err)
	}
	return nil
}
