// Package sweeper retries webhook deliveries that GitHub could not
// complete, using the App's delivery log.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GlueOps/storypoints/internal/metrics"
	"github.com/GlueOps/storypoints/restapi/modules/github"
)

// DeliveryClient is the slice of the GitHub client the sweeper needs. The
// delivery-log endpoints authenticate with the App JWT directly, not an
// installation token.
type DeliveryClient interface {
	AppJWT() (string, error)
	ListDeliveries(ctx context.Context, signedJWT string, since time.Time) ([]github.Delivery, error)
	Redeliver(ctx context.Context, signedJWT string, deliveryID int64) error
}

// Sweeper periodically redelivers failed webhook deliveries from the last
// few days.
type Sweeper struct {
	client   DeliveryClient
	logger   *zap.Logger
	metrics  *metrics.Metrics
	days     int
	interval time.Duration
}

// New builds a sweeper that looks back the given number of days on each
// pass.
func New(client DeliveryClient, logger *zap.Logger, m *metrics.Metrics, days int) *Sweeper {
	return &Sweeper{
		client:   client,
		logger:   logger,
		metrics:  m,
		days:     days,
		interval: 24 * time.Hour,
	}
}

// Run performs one sweep immediately, then one per day until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep asks GitHub to redeliver every delivery that failed within the
// lookback window. Errors are logged and counted, never fatal; the next
// sweep tries again.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	signedJWT, err := s.client.AppJWT()
	if err != nil {
		s.logger.Error("sweep aborted: cannot sign app jwt", zap.Error(err))
		return
	}

	since := time.Now().AddDate(0, 0, -s.days)
	deliveries, err := s.client.ListDeliveries(ctx, signedJWT, since)
	if err != nil {
		s.logger.Error("sweep aborted: cannot list deliveries", zap.Error(err))
		return
	}

	failed := github.FailedDeliveries(deliveries)
	if len(failed) == 0 {
		s.logger.Debug("no failed deliveries to retry",
			zap.Int("deliveries_checked", len(deliveries)))
		return
	}

	s.logger.Info("redelivering failed webhook deliveries",
		zap.Int("count", len(failed)),
		zap.Int("deliveries_checked", len(deliveries)))

	for _, d := range failed {
		if d.Redelivery {
			s.logger.Warn("a previous redelivery also failed, trying again",
				zap.Int64("delivery_id", d.ID),
				zap.String("guid", d.GUID))
		}
		if err := s.client.Redeliver(ctx, signedJWT, d.ID); err != nil {
			s.logger.Error("redelivery request failed",
				zap.Int64("delivery_id", d.ID),
				zap.Error(err))
			s.metrics.Redeliveries.WithLabelValues("error").Inc()
			continue
		}
		s.metrics.Redeliveries.WithLabelValues("requested").Inc()
	}
}
