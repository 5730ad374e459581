package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/push-relay/internal/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultSoundRefreshSchedule = "@every 24h"
	defaultSoundRefreshTimeout  = 30 * time.Second
)

// SoundUpdater refreshes a sound catalog from the gateway.
type SoundUpdater interface {
	UpdateSoundCatalog(ctx context.Context) error
}

// SoundRefresher keeps the gateway sound catalog current on a cron schedule.
type SoundRefresher struct {
	updater  SoundUpdater
	schedule string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewSoundRefresher(updater SoundUpdater, schedule string, logger *zap.Logger) (*SoundRefresher, error) {
	if updater == nil {
		return nil, fmt.Errorf("sound updater is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = defaultSoundRefreshSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sound refresh schedule %q: %w", schedule, err)
	}

	return &SoundRefresher{
		updater:  updater,
		schedule: schedule,
		timeout:  defaultSoundRefreshTimeout,
		logger:   logger,
	}, nil
}

func (r *SoundRefresher) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Start refreshes once, then on every schedule tick until ctx is done.
func (r *SoundRefresher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.refresh(ctx)

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.refresh(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sound refresh: %w", err)
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (r *SoundRefresher) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	refreshCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.updater.UpdateSoundCatalog(refreshCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("sound catalog refresh failed, keeping previous list", zap.Error(err))
		r.metrics.IncSoundRefresh(false)
		return
	}
	r.metrics.IncSoundRefresh(true)
}
