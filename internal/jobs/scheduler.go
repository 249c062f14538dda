package jobs

import (
	"context"
	"log"
	"time"

	"SchoolSuite/internal/config"
	"SchoolSuite/internal/logger"
	"SchoolSuite/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

// CronService schedules the nightly financial-status reconciliation sweep.
type CronService struct {
	config   map[string]interface{}
	pool     *pgxpool.Pool
	cron     *cron.Cron
	cancel   context.CancelFunc
	schedule string
}

func NewCronService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	schedule := config.DefaultReconcileSchedule
	if s, ok := cfg["reconcile_schedule"].(string); ok && s != "" {
		schedule = s
	}
	return &CronService{config: cfg, pool: pool, schedule: schedule}
}

func (s *CronService) Name() string { return "jobs" }

func (s *CronService) Start() error {
	loc, err := time.LoadLocation(config.DefaultTimeZone)
	if err != nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cron = cron.New(cron.WithLocation(loc))

	_, err = s.cron.AddFunc(s.schedule, func() {
		start := time.Now()
		processed, err := ReconcileFinancialStatuses(ctx, s.pool, config.ReconcileBatchSize)
		if err != nil {
			logger.Audit("[Reconcile] sweep aborted after %d students: %v", processed, err)
			return
		}
		logger.Audit("[Reconcile] sweep finished: %d students in %s", processed, time.Since(start).Round(time.Millisecond))
	})
	if err != nil {
		cancel()
		return err
	}
	s.cron.Start()
	log.Printf("Jobs Service started, reconcile schedule %q (%s)", s.schedule, loc)
	return nil
}

func (s *CronService) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
