// Package scheduler runs the periodic background jobs of the feed service
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/boostfeed/app/services"
	"github.com/amirphl/boostfeed/models"
	"github.com/amirphl/boostfeed/repository"
	"github.com/amirphl/boostfeed/utils"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

var ErrSchedulerAlreadyStarted = errors.New("scheduler already started")

// BoostExpiryScheduler completes boosts whose end date has passed
type BoostExpiryScheduler struct {
	boostRepo repository.BoostRepository
	auditRepo repository.AuditLogRepository
	publisher services.EventPublisher
	db        *gorm.DB
	logger    *log.Logger
	spec      string
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewBoostExpiryScheduler(
	boostRepo repository.BoostRepository,
	auditRepo repository.AuditLogRepository,
	publisher services.EventPublisher,
	db *gorm.DB,
	logger *log.Logger,
	spec string,
) *BoostExpiryScheduler {
	if logger == nil {
		logger = log.Default()
	}
	if publisher == nil {
		publisher = services.NewNoopEventPublisher()
	}
	if spec == "" {
		spec = "@every 1m"
	}
	return &BoostExpiryScheduler{
		boostRepo: boostRepo,
		auditRepo: auditRepo,
		publisher: publisher,
		db:        db,
		logger:    logger,
		spec:      spec,
		now:       utils.UTCNow,
	}
}

// Start registers the expiry job and returns a stop function that waits for a running job to finish
func (s *BoostExpiryScheduler) Start(parent context.Context) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil, ErrSchedulerAlreadyStarted
	}

	ctx, cancel := context.WithCancel(parent)

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.logger))),
	)
	if _, err := c.AddFunc(s.spec, func() {
		completed, err := s.RunOnce(ctx)
		if err != nil {
			s.logger.Printf("boost expiry: run failed: %v", err)
			return
		}
		if completed > 0 {
			s.logger.Printf("boost expiry: completed %d boosts", completed)
		}
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid boost expiry schedule %q: %w", s.spec, err)
	}

	c.Start()
	s.cron = c
	s.logger.Printf("boost expiry: scheduled with %q", s.spec)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-c.Stop().Done()

			s.mu.Lock()
			s.cron = nil
			s.mu.Unlock()
		})
	}, nil
}

// RunOnce completes every expired boost, writes one audit row per boost and
// publishes the events after the transaction commits. It returns how many boosts changed.
func (s *BoostExpiryScheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now()

	var completed []models.Boost
	run := func(txCtx context.Context) error {
		var err error
		completed, err = s.boostRepo.CompleteExpired(txCtx, now)
		if err != nil {
			return err
		}
		for i := range completed {
			if err := s.audit(txCtx, &completed[i]); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if s.db == nil {
		err = run(ctx)
	} else {
		err = repository.WithTransaction(ctx, s.db, run)
	}
	if err != nil {
		return 0, err
	}

	for i := range completed {
		boost := &completed[i]
		event := services.BoostEvent{
			Type:       models.AuditActionBoostExpired,
			BoostUUID:  boost.UUID,
			OwnerID:    boost.OwnerID,
			ToStatus:   string(boost.Status),
			OccurredAt: now,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Printf("boost expiry: failed to publish event for %s: %v", boost.UUID, err)
		}
	}

	return len(completed), nil
}

func (s *BoostExpiryScheduler) audit(ctx context.Context, boost *models.Boost) error {
	if s.auditRepo == nil {
		return nil
	}

	description := fmt.Sprintf("Boost %s completed after its end date %s", boost.UUID, boost.EndDate.Format(time.RFC3339))
	meta, _ := json.Marshal(map[string]any{
		"boost_uuid": boost.UUID,
		"end_date":   boost.EndDate,
		"source":     "boost_expiry_scheduler",
	})

	ownerID := boost.OwnerID
	return s.auditRepo.Save(ctx, &models.AuditLog{
		UserID:      &ownerID,
		Action:      models.AuditActionBoostExpired,
		Description: &description,
		Metadata:    meta,
		Success:     utils.ToPtr(true),
	})
}
