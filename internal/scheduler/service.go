package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/config"
	"github.com/hkmcoding/landie-next-sub000/internal/impact"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/hkmcoding/landie-next-sub000/internal/notifications"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Measurer is the part of impact.Service the scheduler drives
type Measurer interface {
	PendingPages(ctx context.Context) ([]models.PageRef, error)
	MeasurePendingImpacts(ctx context.Context, userID, landingPageID string) (*impact.MeasureBatchResult, error)
}

var _ Measurer = (*impact.Service)(nil)

// Service runs impact measurement on a cron schedule
type Service struct {
	config   *config.Config
	measurer Measurer
	notifier notifications.Notifier // optional
	cron     *cron.Cron
	now      func() time.Time
}

// NewService creates a new scheduler service. notifier may be nil.
func NewService(cfg *config.Config, measurer Measurer, notifier notifications.Notifier) (*Service, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.TimeZone, err)
	}
	return &Service{
		config:   cfg,
		measurer: measurer,
		notifier: notifier,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		now:      time.Now,
	}, nil
}

// Start registers the measurement job. An empty MEASURE_SCHEDULE leaves the
// scheduler idle.
func (s *Service) Start() error {
	if s.config.MeasureSchedule == "" {
		logrus.Info("MEASURE_SCHEDULE not set, scheduled measurement disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.config.MeasureSchedule, func() {
		logrus.Info("Starting scheduled impact measurement")
		if _, err := s.RunMeasurement(context.Background()); err != nil {
			logrus.Errorf("Scheduled impact measurement failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid MEASURE_SCHEDULE %q: %w", s.config.MeasureSchedule, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q (%s)", s.config.MeasureSchedule, s.config.TimeZone)
	return nil
}

// RunMeasurement measures every page with due implementations, then sends
// the digest. A page whose batch cannot start is recorded in the digest and
// does not stop the run.
func (s *Service) RunMeasurement(ctx context.Context) (*notifications.Digest, error) {
	pages, err := s.measurer.PendingPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages with pending measurements: %w", err)
	}

	digest := notifications.NewDigest(s.now())
	for _, ref := range pages {
		if err := ctx.Err(); err != nil {
			return digest, err
		}

		result, err := s.measurer.MeasurePendingImpacts(ctx, ref.UserID, ref.LandingPageID)
		if err != nil {
			logrus.Errorf("Measurement for page %s failed: %v", ref.LandingPageID, err)
			digest.Errors = append(digest.Errors, fmt.Sprintf("%s: %v", ref.LandingPageID, err))
			continue
		}
		digest.Add(ref, result)
	}

	logrus.WithFields(logrus.Fields{
		"pages":    len(pages),
		"measured": digest.Measured,
		"failed":   digest.Failed,
	}).Info("Scheduled impact measurement finished")

	if s.notifier != nil {
		if err := s.notifier.SendDigest(ctx, digest); err != nil {
			logrus.Errorf("Failed to send impact digest: %v", err)
		}
	}

	return digest, nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
