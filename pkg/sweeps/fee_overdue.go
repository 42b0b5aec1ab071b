package sweeps

import (
	"context"
	"fmt"
	"time"

	"github.com/campuskit/bursar/pkg/fees"
	"github.com/campuskit/bursar/pkg/notify"
	"github.com/campuskit/bursar/pkg/observability"
)

// FeeOverdueSweeper runs the daily pass over the student fee ledger:
// flip unpaid fees past their due date to overdue, then remind the
// students behind them. The reminder cooldown keeps a fee from nagging
// on every run.
type FeeOverdueSweeper struct {
	fees     fees.Service
	notifier notify.Notifier
	metrics  *observability.Metrics
	logger   *observability.Logger

	// ReminderCooldown is the minimum gap between reminders for one fee
	ReminderCooldown time.Duration

	now func() time.Time
}

// NewFeeOverdueSweeper creates a FeeOverdueSweeper. metrics may be nil.
func NewFeeOverdueSweeper(
	feeService fees.Service,
	notifier notify.Notifier,
	metrics *observability.Metrics,
	logger *observability.Logger,
	reminderCooldown time.Duration,
) *FeeOverdueSweeper {
	return &FeeOverdueSweeper{
		fees:             feeService,
		notifier:         notifier,
		metrics:          metrics,
		logger:           logger,
		ReminderCooldown: reminderCooldown,
		now:              time.Now,
	}
}

// FeeResult summarizes one fee overdue sweep run
type FeeResult struct {
	MarkedOverdue int64
	Reminded      int
	ItemFailures  int
}

const feeSweepName = "fee_overdue"

// Run executes one fee overdue sweep
func (s *FeeOverdueSweeper) Run(ctx context.Context) (*FeeResult, error) {
	started := s.now()
	now := started.UTC()
	result := &FeeResult{}

	defer func() {
		if s.metrics != nil {
			s.metrics.SweepDuration.WithLabelValues(feeSweepName).Observe(time.Since(started).Seconds())
		}
	}()

	marked, err := s.fees.MarkOverdue(ctx, now)
	if err != nil {
		s.countRun("error")
		return nil, fmt.Errorf("failed to mark fees overdue: %w", err)
	}
	result.MarkedOverdue = marked

	candidates, err := s.fees.ListReminderCandidates(ctx, now, s.ReminderCooldown)
	if err != nil {
		s.countRun("error")
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}

	for _, fee := range candidates {
		if err := s.remind(ctx, fee, now); err != nil {
			result.ItemFailures++
			if s.metrics != nil {
				s.metrics.SweepItemFailures.WithLabelValues(feeSweepName).Inc()
			}
			s.logger.WithError(err).WithTenant(fee.TenantID).
				WithField("fee_id", fee.ID).
				Warn("fee reminder failed")
			continue
		}
		result.Reminded++
	}

	s.countRun("ok")
	s.logger.WithFields(map[string]interface{}{
		"marked_overdue": result.MarkedOverdue,
		"reminded":       result.Reminded,
		"item_failures":  result.ItemFailures,
	}).Info("fee overdue sweep finished")

	return result, nil
}

func (s *FeeOverdueSweeper) remind(ctx context.Context, fee *fees.StudentFee, now time.Time) error {
	err := s.notifier.Notify(ctx, notify.Notification{
		Title:         "Fee payment overdue",
		Body:          fmt.Sprintf("%s is overdue: %d cents outstanding.", fee.Description, fee.Outstanding()),
		ReferenceType: "student_fee",
		ReferenceID:   fee.ID,
		Priority:      notify.PriorityHigh,
	})
	if err != nil {
		return err
	}

	// only stamp after a delivered reminder so a failed send retries
	// on the next run
	return s.fees.MarkNotified(ctx, fee.ID, now)
}

func (s *FeeOverdueSweeper) countRun(status string) {
	if s.metrics != nil {
		s.metrics.SweepRunsTotal.WithLabelValues(feeSweepName, status).Inc()
	}
}
