package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"parksync/internal/auth"
	"parksync/internal/db"
	"parksync/internal/metrics"
	"parksync/internal/repository"
)

const (
	backfillBatchSize = 200
	jobTimeout        = 5 * time.Minute
)

type JobService struct {
	store    repository.Store
	notifier Notifier
	dueAfter time.Duration
	log      logrus.FieldLogger
	now      Clock
	cron     *cron.Cron
}

func NewJobService(store repository.Store, notifier Notifier, dueAfter time.Duration, log logrus.FieldLogger, now Clock) *JobService {
	return &JobService{
		store:    store,
		notifier: orNotifier(notifier),
		dueAfter: dueAfter,
		log:      orLogger(log),
		now:      orClock(now),
	}
}

// BackfillSnapshots captures snapshots for reservations that still resolve
// their spot but were stored without one. It returns how many were updated.
func (s *JobService) BackfillSnapshots(ctx context.Context) (int, error) {
	if err := auth.Authorize(auth.System, auth.OpSnapshot, auth.Resource{}); err != nil {
		return 0, err
	}

	total := 0
	for {
		updated := 0
		err := s.store.WithTx(ctx, func(tx repository.Tx) error {
			batch, err := tx.Reservations().ListMissingSnapshot(ctx, backfillBatchSize)
			if err != nil {
				return err
			}
			for i := range batch {
				changed, err := snapshotReservation(ctx, tx, &batch[i])
				if err != nil {
					return fmt.Errorf("snapshot reservation %d: %w", batch[i].ID, err)
				}
				if changed {
					updated++
				}
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("cron job: snapshot backfill: %w", err)
		}
		total += updated
		if updated < backfillBatchSize {
			break
		}
	}

	if total > 0 {
		s.log.WithField("reservations", total).Info("snapshot backfill completed")
	}
	return total, nil
}

type dueReminder struct {
	user    db.User
	res     db.Reservation
	payment db.Payment
}

// SendDueReminders notifies the owners of payments left unpaid for longer than
// the configured grace period. It returns how many reminders were queued.
func (s *JobService) SendDueReminders(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.dueAfter)

	var reminders []dueReminder
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		payments, err := tx.Payments().ListUnpaidBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, p := range payments {
			res, err := tx.Reservations().GetByID(ctx, p.ReservationID)
			if err != nil {
				return fmt.Errorf("reservation %d: %w", p.ReservationID, err)
			}
			user, err := tx.Users().GetByID(ctx, res.UserID)
			if errors.Is(err, repository.ErrNotFound) {
				s.log.WithField("payment_id", p.ID).Warn("skipping reminder: user not found")
				continue
			}
			if err != nil {
				return fmt.Errorf("user %d: %w", res.UserID, err)
			}
			reminders = append(reminders, dueReminder{user: *user, res: *res, payment: p})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cron job: due reminders: %w", err)
	}

	for _, r := range reminders {
		s.notifier.PaymentDue(r.user, r.res, r.payment)
	}
	if len(reminders) > 0 {
		s.log.WithField("reminders", len(reminders)).Info("due payment reminders queued")
	}
	return len(reminders), nil
}

// Start schedules both jobs on their cron specs.
func (s *JobService) Start(backfillSpec, reminderSpec string) error {
	c := cron.New()
	if _, err := c.AddFunc(backfillSpec, s.run("snapshot_backfill", s.BackfillSnapshots)); err != nil {
		return fmt.Errorf("schedule snapshot backfill %q: %w", backfillSpec, err)
	}
	if _, err := c.AddFunc(reminderSpec, s.run("due_reminders", s.SendDueReminders)); err != nil {
		return fmt.Errorf("schedule due reminders %q: %w", reminderSpec, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop stops scheduling and waits for running jobs up to ctx's deadline.
func (s *JobService) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *JobService) run(name string, job func(ctx context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		n, err := job(ctx)
		metrics.JobRun(name, err)
		if err != nil {
			s.log.WithField("job", name).Errorf("job failed: %v", err)
			return
		}
		s.log.WithFields(logrus.Fields{"job": name, "processed": n}).Debug("job finished")
	}
}
