// Package reminder implements the daily scan that turns due and overdue
// loans into queued reminder messages, and the dispatch pass that pushes
// queued messages through a notify.Notifier.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tokokasbon/backend/internal/domain"
	"tokokasbon/backend/internal/ledger"
	"tokokasbon/backend/internal/notify"
	"tokokasbon/backend/internal/store"
	"tokokasbon/backend/internal/xid"
)

type Scheduler struct {
	repo           store.Repository
	leadDays       int
	escalationDays int
}

func NewScheduler(repo store.Repository, leadDays int, escalationDays int) *Scheduler {
	if leadDays < 1 {
		leadDays = 3
	}
	if escalationDays < 1 {
		escalationDays = 14
	}
	return &Scheduler{
		repo:           repo,
		leadDays:       leadDays,
		escalationDays: escalationDays,
	}
}

// Run scans all open loans and inserts today's reminder rows. A failure to
// fetch the loan set aborts the run; a failure on a single loan is logged
// and skipped so the rest of the batch still goes out. Re-running on the
// same day is a no-op for loans already covered: at most one reminder per
// loan, type and calendar day.
func (s *Scheduler) Run(ctx context.Context, today time.Time) (int, error) {
	today = ledger.Day(today)

	loans, err := s.repo.ListLoansByStatus(ctx, []string{domain.LoanStatusActive, domain.LoanStatusOverdue})
	if err != nil {
		return 0, fmt.Errorf("reminder run: list loans: %w", err)
	}

	scheduled := 0
	for _, loan := range loans {
		created, err := s.scheduleLoan(ctx, loan, today)
		if err != nil {
			log.Printf("[reminder] WARN: skipping loan %s: %v", loan.ID, err)
			continue
		}
		if created {
			scheduled++
		}
	}
	return scheduled, nil
}

func (s *Scheduler) scheduleLoan(ctx context.Context, loan domain.Loan, today time.Time) (bool, error) {
	status := ledger.DeriveStatus(loan, today)
	if status != domain.LoanStatusActive && status != domain.LoanStatusOverdue {
		return false, nil
	}

	reminderType, ok, err := s.classify(ctx, loan, today)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	existing, err := s.repo.ListRemindersForLoanOnDate(ctx, loan.ID, today)
	if err != nil {
		return false, err
	}
	for _, r := range existing {
		if r.Type == reminderType {
			return false, nil
		}
	}

	customer, err := s.repo.GetCustomer(ctx, loan.CustomerID)
	if err != nil {
		return false, fmt.Errorf("customer %s: %w", loan.CustomerID, err)
	}

	_, err = s.repo.InsertReminder(ctx, domain.Reminder{
		ID:             xid.New("rem"),
		LoanID:         loan.ID,
		Type:           reminderType,
		ScheduledDate:  today,
		MessageContent: ComposeMessage(*customer, loan, reminderType),
		IsSent:         false,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		// A concurrent run won the insert; the reminder exists, nothing lost.
		if errors.Is(err, store.ErrDuplicateReminder) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// classify maps days-until-due onto a reminder type. Outside the recognized
// windows no reminder is produced.
func (s *Scheduler) classify(ctx context.Context, loan domain.Loan, today time.Time) (string, bool, error) {
	delta := ledger.DaysUntilDue(loan, today)

	switch {
	case delta == s.leadDays:
		return domain.ReminderBeforeDue, true, nil
	case delta == 0:
		return domain.ReminderOnDue, true, nil
	case delta < -s.escalationDays:
		escalated, err := s.repo.HasReminderOfType(ctx, loan.ID, domain.ReminderEscalation)
		if err != nil {
			return "", false, err
		}
		if !escalated {
			return domain.ReminderEscalation, true, nil
		}
		return domain.ReminderOverdue, true, nil
	case delta < 0:
		return domain.ReminderOverdue, true, nil
	default:
		return "", false, nil
	}
}

// Dispatch pushes queued reminders through the notifier and marks the ones
// that went out. A delivery failure leaves the row unsent for the next run.
func (s *Scheduler) Dispatch(ctx context.Context, notifier notify.Notifier, limit int) (domain.DispatchResult, error) {
	if limit < 1 {
		limit = 200
	}

	pending, err := s.repo.ListUnsentReminders(ctx, limit)
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("reminder dispatch: list unsent: %w", err)
	}

	result := domain.DispatchResult{}
	for _, rem := range pending {
		loan, err := s.repo.GetLoan(ctx, rem.LoanID)
		if err != nil {
			log.Printf("[reminder] WARN: reminder %s references loan %s: %v", rem.ID, rem.LoanID, err)
			result.Failed++
			continue
		}
		customer, err := s.repo.GetCustomer(ctx, loan.CustomerID)
		if err != nil {
			log.Printf("[reminder] WARN: reminder %s references customer %s: %v", rem.ID, loan.CustomerID, err)
			result.Failed++
			continue
		}

		delivery, err := notifier.Send(ctx, notify.Message{
			Phone: customer.Phone,
			Title: messageTitle(rem.Type),
			Body:  rem.MessageContent,
		})
		if err != nil {
			log.Printf("[reminder] WARN: send failed for reminder %s: %v", rem.ID, err)
			result.Failed++
			continue
		}

		if err := s.repo.MarkReminderSent(ctx, rem.ID, delivery.ExternalMessageID, time.Now().UTC()); err != nil {
			// Message is already out; a retry would double-send, so only log.
			log.Printf("[reminder] WARN: failed to mark reminder %s sent: %v", rem.ID, err)
		}
		result.Dispatched++
	}
	return result, nil
}
