// Package ledger holds the pure loan lifecycle rules: balance arithmetic and
// status derivation. Persistence is the caller's job.
package ledger

import (
	"fmt"
	"time"

	"tokokasbon/backend/internal/domain"
	"tokokasbon/backend/internal/store"
)

// NewLoan builds a loan for a sale. paidCents is the down payment already
// collected at the counter and may be zero.
func NewLoan(id string, customerID string, saleID string, totalCents int64, paidCents int64, dueDate time.Time, terms string, now time.Time) (domain.Loan, error) {
	if totalCents < 1 {
		return domain.Loan{}, fmt.Errorf("%w: loan total must be positive", store.ErrInvalidAmount)
	}
	if paidCents < 0 || paidCents >= totalCents {
		return domain.Loan{}, fmt.Errorf("%w: down payment must be below the loan total", store.ErrInvalidAmount)
	}

	loan := domain.Loan{
		ID:             id,
		CustomerID:     customerID,
		SaleID:         saleID,
		TotalCents:     totalCents,
		PaidCents:      paidCents,
		RemainingCents: totalCents - paidCents,
		DueDate:        Day(dueDate),
		Status:         domain.LoanStatusActive,
		AgreementTerms: terms,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return loan, nil
}

// ApplyPayment returns a copy of the loan with the payment applied. The
// amount must be positive and must not exceed the remaining balance;
// overpayments are rejected rather than clamped so no money is silently
// dropped. Defaulted loans accept no payments, keeping the paid-iff-zero
// invariant intact for the terminal state.
func ApplyPayment(loan domain.Loan, amountCents int64, at time.Time) (domain.Loan, error) {
	if loan.Status == domain.LoanStatusDefaulted {
		return domain.Loan{}, fmt.Errorf("%w: loan %s is defaulted", store.ErrInvalidRequest, loan.ID)
	}
	if amountCents <= 0 {
		return domain.Loan{}, fmt.Errorf("%w: payment must be positive", store.ErrInvalidAmount)
	}
	if amountCents > loan.RemainingCents {
		return domain.Loan{}, fmt.Errorf("%w: payment %d exceeds remaining balance %d", store.ErrInvalidAmount, amountCents, loan.RemainingCents)
	}

	updated := loan
	updated.PaidCents += amountCents
	updated.RemainingCents -= amountCents
	updated.UpdatedAt = at
	if updated.RemainingCents == 0 {
		updated.Status = domain.LoanStatusPaid
	} else {
		updated.Status = DeriveStatus(updated, at)
	}
	return updated, nil
}

// DeriveStatus computes the loan's current status for the given day. It
// never returns defaulted: that transition is an administrative decision,
// and an already-defaulted loan stays defaulted.
func DeriveStatus(loan domain.Loan, today time.Time) string {
	if loan.Status == domain.LoanStatusDefaulted {
		return domain.LoanStatusDefaulted
	}
	if loan.RemainingCents == 0 {
		return domain.LoanStatusPaid
	}
	if Day(today).After(Day(loan.DueDate)) {
		return domain.LoanStatusOverdue
	}
	return domain.LoanStatusActive
}

// DaysUntilDue is positive before the due date, zero on it, negative after.
func DaysUntilDue(loan domain.Loan, today time.Time) int {
	return int(Day(loan.DueDate).Sub(Day(today)).Hours() / 24)
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
