package ledger

import (
	"errors"
	"testing"
	"time"

	"tokokasbon/backend/internal/domain"
	"tokokasbon/backend/internal/store"
)

func testLoan(totalCents int64, paidCents int64, dueDate time.Time) domain.Loan {
	loan, err := NewLoan("loan-test", "cust-test", "sale-test", totalCents, paidCents, dueDate, "", time.Now().UTC())
	if err != nil {
		panic(err)
	}
	return loan
}

func TestNewLoanPartialSaleBalance(t *testing.T) {
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	loan := testLoan(100000, 20000, due)

	if loan.RemainingCents != 80000 {
		t.Fatalf("expected remaining 80000, got %d", loan.RemainingCents)
	}
	if loan.Status != domain.LoanStatusActive {
		t.Fatalf("expected active status, got %s", loan.Status)
	}
}

func TestNewLoanRejectsFullDownPayment(t *testing.T) {
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewLoan("loan-x", "cust-x", "sale-x", 100000, 100000, due, "", time.Now().UTC())
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestApplyPaymentMaintainsBalanceInvariant(t *testing.T) {
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	loan := testLoan(100000, 20000, due)

	for _, amount := range []int64{10000, 25000, 5000} {
		updated, err := ApplyPayment(loan, amount, time.Now().UTC())
		if err != nil {
			t.Fatalf("apply payment %d failed: %v", amount, err)
		}
		if updated.RemainingCents != updated.TotalCents-updated.PaidCents {
			t.Fatalf("balance invariant broken: total=%d paid=%d remaining=%d", updated.TotalCents, updated.PaidCents, updated.RemainingCents)
		}
		loan = updated
	}
}

func TestApplyPaymentSettlesLoan(t *testing.T) {
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	loan := testLoan(100000, 20000, due)

	updated, err := ApplyPayment(loan, 80000, time.Now().UTC())
	if err != nil {
		t.Fatalf("apply payment failed: %v", err)
	}
	if updated.RemainingCents != 0 {
		t.Fatalf("expected zero balance, got %d", updated.RemainingCents)
	}
	if updated.Status != domain.LoanStatusPaid {
		t.Fatalf("expected paid status, got %s", updated.Status)
	}
}

func TestApplyPaymentRejectsOverpayment(t *testing.T) {
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	loan := testLoan(100000, 20000, due)

	_, err := ApplyPayment(loan, 90000, time.Now().UTC())
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if loan.RemainingCents != 80000 {
		t.Fatalf("expected loan untouched at 80000, got %d", loan.RemainingCents)
	}
}

func TestApplyPaymentRejectsNonPositiveAmount(t *testing.T) {
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	loan := testLoan(50000, 0, due)

	for _, amount := range []int64{0, -100} {
		if _, err := ApplyPayment(loan, amount, time.Now().UTC()); !errors.Is(err, store.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount for %d, got %v", amount, err)
		}
	}
}

func TestPaidLoanAcceptsNoFurtherPayments(t *testing.T) {
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	loan := testLoan(50000, 0, due)

	paid, err := ApplyPayment(loan, 50000, time.Now().UTC())
	if err != nil {
		t.Fatalf("apply payment failed: %v", err)
	}
	if _, err := ApplyPayment(paid, 1, time.Now().UTC()); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected payment on settled loan to be rejected, got %v", err)
	}
}

func TestApplyPaymentRejectsDefaultedLoan(t *testing.T) {
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	loan := testLoan(50000, 0, due)
	loan.Status = domain.LoanStatusDefaulted

	if _, err := ApplyPayment(loan, 10000, time.Now().UTC()); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for defaulted loan, got %v", err)
	}
}

func TestDeriveStatus(t *testing.T) {
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	loan := testLoan(50000, 0, due)

	cases := []struct {
		name      string
		remaining int64
		status    string
		today     time.Time
		want      string
	}{
		{"before due", 50000, domain.LoanStatusActive, due.AddDate(0, 0, -3), domain.LoanStatusActive},
		{"on due day", 50000, domain.LoanStatusActive, due, domain.LoanStatusActive},
		{"past due", 50000, domain.LoanStatusActive, due.AddDate(0, 0, 1), domain.LoanStatusOverdue},
		{"settled", 0, domain.LoanStatusActive, due.AddDate(0, 0, 10), domain.LoanStatusPaid},
		{"defaulted stays defaulted", 50000, domain.LoanStatusDefaulted, due.AddDate(0, 0, -3), domain.LoanStatusDefaulted},
	}
	for _, tc := range cases {
		subject := loan
		subject.RemainingCents = tc.remaining
		subject.Status = tc.status
		if got := DeriveStatus(subject, tc.today); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestDaysUntilDue(t *testing.T) {
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	loan := testLoan(50000, 0, due)

	if got := DaysUntilDue(loan, time.Date(2026, 9, 12, 23, 59, 0, 0, time.UTC)); got != 3 {
		t.Fatalf("expected 3 days until due, got %d", got)
	}
	if got := DaysUntilDue(loan, due); got != 0 {
		t.Fatalf("expected 0 days on due date, got %d", got)
	}
	if got := DaysUntilDue(loan, due.AddDate(0, 0, 20)); got != -20 {
		t.Fatalf("expected -20 days past due, got %d", got)
	}
}
