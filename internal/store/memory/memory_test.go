package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tokokasbon/backend/internal/domain"
	"tokokasbon/backend/internal/ledger"
	"tokokasbon/backend/internal/store"
)

func seedLoan(t *testing.T, s *Store, suffix string, dueOffsetDays int) domain.Loan {
	t.Helper()
	ctx := context.Background()

	dueDate := time.Now().UTC().AddDate(0, 0, dueOffsetDays)
	loanID := fmt.Sprintf("loan-%s-%s", t.Name(), suffix)
	saleID := fmt.Sprintf("sale-%s-%s", t.Name(), suffix)

	loan, err := ledger.NewLoan(loanID, "cust-seed-budi", saleID, 350000, 0, dueDate, "", time.Now().UTC())
	if err != nil {
		t.Fatalf("new loan: %v", err)
	}
	sale := domain.Sale{
		ID:             saleID,
		CustomerID:     "cust-seed-budi",
		IdempotencyKey: "idem-" + saleID,
		PaymentKind:    domain.PaymentKindLoan,
		SubtotalCents:  350000,
		LoanID:         loanID,
		CreatedAt:      time.Now().UTC(),
		Items:          []domain.SaleLine{{SKU: "SKU-MIE-01", Qty: 1, UnitPriceCents: 350000}},
	}
	if _, err := s.CreateSale(ctx, sale, &loan, nil); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	return loan
}

func TestListLoansByStatusEmptyMeansAllLoans(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	active := seedLoan(t, s, "a", 14)
	settled := seedLoan(t, s, "b", 14)
	if _, err := s.UpdateLoanBalance(ctx, settled.ID, settled.TotalCents, 0, domain.LoanStatusPaid, settled.Version); err != nil {
		t.Fatalf("settle loan: %v", err)
	}

	all, err := s.ListLoansByStatus(ctx, nil)
	if err != nil {
		t.Fatalf("list all loans: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("empty statuses must return every loan, got %d", len(all))
	}

	open, err := s.ListLoansByStatus(ctx, []string{domain.LoanStatusActive})
	if err != nil {
		t.Fatalf("list active loans: %v", err)
	}
	if len(open) != 1 || open[0].ID != active.ID {
		t.Fatalf("expected only the active loan, got %+v", open)
	}
}

func TestApplyLoanPaymentIsAtomic(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	loan := seedLoan(t, s, "a", 14)

	payment := domain.Payment{
		ID:             "pay-1",
		LoanID:         loan.ID,
		IdempotencyKey: "idem-pay-1",
		AmountCents:    100000,
		PaymentDate:    time.Now().UTC(),
		Method:         "cash",
		CreatedAt:      time.Now().UTC(),
	}
	updated, err := s.ApplyLoanPayment(ctx, payment, 100000, 250000, domain.LoanStatusActive, loan.Version)
	if err != nil {
		t.Fatalf("apply payment: %v", err)
	}
	if updated.Version != loan.Version+1 || updated.RemainingCents != 250000 {
		t.Fatalf("expected version bump with remaining 250000, got version %d remaining %d", updated.Version, updated.RemainingCents)
	}

	// Same idempotency key again: the whole write must fail and leave both
	// the balance and the payment list as the first write made them.
	rival := payment
	rival.ID = "pay-2"
	_, err = s.ApplyLoanPayment(ctx, rival, 200000, 150000, domain.LoanStatusActive, updated.Version)
	if !errors.Is(err, store.ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment, got %v", err)
	}

	current, err := s.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if current.RemainingCents != 250000 || current.Version != updated.Version {
		t.Fatalf("duplicate must not touch the balance, got remaining %d version %d", current.RemainingCents, current.Version)
	}
	payments, err := s.ListPaymentsByLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 || payments[0].ID != "pay-1" {
		t.Fatalf("expected only the first payment row, got %+v", payments)
	}
}

func TestApplyLoanPaymentRejectsStaleVersion(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	loan := seedLoan(t, s, "a", 14)

	payment := domain.Payment{
		ID:          "pay-stale",
		LoanID:      loan.ID,
		AmountCents: 100000,
		PaymentDate: time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.ApplyLoanPayment(ctx, payment, 100000, 250000, domain.LoanStatusActive, loan.Version+7)
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	payments, err := s.ListPaymentsByLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("stale write must not leave a payment row, got %+v", payments)
	}
}
