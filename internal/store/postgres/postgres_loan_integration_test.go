package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"tokokasbon/backend/internal/domain"
	"tokokasbon/backend/internal/store"
)

func TestUpdateLoanBalanceRejectsStaleVersion(t *testing.T) {
	databaseURL := os.Getenv("TOKOKASBON_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TOKOKASBON_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	customerID := fmt.Sprintf("cust-cas-it-%d", stamp)
	loanID := fmt.Sprintf("loan-cas-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, loanID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, risk_level, active, created_at, updated_at)
		VALUES ($1, 'Pelanggan CAS IT', '+628199999999', 'low', true, now(), now())
	`, customerID); err != nil {
		t.Fatalf("insert customer: %v", err)
	}

	dueDate := time.Now().UTC().AddDate(0, 0, 14)
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (
			id, customer_id, sale_id, total_cents, paid_cents, remaining_cents,
			due_date, status, agreement_terms, version, created_at, updated_at
		)
		VALUES ($1, $2, '', 500000, 0, 500000, $3, 'active', '', 1, now(), now())
	`, loanID, customerID, dueDate); err != nil {
		t.Fatalf("insert loan: %v", err)
	}

	updated, err := s.UpdateLoanBalance(ctx, loanID, 200000, 300000, domain.LoanStatusActive, 1)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if updated.Version != 2 || updated.RemainingCents != 300000 {
		t.Fatalf("expected version 2 with remaining 300000, got version %d remaining %d", updated.Version, updated.RemainingCents)
	}

	_, err = s.UpdateLoanBalance(ctx, loanID, 500000, 0, domain.LoanStatusPaid, 1)
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected version conflict for stale write, got %v", err)
	}

	settled, err := s.UpdateLoanBalance(ctx, loanID, 500000, 0, domain.LoanStatusPaid, updated.Version)
	if err != nil {
		t.Fatalf("settle with fresh version: %v", err)
	}
	if settled.Status != domain.LoanStatusPaid || settled.RemainingCents != 0 {
		t.Fatalf("expected settled loan, got status %s remaining %d", settled.Status, settled.RemainingCents)
	}

	// Empty statuses means no filter, so a settled loan still shows up.
	all, err := s.ListLoansByStatus(ctx, nil)
	if err != nil {
		t.Fatalf("list all loans: %v", err)
	}
	found := false
	for _, loan := range all {
		if loan.ID == loanID {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected unfiltered list to include loan %s", loanID)
	}

	active, err := s.ListLoansByStatus(ctx, []string{domain.LoanStatusActive})
	if err != nil {
		t.Fatalf("list active loans: %v", err)
	}
	for _, loan := range active {
		if loan.ID == loanID {
			t.Fatalf("settled loan %s must not match the active filter", loanID)
		}
	}
}
