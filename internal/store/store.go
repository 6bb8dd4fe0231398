package store

import (
	"context"
	"errors"
	"time"

	"tokokasbon/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrVersionConflict   = errors.New("loan version conflict")
	ErrDuplicatePayment  = errors.New("payment already recorded")
	ErrDuplicateReminder = errors.New("reminder already scheduled")
)

// LoanStats aggregates a customer's ledger position for risk escalation:
// outstanding balance across active and overdue loans, and the average
// principal of every loan the customer has ever taken.
type LoanStats struct {
	OutstandingCents int64
	AverageLoanCents int64
	LoanCount        int
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductsBySKUs(ctx context.Context, skus []string) (map[string]domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, includeInactive bool) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeactivateCustomer(ctx context.Context, id string) error
	SetCustomerRiskLevel(ctx context.Context, id string, level string) error
	AppendPaymentHistory(ctx context.Context, entry domain.PaymentHistoryEntry) error
	GetPaymentHistory(ctx context.Context, customerID string) ([]domain.PaymentHistoryEntry, error)

	// CreateSale persists the sale, decrements stock, and when the sale
	// grants credit also persists the loan and the optional down payment,
	// all in one transaction.
	CreateSale(ctx context.Context, sale domain.Sale, loan *domain.Loan, downPayment *domain.Payment) (*domain.Sale, error)
	FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	// ListLoansByStatus filters loans by stored status. An empty statuses
	// slice means no filter: all loans are returned.
	ListLoansByStatus(ctx context.Context, statuses []string) ([]domain.Loan, error)
	ListLoansByCustomer(ctx context.Context, customerID string) ([]domain.Loan, error)
	// UpdateLoanBalance is a compare-and-swap: the write succeeds only when
	// the stored version equals expectedVersion, otherwise ErrVersionConflict.
	UpdateLoanBalance(ctx context.Context, id string, paidCents int64, remainingCents int64, status string, expectedVersion int64) (*domain.Loan, error)
	MarkLoanDefaulted(ctx context.Context, id string, at time.Time) (*domain.Loan, error)
	GetCustomerLoanStats(ctx context.Context, customerID string) (LoanStats, error)

	// ApplyLoanPayment persists the payment row and the loan balance update
	// as one atomic write. The balance part is the same compare-and-swap as
	// UpdateLoanBalance. A duplicate payment idempotency key fails the whole
	// operation with ErrDuplicatePayment and leaves the balance untouched.
	ApplyLoanPayment(ctx context.Context, payment domain.Payment, paidCents int64, remainingCents int64, status string, expectedVersion int64) (*domain.Loan, error)
	FindPaymentByIdempotency(ctx context.Context, key string) (*domain.Payment, error)
	ListPaymentsByLoan(ctx context.Context, loanID string) ([]domain.Payment, error)

	InsertReminder(ctx context.Context, reminder domain.Reminder) (*domain.Reminder, error)
	ListRemindersForLoanOnDate(ctx context.Context, loanID string, date time.Time) ([]domain.Reminder, error)
	ListRemindersByLoan(ctx context.Context, loanID string, limit int) ([]domain.Reminder, error)
	ListUnsentReminders(ctx context.Context, limit int) ([]domain.Reminder, error)
	HasReminderOfType(ctx context.Context, loanID string, reminderType string) (bool, error)
	MarkReminderSent(ctx context.Context, id string, externalMessageID string, sentAt time.Time) error

	GetDailySalesReport(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
