package domain

import "time"

type Product struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	Active     bool   `json:"active"`
}

type ProductCreateRequest struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	PriceCents   int64  `json:"price_cents"`
	InitialStock int    `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	RiskLevel string    `json:"risk_level"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
}

// PaymentHistoryEntry records whether a single repayment landed on or before
// the due date of its loan. The chronological list per customer feeds the
// risk classifier.
type PaymentHistoryEntry struct {
	CustomerID string    `json:"customer_id"`
	Date       time.Time `json:"date"`
	OnTime     bool      `json:"on_time"`
}

type CartItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type SaleLine struct {
	SKU            string `json:"sku"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Sale struct {
	ID               string     `json:"id"`
	CustomerID       string     `json:"customer_id"`
	IdempotencyKey   string     `json:"idempotency_key"`
	PaymentKind      string     `json:"payment_kind"`
	SubtotalCents    int64      `json:"subtotal_cents"`
	DownPaymentCents int64      `json:"down_payment_cents"`
	LoanID           string     `json:"loan_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	Items            []SaleLine `json:"items"`
}

type CheckoutRequest struct {
	CustomerID       string     `json:"customer_id"`
	IdempotencyKey   string     `json:"idempotency_key"`
	PaymentKind      string     `json:"payment_kind"`
	DownPaymentCents int64      `json:"down_payment_cents"`
	DueDate          string     `json:"due_date,omitempty"`
	AgreementTerms   string     `json:"agreement_terms,omitempty"`
	CartItems        []CartItem `json:"cart_items"`
}

type CheckoutResponse struct {
	SaleID           string `json:"sale_id"`
	CustomerID       string `json:"customer_id"`
	PaymentKind      string `json:"payment_kind"`
	SubtotalCents    int64  `json:"subtotal_cents"`
	DownPaymentCents int64  `json:"down_payment_cents"`
	LoanID           string `json:"loan_id,omitempty"`
	Duplicate        bool   `json:"duplicate"`
	CreatedAt        string `json:"created_at"`
}

// Loan is a customer's outstanding credit originating from a partial or
// deferred-payment sale. RemainingCents is always TotalCents - PaidCents and
// never negative. Version is the optimistic-concurrency token: every balance
// update carries the version it read and the store rejects stale writes.
type Loan struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customer_id"`
	SaleID         string    `json:"sale_id,omitempty"`
	TotalCents     int64     `json:"total_cents"`
	PaidCents      int64     `json:"paid_cents"`
	RemainingCents int64     `json:"remaining_cents"`
	DueDate        time.Time `json:"due_date"`
	Status         string    `json:"status"`
	AgreementTerms string    `json:"agreement_terms,omitempty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Payment struct {
	ID             string    `json:"id"`
	LoanID         string    `json:"loan_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	AmountCents    int64     `json:"amount_cents"`
	PaymentDate    time.Time `json:"payment_date"`
	Method         string    `json:"method"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type PaymentRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	AmountCents    int64  `json:"amount_cents"`
	Method         string `json:"method"`
	Notes          string `json:"notes,omitempty"`
	PaymentDate    string `json:"payment_date,omitempty"`
}

type PaymentResponse struct {
	Payment   Payment `json:"payment"`
	Loan      Loan    `json:"loan"`
	Duplicate bool    `json:"duplicate"`
}

type Reminder struct {
	ID                string     `json:"id"`
	LoanID            string     `json:"loan_id"`
	Type              string     `json:"reminder_type"`
	ScheduledDate     time.Time  `json:"scheduled_date"`
	MessageContent    string     `json:"message_content"`
	IsSent            bool       `json:"is_sent"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	ExternalMessageID string     `json:"external_message_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type ReminderRunResponse struct {
	RunDate           string `json:"run_date"`
	MessagesScheduled int    `json:"messages_scheduled"`
}

type DispatchResult struct {
	Dispatched int `json:"dispatched"`
	Failed     int `json:"failed"`
}

type MarkDefaultedRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type CustomerOutstanding struct {
	CustomerID       string `json:"customer_id"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	RiskLevel        string `json:"risk_level"`
	LoanCount        int    `json:"loan_count"`
	OutstandingCents int64  `json:"outstanding_cents"`
}

type LoanReport struct {
	GeneratedAt           string                `json:"generated_at"`
	ActiveCount           int                   `json:"active_count"`
	OverdueCount          int                   `json:"overdue_count"`
	PaidCount             int                   `json:"paid_count"`
	DefaultedCount        int                   `json:"defaulted_count"`
	TotalOutstandingCents int64                 `json:"total_outstanding_cents"`
	ByCustomer            []CustomerOutstanding `json:"by_customer"`
}

type DailySalesReport struct {
	Date              string `json:"date"`
	Sales             int64  `json:"sales"`
	GrossCents        int64  `json:"gross_cents"`
	CashCents         int64  `json:"cash_cents"`
	DownPaymentCents  int64  `json:"down_payment_cents"`
	CreditIssuedCents int64  `json:"credit_issued_cents"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	PaymentKindFull    = "full"
	PaymentKindPartial = "partial"
	PaymentKindLoan    = "loan"
)

const (
	LoanStatusActive    = "active"
	LoanStatusPaid      = "paid"
	LoanStatusOverdue   = "overdue"
	LoanStatusDefaulted = "defaulted"
)

const (
	ReminderBeforeDue  = "before_due"
	ReminderOnDue      = "on_due"
	ReminderOverdue    = "overdue"
	ReminderEscalation = "escalation"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)
