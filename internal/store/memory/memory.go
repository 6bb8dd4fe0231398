package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokokasbon/backend/internal/domain"
	"tokokasbon/backend/internal/store"
	"tokokasbon/backend/internal/xid"
)

type Store struct {
	mu                sync.RWMutex
	products          map[string]domain.Product
	customersByID     map[string]domain.Customer
	historyByCustomer map[string][]domain.PaymentHistoryEntry
	salesByID         map[string]*domain.Sale
	salesByIdem       map[string]*domain.Sale
	loansByID         map[string]*domain.Loan
	paymentsByID      map[string]domain.Payment
	paymentsByIdem    map[string]string
	remindersByID     map[string]domain.Reminder
	remindersByLoan   map[string][]string
	auditLogs         []domain.AuditLog
	usersByUsername   map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; when
// unset, hardcoded dev defaults are used with a warning. These are never
// used in production (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{SKU: "SKU-BERAS-01", Name: "Beras 5kg", Category: "grocery", PriceCents: 6800000, Stock: 40, Active: true},
		{SKU: "SKU-MINYAK-01", Name: "Minyak Goreng 2L", Category: "grocery", PriceCents: 3600000, Stock: 60, Active: true},
		{SKU: "SKU-GULA-01", Name: "Gula 1kg", Category: "grocery", PriceCents: 1740000, Stock: 80, Active: true},
		{SKU: "SKU-MIE-01", Name: "Mie Goreng Instan", Category: "grocery", PriceCents: 350000, Stock: 200, Active: true},
		{SKU: "SKU-KOPI-01", Name: "Kopi Sachet", Category: "beverage", PriceCents: 260000, Stock: 150, Active: true},
		{SKU: "SKU-SUSU-01", Name: "Susu UHT 1L", Category: "dairy", PriceCents: 1890000, Stock: 50, Active: true},
		{SKU: "SKU-SABUN-01", Name: "Sabun Mandi", Category: "household", PriceCents: 740000, Stock: 90, Active: true},
		{SKU: "SKU-GAS-01", Name: "Gas LPG 3kg", Category: "household", PriceCents: 2200000, Stock: 30, Active: true},
	}

	customers := []domain.Customer{
		{ID: "cust-seed-budi", Name: "Budi Santoso", Phone: "+628111111111", RiskLevel: domain.RiskLow, Active: true, CreatedAt: time.Now().UTC()},
		{ID: "cust-seed-sari", Name: "Sari Wulandari", Phone: "+628122222222", RiskLevel: domain.RiskLow, Active: true, CreatedAt: time.Now().UTC()},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.SKU] = p
	}
	customerMap := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		customerMap[c.ID] = c
	}

	return &Store{
		products:          productMap,
		customersByID:     customerMap,
		historyByCustomer: make(map[string][]domain.PaymentHistoryEntry),
		salesByID:         make(map[string]*domain.Sale),
		salesByIdem:       make(map[string]*domain.Sale),
		loansByID:         make(map[string]*domain.Loan),
		paymentsByID:      make(map[string]domain.Payment),
		paymentsByIdem:    make(map[string]string),
		remindersByID:     make(map[string]domain.Reminder),
		remindersByLoan:   make(map[string][]string),
		auditLogs:         make([]domain.AuditLog, 0, 128),
		usersByUsername:   seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.products[product.SKU]; exists {
		return nil, store.ErrInvalidRequest
	}

	product.Active = true
	s.products[product.SKU] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[sku]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.products[product.SKU]; !exists {
		return nil, store.ErrNotFound
	}

	s.products[product.SKU] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(_ context.Context, skus []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(skus))
	for _, sku := range skus {
		if product, exists := s.products[sku]; exists && product.Active {
			result[sku] = product
		}
	}
	return result, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" || customer.Name == "" || customer.Phone == "" {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.customersByID[customer.ID]; exists {
		return nil, store.ErrInvalidRequest
	}

	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCustomers(_ context.Context, includeInactive bool) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		if !c.Active && !includeInactive {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" || customer.Name == "" || customer.Phone == "" {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.customersByID[customer.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.customersByID[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) DeactivateCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return store.ErrNotFound
	}
	customer.Active = false
	s.customersByID[id] = customer
	return nil
}

func (s *Store) SetCustomerRiskLevel(_ context.Context, id string, level string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return store.ErrNotFound
	}
	customer.RiskLevel = level
	s.customersByID[id] = customer
	return nil
}

func (s *Store) AppendPaymentHistory(_ context.Context, entry domain.PaymentHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CustomerID == "" {
		return store.ErrInvalidRequest
	}
	s.historyByCustomer[entry.CustomerID] = append(s.historyByCustomer[entry.CustomerID], entry)
	return nil
}

func (s *Store) GetPaymentHistory(_ context.Context, customerID string) ([]domain.PaymentHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.historyByCustomer[customerID]
	result := make([]domain.PaymentHistoryEntry, len(history))
	copy(result, history)
	return result, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, loan *domain.Loan, downPayment *domain.Payment) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" || sale.CustomerID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.salesByIdem[sale.IdempotencyKey]; exists {
		return nil, store.ErrInvalidRequest
	}

	// Validate stock for the whole cart before mutating anything.
	for _, line := range sale.Items {
		product, exists := s.products[line.SKU]
		if !exists || !product.Active {
			return nil, store.ErrInvalidRequest
		}
		if product.Stock < line.Qty {
			return nil, store.ErrInsufficientStock
		}
	}
	for _, line := range sale.Items {
		product := s.products[line.SKU]
		product.Stock -= line.Qty
		s.products[line.SKU] = product
	}

	stored := sale
	s.salesByID[sale.ID] = &stored
	if sale.IdempotencyKey != "" {
		s.salesByIdem[sale.IdempotencyKey] = &stored
	}

	if loan != nil {
		storedLoan := *loan
		s.loansByID[loan.ID] = &storedLoan
	}
	if downPayment != nil {
		s.paymentsByID[downPayment.ID] = *downPayment
		if downPayment.IdempotencyKey != "" {
			s.paymentsByIdem[downPayment.IdempotencyKey] = downPayment.ID
		}
	}

	return &stored, nil
}

func (s *Store) FindSaleByIdempotency(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByIdem[key]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := *sale
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		sales = append(sales, *sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return sales, nil
}

func (s *Store) GetLoan(_ context.Context, id string) (*domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, exists := s.loansByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyLoan := *loan
	return &copyLoan, nil
}

func (s *Store) ListLoansByStatus(_ context.Context, statuses []string) ([]domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	loans := make([]domain.Loan, 0, len(s.loansByID))
	for _, loan := range s.loansByID {
		if _, ok := wanted[loan.Status]; !ok && len(statuses) > 0 {
			continue
		}
		loans = append(loans, *loan)
	}
	slices.SortFunc(loans, func(a, b domain.Loan) int {
		if a.DueDate.Equal(b.DueDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.DueDate.Before(b.DueDate) {
			return -1
		}
		return 1
	})
	return loans, nil
}

func (s *Store) ListLoansByCustomer(_ context.Context, customerID string) ([]domain.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loans := make([]domain.Loan, 0, 8)
	for _, loan := range s.loansByID {
		if loan.CustomerID != customerID {
			continue
		}
		loans = append(loans, *loan)
	}
	slices.SortFunc(loans, func(a, b domain.Loan) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return loans, nil
}

func (s *Store) UpdateLoanBalance(_ context.Context, id string, paidCents int64, remainingCents int64, status string, expectedVersion int64) (*domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, exists := s.loansByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if loan.Version != expectedVersion {
		return nil, store.ErrVersionConflict
	}
	if remainingCents < 0 || paidCents < 0 {
		return nil, store.ErrInvalidAmount
	}

	loan.PaidCents = paidCents
	loan.RemainingCents = remainingCents
	loan.Status = status
	loan.Version++
	loan.UpdatedAt = time.Now().UTC()
	copyLoan := *loan
	return &copyLoan, nil
}

func (s *Store) MarkLoanDefaulted(_ context.Context, id string, at time.Time) (*domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, exists := s.loansByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if loan.Status == domain.LoanStatusPaid || loan.Status == domain.LoanStatusDefaulted {
		return nil, store.ErrInvalidRequest
	}

	loan.Status = domain.LoanStatusDefaulted
	loan.Version++
	loan.UpdatedAt = at
	copyLoan := *loan
	return &copyLoan, nil
}

func (s *Store) GetCustomerLoanStats(_ context.Context, customerID string) (store.LoanStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := store.LoanStats{}
	totalPrincipal := int64(0)
	for _, loan := range s.loansByID {
		if loan.CustomerID != customerID {
			continue
		}
		stats.LoanCount++
		totalPrincipal += loan.TotalCents
		if loan.Status == domain.LoanStatusActive || loan.Status == domain.LoanStatusOverdue {
			stats.OutstandingCents += loan.RemainingCents
		}
	}
	if stats.LoanCount > 0 {
		stats.AverageLoanCents = totalPrincipal / int64(stats.LoanCount)
	}
	return stats, nil
}

func (s *Store) ApplyLoanPayment(_ context.Context, payment domain.Payment, paidCents int64, remainingCents int64, status string, expectedVersion int64) (*domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment.ID == "" || payment.LoanID == "" || payment.AmountCents < 1 {
		return nil, store.ErrInvalidAmount
	}
	if paidCents < 0 || remainingCents < 0 {
		return nil, store.ErrInvalidAmount
	}
	loan, exists := s.loansByID[payment.LoanID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if payment.IdempotencyKey != "" {
		if _, dup := s.paymentsByIdem[payment.IdempotencyKey]; dup {
			return nil, store.ErrDuplicatePayment
		}
	}
	if loan.Version != expectedVersion {
		return nil, store.ErrVersionConflict
	}

	loan.PaidCents = paidCents
	loan.RemainingCents = remainingCents
	loan.Status = status
	loan.Version++
	loan.UpdatedAt = time.Now().UTC()

	s.paymentsByID[payment.ID] = payment
	if payment.IdempotencyKey != "" {
		s.paymentsByIdem[payment.IdempotencyKey] = payment.ID
	}

	copyLoan := *loan
	return &copyLoan, nil
}

func (s *Store) FindPaymentByIdempotency(_ context.Context, key string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.paymentsByIdem[key]
	if !exists {
		return nil, store.ErrNotFound
	}
	payment := s.paymentsByID[id]
	return &payment, nil
}

func (s *Store) ListPaymentsByLoan(_ context.Context, loanID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.Payment, 0, 8)
	for _, payment := range s.paymentsByID {
		if payment.LoanID != loanID {
			continue
		}
		payments = append(payments, payment)
	}
	slices.SortFunc(payments, func(a, b domain.Payment) int {
		if a.PaymentDate.Equal(b.PaymentDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.PaymentDate.Before(b.PaymentDate) {
			return -1
		}
		return 1
	})
	return payments, nil
}

func (s *Store) InsertReminder(_ context.Context, reminder domain.Reminder) (*domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reminder.ID == "" || reminder.LoanID == "" || reminder.Type == "" {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.loansByID[reminder.LoanID]; !exists {
		return nil, store.ErrNotFound
	}

	day := dayOf(reminder.ScheduledDate)
	for _, id := range s.remindersByLoan[reminder.LoanID] {
		existing := s.remindersByID[id]
		if existing.Type == reminder.Type && dayOf(existing.ScheduledDate).Equal(day) {
			return nil, store.ErrDuplicateReminder
		}
	}

	s.remindersByID[reminder.ID] = reminder
	s.remindersByLoan[reminder.LoanID] = append(s.remindersByLoan[reminder.LoanID], reminder.ID)
	created := reminder
	return &created, nil
}

func (s *Store) ListRemindersForLoanOnDate(_ context.Context, loanID string, date time.Time) ([]domain.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := dayOf(date)
	reminders := make([]domain.Reminder, 0, 4)
	for _, id := range s.remindersByLoan[loanID] {
		reminder := s.remindersByID[id]
		if dayOf(reminder.ScheduledDate).Equal(day) {
			reminders = append(reminders, reminder)
		}
	}
	return reminders, nil
}

func (s *Store) ListRemindersByLoan(_ context.Context, loanID string, limit int) ([]domain.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	reminders := make([]domain.Reminder, 0, len(s.remindersByLoan[loanID]))
	for _, id := range s.remindersByLoan[loanID] {
		reminders = append(reminders, s.remindersByID[id])
	}
	slices.SortFunc(reminders, func(a, b domain.Reminder) int {
		if a.ScheduledDate.Equal(b.ScheduledDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.ScheduledDate.After(b.ScheduledDate) {
			return -1
		}
		return 1
	})
	if len(reminders) > limit {
		reminders = reminders[:limit]
	}
	return reminders, nil
}

func (s *Store) ListUnsentReminders(_ context.Context, limit int) ([]domain.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	reminders := make([]domain.Reminder, 0, 32)
	for _, reminder := range s.remindersByID {
		if reminder.IsSent {
			continue
		}
		reminders = append(reminders, reminder)
	}
	slices.SortFunc(reminders, func(a, b domain.Reminder) int {
		if a.ScheduledDate.Equal(b.ScheduledDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.ScheduledDate.Before(b.ScheduledDate) {
			return -1
		}
		return 1
	})
	if len(reminders) > limit {
		reminders = reminders[:limit]
	}
	return reminders, nil
}

func (s *Store) HasReminderOfType(_ context.Context, loanID string, reminderType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.remindersByLoan[loanID] {
		if s.remindersByID[id].Type == reminderType {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkReminderSent(_ context.Context, id string, externalMessageID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, exists := s.remindersByID[id]
	if !exists {
		return store.ErrNotFound
	}
	reminder.IsSent = true
	reminder.SentAt = &sentAt
	reminder.ExternalMessageID = externalMessageID
	s.remindersByID[id] = reminder
	return nil
}

func (s *Store) GetDailySalesReport(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesReport, error) {
	sales, err := s.ListSales(ctx, from, to)
	if err != nil {
		return domain.DailySalesReport{}, err
	}

	report := domain.DailySalesReport{}
	for _, sale := range sales {
		report.Sales++
		report.GrossCents += sale.SubtotalCents
		switch sale.PaymentKind {
		case domain.PaymentKindFull:
			report.CashCents += sale.SubtotalCents
		case domain.PaymentKindPartial:
			report.DownPaymentCents += sale.DownPaymentCents
			report.CreditIssuedCents += sale.SubtotalCents - sale.DownPaymentCents
		case domain.PaymentKindLoan:
			report.CreditIssuedCents += sale.SubtotalCents
		}
	}
	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	logs := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return store.ErrInvalidRequest
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidRequest
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func cmpString(a string, b string) int {
	return strings.Compare(a, b)
}
