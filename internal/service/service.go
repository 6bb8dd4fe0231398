package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"tokokasbon/backend/internal/domain"
	"tokokasbon/backend/internal/ledger"
	"tokokasbon/backend/internal/notify"
	"tokokasbon/backend/internal/reminder"
	"tokokasbon/backend/internal/risk"
	"tokokasbon/backend/internal/store"
	"tokokasbon/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	risk      *risk.Engine
	scheduler *reminder.Scheduler
	notifier  notify.Notifier
	storeID   string
}

func New(repo store.Repository, riskEngine *risk.Engine, scheduler *reminder.Scheduler, notifier notify.Notifier, storeID string) *Service {
	if storeID == "" {
		storeID = "main-store"
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	return &Service{
		repo:      repo,
		risk:      riskEngine,
		scheduler: scheduler,
		notifier:  notifier,
		storeID:   storeID,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.SKU == "" || req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}
	if req.PriceCents < 1 || req.InitialStock < 0 {
		return domain.Product{}, store.ErrInvalidRequest
	}

	product := domain.Product{
		SKU:        req.SKU,
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		Stock:      req.InitialStock,
		Active:     true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.SKU, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, sku string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}

	existing, err := s.repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.Stock = *req.Stock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.SKU, fmt.Sprintf("active=%t,price=%d,stock=%d", saved.Active, saved.PriceCents, saved.Stock))
	return *saved, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" {
		return domain.Customer{}, store.ErrInvalidRequest
	}

	customer := domain.Customer{
		ID:        xid.New("cust"),
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     strings.TrimSpace(req.Email),
		Address:   strings.TrimSpace(req.Address),
		RiskLevel: domain.RiskLow,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, fmt.Sprintf("name=%s,phone=%s", created.Name, created.Phone))
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Customer{}, store.ErrInvalidRequest
	}

	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if cached, ok := s.risk.Cached(ctx, customer.ID); ok {
		customer.RiskLevel = cached
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, includeInactive bool) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, includeInactive)
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Customer{}, store.ErrInvalidRequest
	}

	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, store.ErrInvalidRequest
		}
		updated.Name = name
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone == "" {
			return domain.Customer{}, store.ErrInvalidRequest
		}
		updated.Phone = phone
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_update", "customer", saved.ID, fmt.Sprintf("name=%s,phone=%s", saved.Name, saved.Phone))
	return *saved, nil
}

func (s *Service) DeactivateCustomer(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidRequest
	}

	loans, err := s.repo.ListLoansByCustomer(ctx, id)
	if err != nil {
		return err
	}
	for _, loan := range loans {
		if loan.Status == domain.LoanStatusActive || loan.Status == domain.LoanStatusOverdue {
			return fmt.Errorf("%w: customer has outstanding loans", store.ErrInvalidRequest)
		}
	}

	if err := s.repo.DeactivateCustomer(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "customer_deactivate", "customer", id, "")
	return nil
}

func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.PaymentKind = strings.ToLower(strings.TrimSpace(req.PaymentKind))
	if req.PaymentKind == "" {
		req.PaymentKind = domain.PaymentKindFull
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("idem")
	}

	switch req.PaymentKind {
	case domain.PaymentKindFull, domain.PaymentKindPartial, domain.PaymentKindLoan:
	default:
		return domain.CheckoutResponse{}, store.ErrInvalidRequest
	}
	if req.CustomerID == "" {
		return domain.CheckoutResponse{}, store.ErrInvalidRequest
	}

	normalized := normalizeItems(req.CartItems)
	if len(normalized) == 0 {
		return domain.CheckoutResponse{}, store.ErrInvalidRequest
	}

	if existing, err := s.repo.FindSaleByIdempotency(ctx, req.IdempotencyKey); err == nil {
		return toCheckoutResponse(existing, true), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutResponse{}, err
	}

	customer, err := s.repo.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if !customer.Active {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: customer is inactive", store.ErrInvalidRequest)
	}

	skus := make([]string, 0, len(normalized))
	for _, item := range normalized {
		skus = append(skus, item.SKU)
	}
	products, err := s.repo.GetProductsBySKUs(ctx, skus)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	subtotal := int64(0)
	lines := make([]domain.SaleLine, 0, len(normalized))
	for _, item := range normalized {
		product, exists := products[item.SKU]
		if !exists {
			return domain.CheckoutResponse{}, store.ErrInvalidRequest
		}
		subtotal += int64(item.Qty) * product.PriceCents
		lines = append(lines, domain.SaleLine{
			SKU:            item.SKU,
			Qty:            item.Qty,
			UnitPriceCents: product.PriceCents,
		})
	}

	now := time.Now().UTC()
	sale := domain.Sale{
		ID:             xid.New("sale"),
		CustomerID:     customer.ID,
		IdempotencyKey: req.IdempotencyKey,
		PaymentKind:    req.PaymentKind,
		SubtotalCents:  subtotal,
		CreatedAt:      now,
		Items:          lines,
	}

	var loan *domain.Loan
	var downPayment *domain.Payment

	switch req.PaymentKind {
	case domain.PaymentKindFull:
		if req.DownPaymentCents != 0 {
			return domain.CheckoutResponse{}, store.ErrInvalidAmount
		}
	case domain.PaymentKindPartial:
		if req.DownPaymentCents < 1 || req.DownPaymentCents >= subtotal {
			return domain.CheckoutResponse{}, store.ErrInvalidAmount
		}
		dueDate, err := parseDay(req.DueDate)
		if err != nil {
			return domain.CheckoutResponse{}, store.ErrInvalidRequest
		}
		newLoan, err := ledger.NewLoan(xid.New("loan"), customer.ID, sale.ID, subtotal, req.DownPaymentCents, dueDate, strings.TrimSpace(req.AgreementTerms), now)
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		loan = &newLoan
		sale.DownPaymentCents = req.DownPaymentCents
		sale.LoanID = newLoan.ID
		downPayment = &domain.Payment{
			ID:             xid.New("pay"),
			LoanID:         newLoan.ID,
			IdempotencyKey: req.IdempotencyKey + ":dp",
			AmountCents:    req.DownPaymentCents,
			PaymentDate:    now,
			Method:         "cash",
			Notes:          "down payment",
			CreatedAt:      now,
		}
	case domain.PaymentKindLoan:
		if req.DownPaymentCents != 0 {
			return domain.CheckoutResponse{}, store.ErrInvalidAmount
		}
		dueDate, err := parseDay(req.DueDate)
		if err != nil {
			return domain.CheckoutResponse{}, store.ErrInvalidRequest
		}
		newLoan, err := ledger.NewLoan(xid.New("loan"), customer.ID, sale.ID, subtotal, 0, dueDate, strings.TrimSpace(req.AgreementTerms), now)
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		loan = &newLoan
		sale.LoanID = newLoan.ID
	}

	created, err := s.repo.CreateSale(ctx, sale, loan, downPayment)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	s.logAudit(ctx, "checkout", "sale", created.ID, fmt.Sprintf("kind=%s,subtotal=%d,down_payment=%d,loan=%s", created.PaymentKind, created.SubtotalCents, created.DownPaymentCents, created.LoanID))
	return toCheckoutResponse(created, false), nil
}

func (s *Service) GetLoan(ctx context.Context, loanID string) (domain.Loan, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return domain.Loan{}, store.ErrInvalidRequest
	}

	loan, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return domain.Loan{}, err
	}

	// Reads report the date-derived status without persisting it; the
	// stored row only changes on payment or scheduler activity.
	loan.Status = ledger.DeriveStatus(*loan, time.Now().UTC())
	return *loan, nil
}

func (s *Service) ListLoans(ctx context.Context, statuses []string) ([]domain.Loan, error) {
	for _, status := range statuses {
		switch status {
		case domain.LoanStatusActive, domain.LoanStatusPaid, domain.LoanStatusOverdue, domain.LoanStatusDefaulted:
		default:
			return nil, store.ErrInvalidRequest
		}
	}

	loans, err := s.repo.ListLoansByStatus(ctx, statuses)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range loans {
		loans[i].Status = ledger.DeriveStatus(loans[i], now)
	}
	return loans, nil
}

func (s *Service) ListCustomerLoans(ctx context.Context, customerID string) ([]domain.Loan, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, store.ErrInvalidRequest
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	loans, err := s.repo.ListLoansByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range loans {
		loans[i].Status = ledger.DeriveStatus(loans[i], now)
	}
	return loans, nil
}

// RecordPayment applies a repayment against a loan. The balance update and
// the payment row are a single store write: a compare-and-swap on the loan
// version that inserts the ledger entry in the same transaction. A single
// concurrent writer losing the race is retried once against the fresh row
// before giving up.
func (s *Service) RecordPayment(ctx context.Context, loanID string, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return domain.PaymentResponse{}, store.ErrInvalidRequest
	}
	if req.AmountCents < 1 {
		return domain.PaymentResponse{}, store.ErrInvalidAmount
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("idem")
	}
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.Method == "" {
		req.Method = "cash"
	}

	paymentDate := time.Now().UTC()
	if strings.TrimSpace(req.PaymentDate) != "" {
		parsed, err := parseDay(req.PaymentDate)
		if err != nil {
			return domain.PaymentResponse{}, store.ErrInvalidRequest
		}
		paymentDate = parsed
	}

	if resp, found, err := s.replayPayment(ctx, req.IdempotencyKey); err != nil {
		return domain.PaymentResponse{}, err
	} else if found {
		return resp, nil
	}

	payment := domain.Payment{
		ID:             xid.New("pay"),
		LoanID:         loanID,
		IdempotencyKey: req.IdempotencyKey,
		AmountCents:    req.AmountCents,
		PaymentDate:    paymentDate,
		Method:         req.Method,
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      time.Now().UTC(),
	}
	updated, err := s.applyPaymentCAS(ctx, payment)
	if err != nil {
		// A racing request with the same key won the insert between the
		// pre-check and the write; serve its result.
		if errors.Is(err, store.ErrDuplicatePayment) {
			if resp, found, replayErr := s.replayPayment(ctx, req.IdempotencyKey); replayErr == nil && found {
				return resp, nil
			}
		}
		return domain.PaymentResponse{}, err
	}

	onTime := !ledger.Day(paymentDate).After(ledger.Day(updated.DueDate))
	if err := s.repo.AppendPaymentHistory(ctx, domain.PaymentHistoryEntry{
		CustomerID: updated.CustomerID,
		Date:       paymentDate,
		OnTime:     onTime,
	}); err != nil {
		log.Printf("[service] WARN: failed to append payment history customer=%s: %v", updated.CustomerID, err)
	}

	s.refreshCustomerRisk(ctx, updated.CustomerID)
	s.logAudit(ctx, "loan_payment", "loan", updated.ID, fmt.Sprintf("amount=%d,remaining=%d,status=%s,on_time=%t", req.AmountCents, updated.RemainingCents, updated.Status, onTime))

	return domain.PaymentResponse{Payment: payment, Loan: *updated}, nil
}

// replayPayment serves a previously recorded payment for the given
// idempotency key, or reports that none exists.
func (s *Service) replayPayment(ctx context.Context, key string) (domain.PaymentResponse, bool, error) {
	existing, err := s.repo.FindPaymentByIdempotency(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PaymentResponse{}, false, nil
		}
		return domain.PaymentResponse{}, false, err
	}
	loan, err := s.repo.GetLoan(ctx, existing.LoanID)
	if err != nil {
		return domain.PaymentResponse{}, false, err
	}
	return domain.PaymentResponse{Payment: *existing, Loan: *loan, Duplicate: true}, true, nil
}

func (s *Service) applyPaymentCAS(ctx context.Context, payment domain.Payment) (*domain.Loan, error) {
	for attempt := 0; attempt < 2; attempt++ {
		loan, err := s.repo.GetLoan(ctx, payment.LoanID)
		if err != nil {
			return nil, err
		}

		// The stored status reflects the balance as of now; the
		// back-datable payment date only stamps the ledger entry.
		next, err := ledger.ApplyPayment(*loan, payment.AmountCents, time.Now().UTC())
		if err != nil {
			return nil, err
		}

		updated, err := s.repo.ApplyLoanPayment(ctx, payment, next.PaidCents, next.RemainingCents, next.Status, loan.Version)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
		log.Printf("[service] loan version conflict on %s, retrying", payment.LoanID)
	}
	return nil, store.ErrVersionConflict
}

func (s *Service) refreshCustomerRisk(ctx context.Context, customerID string) {
	history, err := s.repo.GetPaymentHistory(ctx, customerID)
	if err != nil {
		log.Printf("[service] WARN: failed to load payment history customer=%s: %v", customerID, err)
		return
	}
	stats, err := s.repo.GetCustomerLoanStats(ctx, customerID)
	if err != nil {
		log.Printf("[service] WARN: failed to load loan stats customer=%s: %v", customerID, err)
		return
	}

	level := s.risk.Evaluate(ctx, customerID, history, stats.OutstandingCents, stats.AverageLoanCents)
	if err := s.repo.SetCustomerRiskLevel(ctx, customerID, level); err != nil {
		log.Printf("[service] WARN: failed to persist risk level customer=%s: %v", customerID, err)
	}
}

func (s *Service) ListLoanPayments(ctx context.Context, loanID string) ([]domain.Payment, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return nil, store.ErrInvalidRequest
	}
	if _, err := s.repo.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsByLoan(ctx, loanID)
}

func (s *Service) ListLoanReminders(ctx context.Context, loanID string, limit int) ([]domain.Reminder, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return nil, store.ErrInvalidRequest
	}
	if _, err := s.repo.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return s.repo.ListRemindersByLoan(ctx, loanID, limit)
}

// MarkDefaulted transitions a loan to defaulted. This is always a manual
// admin decision; the scheduler never defaults a loan on its own. The manager
// PIN is verified by the HTTP layer before this is called.
func (s *Service) MarkDefaulted(ctx context.Context, loanID string, reason string) (domain.Loan, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Loan{}, fmt.Errorf("admin role required")
	}

	loanID = strings.TrimSpace(loanID)
	reason = strings.TrimSpace(reason)
	if loanID == "" || reason == "" {
		return domain.Loan{}, store.ErrInvalidRequest
	}

	loan, err := s.repo.MarkLoanDefaulted(ctx, loanID, time.Now().UTC())
	if err != nil {
		return domain.Loan{}, err
	}

	s.refreshCustomerRisk(ctx, loan.CustomerID)
	s.logAudit(ctx, "loan_default", "loan", loan.ID, fmt.Sprintf("reason=%s,remaining=%d", reason, loan.RemainingCents))
	return *loan, nil
}

// RunReminders executes one scheduler pass for the given date (today when
// empty). Re-running for the same date is a no-op for loans already covered.
func (s *Service) RunReminders(ctx context.Context, date string) (domain.ReminderRunResponse, error) {
	runDate := time.Now().UTC()
	if strings.TrimSpace(date) != "" {
		parsed, err := parseDay(date)
		if err != nil {
			return domain.ReminderRunResponse{}, store.ErrInvalidRequest
		}
		runDate = parsed
	}

	scheduled, err := s.scheduler.Run(ctx, runDate)
	if err != nil {
		return domain.ReminderRunResponse{}, err
	}

	s.logAudit(ctx, "reminder_run", "reminder", runDate.Format("2006-01-02"), fmt.Sprintf("scheduled=%d", scheduled))
	return domain.ReminderRunResponse{
		RunDate:           ledger.Day(runDate).Format("2006-01-02"),
		MessagesScheduled: scheduled,
	}, nil
}

func (s *Service) DispatchReminders(ctx context.Context, limit int) (domain.DispatchResult, error) {
	result, err := s.scheduler.Dispatch(ctx, s.notifier, limit)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	s.logAudit(ctx, "reminder_dispatch", "reminder", "", fmt.Sprintf("dispatched=%d,failed=%d", result.Dispatched, result.Failed))
	return result, nil
}

func (s *Service) LoanReport(ctx context.Context) (domain.LoanReport, error) {
	loans, err := s.repo.ListLoansByStatus(ctx, nil)
	if err != nil {
		return domain.LoanReport{}, err
	}

	now := time.Now().UTC()
	report := domain.LoanReport{GeneratedAt: now.Format(time.RFC3339)}
	outstandingByCustomer := map[string]*domain.CustomerOutstanding{}

	for _, loan := range loans {
		status := ledger.DeriveStatus(loan, now)
		switch status {
		case domain.LoanStatusActive:
			report.ActiveCount++
		case domain.LoanStatusOverdue:
			report.OverdueCount++
		case domain.LoanStatusPaid:
			report.PaidCount++
		case domain.LoanStatusDefaulted:
			report.DefaultedCount++
		}
		if status != domain.LoanStatusActive && status != domain.LoanStatusOverdue {
			continue
		}

		report.TotalOutstandingCents += loan.RemainingCents
		entry, exists := outstandingByCustomer[loan.CustomerID]
		if !exists {
			entry = &domain.CustomerOutstanding{CustomerID: loan.CustomerID}
			outstandingByCustomer[loan.CustomerID] = entry
		}
		entry.LoanCount++
		entry.OutstandingCents += loan.RemainingCents
	}

	report.ByCustomer = make([]domain.CustomerOutstanding, 0, len(outstandingByCustomer))
	for customerID, entry := range outstandingByCustomer {
		customer, err := s.repo.GetCustomer(ctx, customerID)
		if err == nil {
			entry.Name = customer.Name
			entry.Phone = customer.Phone
			entry.RiskLevel = customer.RiskLevel
		}
		report.ByCustomer = append(report.ByCustomer, *entry)
	}
	sort.Slice(report.ByCustomer, func(i, j int) bool {
		if report.ByCustomer[i].OutstandingCents == report.ByCustomer[j].OutstandingCents {
			return report.ByCustomer[i].CustomerID < report.ByCustomer[j].CustomerID
		}
		return report.ByCustomer[i].OutstandingCents > report.ByCustomer[j].OutstandingCents
	})

	return report, nil
}

// LoanReportCSV renders the outstanding-per-customer section of the loan
// report for spreadsheet export.
func (s *Service) LoanReportCSV(ctx context.Context) (string, error) {
	report, err := s.LoanReport(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("customer_id,name,phone,risk_level,loan_count,outstanding_cents\n")
	for _, row := range report.ByCustomer {
		b.WriteString(csvField(row.CustomerID))
		b.WriteByte(',')
		b.WriteString(csvField(row.Name))
		b.WriteByte(',')
		b.WriteString(csvField(row.Phone))
		b.WriteByte(',')
		b.WriteString(csvField(row.RiskLevel))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(row.LoanCount))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(row.OutstandingCents, 10))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailySalesReport, error) {
	var day time.Time
	if strings.TrimSpace(date) == "" {
		day = ledger.Day(time.Now().UTC())
	} else {
		parsed, err := parseDay(date)
		if err != nil {
			return domain.DailySalesReport{}, store.ErrInvalidRequest
		}
		day = parsed
	}
	from := day
	to := from.Add(24 * time.Hour)

	report, err := s.repo.GetDailySalesReport(ctx, from, to)
	if err != nil {
		return domain.DailySalesReport{}, err
	}
	report.Date = from.Format("2006-01-02")
	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := parseDay(date)
		if err != nil {
			return nil, store.ErrInvalidRequest
		}
		from = parsed
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func toCheckoutResponse(sale *domain.Sale, duplicate bool) domain.CheckoutResponse {
	return domain.CheckoutResponse{
		SaleID:           sale.ID,
		CustomerID:       sale.CustomerID,
		PaymentKind:      sale.PaymentKind,
		SubtotalCents:    sale.SubtotalCents,
		DownPaymentCents: sale.DownPaymentCents,
		LoanID:           sale.LoanID,
		Duplicate:        duplicate,
		CreatedAt:        sale.CreatedAt.Format(time.RFC3339),
	}
}

func normalizeItems(items []domain.CartItem) []domain.CartItem {
	agg := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		sku := strings.ToUpper(strings.TrimSpace(item.SKU))
		if sku == "" || item.Qty < 1 {
			continue
		}
		if _, seen := agg[sku]; !seen {
			order = append(order, sku)
		}
		agg[sku] += item.Qty
	}

	normalized := make([]domain.CartItem, 0, len(agg))
	for _, sku := range order {
		normalized = append(normalized, domain.CartItem{SKU: sku, Qty: agg[sku]})
	}
	return normalized
}

func parseDay(value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func csvField(value string) string {
	if !strings.ContainsAny(value, ",\"\n") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
