package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokokasbon/backend/internal/domain"
	"tokokasbon/backend/internal/store"
	"tokokasbon/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, category, price_cents, stock, active
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidRequest
	}

	product.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (sku, name, category, price_cents, stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, product.SKU, product.Name, product.Category, product.PriceCents, product.Stock, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT sku, name, category, price_cents, stock, active
		FROM products
		WHERE sku = $1
	`, sku).Scan(&product.SKU, &product.Name, &product.Category, &product.PriceCents, &product.Stock, &product.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, stock = $5, active = $6, updated_at = now()
		WHERE sku = $1
	`, product.SKU, product.Name, product.Category, product.PriceCents, product.Stock, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(ctx context.Context, skus []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, category, price_cents, stock, active
		FROM products
		WHERE active = true AND sku = ANY($1)
	`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		result[p.SKU] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || strings.TrimSpace(customer.Name) == "" || strings.TrimSpace(customer.Phone) == "" {
		return nil, store.ErrInvalidRequest
	}
	if customer.RiskLevel == "" {
		customer.RiskLevel = domain.RiskLow
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, address, risk_level, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, customer.ID, customer.Name, customer.Phone, nullIfEmpty(customer.Email), nullIfEmpty(customer.Address), customer.RiskLevel, customer.Active, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	var email, address sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, address, risk_level, active, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Phone, &email, &address, &customer.RiskLevel, &customer.Active, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	customer.Email = email.String
	customer.Address = address.String
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, includeInactive bool) ([]domain.Customer, error) {
	query := `
		SELECT id, name, phone, email, address, risk_level, active, created_at
		FROM customers
	`
	if !includeInactive {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var customer domain.Customer
		var email, address sql.NullString
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Phone, &email, &address, &customer.RiskLevel, &customer.Active, &customer.CreatedAt); err != nil {
			return nil, err
		}
		customer.Email = email.String
		customer.Address = address.String
		customer.CreatedAt = customer.CreatedAt.UTC()
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || strings.TrimSpace(customer.Name) == "" || strings.TrimSpace(customer.Phone) == "" {
		return nil, store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, address = $5, updated_at = now()
		WHERE id = $1
	`, customer.ID, customer.Name, customer.Phone, nullIfEmpty(customer.Email), nullIfEmpty(customer.Address))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCustomer(ctx, customer.ID)
}

func (s *Store) DeactivateCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET active = false, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetCustomerRiskLevel(ctx context.Context, id string, level string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET risk_level = $2, updated_at = now()
		WHERE id = $1
	`, id, level)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AppendPaymentHistory(ctx context.Context, entry domain.PaymentHistoryEntry) error {
	if entry.CustomerID == "" {
		return store.ErrInvalidRequest
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_history (customer_id, paid_at, on_time)
		VALUES ($1,$2,$3)
	`, entry.CustomerID, entry.Date, entry.OnTime)
	return err
}

func (s *Store) GetPaymentHistory(ctx context.Context, customerID string) ([]domain.PaymentHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, paid_at, on_time
		FROM payment_history
		WHERE customer_id = $1
		ORDER BY paid_at ASC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.PaymentHistoryEntry, 0, 32)
	for rows.Next() {
		var entry domain.PaymentHistoryEntry
		if err := rows.Scan(&entry.CustomerID, &entry.Date, &entry.OnTime); err != nil {
			return nil, err
		}
		entry.Date = entry.Date.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, loan *domain.Loan, downPayment *domain.Payment) (*domain.Sale, error) {
	if sale.ID == "" || sale.IdempotencyKey == "" || sale.CustomerID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidRequest
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	skus := uniqueSKUs(sale.Items)
	if len(skus) == 0 {
		return nil, store.ErrInvalidRequest
	}

	stockRows, err := pgTx.QueryContext(ctx, `
		SELECT sku, stock
		FROM products
		WHERE active = true AND sku = ANY($1)
		FOR UPDATE
	`, skus)
	if err != nil {
		return nil, err
	}
	stockMap := make(map[string]int, len(skus))
	for stockRows.Next() {
		var sku string
		var stock int
		if err := stockRows.Scan(&sku, &stock); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		stockMap[sku] = stock
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidRequest
		}
		stock, exists := stockMap[item.SKU]
		if !exists {
			return nil, fmt.Errorf("sku %s unavailable", item.SKU)
		}
		if stock < item.Qty {
			return nil, store.ErrInsufficientStock
		}
	}

	for _, item := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = now()
			WHERE sku = $1
		`, item.SKU, item.Qty)
		if err != nil {
			return nil, err
		}
	}

	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, customer_id, idempotency_key, payment_kind, subtotal_cents,
			down_payment_cents, loan_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sale.ID, sale.CustomerID, sale.IdempotencyKey, sale.PaymentKind, sale.SubtotalCents,
		sale.DownPaymentCents, nullIfEmpty(sale.LoanID), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	for _, item := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, sku, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4)
		`, sale.ID, item.SKU, item.Qty, item.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}

	if loan != nil {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO loans (
				id, customer_id, sale_id, total_cents, paid_cents, remaining_cents,
				due_date, status, agreement_terms, version, created_at, updated_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, loan.ID, loan.CustomerID, loan.SaleID, loan.TotalCents, loan.PaidCents, loan.RemainingCents,
			loan.DueDate, loan.Status, strings.TrimSpace(loan.AgreementTerms), loan.Version, loan.CreatedAt, loan.UpdatedAt)
		if err != nil {
			return nil, err
		}
	}

	if downPayment != nil {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO payments (
				id, loan_id, idempotency_key, amount_cents, payment_date, method, notes, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, downPayment.ID, downPayment.LoanID, downPayment.IdempotencyKey, downPayment.AmountCents,
			downPayment.PaymentDate, downPayment.Method, downPayment.Notes, downPayment.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error) {
	if key == "" {
		return nil, store.ErrNotFound
	}

	var sale domain.Sale
	var loanID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, idempotency_key, payment_kind, subtotal_cents,
			down_payment_cents, loan_id, created_at
		FROM sales
		WHERE idempotency_key = $1
	`, key).Scan(&sale.ID, &sale.CustomerID, &sale.IdempotencyKey, &sale.PaymentKind, &sale.SubtotalCents,
		&sale.DownPaymentCents, &loanID, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.LoanID = loanID.String
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := s.listSaleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, idempotency_key, payment_kind, subtotal_cents,
			down_payment_cents, loan_id, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		var loanID sql.NullString
		if err := rows.Scan(&sale.ID, &sale.CustomerID, &sale.IdempotencyKey, &sale.PaymentKind, &sale.SubtotalCents,
			&sale.DownPaymentCents, &loanID, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.LoanID = loanID.String
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) listSaleItems(ctx context.Context, saleID string) ([]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, qty, unit_price_cents
		FROM sale_items
		WHERE sale_id = $1
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		var item domain.SaleLine
		if err := rows.Scan(&item.SKU, &item.Qty, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const loanColumns = `
	id, customer_id, sale_id, total_cents, paid_cents, remaining_cents,
	due_date, status, agreement_terms, version, created_at, updated_at
`

func scanLoan(scanner interface{ Scan(...any) error }) (domain.Loan, error) {
	var loan domain.Loan
	err := scanner.Scan(&loan.ID, &loan.CustomerID, &loan.SaleID, &loan.TotalCents, &loan.PaidCents, &loan.RemainingCents,
		&loan.DueDate, &loan.Status, &loan.AgreementTerms, &loan.Version, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return domain.Loan{}, err
	}
	loan.DueDate = loan.DueDate.UTC()
	loan.CreatedAt = loan.CreatedAt.UTC()
	loan.UpdatedAt = loan.UpdatedAt.UTC()
	return loan, nil
}

func (s *Store) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &loan, nil
}

func (s *Store) ListLoansByStatus(ctx context.Context, statuses []string) ([]domain.Loan, error) {
	// Empty statuses means no filter, matching the memory store.
	query := `
		SELECT ` + loanColumns + `
		FROM loans
	`
	args := []any{}
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, statuses)
	}
	query += ` ORDER BY due_date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]domain.Loan, 0, 64)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return loans, nil
}

func (s *Store) ListLoansByCustomer(ctx context.Context, customerID string) ([]domain.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+loanColumns+`
		FROM loans
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]domain.Loan, 0, 16)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return loans, nil
}

func (s *Store) UpdateLoanBalance(ctx context.Context, id string, paidCents int64, remainingCents int64, status string, expectedVersion int64) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE loans
		SET paid_cents = $2, remaining_cents = $3, status = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $5
		RETURNING `+loanColumns+`
	`, id, paidCents, remainingCents, status, expectedVersion)

	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a stale version from a missing loan.
			if _, getErr := s.GetLoan(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, store.ErrVersionConflict
		}
		return nil, err
	}
	return &loan, nil
}

func (s *Store) MarkLoanDefaulted(ctx context.Context, id string, at time.Time) (*domain.Loan, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE loans
		SET status = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND status NOT IN ($4, $2)
		RETURNING `+loanColumns+`
	`, id, domain.LoanStatusDefaulted, at, domain.LoanStatusPaid)

	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.GetLoan(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("%w: loan is already settled or defaulted", store.ErrInvalidRequest)
		}
		return nil, err
	}
	return &loan, nil
}

func (s *Store) GetCustomerLoanStats(ctx context.Context, customerID string) (store.LoanStats, error) {
	var stats store.LoanStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(total_cents) / NULLIF(COUNT(*), 0), 0),
			COALESCE(SUM(remaining_cents) FILTER (WHERE status IN ($2, $3)), 0)
		FROM loans
		WHERE customer_id = $1
	`, customerID, domain.LoanStatusActive, domain.LoanStatusOverdue).Scan(&stats.LoanCount, &stats.AverageLoanCents, &stats.OutstandingCents)
	if err != nil {
		return store.LoanStats{}, err
	}
	return stats, nil
}

func (s *Store) ApplyLoanPayment(ctx context.Context, payment domain.Payment, paidCents int64, remainingCents int64, status string, expectedVersion int64) (*domain.Loan, error) {
	if payment.ID == "" || payment.LoanID == "" || payment.AmountCents < 1 {
		return nil, store.ErrInvalidAmount
	}
	if paidCents < 0 || remainingCents < 0 {
		return nil, store.ErrInvalidAmount
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	row := pgTx.QueryRowContext(ctx, `
		UPDATE loans
		SET paid_cents = $2, remaining_cents = $3, status = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $5
		RETURNING `+loanColumns+`
	`, payment.LoanID, paidCents, remainingCents, status, expectedVersion)

	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a stale version from a missing loan.
			if _, getErr := s.GetLoan(ctx, payment.LoanID); getErr != nil {
				return nil, getErr
			}
			return nil, store.ErrVersionConflict
		}
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO payments (
			id, loan_id, idempotency_key, amount_cents, payment_date, method, notes, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, payment.ID, payment.LoanID, payment.IdempotencyKey, payment.AmountCents,
		payment.PaymentDate, payment.Method, payment.Notes, payment.CreatedAt)
	if err != nil {
		// Rolling back discards the balance update too, so a racing
		// duplicate leaves the loan exactly as the winner wrote it.
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicatePayment
		}
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (s *Store) FindPaymentByIdempotency(ctx context.Context, key string) (*domain.Payment, error) {
	if key == "" {
		return nil, store.ErrNotFound
	}

	var payment domain.Payment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, loan_id, idempotency_key, amount_cents, payment_date, method, notes, created_at
		FROM payments
		WHERE idempotency_key = $1
	`, key).Scan(&payment.ID, &payment.LoanID, &payment.IdempotencyKey, &payment.AmountCents,
		&payment.PaymentDate, &payment.Method, &payment.Notes, &payment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	payment.PaymentDate = payment.PaymentDate.UTC()
	payment.CreatedAt = payment.CreatedAt.UTC()
	return &payment, nil
}

func (s *Store) ListPaymentsByLoan(ctx context.Context, loanID string) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, loan_id, idempotency_key, amount_cents, payment_date, method, notes, created_at
		FROM payments
		WHERE loan_id = $1
		ORDER BY payment_date ASC, created_at ASC
	`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 16)
	for rows.Next() {
		var payment domain.Payment
		if err := rows.Scan(&payment.ID, &payment.LoanID, &payment.IdempotencyKey, &payment.AmountCents,
			&payment.PaymentDate, &payment.Method, &payment.Notes, &payment.CreatedAt); err != nil {
			return nil, err
		}
		payment.PaymentDate = payment.PaymentDate.UTC()
		payment.CreatedAt = payment.CreatedAt.UTC()
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) InsertReminder(ctx context.Context, reminder domain.Reminder) (*domain.Reminder, error) {
	if reminder.ID == "" {
		reminder.ID = xid.New("rem")
	}
	if reminder.LoanID == "" || reminder.Type == "" {
		return nil, store.ErrInvalidRequest
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}

	// The unique index on (loan_id, reminder_type, scheduled_date) makes a
	// same-day re-run collide here instead of double-queueing.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (
			id, loan_id, reminder_type, scheduled_date, message_content,
			is_sent, sent_at, external_message_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, reminder.ID, reminder.LoanID, reminder.Type, nowDateUTC(reminder.ScheduledDate), reminder.MessageContent,
		reminder.IsSent, nullTime(reminder.SentAt), nullIfEmpty(reminder.ExternalMessageID), reminder.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateReminder
		}
		return nil, err
	}

	created := reminder
	return &created, nil
}

func (s *Store) ListRemindersForLoanOnDate(ctx context.Context, loanID string, date time.Time) ([]domain.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, loan_id, reminder_type, scheduled_date, message_content,
			is_sent, sent_at, external_message_id, created_at
		FROM reminders
		WHERE loan_id = $1 AND scheduled_date = $2
	`, loanID, nowDateUTC(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (s *Store) ListRemindersByLoan(ctx context.Context, loanID string, limit int) ([]domain.Reminder, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, loan_id, reminder_type, scheduled_date, message_content,
			is_sent, sent_at, external_message_id, created_at
		FROM reminders
		WHERE loan_id = $1
		ORDER BY scheduled_date DESC, created_at DESC
		LIMIT $2
	`, loanID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (s *Store) ListUnsentReminders(ctx context.Context, limit int) ([]domain.Reminder, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, loan_id, reminder_type, scheduled_date, message_content,
			is_sent, sent_at, external_message_id, created_at
		FROM reminders
		WHERE is_sent = false
		ORDER BY scheduled_date ASC, created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (s *Store) HasReminderOfType(ctx context.Context, loanID string, reminderType string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reminders WHERE loan_id = $1 AND reminder_type = $2
		)
	`, loanID, reminderType).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id string, externalMessageID string, sentAt time.Time) error {
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reminders
		SET is_sent = true, sent_at = $2, external_message_id = $3
		WHERE id = $1
	`, id, sentAt, nullIfEmpty(externalMessageID))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func collectReminders(rows *sql.Rows) ([]domain.Reminder, error) {
	reminders := make([]domain.Reminder, 0, 16)
	for rows.Next() {
		var reminder domain.Reminder
		var sentAt sql.NullTime
		var externalID sql.NullString
		if err := rows.Scan(&reminder.ID, &reminder.LoanID, &reminder.Type, &reminder.ScheduledDate, &reminder.MessageContent,
			&reminder.IsSent, &sentAt, &externalID, &reminder.CreatedAt); err != nil {
			return nil, err
		}
		reminder.ScheduledDate = reminder.ScheduledDate.UTC()
		reminder.CreatedAt = reminder.CreatedAt.UTC()
		if sentAt.Valid {
			at := sentAt.Time.UTC()
			reminder.SentAt = &at
		}
		reminder.ExternalMessageID = externalID.String
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reminders, nil
}

func (s *Store) GetDailySalesReport(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesReport, error) {
	var report domain.DailySalesReport
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(subtotal_cents), 0),
			COALESCE(SUM(subtotal_cents) FILTER (WHERE payment_kind = $3), 0),
			COALESCE(SUM(down_payment_cents) FILTER (WHERE payment_kind = $4), 0),
			COALESCE(SUM(subtotal_cents - down_payment_cents) FILTER (WHERE payment_kind IN ($4, $5)), 0)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to, domain.PaymentKindFull, domain.PaymentKindPartial, domain.PaymentKindLoan).Scan(
		&report.Sales, &report.GrossCents, &report.CashCents, &report.DownPaymentCents, &report.CreditIssuedCents)
	if err != nil {
		return domain.DailySalesReport{}, err
	}
	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRequest
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidRequest
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uniqueSKUs(items []domain.SaleLine) []string {
	if len(items) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.SKU == "" {
			continue
		}
		set[item.SKU] = struct{}{}
	}

	skus := make([]string, 0, len(set))
	for sku := range set {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
