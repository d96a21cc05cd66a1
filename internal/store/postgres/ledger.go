package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/xid"
)

const debtSelect = `
SELECT d.id, d.type, d.customer_name, COALESCE(d.supplier_id, ''), COALESCE(s.name, ''),
	d.principal, d.settled, d.due_date, d.notes, d.recorded_by, d.created_at
FROM debt_credits d
LEFT JOIN suppliers s ON s.id = d.supplier_id`

// queryDebts loads debt rows and derives the paid amount from their payments.
func queryDebts(ctx context.Context, q querier, query string, args ...any) ([]domain.DebtCredit, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DebtCredit, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var (
			debt     domain.DebtCredit
			debtType string
			dueDate  sql.NullTime
		)
		if err := rows.Scan(&debt.ID, &debtType, &debt.CustomerName, &debt.SupplierID, &debt.SupplierName,
			&debt.Principal, &debt.Settled, &dueDate, &debt.Notes, &debt.RecordedBy, &debt.CreatedAt); err != nil {
			return nil, err
		}
		debt.Type = domain.DebtType(debtType)
		debt.DueDate = timePtr(dueDate)
		out = append(out, debt)
		ids = append(ids, debt.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	payments, err := loadPayments(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		paid := decimal.Zero
		out[i].Payments = payments[out[i].ID]
		if out[i].Payments == nil {
			out[i].Payments = []domain.Payment{}
		}
		for _, p := range out[i].Payments {
			paid = paid.Add(p.Amount)
		}
		out[i].Recompute(paid)
	}
	return out, nil
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.DebtCreditID, &p.Amount, &p.Note, &p.RecordedBy, &p.PaidAt)
	return p, err
}

func loadPayments(ctx context.Context, q querier, debtIDs []string) (map[string][]domain.Payment, error) {
	out := make(map[string][]domain.Payment, len(debtIDs))
	if len(debtIDs) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx, `
SELECT id, debt_credit_id, amount, note, recorded_by, paid_at
FROM payments
WHERE debt_credit_id = ANY($1)
ORDER BY paid_at, id`, debtIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out[p.DebtCreditID] = append(out[p.DebtCreditID], p)
	}
	return out, rows.Err()
}

func getDebt(ctx context.Context, q querier, query string, id string) (*domain.DebtCredit, error) {
	debts, err := queryDebts(ctx, q, query, id)
	if err != nil {
		return nil, err
	}
	if len(debts) == 0 {
		return nil, store.ErrNotFound
	}
	return &debts[0], nil
}

func (s *Store) GetDebtCredit(ctx context.Context, id string) (*domain.DebtCredit, error) {
	return getDebt(ctx, s.db, debtSelect+` WHERE d.id = $1`, id)
}

func (s *Store) ListDebtCredits(ctx context.Context, filter domain.DebtFilter) ([]domain.DebtCredit, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("d.type = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf(
			"(CASE WHEN d.type = 'HUTANG' THEN COALESCE(s.name, '') ELSE d.customer_name END) ILIKE $%d", len(args)))
	}

	debts, err := queryDebts(ctx, s.db, debtSelect+" "+whereSQL(where)+" ORDER BY d.created_at DESC, d.id DESC", args...)
	if err != nil {
		return nil, err
	}

	// Settlement is derived from payments, so it is filtered after Recompute.
	out := debts[:0]
	for _, debt := range debts {
		if filter.Settled != nil && debt.Settled != *filter.Settled {
			continue
		}
		out = append(out, debt)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListPayments(ctx context.Context, debtType domain.DebtType, from time.Time, to time.Time) ([]domain.Payment, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if debtType != "" {
		args = append(args, string(debtType))
		where = append(where, fmt.Sprintf("d.type = $%d", len(args)))
	}
	where, args = rangeClause(where, args, "p.paid_at", from, to)

	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.debt_credit_id, p.amount, p.note, p.recorded_by, p.paid_at
FROM payments p
JOIN debt_credits d ON d.id = p.debt_credit_id
`+whereSQL(where)+` ORDER BY p.paid_at, p.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Payment, 0, 32)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertDebtCredit(ctx context.Context, debt domain.DebtCredit) error {
	if debt.ID == "" {
		debt.ID = xid.New("dc")
	}
	if debt.CreatedAt.IsZero() {
		debt.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO debt_credits (id, type, customer_name, supplier_id, principal, settled, due_date, notes, recorded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		debt.ID, string(debt.Type), debt.CustomerName, nullIfEmpty(debt.SupplierID), debt.Principal,
		debt.Settled, nullTime(debt.DueDate), debt.Notes, debt.RecordedBy, debt.CreatedAt,
	)
	return translate(err)
}

func (t *pgTx) GetDebtCreditForUpdate(ctx context.Context, id string) (*domain.DebtCredit, error) {
	return getDebt(ctx, t.tx, debtSelect+` WHERE d.id = $1 FOR UPDATE OF d`, id)
}

func (t *pgTx) InsertPayment(ctx context.Context, payment domain.Payment) error {
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO payments (id, debt_credit_id, amount, note, recorded_by, paid_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		payment.ID, payment.DebtCreditID, payment.Amount, payment.Note, payment.RecordedBy, payment.PaidAt,
	)
	return translate(err)
}

func (t *pgTx) UpdateDebtCredit(ctx context.Context, id string, principal decimal.Decimal, settled bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE debt_credits SET principal = $2, settled = $3 WHERE id = $1`, id, principal, settled)
	if err != nil {
		return translate(err)
	}
	return rowsAffected(res)
}

// customerSelect derives the savings balance from the movement log; no
// balance column is stored.
const customerSelect = `
SELECT c.id, c.name, c.phone, c.address,
	COALESCE((
		SELECT SUM(CASE WHEN m.type = 'KELUAR' THEN -m.amount ELSE m.amount END)
		FROM savings_movements m
		WHERE m.customer_id = c.id
	), 0),
	c.created_at
FROM customers c`

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.SavingsBalance, &c.CreatedAt)
	return c, err
}

func getCustomer(ctx context.Context, q querier, query string, arg string) (*domain.Customer, error) {
	c, err := scanCustomer(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, search string) ([]domain.Customer, error) {
	query := customerSelect
	args := make([]any, 0, 1)
	if search = strings.TrimSpace(search); search != "" {
		args = append(args, "%"+search+"%")
		query += ` WHERE c.name ILIKE $1 OR c.phone LIKE $1`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY c.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, s.db, customerSelect+` WHERE c.id = $1`, id)
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	err := s.db.QueryRowContext(ctx, `
INSERT INTO customers (id, name, phone, address)
VALUES ($1, $2, $3, $4)
RETURNING created_at`, customer.ID, customer.Name, customer.Phone, customer.Address).Scan(&customer.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	customer.SavingsBalance = decimal.Zero
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE customers SET name = $2, phone = $3, address = $4 WHERE id = $1`,
		customer.ID, customer.Name, customer.Phone, customer.Address)
	if err != nil {
		return nil, translate(err)
	}
	if err := rowsAffected(res); err != nil {
		return nil, err
	}
	return s.GetCustomer(ctx, customer.ID)
}

func (s *Store) ListSavingsMovements(ctx context.Context, customerID string) ([]domain.SavingsMovement, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, customer_id, type, amount, resulting_balance, note, recorded_by, created_at
FROM savings_movements
WHERE customer_id = $1
ORDER BY id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SavingsMovement, 0, 16)
	for rows.Next() {
		var (
			m      domain.SavingsMovement
			mvType string
		)
		if err := rows.Scan(&m.ID, &m.CustomerID, &mvType, &m.Amount, &m.ResultingBalance,
			&m.Note, &m.RecordedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = domain.SavingsType(mvType)
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetOrCreateCustomer resolves a customer by exact name, inserting it when
// absent. ON CONFLICT keeps concurrent deposits for a new name from failing.
func (t *pgTx) GetOrCreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO customers (id, name, phone, address)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO NOTHING`, customer.ID, customer.Name, customer.Phone, customer.Address)
	if err != nil {
		return nil, translate(err)
	}
	return getCustomer(ctx, t.tx, customerSelect+` WHERE c.name = $1`, customer.Name)
}

func (t *pgTx) GetCustomerForUpdate(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, t.tx, customerSelect+` WHERE c.id = $1 FOR UPDATE OF c`, id)
}

func (t *pgTx) InsertSavingsMovement(ctx context.Context, movement domain.SavingsMovement) (*domain.SavingsMovement, error) {
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRowContext(ctx, `
INSERT INTO savings_movements (customer_id, type, amount, resulting_balance, note, recorded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		movement.CustomerID, string(movement.Type), movement.Amount, movement.ResultingBalance,
		movement.Note, movement.RecordedBy, movement.CreatedAt,
	).Scan(&movement.ID)
	if err != nil {
		return nil, translate(err)
	}
	return &movement, nil
}
