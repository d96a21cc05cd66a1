package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/xid"
)

const transactionSelect = `
SELECT id, number, cashier, gross_total, discount, net_total, amount_paid, change_due,
	payment_method, customer_type, status, notes, created_at, completed_at
FROM transactions`

// queryTransactions loads headers first and then every line item for them.
func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var (
			txn                          domain.Transaction
			method, customerType, status string
			completedAt                  sql.NullTime
		)
		if err := rows.Scan(
			&txn.ID, &txn.Number, &txn.Cashier, &txn.GrossTotal, &txn.Discount, &txn.NetTotal,
			&txn.AmountPaid, &txn.ChangeDue, &method, &customerType, &status, &txn.Notes,
			&txn.CreatedAt, &completedAt,
		); err != nil {
			return nil, err
		}
		txn.PaymentMethod = domain.PaymentMethod(method)
		txn.CustomerType = domain.CustomerType(customerType)
		txn.Status = domain.TxStatus(status)
		txn.CompletedAt = timePtr(completedAt)
		out = append(out, txn)
		ids = append(ids, txn.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	items, err := loadLineItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
		if out[i].Items == nil {
			out[i].Items = []domain.LineItem{}
		}
	}
	return out, nil
}

func loadLineItems(ctx context.Context, q querier, transactionIDs []string) (map[string][]domain.LineItem, error) {
	out := make(map[string][]domain.LineItem, len(transactionIDs))
	if len(transactionIDs) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx, `
SELECT id, transaction_id, variant_id, variant_name, quantity, unit_price, subtotal, position
FROM line_items
WHERE transaction_id = ANY($1)
ORDER BY transaction_id, position`, transactionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.VariantID, &item.VariantName,
			&item.Quantity, &item.UnitPrice, &item.Subtotal, &item.Position); err != nil {
			return nil, err
		}
		out[item.TransactionID] = append(out[item.TransactionID], item)
	}
	return out, rows.Err()
}

func getTransaction(ctx context.Context, q querier, query string, id string) (*domain.Transaction, error) {
	txns, err := queryTransactions(ctx, q, query, id)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, store.ErrNotFound
	}
	return &txns[0], nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, s.db, transactionSelect+` WHERE id = $1`, id)
}

func (s *Store) ListTransactions(ctx context.Context, q store.TransactionQuery) ([]domain.Transaction, error) {
	where := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if q.CompletedOnly {
		args = append(args, string(domain.TxStatusCompleted))
		where = append(where, fmt.Sprintf("status = $%d", len(args)), "completed_at IS NOT NULL")
		where, args = rangeClause(where, args, "completed_at", q.From, q.To)
	} else {
		where, args = rangeClause(where, args, "created_at", q.From, q.To)
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.Cashier != "" {
		args = append(args, q.Cashier)
		where = append(where, fmt.Sprintf("cashier = $%d", len(args)))
	}
	if q.PaymentMethod != "" {
		args = append(args, string(q.PaymentMethod))
		where = append(where, fmt.Sprintf("payment_method = $%d", len(args)))
	}

	query := transactionSelect + " " + whereSQL(where) + " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return queryTransactions(ctx, s.db, query, args...)
}

// InsertTransaction writes the header inside a savepoint so a number clash
// can be retried by the caller without aborting the enclosing unit.
func (t *pgTx) InsertTransaction(ctx context.Context, txn domain.Transaction) error {
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT insert_transaction`); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO transactions (
	id, number, cashier, gross_total, discount, net_total, amount_paid, change_due,
	payment_method, customer_type, status, notes, created_at, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13::timestamptz, now()), $14)`,
		txn.ID, txn.Number, txn.Cashier, txn.GrossTotal, txn.Discount, txn.NetTotal,
		txn.AmountPaid, txn.ChangeDue, string(txn.PaymentMethod), string(txn.CustomerType),
		string(txn.Status), txn.Notes, createdAt(txn), nullTime(txn.CompletedAt),
	)
	if err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT insert_transaction`); rbErr != nil {
			return rbErr
		}
		return translate(err)
	}
	if _, err := t.tx.ExecContext(ctx, `RELEASE SAVEPOINT insert_transaction`); err != nil {
		return err
	}
	return t.insertLineItems(ctx, txn.ID, txn.Items)
}

func createdAt(txn domain.Transaction) any {
	if txn.CreatedAt.IsZero() {
		return nil
	}
	return txn.CreatedAt
}

func (t *pgTx) GetTransactionForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, t.tx, transactionSelect+` WHERE id = $1 FOR UPDATE`, id)
}

// UpdateTransaction rewrites the mutable header columns. Number, creation
// time and line items are left alone.
func (t *pgTx) UpdateTransaction(ctx context.Context, txn domain.Transaction) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE transactions SET
	cashier = $2, gross_total = $3, discount = $4, net_total = $5, amount_paid = $6,
	change_due = $7, payment_method = $8, customer_type = $9, status = $10, notes = $11,
	completed_at = $12
WHERE id = $1`,
		txn.ID, txn.Cashier, txn.GrossTotal, txn.Discount, txn.NetTotal, txn.AmountPaid,
		txn.ChangeDue, string(txn.PaymentMethod), string(txn.CustomerType), string(txn.Status),
		txn.Notes, nullTime(txn.CompletedAt),
	)
	if err != nil {
		return translate(err)
	}
	return rowsAffected(res)
}

func (t *pgTx) ReplaceLineItems(ctx context.Context, transactionID string, items []domain.LineItem) error {
	var exists bool
	if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, transactionID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM line_items WHERE transaction_id = $1`, transactionID); err != nil {
		return err
	}
	return t.insertLineItems(ctx, transactionID, items)
}

func (t *pgTx) insertLineItems(ctx context.Context, transactionID string, items []domain.LineItem) error {
	for i, item := range items {
		if item.ID == "" {
			item.ID = xid.New("li")
		}
		_, err := t.tx.ExecContext(ctx, `
INSERT INTO line_items (id, transaction_id, variant_id, variant_name, quantity, unit_price, subtotal, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, transactionID, item.VariantID, item.VariantName,
			item.Quantity, item.UnitPrice, item.Subtotal, i,
		)
		if err != nil {
			return translate(err)
		}
	}
	return nil
}
