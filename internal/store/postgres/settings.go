package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/xid"
)

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	err := s.db.QueryRowContext(ctx, `
INSERT INTO expenses (id, description, amount, expense_date, recorded_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`,
		expense.ID, expense.Description, expense.Amount, expense.Date, expense.RecordedBy,
	).Scan(&expense.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	where, args := rangeClause(nil, nil, "expense_date", from, to)
	rows, err := s.db.QueryContext(ctx, `
SELECT id, description, amount, expense_date, recorded_by, created_at
FROM expenses `+whereSQL(where)+`
ORDER BY expense_date DESC, created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Expense, 0, 16)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.Date, &e.RecordedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// InitStoreInfo seeds the single store row on first use and returns whatever
// is stored afterwards.
func (s *Store) InitStoreInfo(ctx context.Context, defaults domain.StoreInfo) (*domain.StoreInfo, error) {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO store_info (id, name, address, phone, receipt_footer)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`, defaults.Name, defaults.Address, defaults.Phone, defaults.ReceiptFooter)
	if err != nil {
		return nil, err
	}

	var info domain.StoreInfo
	err = s.db.QueryRowContext(ctx, `
SELECT name, address, phone, receipt_footer, updated_at
FROM store_info WHERE id = 1`).Scan(&info.Name, &info.Address, &info.Phone, &info.ReceiptFooter, &info.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *Store) UpdateStoreInfo(ctx context.Context, info domain.StoreInfo) (*domain.StoreInfo, error) {
	err := s.db.QueryRowContext(ctx, `
INSERT INTO store_info (id, name, address, phone, receipt_footer, updated_at)
VALUES (1, $1, $2, $3, $4, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	address = EXCLUDED.address,
	phone = EXCLUDED.phone,
	receipt_footer = EXCLUDED.receipt_footer,
	updated_at = EXCLUDED.updated_at
RETURNING updated_at`, info.Name, info.Address, info.Phone, info.ReceiptFooter).Scan(&info.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO app_users (username, password, role, active)
VALUES ($1, $2, $3, $4)`, user.Username, user.Password, string(user.Role), user.Active)
	return translate(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT username, password, role, active, created_at
FROM app_users
ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var (
			user domain.UserAccount
			role string
		)
		if err := rows.Scan(&user.Username, &user.Password, &role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.Role = domain.Role(role)
		out = append(out, user)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrInvalidTransaction)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE app_users SET password = $2, updated_at = now()
WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ActorUsername, string(entry.ActorRole), entry.Action,
		entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt,
	)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	where, args := rangeClause(nil, nil, "created_at", from, to)
	query := `
SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
FROM audit_logs ` + whereSQL(where) + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AuditLog, 0, 32)
	for rows.Next() {
		var (
			entry domain.AuditLog
			role  string
		)
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &role, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.ActorRole = domain.Role(role)
		out = append(out, entry)
	}
	return out, rows.Err()
}
