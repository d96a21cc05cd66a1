package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"tokobuning/backend/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// maxTxAttempts bounds RunInTx retries after serialization failures.
const maxTxAttempts = 3

var (
	_ store.Repository = (*Store)(nil)
	_ store.Tx         = (*pgTx)(nil)
)

type Store struct {
	db *sql.DB
}

// querier is satisfied by *sql.DB and *sql.Tx so reads can run inside or
// outside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
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

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// RunInTx runs fn in a SERIALIZABLE transaction and retries the whole unit
// when Postgres reports a serialization failure.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// pgTx implements store.Tx on top of one database transaction.
type pgTx struct {
	tx *sql.Tx
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// constraintFields names the field behind each unique constraint.
var constraintFields = map[string]string{
	"categories_name_key":          "name",
	"products_name_key":            "name",
	"variants_sku_key":             "sku",
	"variants_product_name_key":    "variant name",
	"quantity_price_rules_min_key": "min_quantity",
	"transactions_number_key":      "number",
	"customers_name_key":           "name",
	"app_users_pkey":               "username",
}

// translate maps constraint violations onto the store sentinels.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		field, ok := constraintFields[pgErr.ConstraintName]
		if !ok {
			field = pgErr.ConstraintName
		}
		return &store.DuplicateError{Field: field, Value: keyValue(pgErr.Detail)}
	case "23503":
		// The referencing side is missing its parent on insert or update; the
		// referenced side is still in use on delete.
		if strings.Contains(pgErr.Message, "update or delete on table") {
			return fmt.Errorf("%w: %s", store.ErrInvalidState, pgErr.Message)
		}
		return fmt.Errorf("%w: %s", store.ErrNotFound, pgErr.Detail)
	case "23514":
		return fmt.Errorf("%w: %s", store.ErrInvalidTransaction, pgErr.ConstraintName)
	}
	return err
}

// keyValue extracts the value from a detail such as `Key (sku)=(ABC) already exists.`
func keyValue(detail string) string {
	_, rest, ok := strings.Cut(detail, ")=(")
	if !ok {
		return ""
	}
	if i := strings.LastIndex(rest, ")"); i >= 0 {
		return rest[:i]
	}
	return rest
}

func rowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
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

func timePtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time.UTC()
	return &t
}

// rangeClause appends half-open bounds on column; zero bounds stay open.
func rangeClause(where []string, args []any, column string, from time.Time, to time.Time) ([]string, []any) {
	if !from.IsZero() {
		args = append(args, from)
		where = append(where, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		where = append(where, fmt.Sprintf("%s < $%d", column, len(args)))
	}
	return where, args
}

func whereSQL(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(where, " AND ")
}
