package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicate           = errors.New("duplicate identifier")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidState        = errors.New("invalid state")
)

// InsufficientStockError names the variant whose cumulative cart quantity
// exceeds the cached stock.
type InsufficientStockError struct {
	VariantID   string
	VariantName string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s", e.VariantName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// DeficitError wraps ErrInsufficientPayment or ErrInsufficientBalance with the amounts involved.
type DeficitError struct {
	Err       error
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *DeficitError) Error() string {
	return fmt.Sprintf("%v: required %s, available %s", e.Err, e.Required, e.Available)
}

func (e *DeficitError) Unwrap() error {
	return e.Err
}

func (e *DeficitError) Deficit() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// Repository holds reads and single-row writes. Every multi-step mutation goes
// through RunInTx so that it commits or rolls back as one unit.
type Repository interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetVariant(ctx context.Context, id string) (*domain.Variant, error)
	GetVariantBySKU(ctx context.Context, sku string) (*domain.Variant, error)
	ListVariants(ctx context.Context, includeInactive bool) ([]domain.Variant, error)
	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error)

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionQuery) ([]domain.Transaction, error)

	GetDebtCredit(ctx context.Context, id string) (*domain.DebtCredit, error)
	ListDebtCredits(ctx context.Context, filter domain.DebtFilter) ([]domain.DebtCredit, error)
	ListPayments(ctx context.Context, debtType domain.DebtType, from time.Time, to time.Time) ([]domain.Payment, error)

	ListCustomers(ctx context.Context, search string) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	ListSavingsMovements(ctx context.Context, customerID string) ([]domain.SavingsMovement, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	InitStoreInfo(ctx context.Context, defaults domain.StoreInfo) (*domain.StoreInfo, error)
	UpdateStoreInfo(ctx context.Context, info domain.StoreInfo) (*domain.StoreInfo, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

// Tx is the unit of work handed to RunInTx callbacks. The ForUpdate reads lock
// the returned rows until the unit commits or rolls back.
type Tx interface {
	GetVariantsForUpdate(ctx context.Context, ids []string) (map[string]domain.Variant, error)
	ApplyMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error)
	UpdateVariantPurchasePrice(ctx context.Context, variantID string, price decimal.Decimal) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	CreateVariant(ctx context.Context, variant domain.Variant) (*domain.Variant, error)
	UpdateVariant(ctx context.Context, variant domain.Variant) (*domain.Variant, error)
	SetVariantActive(ctx context.Context, variantID string, active bool) (*domain.Variant, error)

	InsertTransaction(ctx context.Context, txn domain.Transaction) error
	GetTransactionForUpdate(ctx context.Context, id string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, txn domain.Transaction) error
	ReplaceLineItems(ctx context.Context, transactionID string, items []domain.LineItem) error

	InsertDebtCredit(ctx context.Context, debt domain.DebtCredit) error
	GetDebtCreditForUpdate(ctx context.Context, id string) (*domain.DebtCredit, error)
	InsertPayment(ctx context.Context, payment domain.Payment) error
	UpdateDebtCredit(ctx context.Context, id string, principal decimal.Decimal, settled bool) error

	GetOrCreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerForUpdate(ctx context.Context, id string) (*domain.Customer, error)
	InsertSavingsMovement(ctx context.Context, movement domain.SavingsMovement) (*domain.SavingsMovement, error)
}

// TransactionQuery filters transaction reads. With CompletedOnly set the date
// range applies to completed_at instead of created_at.
type TransactionQuery struct {
	domain.TransactionFilter
	CompletedOnly bool
}
