package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/xid"
)

// Store keeps every table in process memory. RunInTx holds the write lock for
// the whole unit and works on a copy of the table maps, which replaces the live
// state only when the callback succeeds. Callbacks must not call back into the
// Store itself.
type Store struct {
	mu sync.RWMutex
	st *state
	// now is overridable so tests can pin timestamps.
	now func() time.Time
}

var _ store.Repository = (*Store)(nil)

type state struct {
	categories     map[string]domain.Category
	suppliers      map[string]domain.Supplier
	products       map[string]domain.Product
	variants       map[string]domain.Variant
	movements      []domain.StockMovement
	nextMovementID int64
	transactions   map[string]domain.Transaction
	txNumbers      map[string]string
	debts          map[string]domain.DebtCredit
	payments       []domain.Payment
	customers      map[string]domain.Customer
	customerNames  map[string]string
	savings        []domain.SavingsMovement
	nextSavingsID  int64
	expenses       map[string]domain.Expense
	storeInfo      *domain.StoreInfo
	users          map[string]domain.UserAccount
	auditLogs      []domain.AuditLog
}

func newState() *state {
	return &state{
		categories:    make(map[string]domain.Category),
		suppliers:     make(map[string]domain.Supplier),
		products:      make(map[string]domain.Product),
		variants:      make(map[string]domain.Variant),
		transactions:  make(map[string]domain.Transaction),
		txNumbers:     make(map[string]string),
		debts:         make(map[string]domain.DebtCredit),
		customers:     make(map[string]domain.Customer),
		customerNames: make(map[string]string),
		expenses:      make(map[string]domain.Expense),
		users:         make(map[string]domain.UserAccount),
	}
}

// clone copies the table maps. The append-only logs keep sharing their backing
// arrays: a rolled-back unit only ever wrote past the live slice length.
func (s *state) clone() *state {
	next := *s
	next.categories = maps.Clone(s.categories)
	next.suppliers = maps.Clone(s.suppliers)
	next.products = maps.Clone(s.products)
	next.variants = maps.Clone(s.variants)
	next.transactions = maps.Clone(s.transactions)
	next.txNumbers = maps.Clone(s.txNumbers)
	next.debts = maps.Clone(s.debts)
	next.customers = maps.Clone(s.customers)
	next.customerNames = maps.Clone(s.customerNames)
	next.expenses = maps.Clone(s.expenses)
	next.users = maps.Clone(s.users)
	if s.storeInfo != nil {
		info := *s.storeInfo
		next.storeInfo = &info
	}
	return &next
}

func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the timestamp source used for rows written without one.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, &memTx{st: snapshot, now: s.now}); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.st.categories))
	slices.SortFunc(out, func(a, b domain.Category) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.st.categories {
		if existing.Name == category.Name {
			return nil, &store.DuplicateError{Field: "name", Value: category.Name}
		}
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = s.now()
	}
	s.st.categories[category.ID] = category
	return &category, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.categories[category.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.st.categories {
		if id != category.ID && other.Name == category.Name {
			return nil, &store.DuplicateError{Field: "name", Value: category.Name}
		}
	}
	category.CreatedAt = existing.CreatedAt
	s.st.categories[category.ID] = category
	return &category, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.categories[id]; !ok {
		return store.ErrNotFound
	}
	for _, product := range s.st.products {
		if product.CategoryID == id {
			return store.ErrInvalidState
		}
	}
	delete(s.st.categories, id)
	return nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.st.suppliers))
	slices.SortFunc(out, func(a, b domain.Supplier) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.st.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = s.now()
	}
	s.st.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.suppliers[supplier.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	supplier.CreatedAt = existing.CreatedAt
	s.st.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.Product, 0, len(s.st.products))
	for _, product := range s.st.products {
		if filter.CategoryID != "" && product.CategoryID != filter.CategoryID {
			continue
		}
		variants := make([]domain.Variant, 0, 4)
		for _, v := range s.st.productVariants(product.ID) {
			if !v.Active && !filter.IncludeInactive {
				continue
			}
			if filter.FavoritesOnly && !v.Favorite {
				continue
			}
			variants = append(variants, v)
		}
		if filter.FavoritesOnly && len(variants) == 0 {
			continue
		}
		if search != "" && !productMatches(product, variants, search) {
			continue
		}
		product.Variants = variants
		out = append(out, product)
	}
	slices.SortFunc(out, func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func productMatches(product domain.Product, variants []domain.Variant, search string) bool {
	if strings.Contains(strings.ToLower(product.Name), search) {
		return true
	}
	for _, v := range variants {
		if strings.Contains(strings.ToLower(v.Name), search) || strings.Contains(strings.ToLower(v.SKU), search) {
			return true
		}
	}
	return false
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Variants = s.st.productVariants(id)
	return &product, nil
}

func (s *Store) GetVariant(_ context.Context, id string) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.st.variant(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (s *Store) GetVariantBySKU(_ context.Context, sku string) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, v := range s.st.variants {
		if v.SKU != "" && v.SKU == sku {
			found, _ := s.st.variant(id)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListVariants(_ context.Context, includeInactive bool) ([]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Variant, 0, len(s.st.variants))
	for id, v := range s.st.variants {
		if !v.Active && !includeInactive {
			continue
		}
		full, _ := s.st.variant(id)
		out = append(out, full)
	}
	slices.SortFunc(out, compareVariants)
	return out, nil
}

func (s *Store) ListMovements(_ context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockMovement, 0, 64)
	for i := len(s.st.movements) - 1; i >= 0; i-- {
		m := s.st.movements[i]
		if filter.VariantID != "" && m.VariantID != filter.VariantID {
			continue
		}
		if filter.Reason != "" && m.Reason != filter.Reason {
			continue
		}
		if filter.ExcludeReason != "" && m.Reason == filter.ExcludeReason {
			continue
		}
		if !inRange(m.CreatedAt, filter.From, filter.To) {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.st.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	txn = cloneTransaction(txn)
	return &txn, nil
}

func (s *Store) ListTransactions(_ context.Context, q store.TransactionQuery) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0, 64)
	for _, txn := range s.st.transactions {
		if q.CompletedOnly {
			if txn.Status != domain.TxStatusCompleted || txn.CompletedAt == nil || !inRange(*txn.CompletedAt, q.From, q.To) {
				continue
			}
		} else if !inRange(txn.CreatedAt, q.From, q.To) {
			continue
		}
		if q.Status != "" && txn.Status != q.Status {
			continue
		}
		if q.Cashier != "" && txn.Cashier != q.Cashier {
			continue
		}
		if q.PaymentMethod != "" && txn.PaymentMethod != q.PaymentMethod {
			continue
		}
		out = append(out, cloneTransaction(txn))
	}
	slices.SortFunc(out, func(a, b domain.Transaction) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(b.ID, a.ID))
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) GetDebtCredit(_ context.Context, id string) (*domain.DebtCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	debt, ok := s.st.debt(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &debt, nil
}

func (s *Store) ListDebtCredits(_ context.Context, filter domain.DebtFilter) ([]domain.DebtCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.DebtCredit, 0, len(s.st.debts))
	for id := range s.st.debts {
		debt, _ := s.st.debt(id)
		if filter.Type != "" && debt.Type != filter.Type {
			continue
		}
		if filter.Settled != nil && debt.Settled != *filter.Settled {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(debt.Counterparty()), search) {
			continue
		}
		out = append(out, debt)
	}
	slices.SortFunc(out, func(a, b domain.DebtCredit) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(b.ID, a.ID))
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) ListPayments(_ context.Context, debtType domain.DebtType, from time.Time, to time.Time) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Payment, 0, 32)
	for _, p := range s.st.payments {
		if debtType != "" && s.st.debts[p.DebtCreditID].Type != debtType {
			continue
		}
		if !inRange(p.PaidAt, from, to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ListCustomers(_ context.Context, search string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Customer, 0, len(s.st.customers))
	for _, c := range s.st.customers {
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) && !strings.Contains(c.Phone, search) {
			continue
		}
		c.SavingsBalance = s.st.savingsBalance(c.ID)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Customer) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.st.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.SavingsBalance = s.st.savingsBalance(id)
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.customerNames[customer.Name]; exists {
		return nil, &store.DuplicateError{Field: "name", Value: customer.Name}
	}
	created := s.st.insertCustomer(customer, s.now())
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.customers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if owner, taken := s.st.customerNames[customer.Name]; taken && owner != customer.ID {
		return nil, &store.DuplicateError{Field: "name", Value: customer.Name}
	}
	delete(s.st.customerNames, existing.Name)
	customer.CreatedAt = existing.CreatedAt
	s.st.customers[customer.ID] = customer
	s.st.customerNames[customer.Name] = customer.ID
	customer.SavingsBalance = s.st.savingsBalance(customer.ID)
	return &customer, nil
}

func (s *Store) ListSavingsMovements(_ context.Context, customerID string) ([]domain.SavingsMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SavingsMovement, 0, 16)
	for i := len(s.st.savings) - 1; i >= 0; i-- {
		if s.st.savings[i].CustomerID == customerID {
			out = append(out, s.st.savings[i])
		}
	}
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = s.now()
	}
	s.st.expenses[expense.ID] = expense
	return &expense, nil
}

func (s *Store) ListExpenses(_ context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Expense, 0, 16)
	for _, e := range s.st.expenses {
		if inRange(e.Date, from, to) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b domain.Expense) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.expenses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.st.expenses, id)
	return nil
}

func (s *Store) InitStoreInfo(_ context.Context, defaults domain.StoreInfo) (*domain.StoreInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.storeInfo == nil {
		info := defaults
		info.UpdatedAt = s.now()
		s.st.storeInfo = &info
	}
	info := *s.st.storeInfo
	return &info, nil
}

func (s *Store) UpdateStoreInfo(_ context.Context, info domain.StoreInfo) (*domain.StoreInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info.UpdatedAt = s.now()
	s.st.storeInfo = &info
	saved := info
	return &saved, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.st.users[user.Username]; exists {
		return &store.DuplicateError{Field: "username", Value: user.Username}
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.st.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.st.users))
	slices.SortFunc(out, func(a, b domain.UserAccount) int { return strings.Compare(a.Username, b.Username) })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, ok := s.st.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.st.users[username] = user
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.st.auditLogs = append(s.st.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, 32)
	for i := len(s.st.auditLogs) - 1; i >= 0; i-- {
		entry := s.st.auditLogs[i]
		if !inRange(entry.CreatedAt, from, to) {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// variant returns a copy decorated with its product name.
func (s *state) variant(id string) (domain.Variant, bool) {
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, false
	}
	v.ProductName = s.products[v.ProductID].Name
	v.PriceRules = slices.Clone(v.PriceRules)
	return v, true
}

func (s *state) productVariants(productID string) []domain.Variant {
	out := make([]domain.Variant, 0, 4)
	for id, v := range s.variants {
		if v.ProductID != productID {
			continue
		}
		full, _ := s.variant(id)
		out = append(out, full)
	}
	slices.SortFunc(out, compareVariants)
	return out
}

func (s *state) debt(id string) (domain.DebtCredit, bool) {
	debt, ok := s.debts[id]
	if !ok {
		return domain.DebtCredit{}, false
	}
	if debt.SupplierID != "" {
		debt.SupplierName = s.suppliers[debt.SupplierID].Name
	}
	paid := decimal.Zero
	debt.Payments = make([]domain.Payment, 0, 4)
	for _, p := range s.payments {
		if p.DebtCreditID == id {
			debt.Payments = append(debt.Payments, p)
			paid = paid.Add(p.Amount)
		}
	}
	debt.Recompute(paid)
	return debt, true
}

func (s *state) savingsBalance(customerID string) decimal.Decimal {
	balance := decimal.Zero
	for _, m := range s.savings {
		if m.CustomerID == customerID {
			balance = balance.Add(m.Delta())
		}
	}
	return balance
}

func (s *state) insertCustomer(customer domain.Customer, now time.Time) domain.Customer {
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.SavingsBalance = decimal.Zero
	s.customers[customer.ID] = customer
	s.customerNames[customer.Name] = customer.ID
	return customer
}

func compareVariants(a, b domain.Variant) int {
	if c := strings.Compare(a.ProductName, b.ProductName); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// inRange treats a zero bound as open; to is exclusive.
func inRange(at time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}

func cloneTransaction(src domain.Transaction) domain.Transaction {
	dst := src
	dst.Items = slices.Clone(src.Items)
	if src.CompletedAt != nil {
		at := *src.CompletedAt
		dst.CompletedAt = &at
	}
	return dst
}
