package memory

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/xid"
)

var _ store.Tx = (*memTx)(nil)

// memTx mutates a private snapshot; the exclusive store lock stands in for row locks.
type memTx struct {
	st  *state
	now func() time.Time
}

func (t *memTx) GetVariantsForUpdate(_ context.Context, ids []string) (map[string]domain.Variant, error) {
	out := make(map[string]domain.Variant, len(ids))
	for _, id := range ids {
		if v, ok := t.st.variant(id); ok {
			out[id] = v
		}
	}
	return out, nil
}

func (t *memTx) ApplyMovement(_ context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	v, ok := t.st.variants[movement.VariantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	now := t.now()
	v.StockQuantity = v.StockQuantity.Add(movement.QuantityChange)
	v.UpdatedAt = now
	t.st.variants[v.ID] = v

	t.st.nextMovementID++
	movement.ID = t.st.nextMovementID
	movement.ResultingQuantity = v.StockQuantity
	movement.ReasonLabel = movement.Reason.Label()
	if movement.VariantName == "" {
		full, _ := t.st.variant(v.ID)
		movement.VariantName = full.DisplayName()
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = now
	}
	t.st.movements = append(t.st.movements, movement)
	return &movement, nil
}

func (t *memTx) UpdateVariantPurchasePrice(_ context.Context, variantID string, price decimal.Decimal) error {
	v, ok := t.st.variants[variantID]
	if !ok {
		return store.ErrNotFound
	}
	v.PurchasePrice = price
	v.UpdatedAt = t.now()
	t.st.variants[variantID] = v
	return nil
}

func (t *memTx) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	for _, existing := range t.st.products {
		if existing.Name == product.Name {
			return nil, &store.DuplicateError{Field: "name", Value: product.Name}
		}
	}
	if product.CategoryID != "" {
		if _, ok := t.st.categories[product.CategoryID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	now := t.now()
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	product.Variants = nil
	t.st.products[product.ID] = product
	return &product, nil
}

func (t *memTx) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	existing, ok := t.st.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range t.st.products {
		if id != product.ID && other.Name == product.Name {
			return nil, &store.DuplicateError{Field: "name", Value: product.Name}
		}
	}
	if product.CategoryID != "" {
		if _, ok := t.st.categories[product.CategoryID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = t.now()
	product.Variants = nil
	t.st.products[product.ID] = product
	return &product, nil
}

func (t *memTx) CreateVariant(_ context.Context, variant domain.Variant) (*domain.Variant, error) {
	if _, ok := t.st.products[variant.ProductID]; !ok {
		return nil, store.ErrNotFound
	}
	if variant.ID == "" {
		variant.ID = xid.New("var")
	}
	if err := t.checkSupplier(variant.SupplierID); err != nil {
		return nil, err
	}
	if err := t.checkVariantUnique(variant); err != nil {
		return nil, err
	}
	rules, err := buildRules(variant.ID, variant.PriceRules)
	if err != nil {
		return nil, err
	}
	now := t.now()
	variant.PriceRules = rules
	variant.StockQuantity = decimal.Zero
	variant.CreatedAt = now
	variant.UpdatedAt = now
	variant.ProductName = ""
	t.st.variants[variant.ID] = variant

	created, _ := t.st.variant(variant.ID)
	return &created, nil
}

func (t *memTx) UpdateVariant(_ context.Context, variant domain.Variant) (*domain.Variant, error) {
	existing, ok := t.st.variants[variant.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	variant.ProductID = existing.ProductID
	if err := t.checkSupplier(variant.SupplierID); err != nil {
		return nil, err
	}
	if err := t.checkVariantUnique(variant); err != nil {
		return nil, err
	}
	rules, err := buildRules(variant.ID, variant.PriceRules)
	if err != nil {
		return nil, err
	}
	variant.PriceRules = rules
	variant.StockQuantity = existing.StockQuantity
	variant.CreatedAt = existing.CreatedAt
	variant.UpdatedAt = t.now()
	variant.ProductName = ""
	t.st.variants[variant.ID] = variant

	updated, _ := t.st.variant(variant.ID)
	return &updated, nil
}

func (t *memTx) SetVariantActive(_ context.Context, variantID string, active bool) (*domain.Variant, error) {
	v, ok := t.st.variants[variantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	v.Active = active
	v.UpdatedAt = t.now()
	t.st.variants[variantID] = v

	updated, _ := t.st.variant(variantID)
	return &updated, nil
}

func (t *memTx) checkSupplier(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := t.st.suppliers[id]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (t *memTx) checkVariantUnique(variant domain.Variant) error {
	for id, other := range t.st.variants {
		if id == variant.ID {
			continue
		}
		if other.ProductID == variant.ProductID && other.Name == variant.Name {
			return &store.DuplicateError{Field: "variant name", Value: variant.Name}
		}
		if variant.SKU != "" && other.SKU == variant.SKU {
			return &store.DuplicateError{Field: "sku", Value: variant.SKU}
		}
	}
	return nil
}

func buildRules(variantID string, rules []domain.QuantityPriceRule) ([]domain.QuantityPriceRule, error) {
	out := make([]domain.QuantityPriceRule, 0, len(rules))
	for _, rule := range rules {
		for _, seen := range out {
			if seen.MinQuantity.Equal(rule.MinQuantity) {
				return nil, &store.DuplicateError{Field: "min_quantity", Value: rule.MinQuantity.String()}
			}
		}
		rule.ID = xid.New("qpr")
		rule.VariantID = variantID
		out = append(out, rule)
	}
	slices.SortFunc(out, func(a, b domain.QuantityPriceRule) int { return a.MinQuantity.Cmp(b.MinQuantity) })
	return out, nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn domain.Transaction) error {
	if _, taken := t.st.txNumbers[txn.Number]; taken {
		return &store.DuplicateError{Field: "number", Value: txn.Number}
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = t.now()
	}
	txn.Items = t.stampItems(txn.ID, txn.Items)
	t.st.transactions[txn.ID] = cloneTransaction(txn)
	t.st.txNumbers[txn.Number] = txn.ID
	return nil
}

func (t *memTx) GetTransactionForUpdate(_ context.Context, id string) (*domain.Transaction, error) {
	txn, ok := t.st.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	txn = cloneTransaction(txn)
	return &txn, nil
}

func (t *memTx) UpdateTransaction(_ context.Context, txn domain.Transaction) error {
	existing, ok := t.st.transactions[txn.ID]
	if !ok {
		return store.ErrNotFound
	}
	txn.Number = existing.Number
	txn.CreatedAt = existing.CreatedAt
	txn.Items = existing.Items
	t.st.transactions[txn.ID] = cloneTransaction(txn)
	return nil
}

func (t *memTx) ReplaceLineItems(_ context.Context, transactionID string, items []domain.LineItem) error {
	txn, ok := t.st.transactions[transactionID]
	if !ok {
		return store.ErrNotFound
	}
	txn.Items = t.stampItems(transactionID, items)
	t.st.transactions[transactionID] = txn
	return nil
}

func (t *memTx) stampItems(transactionID string, items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = xid.New("li")
		}
		item.TransactionID = transactionID
		item.Position = i
		out[i] = item
	}
	return out
}

func (t *memTx) InsertDebtCredit(_ context.Context, debt domain.DebtCredit) error {
	if debt.SupplierID != "" {
		if _, ok := t.st.suppliers[debt.SupplierID]; !ok {
			return store.ErrNotFound
		}
	}
	if debt.CreatedAt.IsZero() {
		debt.CreatedAt = t.now()
	}
	debt.Payments = nil
	t.st.debts[debt.ID] = debt
	return nil
}

func (t *memTx) GetDebtCreditForUpdate(_ context.Context, id string) (*domain.DebtCredit, error) {
	debt, ok := t.st.debt(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &debt, nil
}

func (t *memTx) InsertPayment(_ context.Context, payment domain.Payment) error {
	if _, ok := t.st.debts[payment.DebtCreditID]; !ok {
		return store.ErrNotFound
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = t.now()
	}
	t.st.payments = append(t.st.payments, payment)
	return nil
}

func (t *memTx) UpdateDebtCredit(_ context.Context, id string, principal decimal.Decimal, settled bool) error {
	debt, ok := t.st.debts[id]
	if !ok {
		return store.ErrNotFound
	}
	debt.Principal = principal
	debt.Settled = settled
	t.st.debts[id] = debt
	return nil
}

func (t *memTx) GetOrCreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if id, ok := t.st.customerNames[customer.Name]; ok {
		existing := t.st.customers[id]
		existing.SavingsBalance = t.st.savingsBalance(id)
		return &existing, nil
	}
	created := t.st.insertCustomer(customer, t.now())
	return &created, nil
}

func (t *memTx) GetCustomerForUpdate(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := t.st.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.SavingsBalance = t.st.savingsBalance(id)
	return &c, nil
}

func (t *memTx) InsertSavingsMovement(_ context.Context, movement domain.SavingsMovement) (*domain.SavingsMovement, error) {
	if _, ok := t.st.customers[movement.CustomerID]; !ok {
		return nil, store.ErrNotFound
	}
	t.st.nextSavingsID++
	movement.ID = t.st.nextSavingsID
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = t.now()
	}
	t.st.savings = append(t.st.savings, movement)
	return &movement, nil
}
