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

const variantSelect = `
SELECT v.id, v.product_id, p.name, v.name, COALESCE(v.sku, ''), v.unit,
	v.purchase_price, v.normal_price, v.reseller_price, v.stock_quantity,
	v.track_stock, v.low_stock_threshold, v.favorite, COALESCE(v.supplier_id, ''),
	v.active, v.created_at, v.updated_at
FROM variants v
JOIN products p ON p.id = v.product_id`

const variantOrder = ` ORDER BY p.name, v.name`

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	err := s.db.QueryRowContext(ctx, `
INSERT INTO categories (id, name, description)
VALUES ($1, $2, $3)
RETURNING created_at`, category.ID, category.Name, category.Description).Scan(&category.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	err := s.db.QueryRowContext(ctx, `
UPDATE categories SET name = $2, description = $3
WHERE id = $1
RETURNING created_at`, category.ID, category.Name, category.Description).Scan(&category.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return rowsAffected(res)
}

const supplierSelect = `SELECT id, name, contact_person, phone, address, created_at FROM suppliers`

func scanSupplier(row rowScanner) (domain.Supplier, error) {
	var sup domain.Supplier
	err := row.Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Phone, &sup.Address, &sup.CreatedAt)
	return sup, err
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, supplierSelect+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sup)
	}
	return out, rows.Err()
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	sup, err := scanSupplier(s.db.QueryRowContext(ctx, supplierSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sup, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	err := s.db.QueryRowContext(ctx, `
INSERT INTO suppliers (id, name, contact_person, phone, address)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`,
		supplier.ID, supplier.Name, supplier.ContactPerson, supplier.Phone, supplier.Address,
	).Scan(&supplier.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &supplier, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	err := s.db.QueryRowContext(ctx, `
UPDATE suppliers SET name = $2, contact_person = $3, phone = $4, address = $5
WHERE id = $1
RETURNING created_at`,
		supplier.ID, supplier.Name, supplier.ContactPerson, supplier.Phone, supplier.Address,
	).Scan(&supplier.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &supplier, nil
}

func scanVariant(row rowScanner) (domain.Variant, error) {
	var (
		v    domain.Variant
		unit string
	)
	err := row.Scan(
		&v.ID, &v.ProductID, &v.ProductName, &v.Name, &v.SKU, &unit,
		&v.PurchasePrice, &v.NormalPrice, &v.ResellerPrice, &v.StockQuantity,
		&v.TrackStock, &v.LowStockThreshold, &v.Favorite, &v.SupplierID,
		&v.Active, &v.CreatedAt, &v.UpdatedAt,
	)
	v.Unit = domain.Unit(unit)
	return v, err
}

// queryVariants runs a variant select and attaches the price rules in one
// extra round trip.
func queryVariants(ctx context.Context, q querier, query string, args ...any) ([]domain.Variant, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Variant, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	rules, err := loadPriceRules(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].PriceRules = rules[out[i].ID]
		if out[i].PriceRules == nil {
			out[i].PriceRules = []domain.QuantityPriceRule{}
		}
	}
	return out, nil
}

func loadPriceRules(ctx context.Context, q querier, variantIDs []string) (map[string][]domain.QuantityPriceRule, error) {
	out := make(map[string][]domain.QuantityPriceRule, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx, `
SELECT id, variant_id, min_quantity, total_price
FROM quantity_price_rules
WHERE variant_id = ANY($1)
ORDER BY variant_id, min_quantity`, variantIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rule domain.QuantityPriceRule
		if err := rows.Scan(&rule.ID, &rule.VariantID, &rule.MinQuantity, &rule.TotalPrice); err != nil {
			return nil, err
		}
		out[rule.VariantID] = append(out[rule.VariantID], rule)
	}
	return out, rows.Err()
}

func getVariant(ctx context.Context, q querier, id string) (*domain.Variant, error) {
	variants, err := queryVariants(ctx, q, variantSelect+` WHERE v.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, store.ErrNotFound
	}
	return &variants[0], nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	products, err := queryProducts(ctx, s.db, `SELECT id, name, COALESCE(category_id, ''), description, created_at, updated_at
FROM products `+whereSQL(where)+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}

	vWhere := []string{}
	if !filter.IncludeInactive {
		vWhere = append(vWhere, "v.active")
	}
	if filter.FavoritesOnly {
		vWhere = append(vWhere, "v.favorite")
	}
	variants, err := queryVariants(ctx, s.db, variantSelect+" "+whereSQL(vWhere)+variantOrder)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[string][]domain.Variant, len(products))
	for _, v := range variants {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.Product, 0, len(products))
	for _, product := range products {
		product.Variants = byProduct[product.ID]
		if product.Variants == nil {
			product.Variants = []domain.Variant{}
		}
		if filter.FavoritesOnly && len(product.Variants) == 0 {
			continue
		}
		if search != "" && !productMatches(product, search) {
			continue
		}
		out = append(out, product)
	}
	return out, nil
}

func productMatches(product domain.Product, search string) bool {
	if strings.Contains(strings.ToLower(product.Name), search) {
		return true
	}
	for _, v := range product.Variants {
		if strings.Contains(strings.ToLower(v.Name), search) || strings.Contains(strings.ToLower(v.SKU), search) {
			return true
		}
	}
	return false
}

func queryProducts(ctx context.Context, q querier, query string, args ...any) ([]domain.Product, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	products, err := queryProducts(ctx, s.db, `SELECT id, name, COALESCE(category_id, ''), description, created_at, updated_at
FROM products WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, store.ErrNotFound
	}
	product := products[0]
	product.Variants, err = queryVariants(ctx, s.db, variantSelect+` WHERE v.product_id = $1`+variantOrder, id)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetVariant(ctx context.Context, id string) (*domain.Variant, error) {
	return getVariant(ctx, s.db, id)
}

func (s *Store) GetVariantBySKU(ctx context.Context, sku string) (*domain.Variant, error) {
	if sku == "" {
		return nil, store.ErrNotFound
	}
	variants, err := queryVariants(ctx, s.db, variantSelect+` WHERE v.sku = $1`, sku)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, store.ErrNotFound
	}
	return &variants[0], nil
}

func (s *Store) ListVariants(ctx context.Context, includeInactive bool) ([]domain.Variant, error) {
	query := variantSelect
	if !includeInactive {
		query += ` WHERE v.active`
	}
	return queryVariants(ctx, s.db, query+variantOrder)
}

func (s *Store) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	where := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if filter.VariantID != "" {
		args = append(args, filter.VariantID)
		where = append(where, fmt.Sprintf("m.variant_id = $%d", len(args)))
	}
	if filter.Reason != "" {
		args = append(args, string(filter.Reason))
		where = append(where, fmt.Sprintf("m.reason = $%d", len(args)))
	}
	if filter.ExcludeReason != "" {
		args = append(args, string(filter.ExcludeReason))
		where = append(where, fmt.Sprintf("m.reason <> $%d", len(args)))
	}
	where, args = rangeClause(where, args, "m.created_at", filter.From, filter.To)

	query := `
SELECT m.id, m.variant_id, p.name || ' - ' || v.name, m.quantity_change, m.resulting_quantity,
	m.reason, m.note, m.actor, m.created_at
FROM stock_movements m
JOIN variants v ON v.id = m.variant_id
JOIN products p ON p.id = v.product_id
` + whereSQL(where) + ` ORDER BY m.id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StockMovement, 0, 64)
	for rows.Next() {
		var (
			m      domain.StockMovement
			reason string
		)
		if err := rows.Scan(&m.ID, &m.VariantID, &m.VariantName, &m.QuantityChange, &m.ResultingQuantity,
			&reason, &m.Note, &m.Actor, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Reason = domain.MovementReason(reason)
		m.ReasonLabel = m.Reason.Label()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *pgTx) GetVariantsForUpdate(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	out := make(map[string]domain.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	// Lock in id order so concurrent carts touching the same variants queue
	// instead of deadlocking.
	variants, err := queryVariants(ctx, t.tx, variantSelect+` WHERE v.id = ANY($1) ORDER BY v.id FOR UPDATE OF v`, ids)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		out[v.ID] = v
	}
	return out, nil
}

func (t *pgTx) ApplyMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	var productName, variantName string
	err := t.tx.QueryRowContext(ctx, `
UPDATE variants v
SET stock_quantity = v.stock_quantity + $2, updated_at = now()
FROM products p
WHERE v.id = $1 AND p.id = v.product_id
RETURNING v.stock_quantity, p.name, v.name`, movement.VariantID, movement.QuantityChange,
	).Scan(&movement.ResultingQuantity, &productName, &variantName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}

	if movement.VariantName == "" {
		movement.VariantName = domain.Variant{ProductName: productName, Name: variantName}.DisplayName()
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	movement.ReasonLabel = movement.Reason.Label()

	err = t.tx.QueryRowContext(ctx, `
INSERT INTO stock_movements (variant_id, quantity_change, resulting_quantity, reason, note, actor, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		movement.VariantID, movement.QuantityChange, movement.ResultingQuantity,
		string(movement.Reason), movement.Note, movement.Actor, movement.CreatedAt,
	).Scan(&movement.ID)
	if err != nil {
		return nil, translate(err)
	}
	return &movement, nil
}

func (t *pgTx) UpdateVariantPurchasePrice(ctx context.Context, variantID string, price decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE variants SET purchase_price = $2, updated_at = now() WHERE id = $1`, variantID, price)
	if err != nil {
		return translate(err)
	}
	return rowsAffected(res)
}

func (t *pgTx) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	err := t.tx.QueryRowContext(ctx, `
INSERT INTO products (id, name, category_id, description)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`,
		product.ID, product.Name, nullIfEmpty(product.CategoryID), product.Description,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	product.Variants = nil
	return &product, nil
}

func (t *pgTx) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	err := t.tx.QueryRowContext(ctx, `
UPDATE products SET name = $2, category_id = $3, description = $4, updated_at = now()
WHERE id = $1
RETURNING created_at, updated_at`,
		product.ID, product.Name, nullIfEmpty(product.CategoryID), product.Description,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	product.Variants = nil
	return &product, nil
}

// CreateVariant always starts at zero stock; opening stock arrives through
// ApplyMovement.
func (t *pgTx) CreateVariant(ctx context.Context, variant domain.Variant) (*domain.Variant, error) {
	if variant.ID == "" {
		variant.ID = xid.New("var")
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO variants (
	id, product_id, name, sku, unit, purchase_price, normal_price, reseller_price,
	stock_quantity, track_stock, low_stock_threshold, favorite, supplier_id, active
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $12, $13)`,
		variant.ID, variant.ProductID, variant.Name, nullIfEmpty(variant.SKU), string(variant.Unit),
		variant.PurchasePrice, variant.NormalPrice, variant.ResellerPrice,
		variant.TrackStock, variant.LowStockThreshold, variant.Favorite,
		nullIfEmpty(variant.SupplierID), variant.Active,
	)
	if err != nil {
		return nil, translate(err)
	}
	if err := t.replacePriceRules(ctx, variant.ID, variant.PriceRules); err != nil {
		return nil, err
	}
	return getVariant(ctx, t.tx, variant.ID)
}

// UpdateVariant rewrites every descriptive column and the price rules; the
// stock quantity and owning product stay as stored.
func (t *pgTx) UpdateVariant(ctx context.Context, variant domain.Variant) (*domain.Variant, error) {
	res, err := t.tx.ExecContext(ctx, `
UPDATE variants SET
	name = $2, sku = $3, unit = $4, purchase_price = $5, normal_price = $6,
	reseller_price = $7, track_stock = $8, low_stock_threshold = $9, favorite = $10,
	supplier_id = $11, active = $12, updated_at = now()
WHERE id = $1`,
		variant.ID, variant.Name, nullIfEmpty(variant.SKU), string(variant.Unit),
		variant.PurchasePrice, variant.NormalPrice, variant.ResellerPrice,
		variant.TrackStock, variant.LowStockThreshold, variant.Favorite,
		nullIfEmpty(variant.SupplierID), variant.Active,
	)
	if err != nil {
		return nil, translate(err)
	}
	if err := rowsAffected(res); err != nil {
		return nil, err
	}
	if err := t.replacePriceRules(ctx, variant.ID, variant.PriceRules); err != nil {
		return nil, err
	}
	return getVariant(ctx, t.tx, variant.ID)
}

func (t *pgTx) replacePriceRules(ctx context.Context, variantID string, rules []domain.QuantityPriceRule) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM quantity_price_rules WHERE variant_id = $1`, variantID); err != nil {
		return err
	}
	for _, rule := range rules {
		_, err := t.tx.ExecContext(ctx, `
INSERT INTO quantity_price_rules (id, variant_id, min_quantity, total_price)
VALUES ($1, $2, $3, $4)`, xid.New("qpr"), variantID, rule.MinQuantity, rule.TotalPrice)
		if err != nil {
			return translate(err)
		}
	}
	return nil
}

func (t *pgTx) SetVariantActive(ctx context.Context, variantID string, active bool) (*domain.Variant, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE variants SET active = $2, updated_at = now() WHERE id = $1`, variantID, active)
	if err != nil {
		return nil, err
	}
	if err := rowsAffected(res); err != nil {
		return nil, err
	}
	return getVariant(ctx, t.tx, variantID)
}
