package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitPcs     Unit = "pcs"
	UnitKg      Unit = "kg"
	UnitGram    Unit = "gram"
	UnitLiter   Unit = "liter"
	UnitBungkus Unit = "bungkus"
	UnitSachet  Unit = "sachet"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	CreatedAt     time.Time `json:"created_at"`
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CategoryID  string    `json:"category_id,omitempty"`
	Description string    `json:"description"`
	Variants    []Variant `json:"variants"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variant is the sellable unit. StockQuantity mirrors the sum of the
// variant's stock movements and is only written by the stock ledger.
type Variant struct {
	ID                string              `json:"id"`
	ProductID         string              `json:"product_id"`
	ProductName       string              `json:"product_name,omitempty"`
	Name              string              `json:"name"`
	SKU               string              `json:"sku,omitempty"`
	Unit              Unit                `json:"unit"`
	PurchasePrice     decimal.Decimal     `json:"purchase_price"`
	NormalPrice       decimal.Decimal     `json:"normal_price"`
	ResellerPrice     decimal.NullDecimal `json:"reseller_price"`
	StockQuantity     decimal.Decimal     `json:"stock_quantity"`
	TrackStock        bool                `json:"track_stock"`
	LowStockThreshold decimal.Decimal     `json:"low_stock_threshold"`
	Favorite          bool                `json:"favorite"`
	SupplierID        string              `json:"supplier_id,omitempty"`
	Active            bool                `json:"active"`
	PriceRules        []QuantityPriceRule `json:"price_rules"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// DisplayName is the label printed on receipts and line items.
func (v Variant) DisplayName() string {
	if v.ProductName == "" {
		return v.Name
	}
	return v.ProductName + " - " + v.Name
}

// QuantityPriceRule is stored with the variant but never applied by pricing.
type QuantityPriceRule struct {
	ID          string          `json:"id"`
	VariantID   string          `json:"variant_id"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type SupplierRequest struct {
	Name          string `json:"name" validate:"required,max=150"`
	ContactPerson string `json:"contact_person" validate:"max=100"`
	Phone         string `json:"phone" validate:"max=30"`
	Address       string `json:"address"`
}

type ProductCreateRequest struct {
	Name        string                 `json:"name" validate:"required,max=200"`
	CategoryID  string                 `json:"category_id"`
	Description string                 `json:"description"`
	Variants    []VariantCreateRequest `json:"variants" validate:"dive"`
}

type ProductUpdateRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	CategoryID  *string `json:"category_id,omitempty"`
	Description *string `json:"description,omitempty"`
}

type PriceRuleInput struct {
	MinQuantity decimal.Decimal `json:"min_quantity" validate:"gt=0"`
	TotalPrice  decimal.Decimal `json:"total_price" validate:"gt=0"`
}

type VariantCreateRequest struct {
	Name              string              `json:"name" validate:"required,max=100"`
	SKU               string              `json:"sku" validate:"max=100"`
	Unit              Unit                `json:"unit" validate:"omitempty,oneof=pcs kg gram liter bungkus sachet"`
	PurchasePrice     decimal.Decimal     `json:"purchase_price" validate:"gte=0"`
	NormalPrice       decimal.Decimal     `json:"normal_price" validate:"gt=0"`
	ResellerPrice     decimal.NullDecimal `json:"reseller_price" validate:"omitempty,gte=0"`
	InitialStock      decimal.Decimal     `json:"initial_stock" validate:"gte=0"`
	TrackStock        *bool               `json:"track_stock,omitempty"`
	LowStockThreshold decimal.Decimal     `json:"low_stock_threshold" validate:"gte=0"`
	Favorite          bool                `json:"favorite"`
	SupplierID        string              `json:"supplier_id"`
	PriceRules        []PriceRuleInput    `json:"price_rules" validate:"dive"`
}

// VariantUpdateRequest omits stock on purpose: stock only moves through the ledger.
type VariantUpdateRequest struct {
	Name              *string              `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	SKU               *string              `json:"sku,omitempty" validate:"omitempty,max=100"`
	Unit              *Unit                `json:"unit,omitempty" validate:"omitempty,oneof=pcs kg gram liter bungkus sachet"`
	PurchasePrice     *decimal.Decimal     `json:"purchase_price,omitempty" validate:"omitempty,gte=0"`
	NormalPrice       *decimal.Decimal     `json:"normal_price,omitempty" validate:"omitempty,gt=0"`
	ResellerPrice     *decimal.NullDecimal `json:"reseller_price,omitempty"`
	TrackStock        *bool                `json:"track_stock,omitempty"`
	LowStockThreshold *decimal.Decimal     `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	Favorite          *bool                `json:"favorite,omitempty"`
	SupplierID        *string              `json:"supplier_id,omitempty"`
	PriceRules        *[]PriceRuleInput    `json:"price_rules,omitempty" validate:"omitempty,dive"`
}

type ProductFilter struct {
	Search          string
	CategoryID      string
	FavoritesOnly   bool
	IncludeInactive bool
}

// BarcodeProduct is the catalog pre-fill returned by the barcode lookup.
type BarcodeProduct struct {
	Barcode     string `json:"barcode"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
	SKU         string `json:"sku"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
}
