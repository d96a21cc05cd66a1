package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementReason string

const (
	ReasonPurchase       MovementReason = "PEMBELIAN"
	ReasonInitialStock   MovementReason = "AWAL"
	ReasonCustomerReturn MovementReason = "RETUR"
	ReasonDamaged        MovementReason = "RUSAK"
	ReasonLost           MovementReason = "HILANG"
	ReasonInternalUse    MovementReason = "INTERNAL"
	ReasonPhysicalCount  MovementReason = "OPNAME"
	ReasonSale           MovementReason = "PENJUALAN"
)

func (r MovementReason) Valid() bool {
	switch r {
	case ReasonPurchase, ReasonInitialStock, ReasonCustomerReturn, ReasonDamaged,
		ReasonLost, ReasonInternalUse, ReasonPhysicalCount, ReasonSale:
		return true
	}
	return false
}

func (r MovementReason) Label() string {
	switch r {
	case ReasonPurchase:
		return "Pembelian dari Pemasok"
	case ReasonInitialStock:
		return "Stok Awal"
	case ReasonCustomerReturn:
		return "Retur dari Pelanggan"
	case ReasonDamaged:
		return "Barang Rusak"
	case ReasonLost:
		return "Barang Hilang"
	case ReasonInternalUse:
		return "Pemakaian Internal"
	case ReasonPhysicalCount:
		return "Stok Opname"
	case ReasonSale:
		return "Penjualan"
	}
	return string(r)
}

// Inbound reports whether a manual adjustment with this reason adds stock.
func (r MovementReason) Inbound() bool {
	switch r {
	case ReasonPurchase, ReasonInitialStock, ReasonCustomerReturn:
		return true
	}
	return false
}

// Manual reports whether the reason may be used by a manual stock adjustment.
// Opname and sale movements have dedicated flows.
func (r MovementReason) Manual() bool {
	switch r {
	case ReasonPurchase, ReasonInitialStock, ReasonCustomerReturn,
		ReasonDamaged, ReasonLost, ReasonInternalUse:
		return true
	}
	return false
}

type StockMovement struct {
	ID                int64           `json:"id"`
	VariantID         string          `json:"variant_id"`
	VariantName       string          `json:"variant_name,omitempty"`
	QuantityChange    decimal.Decimal `json:"quantity_change"`
	ResultingQuantity decimal.Decimal `json:"resulting_quantity"`
	Reason            MovementReason  `json:"reason"`
	ReasonLabel       string          `json:"reason_label"`
	Note              string          `json:"note"`
	Actor             string          `json:"actor"`
	CreatedAt         time.Time       `json:"created_at"`
}

type StockAdjustItem struct {
	VariantID     string              `json:"variant_id" validate:"required"`
	Quantity      decimal.Decimal     `json:"quantity" validate:"gt=0"`
	PurchasePrice decimal.NullDecimal `json:"purchase_price" validate:"omitempty,gte=0"`
	Notes         string              `json:"notes"`
}

type StockAdjustRequest struct {
	Reason MovementReason    `json:"reason" validate:"required"`
	Notes  string            `json:"notes"`
	Items  []StockAdjustItem `json:"items" validate:"required,min=1,dive"`
}

type StockAdjustResult struct {
	VariantID string         `json:"variant_id"`
	Applied   bool           `json:"applied"`
	Error     string         `json:"error,omitempty"`
	Movement  *StockMovement `json:"movement,omitempty"`
}

type StockAdjustResponse struct {
	Reason  MovementReason      `json:"reason"`
	Applied int                 `json:"applied"`
	Skipped int                 `json:"skipped"`
	Results []StockAdjustResult `json:"results"`
}

type StockOpnameItem struct {
	VariantID     string          `json:"variant_id" validate:"required"`
	PhysicalCount decimal.Decimal `json:"physical_count" validate:"gte=0"`
}

type StockOpnameRequest struct {
	Notes string            `json:"notes"`
	Items []StockOpnameItem `json:"items" validate:"required,min=1,dive"`
}

type StockOpnameResult struct {
	VariantID      string          `json:"variant_id"`
	VariantName    string          `json:"variant_name,omitempty"`
	Found          bool            `json:"found"`
	SystemQuantity decimal.Decimal `json:"system_quantity"`
	PhysicalCount  decimal.Decimal `json:"physical_count"`
	Discrepancy    decimal.Decimal `json:"discrepancy"`
	Movement       *StockMovement  `json:"movement,omitempty"`
	Error          string          `json:"error,omitempty"`
}

type StockOpnameResponse struct {
	Notes     string              `json:"notes"`
	Adjusted  int                 `json:"adjusted"`
	Results   []StockOpnameResult `json:"results"`
	CreatedAt time.Time           `json:"created_at"`
}

type MovementFilter struct {
	VariantID     string
	Reason        MovementReason
	ExcludeReason MovementReason
	From          time.Time
	To            time.Time
	Limit         int
}
