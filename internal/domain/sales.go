package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "Tunai"
	PaymentQRIS  PaymentMethod = "QRIS"
	PaymentDebit PaymentMethod = "Debit"
)

type CustomerType string

const (
	CustomerRegular  CustomerType = "Biasa"
	CustomerReseller CustomerType = "Reseller"
)

type TxStatus string

const (
	TxStatusCompleted TxStatus = "Selesai"
	TxStatusCancelled TxStatus = "Dibatalkan"
	TxStatusHeld      TxStatus = "Ditahan"
)

type Transaction struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	Cashier       string          `json:"cashier"`
	Items         []LineItem      `json:"items"`
	GrossTotal    decimal.Decimal `json:"gross_total"`
	Discount      decimal.Decimal `json:"discount"`
	NetTotal      decimal.Decimal `json:"net_total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	ChangeDue     decimal.Decimal `json:"change_due"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CustomerType  CustomerType    `json:"customer_type"`
	Status        TxStatus        `json:"status"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// LineItem keeps the unit price captured at pricing time.
type LineItem struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	VariantID     string          `json:"variant_id"`
	VariantName   string          `json:"variant_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Position      int             `json:"position"`
}

type SaleItemInput struct {
	VariantID string          `json:"variant_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
}

type CreateSaleRequest struct {
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required,oneof=Tunai QRIS Debit"`
	AmountPaid    decimal.Decimal `json:"amount_paid" validate:"gte=0"`
	Discount      decimal.Decimal `json:"discount" validate:"gte=0"`
	CustomerType  CustomerType    `json:"customer_type" validate:"omitempty,oneof=Biasa Reseller"`
	Items         []SaleItemInput `json:"items" validate:"required,min=1,dive"`
	Notes         string          `json:"notes"`
}

type HoldRequest struct {
	CustomerType CustomerType    `json:"customer_type" validate:"omitempty,oneof=Biasa Reseller"`
	Items        []SaleItemInput `json:"items" validate:"required,min=1,dive"`
	Notes        string          `json:"notes"`
}

type ResumeRequest struct {
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required,oneof=Tunai QRIS Debit"`
	AmountPaid    decimal.Decimal `json:"amount_paid" validate:"gte=0"`
	Discount      decimal.Decimal `json:"discount" validate:"gte=0"`
}

type UpdateHeldRequest struct {
	CustomerType *CustomerType   `json:"customer_type,omitempty" validate:"omitempty,oneof=Biasa Reseller"`
	Items        []SaleItemInput `json:"items" validate:"required,min=1,dive"`
	Notes        *string         `json:"notes,omitempty"`
}

type TransactionFilter struct {
	From          time.Time
	To            time.Time
	Cashier       string
	PaymentMethod PaymentMethod
	Status        TxStatus
	Limit         int
}

type TransactionSummary struct {
	Count      int             `json:"count"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

type TransactionList struct {
	Transactions []Transaction      `json:"transactions"`
	Summary      TransactionSummary `json:"summary"`
}

type Receipt struct {
	Store       StoreInfo   `json:"store"`
	Transaction Transaction `json:"transaction"`
}
