package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DebtType string

const (
	DebtPayable    DebtType = "HUTANG"
	DebtReceivable DebtType = "PIUTANG"
)

// DebtCredit is a payable to a supplier or a receivable from a customer.
// AmountPaid, RemainingBalance and Payments are derived from the payment log.
type DebtCredit struct {
	ID               string          `json:"id"`
	Type             DebtType        `json:"type"`
	CustomerName     string          `json:"customer_name,omitempty"`
	SupplierID       string          `json:"supplier_id,omitempty"`
	SupplierName     string          `json:"supplier_name,omitempty"`
	Principal        decimal.Decimal `json:"principal"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Settled          bool            `json:"settled"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	Notes            string          `json:"notes"`
	RecordedBy       string          `json:"recorded_by"`
	CreatedAt        time.Time       `json:"created_at"`
	Payments         []Payment       `json:"payments,omitempty"`
}

// Counterparty is the supplier name for payables and the customer name for receivables.
func (d DebtCredit) Counterparty() string {
	if d.Type == DebtPayable {
		return d.SupplierName
	}
	return d.CustomerName
}

// Recompute derives the paid, remaining and settled fields from the principal
// and the given payment total.
func (d *DebtCredit) Recompute(paid decimal.Decimal) {
	d.AmountPaid = paid
	d.RemainingBalance = d.Principal.Sub(paid)
	d.Settled = !d.RemainingBalance.IsPositive()
}

type Payment struct {
	ID           string          `json:"id"`
	DebtCreditID string          `json:"debt_credit_id"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note"`
	RecordedBy   string          `json:"recorded_by"`
	PaidAt       time.Time       `json:"paid_at"`
}

type PayableCreateRequest struct {
	SupplierID string          `json:"supplier_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	DueDate    string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes      string          `json:"notes"`
}

type ReceivableCreateRequest struct {
	CustomerName string          `json:"customer_name" validate:"required,max=150"`
	Amount       decimal.Decimal `json:"amount" validate:"gt=0"`
	DueDate      string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        string          `json:"notes"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Note   string          `json:"note"`
}

type AddAmountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

type PaymentResult struct {
	Payment    Payment    `json:"payment"`
	DebtCredit DebtCredit `json:"debt_credit"`
}

type DebtFilter struct {
	Type    DebtType
	Settled *bool
	Search  string
	Limit   int
}

type DebtSummary struct {
	Type             DebtType        `json:"type"`
	Count            int             `json:"count"`
	TotalPrincipal   decimal.Decimal `json:"total_principal"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

type TimelineEntry struct {
	ID          string          `json:"id"`
	At          time.Time       `json:"at"`
	Description string          `json:"description"`
	In          decimal.Decimal `json:"in"`
	Out         decimal.Decimal `json:"out"`
}

type DebtTimeline struct {
	Type         DebtType        `json:"type"`
	Counterparty string          `json:"counterparty"`
	Entries      []TimelineEntry `json:"entries"`
	Remaining    decimal.Decimal `json:"remaining_balance"`
}

type SavingsType string

const (
	SavingsDeposit    SavingsType = "MASUK"
	SavingsWithdrawal SavingsType = "KELUAR"
)

type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	SavingsBalance decimal.Decimal `json:"savings_balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

type SavingsMovement struct {
	ID               int64           `json:"id"`
	CustomerID       string          `json:"customer_id"`
	Type             SavingsType     `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
	Note             string          `json:"note"`
	RecordedBy       string          `json:"recorded_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Delta is the signed effect of the movement on the balance.
func (m SavingsMovement) Delta() decimal.Decimal {
	if m.Type == SavingsWithdrawal {
		return m.Amount.Neg()
	}
	return m.Amount
}

type CustomerRequest struct {
	Name    string `json:"name" validate:"required,max=150"`
	Phone   string `json:"phone" validate:"max=30"`
	Address string `json:"address"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=150"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Address *string `json:"address,omitempty"`
}

type DepositRequest struct {
	CustomerName string          `json:"customer_name" validate:"required,max=150"`
	Phone        string          `json:"phone" validate:"max=30"`
	Address      string          `json:"address"`
	Amount       decimal.Decimal `json:"amount" validate:"gt=0"`
	Note         string          `json:"note"`
}

type WithdrawRequest struct {
	CustomerID string          `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	Note       string          `json:"note"`
}

type SavingsResult struct {
	Customer Customer        `json:"customer"`
	Movement SavingsMovement `json:"movement"`
}

type SavingsSummary struct {
	TotalActiveSavings decimal.Decimal `json:"total_active_savings"`
	CustomerCount      int             `json:"customer_count"`
}

type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	RecordedBy  string          `json:"recorded_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ExpenseRequest struct {
	Description string          `json:"description" validate:"required,max=255"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

const (
	DefaultStoreName     = "Toko Bu Ning"
	DefaultReceiptFooter = "Terima Kasih Telah Berbelanja!"
)

type StoreInfo struct {
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Phone         string    `json:"phone"`
	ReceiptFooter string    `json:"receipt_footer"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func DefaultStoreInfo() StoreInfo {
	return StoreInfo{Name: DefaultStoreName, ReceiptFooter: DefaultReceiptFooter}
}

type StoreInfoRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1,max=150"`
	Address       *string `json:"address,omitempty"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	ReceiptFooter *string `json:"receipt_footer,omitempty" validate:"omitempty,max=255"`
}
