package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DashboardRange string

const (
	RangeToday DashboardRange = "today"
	RangeWeek  DashboardRange = "week"
	RangeMonth DashboardRange = "month"
)

type KPI struct {
	Value     decimal.Decimal `json:"value"`
	Trend     float64         `json:"trend"`
	TrendText string          `json:"trend_text"`
}

type ChartPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

type PaymentMethodTotal struct {
	Method PaymentMethod   `json:"method"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

type BestSeller struct {
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type Activity struct {
	Kind        string          `json:"kind"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	At          time.Time       `json:"at"`
}

type DashboardReport struct {
	Range          DashboardRange       `json:"range"`
	PeriodStart    time.Time            `json:"period_start"`
	PeriodEnd      time.Time            `json:"period_end"`
	Revenue        KPI                  `json:"revenue"`
	Transactions   KPI                  `json:"transactions"`
	ItemsSold      KPI                  `json:"items_sold"`
	LowStock       KPI                  `json:"low_stock"`
	RevenueChart   []ChartPoint         `json:"revenue_chart"`
	PaymentMethods []PaymentMethodTotal `json:"payment_methods"`
	BestSellers    []BestSeller         `json:"best_sellers"`
	RecentActivity []Activity           `json:"recent_activity"`
}

type CashFlowDetails struct {
	CashSales          decimal.Decimal `json:"cash_sales"`
	ReceivablePayments decimal.Decimal `json:"receivable_payments"`
	PayablePayments    decimal.Decimal `json:"payable_payments"`
	Expenses           decimal.Decimal `json:"expenses"`
}

type CashFlowReport struct {
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	TotalIn   decimal.Decimal `json:"total_in"`
	TotalOut  decimal.Decimal `json:"total_out"`
	NetFlow   decimal.Decimal `json:"net_flow"`
	Details   CashFlowDetails `json:"details"`
}

type ProfitLossReport struct {
	StartDate           string          `json:"start_date"`
	EndDate             string          `json:"end_date"`
	GrossSales          decimal.Decimal `json:"gross_sales"`
	CostOfGoodsSold     decimal.Decimal `json:"cost_of_goods_sold"`
	GrossProfit         decimal.Decimal `json:"gross_profit"`
	OperationalExpenses decimal.Decimal `json:"operational_expenses"`
	NetProfit           decimal.Decimal `json:"net_profit"`
	Expenses            []Expense       `json:"expenses"`
}

type LowStockReport struct {
	Count    int       `json:"count"`
	Variants []Variant `json:"variants"`
}
