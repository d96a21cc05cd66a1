package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
)

const (
	bestSellerCount      = 5
	dashboardActivities  = 5
	recentActivityLimit  = 10
	recentTransactions   = 5
	recentStockMovements = 10
)

type period struct {
	from, to         time.Time
	prevFrom, prevTo time.Time
}

// dashboardPeriod resolves a range name to the current and comparison windows
// in store time. Every window is half-open.
func (s *Service) dashboardPeriod(r domain.DashboardRange) (period, error) {
	today := s.startOfDay(s.now())
	tomorrow := today.AddDate(0, 0, 1)
	switch r {
	case domain.RangeToday, "":
		return period{from: today, to: tomorrow, prevFrom: today.AddDate(0, 0, -1), prevTo: today}, nil
	case domain.RangeWeek:
		from := today.AddDate(0, 0, -6)
		return period{from: from, to: tomorrow, prevFrom: from.AddDate(0, 0, -7), prevTo: from}, nil
	case domain.RangeMonth:
		from := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, s.loc)
		return period{from: from, to: tomorrow, prevFrom: from.AddDate(0, -1, 0), prevTo: from}, nil
	}
	return period{}, invalid("range must be today, week or month")
}

func (s *Service) Dashboard(ctx context.Context, r domain.DashboardRange) (domain.DashboardReport, error) {
	if _, err := s.authorize(ctx, domain.CapViewReports); err != nil {
		return domain.DashboardReport{}, err
	}
	p, err := s.dashboardPeriod(r)
	if err != nil {
		return domain.DashboardReport{}, err
	}
	if r == "" {
		r = domain.RangeToday
	}

	current, err := s.completedBetween(ctx, p.from, p.to, "")
	if err != nil {
		return domain.DashboardReport{}, err
	}
	previous, err := s.completedBetween(ctx, p.prevFrom, p.prevTo, "")
	if err != nil {
		return domain.DashboardReport{}, err
	}
	variants, err := s.repo.ListVariants(ctx, false)
	if err != nil {
		return domain.DashboardReport{}, err
	}
	activity, err := s.recentActivity(ctx, dashboardActivities)
	if err != nil {
		return domain.DashboardReport{}, err
	}

	curRevenue, curItems := totals(current)
	prevRevenue, prevItems := totals(previous)
	lowStock := len(lowStockVariants(variants))

	report := domain.DashboardReport{
		Range:          r,
		PeriodStart:    p.from,
		PeriodEnd:      p.to,
		Revenue:        kpi(curRevenue, prevRevenue),
		Transactions:   kpi(decimal.NewFromInt(int64(len(current))), decimal.NewFromInt(int64(len(previous)))),
		ItemsSold:      kpi(curItems, prevItems),
		LowStock:       domain.KPI{Value: decimal.NewFromInt(int64(lowStock)), TrendText: fmt.Sprintf("%d item perlu di-restock", lowStock)},
		RevenueChart:   s.revenueChart(current, p.from, p.to),
		PaymentMethods: paymentMethodTotals(current),
		BestSellers:    bestSellers(current, variants),
		RecentActivity: activity,
	}
	return report, nil
}

// CashFlow covers inclusive store-local dates. In is cash sales plus
// receivable installments; out is payable installments plus expenses.
func (s *Service) CashFlow(ctx context.Context, startDate string, endDate string) (domain.CashFlowReport, error) {
	if _, err := s.authorize(ctx, domain.CapViewReports); err != nil {
		return domain.CashFlowReport{}, err
	}
	startDate, endDate = s.defaultDates(startDate, endDate)
	from, to, err := s.parseDateRange(startDate, endDate)
	if err != nil {
		return domain.CashFlowReport{}, err
	}

	cashSales, err := s.completedBetween(ctx, from, to, domain.PaymentCash)
	if err != nil {
		return domain.CashFlowReport{}, err
	}
	receivable, err := s.repo.ListPayments(ctx, domain.DebtReceivable, from, to)
	if err != nil {
		return domain.CashFlowReport{}, err
	}
	payable, err := s.repo.ListPayments(ctx, domain.DebtPayable, from, to)
	if err != nil {
		return domain.CashFlowReport{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, from, to)
	if err != nil {
		return domain.CashFlowReport{}, err
	}

	sales, _ := totals(cashSales)
	details := domain.CashFlowDetails{
		CashSales:          sales,
		ReceivablePayments: sumPayments(receivable),
		PayablePayments:    sumPayments(payable),
		Expenses:           sumExpenses(expenses),
	}
	in := details.CashSales.Add(details.ReceivablePayments)
	out := details.PayablePayments.Add(details.Expenses)
	return domain.CashFlowReport{
		StartDate: startDate,
		EndDate:   endDate,
		TotalIn:   in,
		TotalOut:  out,
		NetFlow:   in.Sub(out),
		Details:   details,
	}, nil
}

// ProfitLoss values cost of goods sold at each variant's current purchase price.
func (s *Service) ProfitLoss(ctx context.Context, startDate string, endDate string) (domain.ProfitLossReport, error) {
	if _, err := s.authorize(ctx, domain.CapViewReports); err != nil {
		return domain.ProfitLossReport{}, err
	}
	startDate, endDate = s.defaultDates(startDate, endDate)
	from, to, err := s.parseDateRange(startDate, endDate)
	if err != nil {
		return domain.ProfitLossReport{}, err
	}

	sales, err := s.completedBetween(ctx, from, to, "")
	if err != nil {
		return domain.ProfitLossReport{}, err
	}
	variants, err := s.repo.ListVariants(ctx, true)
	if err != nil {
		return domain.ProfitLossReport{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, from, to)
	if err != nil {
		return domain.ProfitLossReport{}, err
	}

	cost := make(map[string]decimal.Decimal, len(variants))
	for _, v := range variants {
		cost[v.ID] = v.PurchasePrice
	}
	gross, _ := totals(sales)
	cogs := decimal.Zero
	for _, txn := range sales {
		for _, item := range txn.Items {
			cogs = cogs.Add(item.Quantity.Mul(cost[item.VariantID]))
		}
	}
	cogs = cogs.Round(2)
	operational := sumExpenses(expenses)
	grossProfit := gross.Sub(cogs)
	return domain.ProfitLossReport{
		StartDate:           startDate,
		EndDate:             endDate,
		GrossSales:          gross,
		CostOfGoodsSold:     cogs,
		GrossProfit:         grossProfit,
		OperationalExpenses: operational,
		NetProfit:           grossProfit.Sub(operational),
		Expenses:            expenses,
	}, nil
}

func (s *Service) LowStock(ctx context.Context) (domain.LowStockReport, error) {
	if _, err := s.authorizeAny(ctx, domain.CapViewReports, domain.CapManageStock); err != nil {
		return domain.LowStockReport{}, err
	}
	variants, err := s.repo.ListVariants(ctx, false)
	if err != nil {
		return domain.LowStockReport{}, err
	}
	low := lowStockVariants(variants)
	return domain.LowStockReport{Count: len(low), Variants: low}, nil
}

// BestSellers ranks active variants by quantity sold over the last seven days.
func (s *Service) BestSellers(ctx context.Context) ([]domain.BestSeller, error) {
	if _, err := s.authorize(ctx, domain.CapViewReports); err != nil {
		return nil, err
	}
	today := s.startOfDay(s.now())
	sales, err := s.completedBetween(ctx, today.AddDate(0, 0, -6), today.AddDate(0, 0, 1), "")
	if err != nil {
		return nil, err
	}
	variants, err := s.repo.ListVariants(ctx, false)
	if err != nil {
		return nil, err
	}
	return bestSellers(sales, variants), nil
}

func (s *Service) RecentActivity(ctx context.Context) ([]domain.Activity, error) {
	if _, err := s.authorize(ctx, domain.CapViewReports); err != nil {
		return nil, err
	}
	return s.recentActivity(ctx, recentActivityLimit)
}

// recentActivity merges the latest completed sales with the latest non-sale
// stock movements, newest first.
func (s *Service) recentActivity(ctx context.Context, limit int) ([]domain.Activity, error) {
	txns, err := s.repo.ListTransactions(ctx, store.TransactionQuery{TransactionFilter: domain.TransactionFilter{
		Status: domain.TxStatusCompleted,
		Limit:  recentTransactions,
	}})
	if err != nil {
		return nil, err
	}
	movements, err := s.repo.ListMovements(ctx, domain.MovementFilter{
		ExcludeReason: domain.ReasonSale,
		Limit:         recentStockMovements,
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Activity, 0, len(txns)+len(movements))
	for _, txn := range txns {
		at := txn.CreatedAt
		if txn.CompletedAt != nil {
			at = *txn.CompletedAt
		}
		out = append(out, domain.Activity{
			Kind:        "TRANSAKSI",
			Reference:   txn.Number,
			Description: fmt.Sprintf("Transaksi %s sebesar Rp %s", txn.Number, txn.NetTotal.StringFixed(0)),
			Amount:      txn.NetTotal,
			At:          at,
		})
	}
	for _, m := range movements {
		out = append(out, domain.Activity{
			Kind:        string(m.Reason),
			Reference:   fmt.Sprintf("stock-%d", m.ID),
			Description: fmt.Sprintf("%s pada %s", m.Reason.Label(), m.VariantName),
			Amount:      m.QuantityChange,
			At:          m.CreatedAt,
		})
	}
	slices.SortStableFunc(out, func(a, b domain.Activity) int { return b.At.Compare(a.At) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) completedBetween(ctx context.Context, from time.Time, to time.Time, method domain.PaymentMethod) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, store.TransactionQuery{
		TransactionFilter: domain.TransactionFilter{From: from, To: to, PaymentMethod: method},
		CompletedOnly:     true,
	})
}

func (s *Service) defaultDates(startDate string, endDate string) (string, string) {
	today := s.startOfDay(s.now()).Format("2006-01-02")
	if strings.TrimSpace(startDate) == "" {
		startDate = today
	}
	if strings.TrimSpace(endDate) == "" {
		endDate = today
	}
	return startDate, endDate
}

// revenueChart emits one point per store-local day, including empty days.
func (s *Service) revenueChart(txns []domain.Transaction, from time.Time, to time.Time) []domain.ChartPoint {
	byDay := make(map[string]decimal.Decimal)
	for _, txn := range txns {
		day := txn.CompletedAt.In(s.loc).Format("2006-01-02")
		byDay[day] = byDay[day].Add(txn.NetTotal)
	}
	points := make([]domain.ChartPoint, 0, 31)
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		revenue, ok := byDay[day.Format("2006-01-02")]
		if !ok {
			revenue = decimal.Zero
		}
		points = append(points, domain.ChartPoint{Date: day.Format("02 Jan"), Revenue: revenue})
	}
	return points
}

// trend compares a value with the previous period. A previous value of zero
// reports new data instead of an infinite ratio.
func trend(current decimal.Decimal, previous decimal.Decimal) (float64, string) {
	if previous.IsPositive() {
		ratio, _ := current.Sub(previous).Div(previous).Float64()
		sign := ""
		if ratio >= 0 {
			sign = "+"
		}
		return ratio, fmt.Sprintf("%s%.0f%% vs periode sebelumnya", sign, ratio*100)
	}
	if current.IsPositive() {
		return 1.0, "Data baru"
	}
	return 0, "-"
}

func kpi(current decimal.Decimal, previous decimal.Decimal) domain.KPI {
	t, text := trend(current, previous)
	return domain.KPI{Value: current, Trend: t, TrendText: text}
}

func totals(txns []domain.Transaction) (decimal.Decimal, decimal.Decimal) {
	revenue, items := decimal.Zero, decimal.Zero
	for _, txn := range txns {
		revenue = revenue.Add(txn.NetTotal)
		for _, item := range txn.Items {
			items = items.Add(item.Quantity)
		}
	}
	return revenue, items
}

func paymentMethodTotals(txns []domain.Transaction) []domain.PaymentMethodTotal {
	index := make(map[domain.PaymentMethod]int)
	out := make([]domain.PaymentMethodTotal, 0, 3)
	for _, txn := range txns {
		i, ok := index[txn.PaymentMethod]
		if !ok {
			i = len(out)
			index[txn.PaymentMethod] = i
			out = append(out, domain.PaymentMethodTotal{Method: txn.PaymentMethod, Total: decimal.Zero})
		}
		out[i].Count++
		out[i].Total = out[i].Total.Add(txn.NetTotal)
	}
	slices.SortStableFunc(out, func(a, b domain.PaymentMethodTotal) int { return b.Total.Cmp(a.Total) })
	return out
}

// bestSellers aggregates line quantities per variant, keeping only variants
// present in the given active list.
func bestSellers(txns []domain.Transaction, active []domain.Variant) []domain.BestSeller {
	names := make(map[string]string, len(active))
	for _, v := range active {
		names[v.ID] = v.DisplayName()
	}
	index := make(map[string]int)
	out := make([]domain.BestSeller, 0, 16)
	for _, txn := range txns {
		for _, item := range txn.Items {
			name, ok := names[item.VariantID]
			if !ok {
				continue
			}
			i, seen := index[item.VariantID]
			if !seen {
				i = len(out)
				index[item.VariantID] = i
				out = append(out, domain.BestSeller{VariantID: item.VariantID, Name: name, Quantity: decimal.Zero, Revenue: decimal.Zero})
			}
			out[i].Quantity = out[i].Quantity.Add(item.Quantity)
			out[i].Revenue = out[i].Revenue.Add(item.Subtotal)
		}
	}
	slices.SortFunc(out, func(a, b domain.BestSeller) int {
		if c := b.Quantity.Cmp(a.Quantity); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(out) > bestSellerCount {
		out = out[:bestSellerCount]
	}
	return out
}

func lowStockVariants(variants []domain.Variant) []domain.Variant {
	out := make([]domain.Variant, 0, 8)
	for _, v := range variants {
		if v.Active && v.TrackStock && v.StockQuantity.LessThanOrEqual(v.LowStockThreshold) {
			out = append(out, v)
		}
	}
	return out
}

func sumPayments(payments []domain.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

func sumExpenses(expenses []domain.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
