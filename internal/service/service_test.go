package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/metrics"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/store/memory"
)

var fixedNow = time.Date(2030, time.March, 10, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo, err := memory.NewSeeded(memory.SeedPasswords{})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	repo.SetClock(func() time.Time { return fixedNow })
	svc := New(Deps{
		Repo:     repo,
		Metrics:  metrics.New(),
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	})
	if _, err := svc.LoadStoreInfo(context.Background()); err != nil {
		t.Fatalf("load store info: %v", err)
	}
	return svc, repo
}

func actorCtx(role domain.Role) context.Context {
	return WithActor(context.Background(), domain.Actor{Username: string(role), Role: role})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newVariant creates a single-variant product with the given price and opening stock.
func newVariant(t *testing.T, svc *Service, name string, price string, stock string) domain.Variant {
	t.Helper()
	product, err := svc.CreateProduct(actorCtx(domain.RoleAdmin), domain.ProductCreateRequest{
		Name: name,
		Variants: []domain.VariantCreateRequest{{
			Name:          "Satuan",
			Unit:          domain.UnitPcs,
			PurchasePrice: dec("3000"),
			NormalPrice:   dec(price),
			InitialStock:  dec(stock),
		}},
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	if len(product.Variants) != 1 {
		t.Fatalf("expected one variant, got %d", len(product.Variants))
	}
	return product.Variants[0]
}

func stockOf(t *testing.T, repo *memory.Store, variantID string) decimal.Decimal {
	t.Helper()
	v, err := repo.GetVariant(context.Background(), variantID)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	return v.StockQuantity
}

func assertReconciled(t *testing.T, repo *memory.Store) {
	t.Helper()
	variants, err := repo.ListVariants(context.Background(), true)
	if err != nil {
		t.Fatalf("list variants: %v", err)
	}
	for _, v := range variants {
		movements, err := repo.ListMovements(context.Background(), domain.MovementFilter{VariantID: v.ID})
		if err != nil {
			t.Fatalf("list movements: %v", err)
		}
		sum := decimal.Zero
		for _, m := range movements {
			sum = sum.Add(m.QuantityChange)
		}
		if !sum.Equal(v.StockQuantity) {
			t.Fatalf("variant %s: stock %s does not match movement sum %s", v.DisplayName(), v.StockQuantity, sum)
		}
	}
}

func cashSale(variantID string, qty string, paid string) domain.CreateSaleRequest {
	return domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    dec(paid),
		Items:         []domain.SaleItemInput{{VariantID: variantID, Quantity: dec(qty)}},
	}
}

func TestCreateSaleDeductsStockAndRecordsMovement(t *testing.T) {
	svc, repo := newTestService(t)
	v := newVariant(t, svc, "Teh Botol", "5000", "10")

	txn, err := svc.CreateSale(actorCtx(domain.RoleCashier), cashSale(v.ID, "4", "25000"))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !regexp.MustCompile(`^INV-\d{14}-[0-9A-F]{8}$`).MatchString(txn.Number) {
		t.Fatalf("unexpected transaction number %q", txn.Number)
	}
	if txn.Status != domain.TxStatusCompleted || txn.CompletedAt == nil {
		t.Fatalf("expected completed transaction, got %s", txn.Status)
	}
	if !txn.NetTotal.Equal(dec("20000")) || !txn.ChangeDue.Equal(dec("5000")) {
		t.Fatalf("unexpected totals net=%s change=%s", txn.NetTotal, txn.ChangeDue)
	}
	if got := stockOf(t, repo, v.ID); !got.Equal(dec("6")) {
		t.Fatalf("expected stock 6, got %s", got)
	}

	sales, err := repo.ListMovements(context.Background(), domain.MovementFilter{VariantID: v.ID, Reason: domain.ReasonSale})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected one sale movement, got %d", len(sales))
	}
	m := sales[0]
	if !m.QuantityChange.Equal(dec("-4")) || !m.ResultingQuantity.Equal(dec("6")) {
		t.Fatalf("unexpected movement change=%s resulting=%s", m.QuantityChange, m.ResultingQuantity)
	}
	if m.Note != "Transaksi No: "+txn.Number {
		t.Fatalf("unexpected movement note %q", m.Note)
	}
	assertReconciled(t, repo)
}

func TestCreateSaleInsufficientPaymentLeavesStockUntouched(t *testing.T) {
	svc, repo := newTestService(t)
	v := newVariant(t, svc, "Roti Tawar", "12000", "5")

	_, err := svc.CreateSale(actorCtx(domain.RoleCashier), cashSale(v.ID, "2", "20000"))
	if !errors.Is(err, store.ErrInsufficientPayment) {
		t.Fatalf("expected insufficient payment, got %v", err)
	}
	var deficit *store.DeficitError
	if !errors.As(err, &deficit) || !deficit.Deficit().Equal(dec("4000")) {
		t.Fatalf("expected deficit 4000, got %v", err)
	}
	if got := stockOf(t, repo, v.ID); !got.Equal(dec("5")) {
		t.Fatalf("expected stock 5, got %s", got)
	}

	list, err := svc.ListTransactions(actorCtx(domain.RoleAdmin), domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(list.Transactions) != 0 {
		t.Fatalf("expected no transactions, got %d", len(list.Transactions))
	}
}

func TestCreateSaleSumsRepeatedLinesForStockCheck(t *testing.T) {
	svc, repo := newTestService(t)
	v := newVariant(t, svc, "Susu Kotak", "6000", "10")

	_, err := svc.CreateSale(actorCtx(domain.RoleCashier), domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentQRIS,
		AmountPaid:    dec("100000"),
		Items: []domain.SaleItemInput{
			{VariantID: v.ID, Quantity: dec("6")},
			{VariantID: v.ID, Quantity: dec("6")},
		},
	})
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if !stockErr.Requested.Equal(dec("12")) || !stockErr.Available.Equal(dec("10")) {
		t.Fatalf("unexpected stock error %+v", stockErr)
	}
	if got := stockOf(t, repo, v.ID); !got.Equal(dec("10")) {
		t.Fatalf("expected stock 10, got %s", got)
	}
}

func TestCreateSaleKeepsRepeatedLinesSeparate(t *testing.T) {
	svc, repo := newTestService(t)
	v := newVariant(t, svc, "Mie Instan", "3500", "20")

	txn, err := svc.CreateSale(actorCtx(domain.RoleCashier), domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentDebit,
		AmountPaid:    dec("17500"),
		Items: []domain.SaleItemInput{
			{VariantID: v.ID, Quantity: dec("2")},
			{VariantID: v.ID, Quantity: dec("3")},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if len(txn.Items) != 2 {
		t.Fatalf("expected two line items, got %d", len(txn.Items))
	}
	if txn.Items[0].Position != 0 || txn.Items[1].Position != 1 {
		t.Fatalf("unexpected line positions %d, %d", txn.Items[0].Position, txn.Items[1].Position)
	}
	if got := stockOf(t, repo, v.ID); !got.Equal(dec("15")) {
		t.Fatalf("expected stock 15, got %s", got)
	}
	assertReconciled(t, repo)
}

func TestCreateSaleRejectsInactiveVariantAndExcessDiscount(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Kecap Manis", "9000", "10")

	req := cashSale(v.ID, "1", "9000")
	req.Discount = dec("10000")
	if _, err := svc.CreateSale(actorCtx(domain.RoleCashier), req); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid transaction for discount above gross, got %v", err)
	}

	if _, err := svc.DeactivateVariant(actorCtx(domain.RoleAdmin), v.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.CreateSale(actorCtx(domain.RoleCashier), cashSale(v.ID, "1", "9000")); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid transaction for inactive variant, got %v", err)
	}
	if _, err := svc.CreateSale(actorCtx(domain.RoleCashier), cashSale("var-missing", "1", "9000")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown variant, got %v", err)
	}
}

func TestCreateSaleValidatesRequest(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateSale(actorCtx(domain.RoleCashier), domain.CreateSaleRequest{PaymentMethod: "Transfer"})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid transaction, got %v", err)
	}
	if !strings.Contains(err.Error(), "payment_method") || !strings.Contains(err.Error(), "items") {
		t.Fatalf("expected field names in validation error, got %v", err)
	}
}

func TestHeldCartLosesStockToDirectSale(t *testing.T) {
	svc, repo := newTestService(t)
	v := newVariant(t, svc, "Gas Kaleng", "25000", "5")
	ctx := actorCtx(domain.RoleCashier)

	held, err := svc.HoldTransaction(ctx, domain.HoldRequest{Items: []domain.SaleItemInput{{VariantID: v.ID, Quantity: dec("3")}}})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.Status != domain.TxStatusHeld || !held.AmountPaid.IsZero() || !held.NetTotal.Equal(dec("75000")) {
		t.Fatalf("unexpected held transaction %+v", held)
	}
	if got := stockOf(t, repo, v.ID); !got.Equal(dec("5")) {
		t.Fatalf("hold must not touch stock, got %s", got)
	}

	if _, err := svc.CreateSale(ctx, cashSale(v.ID, "5", "125000")); err != nil {
		t.Fatalf("direct sale: %v", err)
	}

	_, err = svc.ResumeTransaction(ctx, held.ID, domain.ResumeRequest{PaymentMethod: domain.PaymentCash, AmountPaid: dec("75000")})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock on resume, got %v", err)
	}
	still, err := svc.GetTransaction(ctx, held.ID)
	if err != nil {
		t.Fatalf("get held: %v", err)
	}
	if still.Status != domain.TxStatusHeld {
		t.Fatalf("expected transaction to stay held, got %s", still.Status)
	}
	assertReconciled(t, repo)
}

func TestResumeKeepsCapturedPrices(t *testing.T) {
	svc, repo := newTestService(t)
	v := newVariant(t, svc, "Sirup Melon", "20000", "10")
	ctx := actorCtx(domain.RoleCashier)

	held, err := svc.HoldTransaction(ctx, domain.HoldRequest{Items: []domain.SaleItemInput{{VariantID: v.ID, Quantity: dec("2")}}})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	newPrice := dec("25000")
	if _, err := svc.UpdateVariant(actorCtx(domain.RoleAdmin), v.ID, domain.VariantUpdateRequest{NormalPrice: &newPrice}); err != nil {
		t.Fatalf("update price: %v", err)
	}

	done, err := svc.ResumeTransaction(ctx, held.ID, domain.ResumeRequest{PaymentMethod: domain.PaymentCash, AmountPaid: dec("50000"), Discount: dec("1000")})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if done.Status != domain.TxStatusCompleted || done.CompletedAt == nil {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if !done.Items[0].UnitPrice.Equal(dec("20000")) || !done.GrossTotal.Equal(dec("40000")) {
		t.Fatalf("expected captured price 20000, got unit=%s gross=%s", done.Items[0].UnitPrice, done.GrossTotal)
	}
	if !done.NetTotal.Equal(dec("39000")) || !done.ChangeDue.Equal(dec("11000")) {
		t.Fatalf("unexpected net=%s change=%s", done.NetTotal, done.ChangeDue)
	}
	if !done.CreatedAt.Equal(held.CreatedAt) {
		t.Fatalf("resume must keep created_at")
	}
	if got := stockOf(t, repo, v.ID); !got.Equal(dec("8")) {
		t.Fatalf("expected stock 8, got %s", got)
	}

	_, err = svc.ResumeTransaction(ctx, held.ID, domain.ResumeRequest{PaymentMethod: domain.PaymentCash, AmountPaid: dec("50000")})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state on second resume, got %v", err)
	}
}

func TestUpdateHeldReplacesLinesWithoutStock(t *testing.T) {
	svc, repo := newTestService(t)
	a := newVariant(t, svc, "Biskuit Kelapa", "8000", "10")
	b := newVariant(t, svc, "Wafer Coklat", "2000", "10")
	ctx := actorCtx(domain.RoleCashier)

	held, err := svc.HoldTransaction(ctx, domain.HoldRequest{Items: []domain.SaleItemInput{{VariantID: a.ID, Quantity: dec("1")}}})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	notes := "meja 3"
	reseller := domain.CustomerReseller
	updated, err := svc.UpdateHeldTransaction(ctx, held.ID, domain.UpdateHeldRequest{
		CustomerType: &reseller,
		Notes:        &notes,
		Items: []domain.SaleItemInput{
			{VariantID: a.ID, Quantity: dec("2")},
			{VariantID: b.ID, Quantity: dec("3")},
		},
	})
	if err != nil {
		t.Fatalf("update held: %v", err)
	}
	if len(updated.Items) != 2 || !updated.GrossTotal.Equal(dec("22000")) || !updated.NetTotal.Equal(dec("22000")) {
		t.Fatalf("unexpected updated cart items=%d gross=%s", len(updated.Items), updated.GrossTotal)
	}
	if updated.Number != held.Number || updated.CustomerType != domain.CustomerReseller || updated.Notes != notes {
		t.Fatalf("unexpected updated header %+v", updated)
	}
	if !stockOf(t, repo, a.ID).Equal(dec("10")) || !stockOf(t, repo, b.ID).Equal(dec("10")) {
		t.Fatalf("update held must not touch stock")
	}
}

func TestCancelHeldIsTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Tisu Wajah", "10000", "4")
	ctx := actorCtx(domain.RoleCashier)

	held, err := svc.HoldTransaction(ctx, domain.HoldRequest{Items: []domain.SaleItemInput{{VariantID: v.ID, Quantity: dec("1")}}})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	cancelled, err := svc.CancelHeldTransaction(ctx, held.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.TxStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if _, err := svc.CancelHeldTransaction(ctx, held.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state on second cancel, got %v", err)
	}
	_, err = svc.ResumeTransaction(ctx, held.ID, domain.ResumeRequest{PaymentMethod: domain.PaymentCash, AmountPaid: dec("10000")})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state on resume of cancelled, got %v", err)
	}
}

func TestListTransactionsSummarizesCompletedOnly(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Kopi Susu", "7000", "50")
	ctx := actorCtx(domain.RoleCashier)

	if _, err := svc.CreateSale(ctx, cashSale(v.ID, "2", "14000")); err != nil {
		t.Fatalf("sale: %v", err)
	}
	if _, err := svc.HoldTransaction(ctx, domain.HoldRequest{Items: []domain.SaleItemInput{{VariantID: v.ID, Quantity: dec("1")}}}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	list, err := svc.ListTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(list.Transactions))
	}
	if list.Summary.Count != 1 || !list.Summary.TotalSales.Equal(dec("14000")) {
		t.Fatalf("unexpected summary %+v", list.Summary)
	}

	held, err := svc.ListTransactions(ctx, domain.TransactionFilter{Status: domain.TxStatusHeld})
	if err != nil {
		t.Fatalf("list held: %v", err)
	}
	if len(held.Transactions) != 1 || held.Transactions[0].Status != domain.TxStatusHeld {
		t.Fatalf("expected only the held transaction")
	}
}

func TestReceiptCarriesStoreInfo(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Pasta Gigi", "11000", "5")

	txn, err := svc.CreateSale(actorCtx(domain.RoleCashier), cashSale(v.ID, "1", "11000"))
	if err != nil {
		t.Fatalf("sale: %v", err)
	}
	receipt, err := svc.Receipt(actorCtx(domain.RoleCashier), txn.ID)
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if receipt.Store.Name != domain.DefaultStoreName || receipt.Store.ReceiptFooter != domain.DefaultReceiptFooter {
		t.Fatalf("unexpected store info %+v", receipt.Store)
	}
	if receipt.Transaction.Number != txn.Number {
		t.Fatalf("receipt for wrong transaction")
	}
}

func TestAdjustStockReportsUnknownVariantPerItem(t *testing.T) {
	svc, repo := newTestService(t)
	v := newVariant(t, svc, "Tepung Terigu", "14000", "10")

	resp, err := svc.AdjustStock(actorCtx(domain.RoleAdmin), domain.StockAdjustRequest{
		Reason: domain.ReasonPurchase,
		Items: []domain.StockAdjustItem{
			{VariantID: v.ID, Quantity: dec("5"), PurchasePrice: decimal.NewNullDecimal(dec("9500"))},
			{VariantID: "var-missing", Quantity: dec("2")},
		},
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if resp.Applied != 1 || resp.Skipped != 1 || len(resp.Results) != 2 {
		t.Fatalf("unexpected adjust response %+v", resp)
	}
	if resp.Results[1].Applied || resp.Results[1].Error != "variant not found" {
		t.Fatalf("unexpected result for unknown variant %+v", resp.Results[1])
	}
	if resp.Results[0].Movement == nil || resp.Results[0].Movement.Note != domain.ReasonPurchase.Label() {
		t.Fatalf("expected movement with default note, got %+v", resp.Results[0].Movement)
	}

	updated, err := repo.GetVariant(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if !updated.StockQuantity.Equal(dec("15")) || !updated.PurchasePrice.Equal(dec("9500")) {
		t.Fatalf("unexpected variant after purchase stock=%s price=%s", updated.StockQuantity, updated.PurchasePrice)
	}

	damaged, err := svc.AdjustStock(actorCtx(domain.RoleAdmin), domain.StockAdjustRequest{
		Reason: domain.ReasonDamaged,
		Notes:  "kemasan sobek",
		Items:  []domain.StockAdjustItem{{VariantID: v.ID, Quantity: dec("3")}},
	})
	if err != nil {
		t.Fatalf("adjust damaged: %v", err)
	}
	if m := damaged.Results[0].Movement; !m.QuantityChange.Equal(dec("-3")) || m.Note != "kemasan sobek" {
		t.Fatalf("unexpected damaged movement %+v", m)
	}
	if got := stockOf(t, repo, v.ID); !got.Equal(dec("12")) {
		t.Fatalf("expected stock 12, got %s", got)
	}
	assertReconciled(t, repo)
}

func TestAdjustStockRejectsDedicatedReasons(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Garam Dapur", "3000", "10")

	for _, reason := range []domain.MovementReason{domain.ReasonPhysicalCount, domain.ReasonSale, "BONUS"} {
		_, err := svc.AdjustStock(actorCtx(domain.RoleAdmin), domain.StockAdjustRequest{
			Reason: reason,
			Items:  []domain.StockAdjustItem{{VariantID: v.ID, Quantity: dec("1")}},
		})
		if !errors.Is(err, store.ErrInvalidTransaction) {
			t.Fatalf("reason %s: expected invalid transaction, got %v", reason, err)
		}
	}
}

func TestStockOpnameRecordsOnlyDiscrepancies(t *testing.T) {
	svc, repo := newTestService(t)
	a := newVariant(t, svc, "Sarden Kaleng", "15000", "10")
	b := newVariant(t, svc, "Kornet Sapi", "22000", "8")

	resp, err := svc.StockOpname(actorCtx(domain.RoleAdmin), domain.StockOpnameRequest{
		Items: []domain.StockOpnameItem{
			{VariantID: a.ID, PhysicalCount: dec("10")},
			{VariantID: b.ID, PhysicalCount: dec("6")},
			{VariantID: "var-missing", PhysicalCount: dec("1")},
		},
	})
	if err != nil {
		t.Fatalf("opname: %v", err)
	}
	if resp.Adjusted != 1 {
		t.Fatalf("expected one adjustment, got %d", resp.Adjusted)
	}
	if resp.Results[0].Movement != nil || !resp.Results[0].Discrepancy.IsZero() {
		t.Fatalf("matching count must not record a movement")
	}
	m := resp.Results[1].Movement
	if m == nil || !m.QuantityChange.Equal(dec("-2")) || m.Reason != domain.ReasonPhysicalCount || m.Note != "Sistem: 8, Fisik: 6" {
		t.Fatalf("unexpected opname movement %+v", m)
	}
	if resp.Results[2].Found || resp.Results[2].Error == "" {
		t.Fatalf("expected unknown variant to be reported")
	}
	if got := stockOf(t, repo, b.ID); !got.Equal(dec("6")) {
		t.Fatalf("expected stock 6, got %s", got)
	}

	movements, err := repo.ListMovements(context.Background(), domain.MovementFilter{VariantID: a.ID, Reason: domain.ReasonPhysicalCount})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 0 {
		t.Fatalf("expected no opname movement for matching count, got %d", len(movements))
	}
	assertReconciled(t, repo)
}

func TestRoleCapabilitiesAreEnforced(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Lilin", "2000", "10")

	_, err := svc.AdjustStock(actorCtx(domain.RoleCashier), domain.StockAdjustRequest{
		Reason: domain.ReasonPurchase,
		Items:  []domain.StockAdjustItem{{VariantID: v.ID, Quantity: dec("1")}},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier adjust to be forbidden, got %v", err)
	}
	if _, err := svc.CreateSale(actorCtx(domain.RoleGuest), cashSale(v.ID, "1", "2000")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected guest sale to be forbidden, got %v", err)
	}
	if _, err := svc.CreateSale(context.Background(), cashSale(v.ID, "1", "2000")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected anonymous sale to be forbidden, got %v", err)
	}
	if _, err := svc.Dashboard(actorCtx(domain.RoleGuest), domain.RangeToday); err != nil {
		t.Fatalf("expected guest to view reports, got %v", err)
	}
	if _, err := svc.Dashboard(actorCtx(domain.RoleCashier), domain.RangeToday); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier dashboard to be forbidden, got %v", err)
	}
	if err := svc.DeleteExpense(actorCtx(domain.RoleCashier), "exp-any"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier expense delete to be forbidden, got %v", err)
	}
}

func TestCatalogUniquenessAndCategoryDelete(t *testing.T) {
	svc, _ := newTestService(t)
	admin := actorCtx(domain.RoleAdmin)

	category, err := svc.CreateCategory(admin, domain.CategoryRequest{Name: "Bumbu"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := svc.CreateCategory(admin, domain.CategoryRequest{Name: "Bumbu"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate category, got %v", err)
	}

	product, err := svc.CreateProduct(admin, domain.ProductCreateRequest{
		Name:       "Merica Bubuk",
		CategoryID: category.ID,
		Variants: []domain.VariantCreateRequest{
			{Name: "Sachet", SKU: "SKU-MERICA-S", NormalPrice: dec("1000")},
		},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	_, err = svc.AddVariant(admin, product.ID, domain.VariantCreateRequest{Name: "Botol", SKU: "SKU-MERICA-S", NormalPrice: dec("9000")})
	var dup *store.DuplicateError
	if !errors.As(err, &dup) || dup.Field != "sku" {
		t.Fatalf("expected duplicate sku error, got %v", err)
	}

	if err := svc.DeleteCategory(admin, category.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state deleting referenced category, got %v", err)
	}

	found, err := svc.LookupVariantBySKU(actorCtx(domain.RoleGuest), "SKU-MERICA-S")
	if err != nil {
		t.Fatalf("lookup sku: %v", err)
	}
	if found.DisplayName() != "Merica Bubuk - Sachet" {
		t.Fatalf("unexpected variant %s", found.DisplayName())
	}
}

func TestUpdateVariantKeepsStockAndRules(t *testing.T) {
	svc, repo := newTestService(t)
	admin := actorCtx(domain.RoleAdmin)

	product, err := svc.CreateProduct(admin, domain.ProductCreateRequest{
		Name: "Telur Puyuh",
		Variants: []domain.VariantCreateRequest{{
			Name:         "Pak",
			NormalPrice:  dec("8000"),
			InitialStock: dec("12"),
			PriceRules:   []domain.PriceRuleInput{{MinQuantity: dec("3"), TotalPrice: dec("22000")}},
		}},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	v := product.Variants[0]

	favorite := true
	updated, err := svc.UpdateVariant(admin, v.ID, domain.VariantUpdateRequest{Favorite: &favorite})
	if err != nil {
		t.Fatalf("update variant: %v", err)
	}
	if !updated.Favorite || len(updated.PriceRules) != 1 || !updated.StockQuantity.Equal(dec("12")) {
		t.Fatalf("unexpected variant after update %+v", updated)
	}

	// Quantity rules are stored but never applied to pricing.
	txn, err := svc.CreateSale(actorCtx(domain.RoleCashier), cashSale(v.ID, "3", "24000"))
	if err != nil {
		t.Fatalf("sale: %v", err)
	}
	if !txn.GrossTotal.Equal(dec("24000")) {
		t.Fatalf("expected normal pricing, got %s", txn.GrossTotal)
	}

	rules := []domain.PriceRuleInput{}
	cleared, err := svc.UpdateVariant(admin, v.ID, domain.VariantUpdateRequest{PriceRules: &rules})
	if err != nil {
		t.Fatalf("clear rules: %v", err)
	}
	if len(cleared.PriceRules) != 0 || !cleared.StockQuantity.Equal(dec("9")) {
		t.Fatalf("expected rules to be replaced, got %d", len(cleared.PriceRules))
	}
	assertReconciled(t, repo)
}

func TestSavingsDepositAndWithdraw(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := actorCtx(domain.RoleCashier)

	deposit, err := svc.Deposit(ctx, domain.DepositRequest{CustomerName: "Bu Sari", Phone: "0812", Amount: dec("1000")})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !deposit.Customer.SavingsBalance.Equal(dec("1000")) || deposit.Movement.Note != "Setoran tunai." {
		t.Fatalf("unexpected deposit %+v", deposit)
	}

	customerID := deposit.Customer.ID
	_, err = svc.Withdraw(ctx, domain.WithdrawRequest{CustomerID: customerID, Amount: dec("1500")})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	var deficit *store.DeficitError
	if !errors.As(err, &deficit) || !deficit.Available.Equal(dec("1000")) {
		t.Fatalf("expected available 1000 in deficit, got %v", err)
	}
	customer, err := svc.GetCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if !customer.SavingsBalance.Equal(dec("1000")) {
		t.Fatalf("expected balance 1000, got %s", customer.SavingsBalance)
	}

	again, err := svc.Deposit(ctx, domain.DepositRequest{CustomerName: "Bu Sari", Phone: "0899", Amount: dec("250"), Note: "arisan"})
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if again.Customer.ID != customerID || again.Customer.Phone != "0812" {
		t.Fatalf("expected existing customer with first contact details, got %+v", again.Customer)
	}

	withdrawal, err := svc.Withdraw(ctx, domain.WithdrawRequest{CustomerID: customerID, Amount: dec("450")})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !withdrawal.Movement.ResultingBalance.Equal(dec("800")) || withdrawal.Movement.Note != "Penarikan tunai." {
		t.Fatalf("unexpected withdrawal %+v", withdrawal.Movement)
	}

	history, err := svc.SavingsHistory(ctx, customerID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 || history[0].Type != domain.SavingsWithdrawal {
		t.Fatalf("expected 3 movements newest first, got %d", len(history))
	}

	if _, err := svc.CreateCustomer(ctx, domain.CustomerRequest{Name: "Pak Joko"}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	summary, err := svc.SavingsSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.TotalActiveSavings.Equal(dec("800")) || summary.CustomerCount != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestReceivablePaymentsSettleAndReopen(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := actorCtx(domain.RoleCashier)

	debt, err := svc.CreateReceivable(ctx, domain.ReceivableCreateRequest{CustomerName: "Mbak Rini", Amount: dec("1000"), DueDate: "2030-04-01"})
	if err != nil {
		t.Fatalf("create receivable: %v", err)
	}
	if debt.Settled || !debt.RemainingBalance.Equal(dec("1000")) || debt.DueDate == nil {
		t.Fatalf("unexpected new receivable %+v", debt)
	}

	first, err := svc.RecordPayment(ctx, debt.ID, domain.PaymentRequest{Amount: dec("300")})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if first.DebtCredit.Settled || !first.DebtCredit.RemainingBalance.Equal(dec("700")) {
		t.Fatalf("expected remaining 700 unsettled, got %+v", first.DebtCredit)
	}

	second, err := svc.RecordPayment(ctx, debt.ID, domain.PaymentRequest{Amount: dec("700")})
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if !second.DebtCredit.Settled || !second.DebtCredit.RemainingBalance.IsZero() {
		t.Fatalf("expected settled with zero remaining, got %+v", second.DebtCredit)
	}

	reopened, err := svc.AddAmount(ctx, debt.ID, domain.AddAmountRequest{Amount: dec("200")})
	if err != nil {
		t.Fatalf("add amount: %v", err)
	}
	if reopened.Settled || !reopened.RemainingBalance.Equal(dec("200")) || !reopened.Principal.Equal(dec("1200")) {
		t.Fatalf("expected reopened debt, got %+v", reopened)
	}

	over, err := svc.RecordPayment(ctx, debt.ID, domain.PaymentRequest{Amount: dec("500")})
	if err != nil {
		t.Fatalf("overpayment: %v", err)
	}
	if !over.DebtCredit.Settled || !over.DebtCredit.RemainingBalance.Equal(dec("-300")) {
		t.Fatalf("expected overpaid settled debt, got %+v", over.DebtCredit)
	}

	if _, err := svc.CreateReceivable(ctx, domain.ReceivableCreateRequest{CustomerName: "Mbak Rini", Amount: dec("400")}); err != nil {
		t.Fatalf("second receivable: %v", err)
	}
	timeline, err := svc.DebtTimeline(ctx, debt.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(timeline.Entries) != 5 || timeline.Entries[0].Description != "Piutang Baru" {
		t.Fatalf("unexpected timeline %+v", timeline.Entries)
	}
	if !timeline.Remaining.Equal(dec("100")) {
		t.Fatalf("expected timeline remaining 100, got %s", timeline.Remaining)
	}

	summary, err := svc.DebtSummary(ctx, domain.DebtReceivable)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 2 || !summary.TotalPrincipal.Equal(dec("1600")) || !summary.TotalPaid.Equal(dec("1500")) || !summary.RemainingBalance.Equal(dec("100")) {
		t.Fatalf("unexpected summary %+v", summary)
	}

	settled := false
	open, err := svc.ListDebtCredits(ctx, domain.DebtFilter{Type: domain.DebtReceivable, Settled: &settled})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 || !open[0].Principal.Equal(dec("400")) {
		t.Fatalf("expected one open receivable, got %d", len(open))
	}
}

func TestPayableRequiresKnownSupplier(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := actorCtx(domain.RoleAdmin)

	if _, err := svc.CreatePayable(ctx, domain.PayableCreateRequest{SupplierID: "sup-missing", Amount: dec("5000")}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found supplier, got %v", err)
	}
	suppliers, err := svc.ListSuppliers(ctx)
	if err != nil || len(suppliers) == 0 {
		t.Fatalf("list suppliers: %v", err)
	}
	debt, err := svc.CreatePayable(ctx, domain.PayableCreateRequest{SupplierID: suppliers[0].ID, Amount: dec("5000")})
	if err != nil {
		t.Fatalf("create payable: %v", err)
	}
	if debt.Type != domain.DebtPayable || debt.Counterparty() != suppliers[0].Name {
		t.Fatalf("unexpected payable %+v", debt)
	}
	timeline, err := svc.DebtTimeline(ctx, debt.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(timeline.Entries) != 1 || timeline.Entries[0].Description != "Hutang Baru" {
		t.Fatalf("unexpected payable timeline %+v", timeline.Entries)
	}
	if _, err := svc.DebtSummary(ctx, "LAINNYA"); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid debt type, got %v", err)
	}
}

func TestTrendText(t *testing.T) {
	cases := []struct {
		current, previous string
		trend             float64
		text              string
	}{
		{"112", "100", 0.12, "+12% vs periode sebelumnya"},
		{"50", "100", -0.5, "-50% vs periode sebelumnya"},
		{"100", "100", 0, "+0% vs periode sebelumnya"},
		{"10", "0", 1, "Data baru"},
		{"0", "0", 0, "-"},
	}
	for _, tc := range cases {
		got, text := trend(dec(tc.current), dec(tc.previous))
		if text != tc.text {
			t.Fatalf("trend(%s, %s): expected %q, got %q", tc.current, tc.previous, tc.text, text)
		}
		if diff := got - tc.trend; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("trend(%s, %s): expected %v, got %v", tc.current, tc.previous, tc.trend, got)
		}
	}
}

func TestCashFlowTotals(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Beras Merah", "10000", "50")
	admin := actorCtx(domain.RoleAdmin)

	if _, err := svc.CreateSale(admin, cashSale(v.ID, "3", "30000")); err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	qris := cashSale(v.ID, "1", "10000")
	qris.PaymentMethod = domain.PaymentQRIS
	if _, err := svc.CreateSale(admin, qris); err != nil {
		t.Fatalf("qris sale: %v", err)
	}

	receivable, err := svc.CreateReceivable(admin, domain.ReceivableCreateRequest{CustomerName: "Pak Budi", Amount: dec("5000")})
	if err != nil {
		t.Fatalf("receivable: %v", err)
	}
	if _, err := svc.RecordPayment(admin, receivable.ID, domain.PaymentRequest{Amount: dec("2000")}); err != nil {
		t.Fatalf("receivable payment: %v", err)
	}
	suppliers, _ := svc.ListSuppliers(admin)
	payable, err := svc.CreatePayable(admin, domain.PayableCreateRequest{SupplierID: suppliers[0].ID, Amount: dec("8000")})
	if err != nil {
		t.Fatalf("payable: %v", err)
	}
	if _, err := svc.RecordPayment(admin, payable.ID, domain.PaymentRequest{Amount: dec("6000")}); err != nil {
		t.Fatalf("payable payment: %v", err)
	}
	if _, err := svc.CreateExpense(admin, domain.ExpenseRequest{Description: "Listrik", Amount: dec("1500")}); err != nil {
		t.Fatalf("expense: %v", err)
	}

	report, err := svc.CashFlow(admin, "2030-03-10", "2030-03-10")
	if err != nil {
		t.Fatalf("cash flow: %v", err)
	}
	if !report.Details.CashSales.Equal(dec("30000")) || !report.Details.ReceivablePayments.Equal(dec("2000")) {
		t.Fatalf("unexpected inflow details %+v", report.Details)
	}
	if !report.Details.PayablePayments.Equal(dec("6000")) || !report.Details.Expenses.Equal(dec("1500")) {
		t.Fatalf("unexpected outflow details %+v", report.Details)
	}
	if !report.TotalIn.Equal(dec("32000")) || !report.TotalOut.Equal(dec("7500")) || !report.NetFlow.Equal(dec("24500")) {
		t.Fatalf("unexpected totals in=%s out=%s net=%s", report.TotalIn, report.TotalOut, report.NetFlow)
	}

	empty, err := svc.CashFlow(admin, "2030-03-11", "2030-03-12")
	if err != nil {
		t.Fatalf("cash flow next day: %v", err)
	}
	if !empty.NetFlow.IsZero() {
		t.Fatalf("expected empty window, got net %s", empty.NetFlow)
	}
	if _, err := svc.CashFlow(admin, "2030-03-12", "2030-03-11"); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestProfitLossUsesCurrentPurchasePrice(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Minyak Kelapa", "5000", "20")
	admin := actorCtx(domain.RoleAdmin)

	if _, err := svc.CreateSale(admin, cashSale(v.ID, "2", "10000")); err != nil {
		t.Fatalf("sale: %v", err)
	}
	cost := dec("3500")
	if _, err := svc.UpdateVariant(admin, v.ID, domain.VariantUpdateRequest{PurchasePrice: &cost}); err != nil {
		t.Fatalf("update cost: %v", err)
	}
	if _, err := svc.CreateExpense(admin, domain.ExpenseRequest{Description: "Plastik", Amount: dec("500"), Date: "2030-03-10"}); err != nil {
		t.Fatalf("expense: %v", err)
	}

	report, err := svc.ProfitLoss(admin, "", "")
	if err != nil {
		t.Fatalf("profit loss: %v", err)
	}
	if !report.GrossSales.Equal(dec("10000")) || !report.CostOfGoodsSold.Equal(dec("7000")) {
		t.Fatalf("unexpected sales=%s cogs=%s", report.GrossSales, report.CostOfGoodsSold)
	}
	if !report.GrossProfit.Equal(dec("3000")) || !report.NetProfit.Equal(dec("2500")) || len(report.Expenses) != 1 {
		t.Fatalf("unexpected profit gross=%s net=%s", report.GrossProfit, report.NetProfit)
	}
	if report.StartDate != "2030-03-10" || report.EndDate != "2030-03-10" {
		t.Fatalf("expected default dates to be today, got %s..%s", report.StartDate, report.EndDate)
	}
}

func TestDashboardWeekAndLowStock(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Saus Sambal", "9000", "10")
	admin := actorCtx(domain.RoleAdmin)

	if _, err := svc.CreateSale(admin, cashSale(v.ID, "2", "18000")); err != nil {
		t.Fatalf("sale: %v", err)
	}

	report, err := svc.Dashboard(admin, domain.RangeWeek)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(report.RevenueChart) != 7 || report.RevenueChart[6].Date != "10 Mar" || !report.RevenueChart[6].Revenue.Equal(dec("18000")) {
		t.Fatalf("unexpected chart %+v", report.RevenueChart)
	}
	if !report.Revenue.Value.Equal(dec("18000")) || report.Revenue.TrendText != "Data baru" {
		t.Fatalf("unexpected revenue kpi %+v", report.Revenue)
	}
	if !report.ItemsSold.Value.Equal(dec("2")) || !report.Transactions.Value.Equal(dec("1")) {
		t.Fatalf("unexpected kpis items=%s trx=%s", report.ItemsSold.Value, report.Transactions.Value)
	}
	if len(report.BestSellers) != 1 || report.BestSellers[0].VariantID != v.ID {
		t.Fatalf("unexpected best sellers %+v", report.BestSellers)
	}
	if len(report.PaymentMethods) != 1 || report.PaymentMethods[0].Method != domain.PaymentCash {
		t.Fatalf("unexpected payment methods %+v", report.PaymentMethods)
	}
	if len(report.RecentActivity) == 0 || len(report.RecentActivity) > 5 {
		t.Fatalf("unexpected recent activity count %d", len(report.RecentActivity))
	}

	// The seeded catalog holds one variant at or below its threshold.
	if report.LowStock.TrendText != "1 item perlu di-restock" {
		t.Fatalf("unexpected low stock text %q", report.LowStock.TrendText)
	}
	low, err := svc.LowStock(admin)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if low.Count != 1 || low.Variants[0].SKU != "SKU-GULA-1KG" {
		t.Fatalf("unexpected low stock report %+v", low)
	}

	if _, err := svc.Dashboard(admin, "year"); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestRecentActivityMergesSalesAndMovements(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Korek Api", "1000", "30")
	admin := actorCtx(domain.RoleAdmin)

	if _, err := svc.CreateSale(admin, cashSale(v.ID, "1", "1000")); err != nil {
		t.Fatalf("sale: %v", err)
	}
	activity, err := svc.RecentActivity(admin)
	if err != nil {
		t.Fatalf("recent activity: %v", err)
	}
	if len(activity) != 10 {
		t.Fatalf("expected activity capped at 10, got %d", len(activity))
	}
	kinds := map[string]int{}
	for _, a := range activity {
		kinds[a.Kind]++
		if a.Kind == string(domain.ReasonSale) {
			t.Fatalf("sale movements must not appear as stock activity")
		}
	}
	if kinds["TRANSAKSI"] != 1 {
		t.Fatalf("expected one transaction activity, got %d", kinds["TRANSAKSI"])
	}
}

func TestStoreInfoUpdateIsCached(t *testing.T) {
	svc, _ := newTestService(t)
	name := "Toko Bu Ning Cabang 2"
	footer := "Sampai jumpa lagi"

	if _, err := svc.UpdateStoreInfo(actorCtx(domain.RoleCashier), domain.StoreInfoRequest{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier update to be forbidden, got %v", err)
	}
	saved, err := svc.UpdateStoreInfo(actorCtx(domain.RoleAdmin), domain.StoreInfoRequest{Name: &name, ReceiptFooter: &footer})
	if err != nil {
		t.Fatalf("update store info: %v", err)
	}
	if saved.Name != name || saved.ReceiptFooter != footer {
		t.Fatalf("unexpected store info %+v", saved)
	}
	info, err := svc.StoreInfo(context.Background())
	if err != nil {
		t.Fatalf("store info: %v", err)
	}
	if info.Name != name {
		t.Fatalf("expected cached name %q, got %q", name, info.Name)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	svc, _ := newTestService(t)

	expense, err := svc.CreateExpense(actorCtx(domain.RoleCashier), domain.ExpenseRequest{Description: "Air galon", Amount: dec("20000"), Date: "2030-03-09"})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if expense.Date.Format("2006-01-02") != "2030-03-09" || expense.RecordedBy != "cashier" {
		t.Fatalf("unexpected expense %+v", expense)
	}
	list, err := svc.ListExpenses(actorCtx(domain.RoleAdmin), "2030-03-09", "2030-03-09")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one expense, got %d (%v)", len(list), err)
	}
	if err := svc.DeleteExpense(actorCtx(domain.RoleAdmin), expense.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	if err := svc.DeleteExpense(actorCtx(domain.RoleAdmin), expense.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestMutationsWriteAuditLog(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Obat Nyamuk", "4000", "10")

	if _, err := svc.CreateSale(actorCtx(domain.RoleCashier), cashSale(v.ID, "1", "4000")); err != nil {
		t.Fatalf("sale: %v", err)
	}
	logs, err := svc.ListAuditLogs(actorCtx(domain.RoleAdmin), "2030-03-10", 10)
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	if len(logs) < 2 || logs[0].Action != "sale_create" || logs[0].ActorRole != domain.RoleCashier {
		t.Fatalf("unexpected audit logs %+v", logs)
	}
}

type stubLookup struct {
	product domain.BarcodeProduct
	err     error
	calls   int
}

func (s *stubLookup) Lookup(_ context.Context, code string) (domain.BarcodeProduct, error) {
	s.calls++
	if s.err != nil {
		return domain.BarcodeProduct{}, s.err
	}
	p := s.product
	p.Barcode = code
	return p, nil
}

func TestLookupBarcode(t *testing.T) {
	repo := memory.New()
	lookup := &stubLookup{product: domain.BarcodeProduct{ProductName: "Indomie Goreng", VariantName: "Eceran"}}
	svc := New(Deps{Repo: repo, Barcode: lookup})
	admin := actorCtx(domain.RoleAdmin)

	got, err := svc.LookupBarcode(admin, " 8998866200301 ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Barcode != "8998866200301" || got.ProductName != "Indomie Goreng" {
		t.Fatalf("unexpected lookup result %+v", got)
	}
	if _, err := svc.LookupBarcode(actorCtx(domain.RoleCashier), "123"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier lookup to be forbidden, got %v", err)
	}

	disabled := New(Deps{Repo: repo})
	if _, err := disabled.LookupBarcode(admin, "123"); !errors.Is(err, ErrLookupDisabled) {
		t.Fatalf("expected lookup disabled, got %v", err)
	}
}

func TestQuantityBelowStoredPrecisionRejected(t *testing.T) {
	svc, repo := newTestService(t)
	v := newVariant(t, svc, "Garam Halus", "5000", "10")
	ctx := actorCtx(domain.RoleCashier)

	if _, err := svc.CreateSale(ctx, cashSale(v.ID, "0.0004", "0")); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid sale for quantity rounding to zero, got %v", err)
	}
	if _, err := svc.HoldTransaction(ctx, domain.HoldRequest{Items: []domain.SaleItemInput{{VariantID: v.ID, Quantity: dec("0.0004")}}}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid hold for quantity rounding to zero, got %v", err)
	}
	_, err := svc.AdjustStock(actorCtx(domain.RoleAdmin), domain.StockAdjustRequest{
		Reason: domain.ReasonDamaged,
		Items:  []domain.StockAdjustItem{{VariantID: v.ID, Quantity: dec("0.0004")}},
	})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid adjust for quantity rounding to zero, got %v", err)
	}

	list, err := svc.ListTransactions(actorCtx(domain.RoleAdmin), domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(list.Transactions) != 0 {
		t.Fatalf("expected no transactions, got %d", len(list.Transactions))
	}
	movements, err := repo.ListMovements(context.Background(), domain.MovementFilter{VariantID: v.ID})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected only the opening movement, got %d", len(movements))
	}
	if got := stockOf(t, repo, v.ID); !got.Equal(dec("10")) {
		t.Fatalf("expected stock 10, got %s", got)
	}
}

func TestCreateSaleRoundsQuantityToStoredPrecision(t *testing.T) {
	svc, repo := newTestService(t)
	v := newVariant(t, svc, "Kacang Tanah", "5000", "10")

	txn, err := svc.CreateSale(actorCtx(domain.RoleCashier), cashSale(v.ID, "1.2344", "10000"))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !txn.Items[0].Quantity.Equal(dec("1.234")) || !txn.Items[0].Subtotal.Equal(dec("6170")) {
		t.Fatalf("unexpected line qty=%s subtotal=%s", txn.Items[0].Quantity, txn.Items[0].Subtotal)
	}
	if got := stockOf(t, repo, v.ID); !got.Equal(dec("8.766")) {
		t.Fatalf("expected stock 8.766, got %s", got)
	}
}

func TestCreateSaleIsAllOrNothingAcrossVariants(t *testing.T) {
	svc, repo := newTestService(t)
	a := newVariant(t, svc, "Mie Instan", "3000", "10")
	b := newVariant(t, svc, "Kecap Manis", "9000", "1")

	_, err := svc.CreateSale(actorCtx(domain.RoleCashier), domain.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    dec("100000"),
		Items: []domain.SaleItemInput{
			{VariantID: a.ID, Quantity: dec("2")},
			{VariantID: b.ID, Quantity: dec("5")},
		},
	})
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.VariantID != b.ID {
		t.Fatalf("expected insufficient stock on second variant, got %v", err)
	}
	if got := stockOf(t, repo, a.ID); !got.Equal(dec("10")) {
		t.Fatalf("expected first variant untouched at 10, got %s", got)
	}
	if got := stockOf(t, repo, b.ID); !got.Equal(dec("1")) {
		t.Fatalf("expected second variant untouched at 1, got %s", got)
	}
	sales, err := repo.ListMovements(context.Background(), domain.MovementFilter{Reason: domain.ReasonSale})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sale movements, got %d", len(sales))
	}
	list, err := svc.ListTransactions(actorCtx(domain.RoleAdmin), domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(list.Transactions) != 0 {
		t.Fatalf("expected no transactions, got %d", len(list.Transactions))
	}
}

func TestDirectSaleKeepsPriceAfterCatalogChange(t *testing.T) {
	svc, _ := newTestService(t)
	v := newVariant(t, svc, "Roti Tawar", "1000", "10")

	sold, err := svc.CreateSale(actorCtx(domain.RoleCashier), cashSale(v.ID, "2", "5000"))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	newPrice := dec("5000")
	if _, err := svc.UpdateVariant(actorCtx(domain.RoleAdmin), v.ID, domain.VariantUpdateRequest{NormalPrice: &newPrice}); err != nil {
		t.Fatalf("update price: %v", err)
	}

	got, err := svc.GetTransaction(actorCtx(domain.RoleAdmin), sold.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if !got.Items[0].UnitPrice.Equal(dec("1000")) || !got.Items[0].Subtotal.Equal(dec("2000")) || !got.GrossTotal.Equal(dec("2000")) {
		t.Fatalf("expected captured price 1000, got unit=%s subtotal=%s gross=%s", got.Items[0].UnitPrice, got.Items[0].Subtotal, got.GrossTotal)
	}
}
