package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
)

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSeeded(SeedPasswords{})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

func seededVariant(t *testing.T, s *Store, sku string) domain.Variant {
	t.Helper()
	v, err := s.GetVariantBySKU(context.Background(), sku)
	if err != nil {
		t.Fatalf("get variant %s: %v", sku, err)
	}
	return *v
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := newSeededStore(t)
	v := seededVariant(t, s, "SKU-AIR-600")
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.ApplyMovement(ctx, domain.StockMovement{
			VariantID:      v.ID,
			QuantityChange: decimal.NewFromInt(-10),
			Reason:         domain.ReasonSale,
		}); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, domain.Transaction{ID: "trx-rollback", Number: "INV-ROLLBACK", Status: domain.TxStatusCompleted}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	after := seededVariant(t, s, "SKU-AIR-600")
	if !after.StockQuantity.Equal(v.StockQuantity) {
		t.Fatalf("expected stock %s after rollback, got %s", v.StockQuantity, after.StockQuantity)
	}
	if _, err := s.GetTransaction(context.Background(), "trx-rollback"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected rolled back transaction to be absent, got %v", err)
	}
	sales, _ := s.ListMovements(context.Background(), domain.MovementFilter{VariantID: v.ID, Reason: domain.ReasonSale})
	if len(sales) != 0 {
		t.Fatalf("expected no sale movements after rollback, got %d", len(sales))
	}
}

func TestApplyMovementKeepsStockInSync(t *testing.T) {
	s := newSeededStore(t)
	v := seededVariant(t, s, "SKU-GULA-1KG")

	var got *domain.StockMovement
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		m, err := tx.ApplyMovement(ctx, domain.StockMovement{
			VariantID:      v.ID,
			QuantityChange: decimal.NewFromInt(6),
			Reason:         domain.ReasonPurchase,
			Note:           "restock",
		})
		got = m
		return err
	})
	if err != nil {
		t.Fatalf("apply movement: %v", err)
	}
	if !got.ResultingQuantity.Equal(decimal.NewFromInt(10)) || got.ReasonLabel != "Pembelian dari Pemasok" {
		t.Fatalf("unexpected movement %+v", got)
	}
	if got.VariantName != "Gula Pasir - 1 kg" {
		t.Fatalf("expected decorated variant name, got %q", got.VariantName)
	}

	movements, err := s.ListMovements(context.Background(), domain.MovementFilter{VariantID: v.ID})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 2 || movements[0].ID != got.ID {
		t.Fatalf("expected newest movement first, got %+v", movements)
	}
	sum := decimal.Zero
	for _, m := range movements {
		sum = sum.Add(m.QuantityChange)
	}
	if !sum.Equal(seededVariant(t, s, "SKU-GULA-1KG").StockQuantity) {
		t.Fatalf("movement sum %s does not match stock", sum)
	}

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.ApplyMovement(ctx, domain.StockMovement{VariantID: "var-missing", QuantityChange: decimal.NewFromInt(1), Reason: domain.ReasonPurchase})
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown variant, got %v", err)
	}
}

func TestListMovementsExcludesReason(t *testing.T) {
	s := newSeededStore(t)
	v := seededVariant(t, s, "SKU-KOPI-1")

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.ApplyMovement(ctx, domain.StockMovement{VariantID: v.ID, QuantityChange: decimal.NewFromInt(-2), Reason: domain.ReasonSale})
		return err
	})
	if err != nil {
		t.Fatalf("apply sale: %v", err)
	}

	all, _ := s.ListMovements(context.Background(), domain.MovementFilter{})
	filtered, _ := s.ListMovements(context.Background(), domain.MovementFilter{ExcludeReason: domain.ReasonSale})
	if len(filtered) != len(all)-1 {
		t.Fatalf("expected one sale movement excluded, got %d of %d", len(filtered), len(all))
	}
	for _, m := range filtered {
		if m.Reason == domain.ReasonSale {
			t.Fatalf("sale movement leaked through exclusion")
		}
	}
	limited, _ := s.ListMovements(context.Background(), domain.MovementFilter{Limit: 3})
	if len(limited) != 3 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestVariantUniquenessAndSupplier(t *testing.T) {
	s := newSeededStore(t)
	existing := seededVariant(t, s, "SKU-BERAS-5KG")

	cases := []struct {
		name    string
		variant domain.Variant
		want    error
	}{
		{"duplicate sku", domain.Variant{ID: "var-a", ProductID: existing.ProductID, Name: "Baru", SKU: "SKU-BERAS-5KG"}, store.ErrDuplicate},
		{"duplicate name in product", domain.Variant{ID: "var-b", ProductID: existing.ProductID, Name: existing.Name}, store.ErrDuplicate},
		{"unknown supplier", domain.Variant{ID: "var-c", ProductID: existing.ProductID, Name: "10 kg", SupplierID: "sup-missing"}, store.ErrNotFound},
	}
	for _, tc := range cases {
		err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			_, err := tx.CreateVariant(ctx, tc.variant)
			return err
		})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestInsertTransactionRejectsDuplicateNumber(t *testing.T) {
	s := New()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertTransaction(ctx, domain.Transaction{ID: "trx-1", Number: "INV-1", Status: domain.TxStatusHeld}); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, domain.Transaction{ID: "trx-2", Number: "INV-1", Status: domain.TxStatusHeld})
	})
	var dup *store.DuplicateError
	if !errors.As(err, &dup) || dup.Field != "number" {
		t.Fatalf("expected duplicate number, got %v", err)
	}
	if _, err := s.GetTransaction(context.Background(), "trx-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected whole unit to roll back, got %v", err)
	}
}

func TestListTransactionsFiltersAndOrders(t *testing.T) {
	s := New()
	base := time.Date(2030, time.January, 5, 8, 0, 0, 0, time.UTC)
	completed := base.Add(2 * time.Hour)
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for i, txn := range []domain.Transaction{
			{ID: "trx-old", Number: "INV-OLD", Status: domain.TxStatusCompleted, PaymentMethod: domain.PaymentCash, CreatedAt: base.Add(-48 * time.Hour), CompletedAt: &completed},
			{ID: "trx-held", Number: "INV-HELD", Status: domain.TxStatusHeld, CreatedAt: base},
			{ID: "trx-new", Number: "INV-NEW", Status: domain.TxStatusCompleted, PaymentMethod: domain.PaymentQRIS, CreatedAt: base.Add(time.Hour), CompletedAt: &completed},
		} {
			txn.Cashier = "kasir"
			if err := tx.InsertTransaction(ctx, txn); err != nil {
				t.Fatalf("insert %d: %v", i, err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed transactions: %v", err)
	}

	all, _ := s.ListTransactions(context.Background(), store.TransactionQuery{})
	if len(all) != 3 || all[0].ID != "trx-new" || all[2].ID != "trx-old" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	// The held-then-completed sale counts on the day it completed.
	day := store.TransactionQuery{
		TransactionFilter: domain.TransactionFilter{From: base.Truncate(24 * time.Hour), To: base.Truncate(24 * time.Hour).Add(24 * time.Hour)},
		CompletedOnly:     true,
	}
	completedToday, _ := s.ListTransactions(context.Background(), day)
	if len(completedToday) != 2 {
		t.Fatalf("expected 2 completed on the day, got %d", len(completedToday))
	}

	day.PaymentMethod = domain.PaymentCash
	cash, _ := s.ListTransactions(context.Background(), day)
	if len(cash) != 1 || cash[0].ID != "trx-old" {
		t.Fatalf("expected only the cash sale, got %+v", cash)
	}

	limited, _ := s.ListTransactions(context.Background(), store.TransactionQuery{TransactionFilter: domain.TransactionFilter{Limit: 1}})
	if len(limited) != 1 {
		t.Fatalf("expected limit 1, got %d", len(limited))
	}
}

func TestDebtDerivesPaidAndSettled(t *testing.T) {
	s := New()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertDebtCredit(ctx, domain.DebtCredit{ID: "piu-1", Type: domain.DebtReceivable, CustomerName: "Bu Tini", Principal: decimal.NewFromInt(500)}); err != nil {
			return err
		}
		for _, amount := range []int64{200, 300} {
			if err := tx.InsertPayment(ctx, domain.Payment{ID: "pay-" + decimal.NewFromInt(amount).String(), DebtCreditID: "piu-1", Amount: decimal.NewFromInt(amount)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed debt: %v", err)
	}

	debt, err := s.GetDebtCredit(context.Background(), "piu-1")
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if !debt.AmountPaid.Equal(decimal.NewFromInt(500)) || !debt.RemainingBalance.IsZero() || !debt.Settled {
		t.Fatalf("expected derived settled debt, got %+v", debt)
	}
	if len(debt.Payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(debt.Payments))
	}

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertPayment(ctx, domain.Payment{ID: "pay-x", DebtCreditID: "piu-missing", Amount: decimal.NewFromInt(1)})
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown debt, got %v", err)
	}
}

func TestGetOrCreateCustomerMatchesByName(t *testing.T) {
	s := New()
	var first, second *domain.Customer
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		first, err = tx.GetOrCreateCustomer(ctx, domain.Customer{ID: "cust-1", Name: "Pak Harto", Phone: "0811"})
		if err != nil {
			return err
		}
		second, err = tx.GetOrCreateCustomer(ctx, domain.Customer{ID: "cust-2", Name: "Pak Harto", Phone: "0822"})
		return err
	})
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if first.ID != second.ID || second.Phone != "0811" {
		t.Fatalf("expected the existing customer, got %+v", second)
	}
	customers, _ := s.ListCustomers(context.Background(), "")
	if len(customers) != 1 {
		t.Fatalf("expected one customer, got %d", len(customers))
	}
}

func TestStoreInfoInitializesOnce(t *testing.T) {
	s := New()
	first, err := s.InitStoreInfo(context.Background(), domain.DefaultStoreInfo())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	first.Name = "Warung Baru"
	if _, err := s.UpdateStoreInfo(context.Background(), *first); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, err := s.InitStoreInfo(context.Background(), domain.DefaultStoreInfo())
	if err != nil {
		t.Fatalf("init again: %v", err)
	}
	if again.Name != "Warung Baru" {
		t.Fatalf("expected stored info to survive init, got %q", again.Name)
	}
}

func TestDeleteCategoryInUse(t *testing.T) {
	s := newSeededStore(t)
	categories, _ := s.ListCategories(context.Background())
	var used string
	for _, c := range categories {
		if c.Name == "Sembako" {
			used = c.ID
		}
	}
	if err := s.DeleteCategory(context.Background(), used); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if err := s.DeleteCategory(context.Background(), "cat-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewSeededUsesProvidedPasswords(t *testing.T) {
	passwords := SeedPasswords{Admin: "rahasia-admin", Guest: "rahasia-tamu"}
	s, err := NewSeeded(passwords)
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	want := map[string]string{"admin": "rahasia-admin", "cashier": "cashier123", "guest": "rahasia-tamu"}
	for _, u := range users {
		if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(want[u.Username])); err != nil {
			t.Fatalf("%s password mismatch: %v", u.Username, err)
		}
	}
	if got := passwords.Defaulted(); len(got) != 1 || got[0] != "cashier" {
		t.Fatalf("expected only cashier defaulted, got %v", got)
	}
}

func TestListTransactionsBreaksTimestampTiesByID(t *testing.T) {
	s := newSeededStore(t)
	at := time.Date(2030, time.March, 10, 9, 0, 0, 0, time.UTC)

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, id := range []string{"trx-b", "trx-a", "trx-c"} {
			if err := tx.InsertTransaction(ctx, domain.Transaction{ID: id, Number: "INV-" + id, Status: domain.TxStatusCompleted, CreatedAt: at}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert transactions: %v", err)
	}

	for i := 0; i < 5; i++ {
		list, err := s.ListTransactions(context.Background(), store.TransactionQuery{})
		if err != nil {
			t.Fatalf("list transactions: %v", err)
		}
		if len(list) != 3 || list[0].ID != "trx-c" || list[1].ID != "trx-b" || list[2].ID != "trx-a" {
			t.Fatalf("expected id-descending order on equal timestamps, got %v", transactionIDs(list))
		}
	}
}

func transactionIDs(txns []domain.Transaction) []string {
	ids := make([]string, 0, len(txns))
	for _, txn := range txns {
		ids = append(ids, txn.ID)
	}
	return ids
}
