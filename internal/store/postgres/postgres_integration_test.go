package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/xid"
)

// openTestStore connects to TOKOBUNING_TEST_DATABASE_URL and applies the
// migrations. Tests use random names so repeated runs share one database.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TOKOBUNING_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TOKOBUNING_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	s, err := New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func createTestVariant(t *testing.T, s *Store, stock int64) domain.Variant {
	t.Helper()
	ctx := context.Background()

	var created *domain.Variant
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		product, err := tx.CreateProduct(ctx, domain.Product{Name: "Produk " + xid.New("it")})
		if err != nil {
			return err
		}
		created, err = tx.CreateVariant(ctx, domain.Variant{
			ProductID:     product.ID,
			Name:          "Eceran",
			SKU:           xid.New("sku"),
			Unit:          domain.UnitPcs,
			PurchasePrice: decimal.NewFromInt(2500),
			NormalPrice:   decimal.NewFromInt(3000),
			TrackStock:    true,
			Active:        true,
			PriceRules: []domain.QuantityPriceRule{
				{MinQuantity: decimal.NewFromInt(3), TotalPrice: decimal.NewFromInt(8000)},
			},
		})
		if err != nil {
			return err
		}
		if stock > 0 {
			_, err = tx.ApplyMovement(ctx, domain.StockMovement{
				VariantID:      created.ID,
				QuantityChange: decimal.NewFromInt(stock),
				Reason:         domain.ReasonInitialStock,
			})
		}
		return err
	})
	if err != nil {
		t.Fatalf("create variant: %v", err)
	}
	v, err := s.GetVariant(ctx, created.ID)
	if err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	return *v
}

func TestPostgresMovementAndRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	v := createTestVariant(t, s, 10)

	if !v.StockQuantity.Equal(decimal.NewFromInt(10)) || len(v.PriceRules) != 1 {
		t.Fatalf("unexpected variant %+v", v)
	}

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.ApplyMovement(ctx, domain.StockMovement{
			VariantID:      v.ID,
			QuantityChange: decimal.NewFromInt(-4),
			Reason:         domain.ReasonSale,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	after, err := s.GetVariant(ctx, v.ID)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if !after.StockQuantity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected rollback to keep stock 10, got %s", after.StockQuantity)
	}

	movements, err := s.ListMovements(ctx, domain.MovementFilter{VariantID: v.ID})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 1 || movements[0].Reason != domain.ReasonInitialStock {
		t.Fatalf("expected only the opening movement, got %+v", movements)
	}
	if !movements[0].ResultingQuantity.Equal(after.StockQuantity) {
		t.Fatalf("ledger %s out of sync with stock %s", movements[0].ResultingQuantity, after.StockQuantity)
	}
}

func TestPostgresTransactionNumberIsUnique(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	v := createTestVariant(t, s, 5)
	number := xid.New("INV")

	txn := func(id string) domain.Transaction {
		return domain.Transaction{
			ID:            id,
			Number:        number,
			Cashier:       "kasir",
			GrossTotal:    decimal.NewFromInt(3000),
			NetTotal:      decimal.NewFromInt(3000),
			AmountPaid:    decimal.NewFromInt(5000),
			ChangeDue:     decimal.NewFromInt(2000),
			PaymentMethod: domain.PaymentCash,
			CustomerType:  domain.CustomerRegular,
			Status:        domain.TxStatusCompleted,
			Items: []domain.LineItem{{
				VariantID:   v.ID,
				VariantName: v.DisplayName(),
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.NewFromInt(3000),
				Subtotal:    decimal.NewFromInt(3000),
			}},
		}
	}

	first := xid.New("trx")
	if err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertTransaction(ctx, txn(first))
	}); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}

	// The second insert clashes, then the unit keeps going under a new number.
	second := xid.New("trx")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		err := tx.InsertTransaction(ctx, txn(second))
		if !errors.Is(err, store.ErrDuplicate) {
			t.Errorf("expected duplicate number, got %v", err)
			return err
		}
		retry := txn(second)
		retry.Number = number + "-2"
		return tx.InsertTransaction(ctx, retry)
	})
	if err != nil {
		t.Fatalf("retry after duplicate: %v", err)
	}

	got, err := s.GetTransaction(ctx, second)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.Number != number+"-2" || len(got.Items) != 1 || got.Items[0].Position != 0 {
		t.Fatalf("unexpected transaction %+v", got)
	}
}

func TestPostgresDebtAndSavings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	debtID := xid.New("dc")
	name := "Pelanggan " + xid.New("it")

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertDebtCredit(ctx, domain.DebtCredit{
			ID:           debtID,
			Type:         domain.DebtReceivable,
			CustomerName: name,
			Principal:    decimal.NewFromInt(50000),
		}); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, domain.Payment{DebtCreditID: debtID, Amount: decimal.NewFromInt(50000)})
	})
	if err != nil {
		t.Fatalf("record debt: %v", err)
	}
	debt, err := s.GetDebtCredit(ctx, debtID)
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if !debt.Settled || !debt.RemainingBalance.IsZero() || len(debt.Payments) != 1 {
		t.Fatalf("expected settled debt, got %+v", debt)
	}

	var customerID string
	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetOrCreateCustomer(ctx, domain.Customer{Name: name})
		if err != nil {
			return err
		}
		customerID = c.ID
		_, err = tx.InsertSavingsMovement(ctx, domain.SavingsMovement{
			CustomerID:       c.ID,
			Type:             domain.SavingsDeposit,
			Amount:           decimal.NewFromInt(20000),
			ResultingBalance: decimal.NewFromInt(20000),
		})
		return err
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		again, err := tx.GetOrCreateCustomer(ctx, domain.Customer{Name: name})
		if err != nil {
			return err
		}
		if again.ID != customerID {
			t.Errorf("expected name lookup to reuse %s, got %s", customerID, again.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lookup customer: %v", err)
	}

	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if !customer.SavingsBalance.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("expected derived balance 20000, got %s", customer.SavingsBalance)
	}
}
