package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
)

// SeedPasswords sets the demo account passwords. Empty fields fall back to
// dev defaults.
type SeedPasswords struct {
	Admin   string
	Cashier string
	Guest   string
}

// Defaulted lists the accounts that fall back to a dev default password.
func (p SeedPasswords) Defaulted() []string {
	var out []string
	for _, acc := range []struct {
		username string
		password string
	}{{"admin", p.Admin}, {"cashier", p.Cashier}, {"guest", p.Guest}} {
		if acc.password == "" {
			out = append(out, acc.username)
		}
	}
	return out
}

func seedUsers(p SeedPasswords, now time.Time) (map[string]domain.UserAccount, error) {
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     domain.Role
	}{
		{"admin", orDefault(p.Admin, "admin123"), domain.RoleAdmin},
		{"cashier", orDefault(p.Cashier, "cashier123"), domain.RoleCashier},
		{"guest", orDefault(p.Guest, "guest123"), domain.RoleGuest},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users, nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

type seedVariant struct {
	name      string
	sku       string
	unit      domain.Unit
	purchase  int64
	price     int64
	stock     int64
	threshold int64
	favorite  bool
}

type seedProduct struct {
	name     string
	category string
	variants []seedVariant
}

// NewSeeded returns a store with demo users and a small grocery catalog whose
// opening stock is recorded as AWAL movements.
func NewSeeded(passwords SeedPasswords) (*Store, error) {
	s := New()
	users, err := seedUsers(passwords, s.now())
	if err != nil {
		return nil, err
	}
	s.st.users = users

	categories := map[string]string{}
	for _, name := range []string{"Sembako", "Minuman", "Makanan Ringan", "Kebutuhan Rumah"} {
		cat, _ := s.CreateCategory(context.Background(), domain.Category{Name: name})
		categories[name] = cat.ID
	}
	supplier, _ := s.CreateSupplier(context.Background(), domain.Supplier{
		Name:          "CV Sumber Rejeki",
		ContactPerson: "Pak Darto",
		Phone:         "081234567890",
		Address:       "Jl. Pasar Baru No. 12",
	})

	catalog := []seedProduct{
		{name: "Beras Pandan Wangi", category: "Sembako", variants: []seedVariant{
			{name: "5 kg", sku: "SKU-BERAS-5KG", unit: domain.UnitBungkus, purchase: 68000, price: 75000, stock: 20, threshold: 5, favorite: true},
			{name: "Eceran", sku: "SKU-BERAS-KG", unit: domain.UnitKg, purchase: 13500, price: 15000, stock: 50, threshold: 10},
		}},
		{name: "Minyak Goreng", category: "Sembako", variants: []seedVariant{
			{name: "1 liter", sku: "SKU-MINYAK-1L", unit: domain.UnitLiter, purchase: 16000, price: 18000, stock: 36, threshold: 6, favorite: true},
		}},
		{name: "Gula Pasir", category: "Sembako", variants: []seedVariant{
			{name: "1 kg", sku: "SKU-GULA-1KG", unit: domain.UnitBungkus, purchase: 15500, price: 17500, stock: 4, threshold: 5},
		}},
		{name: "Telur Ayam", category: "Sembako", variants: []seedVariant{
			{name: "Per kg", sku: "SKU-TELUR-KG", unit: domain.UnitKg, purchase: 26000, price: 29000, stock: 15, threshold: 3},
		}},
		{name: "Kopi Sachet", category: "Minuman", variants: []seedVariant{
			{name: "Renceng", sku: "SKU-KOPI-RCG", unit: domain.UnitBungkus, purchase: 12000, price: 14000, stock: 24, threshold: 4, favorite: true},
			{name: "Satuan", sku: "SKU-KOPI-1", unit: domain.UnitSachet, purchase: 1200, price: 1500, stock: 120, threshold: 20},
		}},
		{name: "Air Mineral", category: "Minuman", variants: []seedVariant{
			{name: "600 ml", sku: "SKU-AIR-600", unit: domain.UnitPcs, purchase: 2500, price: 3500, stock: 48, threshold: 12},
		}},
		{name: "Keripik Singkong", category: "Makanan Ringan", variants: []seedVariant{
			{name: "Bungkus Kecil", sku: "SKU-KERIPIK-S", unit: domain.UnitBungkus, purchase: 4000, price: 5000, stock: 30, threshold: 5},
		}},
		{name: "Sabun Cuci Piring", category: "Kebutuhan Rumah", variants: []seedVariant{
			{name: "Refill 400 ml", sku: "SKU-SABUN-400", unit: domain.UnitBungkus, purchase: 9000, price: 11000, stock: 18, threshold: 4},
		}},
	}

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, p := range catalog {
			product, err := tx.CreateProduct(ctx, domain.Product{Name: p.name, CategoryID: categories[p.category]})
			if err != nil {
				return err
			}
			for _, sv := range p.variants {
				v, err := tx.CreateVariant(ctx, domain.Variant{
					ProductID:         product.ID,
					Name:              sv.name,
					SKU:               sv.sku,
					Unit:              sv.unit,
					PurchasePrice:     decimal.NewFromInt(sv.purchase),
					NormalPrice:       decimal.NewFromInt(sv.price),
					TrackStock:        true,
					LowStockThreshold: decimal.NewFromInt(sv.threshold),
					Favorite:          sv.favorite,
					SupplierID:        supplier.ID,
					Active:            true,
				})
				if err != nil {
					return err
				}
				if _, err := tx.ApplyMovement(ctx, domain.StockMovement{
					VariantID:      v.ID,
					QuantityChange: decimal.NewFromInt(sv.stock),
					Reason:         domain.ReasonInitialStock,
					Note:           "Stok awal produk baru",
					Actor:          "system",
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	return s, nil
}
