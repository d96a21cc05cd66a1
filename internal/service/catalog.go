package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/xid"
)

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if _, err := s.authorize(ctx, domain.CapViewCatalog); err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (domain.Category, error) {
	if _, err := s.authorize(ctx, domain.CapManageCatalog); err != nil {
		return domain.Category{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Category{}, err
	}
	created, err := s.repo.CreateCategory(ctx, domain.Category{
		ID:          xid.New("cat"),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.Category{}, err
	}
	s.logAudit(ctx, "category_create", "category", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryRequest) (domain.Category, error) {
	if _, err := s.authorize(ctx, domain.CapManageCatalog); err != nil {
		return domain.Category{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Category{}, err
	}
	updated, err := s.repo.UpdateCategory(ctx, domain.Category{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return domain.Category{}, err
	}
	s.logAudit(ctx, "category_update", "category", updated.ID, updated.Name)
	return *updated, nil
}

// DeleteCategory fails with ErrInvalidState while products still reference it.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.authorize(ctx, domain.CapManageCatalog); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "category_delete", "category", id, "")
	return nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	if _, err := s.authorizeAny(ctx, domain.CapViewCatalog, domain.CapRecordLedger); err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	if _, err := s.authorizeAny(ctx, domain.CapViewCatalog, domain.CapRecordLedger); err != nil {
		return domain.Supplier{}, err
	}
	supplier, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *supplier, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierRequest) (domain.Supplier, error) {
	if _, err := s.authorize(ctx, domain.CapManageCatalog); err != nil {
		return domain.Supplier{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Supplier{}, err
	}
	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:            xid.New("sup"),
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_create", "supplier", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.SupplierRequest) (domain.Supplier, error) {
	if _, err := s.authorize(ctx, domain.CapManageCatalog); err != nil {
		return domain.Supplier{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Supplier{}, err
	}
	updated, err := s.repo.UpdateSupplier(ctx, domain.Supplier{
		ID:            id,
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_update", "supplier", updated.ID, updated.Name)
	return *updated, nil
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if _, err := s.authorize(ctx, domain.CapViewCatalog); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if _, err := s.authorize(ctx, domain.CapViewCatalog); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// CreateProduct stores the product with its variants. Opening stock is
// recorded as AWAL movements in the same unit of work.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := s.authorize(ctx, domain.CapManageCatalog)
	if err != nil {
		return domain.Product{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Product{}, err
	}

	var (
		productID string
		opening   int
	)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		opening = 0
		product, err := tx.CreateProduct(ctx, domain.Product{
			ID:          xid.New("prd"),
			Name:        strings.TrimSpace(req.Name),
			CategoryID:  strings.TrimSpace(req.CategoryID),
			Description: strings.TrimSpace(req.Description),
		})
		if err != nil {
			return err
		}
		for _, vr := range req.Variants {
			applied, err := s.createVariant(ctx, tx, product.ID, vr, actor.Username)
			if err != nil {
				return err
			}
			if applied {
				opening++
			}
		}
		productID = product.ID
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	for i := 0; i < opening; i++ {
		s.metrics.ObserveMovement(string(domain.ReasonInitialStock))
	}
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,variants=%d", created.Name, len(created.Variants)))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := s.authorize(ctx, domain.CapManageCatalog); err != nil {
		return domain.Product{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Product{}, err
	}
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
		if updated.Name == "" {
			return domain.Product{}, invalid("name must not be blank")
		}
	}
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}

	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.UpdateProduct(ctx, updated)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	saved, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_update", "product", saved.ID, saved.Name)
	return *saved, nil
}

// AddVariant adds a sellable unit to an existing product.
func (s *Service) AddVariant(ctx context.Context, productID string, req domain.VariantCreateRequest) (domain.Variant, error) {
	actor, err := s.authorize(ctx, domain.CapManageCatalog)
	if err != nil {
		return domain.Variant{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Variant{}, err
	}

	var (
		variantID string
		opening   bool
	)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		id := xid.New("var")
		applied, err := s.createVariantWithID(ctx, tx, productID, id, req, actor.Username)
		if err != nil {
			return err
		}
		variantID, opening = id, applied
		return nil
	})
	if err != nil {
		return domain.Variant{}, err
	}

	created, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		return domain.Variant{}, err
	}
	if opening {
		s.metrics.ObserveMovement(string(domain.ReasonInitialStock))
	}
	s.logAudit(ctx, "variant_create", "variant", created.ID, created.DisplayName())
	return *created, nil
}

// UpdateVariant applies the provided fields. Stock is never written here and
// price rules are replaced only when the request carries them.
func (s *Service) UpdateVariant(ctx context.Context, id string, req domain.VariantUpdateRequest) (domain.Variant, error) {
	if _, err := s.authorize(ctx, domain.CapManageCatalog); err != nil {
		return domain.Variant{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Variant{}, err
	}

	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		locked, err := tx.GetVariantsForUpdate(ctx, []string{id})
		if err != nil {
			return err
		}
		v, ok := locked[id]
		if !ok {
			return fmt.Errorf("%w: variant %s", store.ErrNotFound, id)
		}
		if req.Name != nil {
			v.Name = strings.TrimSpace(*req.Name)
			if v.Name == "" {
				return invalid("name must not be blank")
			}
		}
		if req.SKU != nil {
			v.SKU = strings.TrimSpace(*req.SKU)
		}
		if req.Unit != nil {
			v.Unit = *req.Unit
		}
		if req.PurchasePrice != nil {
			v.PurchasePrice = req.PurchasePrice.Round(2)
		}
		if req.NormalPrice != nil {
			v.NormalPrice = req.NormalPrice.Round(2)
		}
		if req.ResellerPrice != nil {
			v.ResellerPrice = *req.ResellerPrice
			if v.ResellerPrice.Valid && v.ResellerPrice.Decimal.IsNegative() {
				return invalid("reseller_price must not be negative")
			}
		}
		if req.TrackStock != nil {
			v.TrackStock = *req.TrackStock
		}
		if req.LowStockThreshold != nil {
			v.LowStockThreshold = req.LowStockThreshold.Round(3)
		}
		if req.Favorite != nil {
			v.Favorite = *req.Favorite
		}
		if req.SupplierID != nil {
			v.SupplierID = strings.TrimSpace(*req.SupplierID)
		}
		if req.PriceRules != nil {
			v.PriceRules = toPriceRules(*req.PriceRules)
		}
		_, err = tx.UpdateVariant(ctx, v)
		return err
	})
	if err != nil {
		return domain.Variant{}, err
	}

	saved, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		return domain.Variant{}, err
	}
	s.logAudit(ctx, "variant_update", "variant", saved.ID, fmt.Sprintf("price=%s,active=%t", saved.NormalPrice, saved.Active))
	return *saved, nil
}

func (s *Service) DeactivateVariant(ctx context.Context, id string) (domain.Variant, error) {
	return s.setVariantActive(ctx, id, false)
}

func (s *Service) ReactivateVariant(ctx context.Context, id string) (domain.Variant, error) {
	return s.setVariantActive(ctx, id, true)
}

func (s *Service) setVariantActive(ctx context.Context, id string, active bool) (domain.Variant, error) {
	if _, err := s.authorize(ctx, domain.CapManageCatalog); err != nil {
		return domain.Variant{}, err
	}
	var saved *domain.Variant
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		v, err := tx.SetVariantActive(ctx, id, active)
		saved = v
		return err
	})
	if err != nil {
		return domain.Variant{}, err
	}
	action := "variant_deactivate"
	if active {
		action = "variant_reactivate"
	}
	s.logAudit(ctx, action, "variant", saved.ID, saved.DisplayName())
	return *saved, nil
}

func (s *Service) LookupVariantBySKU(ctx context.Context, sku string) (domain.Variant, error) {
	if _, err := s.authorize(ctx, domain.CapViewCatalog); err != nil {
		return domain.Variant{}, err
	}
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return domain.Variant{}, invalid("sku is required")
	}
	v, err := s.repo.GetVariantBySKU(ctx, sku)
	if err != nil {
		return domain.Variant{}, err
	}
	return *v, nil
}

func (s *Service) createVariant(ctx context.Context, tx store.Tx, productID string, req domain.VariantCreateRequest, actor string) (bool, error) {
	return s.createVariantWithID(ctx, tx, productID, xid.New("var"), req, actor)
}

// createVariantWithID inserts the variant with zero stock and records its
// opening stock, if any, as an AWAL movement.
func (s *Service) createVariantWithID(ctx context.Context, tx store.Tx, productID string, id string, req domain.VariantCreateRequest, actor string) (bool, error) {
	trackStock := true
	if req.TrackStock != nil {
		trackStock = *req.TrackStock
	}
	unit := req.Unit
	if unit == "" {
		unit = domain.UnitPcs
	}

	created, err := tx.CreateVariant(ctx, domain.Variant{
		ID:                id,
		ProductID:         productID,
		Name:              strings.TrimSpace(req.Name),
		SKU:               strings.TrimSpace(req.SKU),
		Unit:              unit,
		PurchasePrice:     req.PurchasePrice.Round(2),
		NormalPrice:       req.NormalPrice.Round(2),
		ResellerPrice:     req.ResellerPrice,
		TrackStock:        trackStock,
		LowStockThreshold: req.LowStockThreshold.Round(3),
		Favorite:          req.Favorite,
		SupplierID:        strings.TrimSpace(req.SupplierID),
		Active:            true,
		PriceRules:        toPriceRules(req.PriceRules),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("%w: product or supplier for variant %s", store.ErrNotFound, req.Name)
		}
		return false, err
	}

	if !req.InitialStock.IsPositive() {
		return false, nil
	}
	if _, err := tx.ApplyMovement(ctx, domain.StockMovement{
		VariantID:      created.ID,
		VariantName:    created.DisplayName(),
		QuantityChange: req.InitialStock.Round(3),
		Reason:         domain.ReasonInitialStock,
		Note:           "Stok awal produk baru",
		Actor:          actor,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func toPriceRules(inputs []domain.PriceRuleInput) []domain.QuantityPriceRule {
	rules := make([]domain.QuantityPriceRule, 0, len(inputs))
	for _, in := range inputs {
		rules = append(rules, domain.QuantityPriceRule{
			MinQuantity: in.MinQuantity.Round(3),
			TotalPrice:  in.TotalPrice.Round(2),
		})
	}
	return rules
}
