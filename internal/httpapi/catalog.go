package httpapi

import (
	"net/http"
	"strings"

	"tokobuning/backend/internal/domain"
)

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if !a.decode(w, r, &req) {
		return
	}
	category, err := a.service.CreateCategory(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": category})
}

func (a *API) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if !a.decode(w, r, &req) {
		return
	}
	category, err := a.service.UpdateCategory(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category})
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := a.service.ListSuppliers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (a *API) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := a.service.GetSupplier(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supplier": supplier})
}

func (a *API) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierRequest
	if !a.decode(w, r, &req) {
		return
	}
	supplier, err := a.service.CreateSupplier(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"supplier": supplier})
}

func (a *API) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierRequest
	if !a.decode(w, r, &req) {
		return
	}
	supplier, err := a.service.UpdateSupplier(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supplier": supplier})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	favorites, err := parseOptionalBool(query.Get("favorites"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	includeInactive, err := parseOptionalBool(query.Get("include_inactive"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	filter := domain.ProductFilter{
		Search:          strings.TrimSpace(query.Get("search")),
		CategoryID:      strings.TrimSpace(query.Get("category_id")),
		FavoritesOnly:   favorites != nil && *favorites,
		IncludeInactive: includeInactive != nil && *includeInactive,
	}
	products, err := a.service.ListProducts(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleAddVariant(w http.ResponseWriter, r *http.Request) {
	var req domain.VariantCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	variant, err := a.service.AddVariant(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"variant": variant})
}

func (a *API) handleUpdateVariant(w http.ResponseWriter, r *http.Request) {
	var req domain.VariantUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	variant, err := a.service.UpdateVariant(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"variant": variant})
}

func (a *API) handleSetVariantActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			variant domain.Variant
			err     error
		)
		if active {
			variant, err = a.service.ReactivateVariant(r.Context(), r.PathValue("id"))
		} else {
			variant, err = a.service.DeactivateVariant(r.Context(), r.PathValue("id"))
		}
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"variant": variant})
	}
}

func (a *API) handleLookupVariant(w http.ResponseWriter, r *http.Request) {
	variant, err := a.service.LookupVariantBySKU(r.Context(), r.URL.Query().Get("sku"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"variant": variant})
}

func (a *API) handleBarcodeLookup(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.LookupBarcode(r.Context(), r.PathValue("code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustRequest
	if !a.decode(w, r, &req) {
		return
	}
	resp, err := a.service.AdjustStock(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleStockOpname(w http.ResponseWriter, r *http.Request) {
	var req domain.StockOpnameRequest
	if !a.decode(w, r, &req) {
		return
	}
	resp, err := a.service.StockOpname(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListMovements(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, to, err := a.service.DateRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	filter := domain.MovementFilter{
		VariantID:     strings.TrimSpace(query.Get("variant_id")),
		Reason:        domain.MovementReason(strings.TrimSpace(query.Get("reason"))),
		ExcludeReason: domain.MovementReason(strings.TrimSpace(query.Get("exclude_reason"))),
		From:          from,
		To:            to,
		Limit:         parsePositiveLimit(query.Get("limit"), 100, 500),
	}
	movements, err := a.service.ListMovements(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}
