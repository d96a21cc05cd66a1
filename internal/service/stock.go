package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
)

const errVariantNotFound = "variant not found"

// AdjustStock applies a batch of manual movements in one unit of work.
// Unknown variants are reported per item and do not block the rest.
func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustRequest) (domain.StockAdjustResponse, error) {
	actor, err := s.authorize(ctx, domain.CapManageStock)
	if err != nil {
		return domain.StockAdjustResponse{}, err
	}
	items := make([]domain.StockAdjustItem, len(req.Items))
	for i, item := range req.Items {
		item.Quantity = item.Quantity.Round(3)
		items[i] = item
	}
	req.Items = items
	if err := validateRequest(req); err != nil {
		return domain.StockAdjustResponse{}, err
	}
	if !req.Reason.Manual() {
		return domain.StockAdjustResponse{}, invalid("reason %s is not allowed for manual adjustment", req.Reason)
	}

	var resp domain.StockAdjustResponse
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		resp = domain.StockAdjustResponse{Reason: req.Reason, Results: make([]domain.StockAdjustResult, 0, len(req.Items))}

		ids := make([]string, 0, len(req.Items))
		for _, item := range req.Items {
			ids = append(ids, item.VariantID)
		}
		variants, err := tx.GetVariantsForUpdate(ctx, dedupe(ids))
		if err != nil {
			return err
		}

		for _, item := range req.Items {
			result := domain.StockAdjustResult{VariantID: item.VariantID}
			v, ok := variants[item.VariantID]
			if !ok {
				result.Error = errVariantNotFound
				resp.Skipped++
				resp.Results = append(resp.Results, result)
				continue
			}

			delta := item.Quantity
			if !req.Reason.Inbound() {
				delta = delta.Neg()
			}
			if req.Reason == domain.ReasonPurchase && item.PurchasePrice.Valid && item.PurchasePrice.Decimal.IsPositive() {
				if err := tx.UpdateVariantPurchasePrice(ctx, v.ID, item.PurchasePrice.Decimal.Round(2)); err != nil {
					return err
				}
			}

			note := firstNonEmpty(item.Notes, req.Notes, req.Reason.Label())
			movement, err := tx.ApplyMovement(ctx, domain.StockMovement{
				VariantID:      v.ID,
				VariantName:    v.DisplayName(),
				QuantityChange: delta,
				Reason:         req.Reason,
				Note:           note,
				Actor:          actor.Username,
			})
			if err != nil {
				return err
			}
			result.Applied = true
			result.Movement = movement
			resp.Applied++
			resp.Results = append(resp.Results, result)
		}
		return nil
	})
	if err != nil {
		return domain.StockAdjustResponse{}, err
	}

	for i := 0; i < resp.Applied; i++ {
		s.metrics.ObserveMovement(string(req.Reason))
	}
	s.logAudit(ctx, "stock_adjust", "stock", string(req.Reason), fmt.Sprintf("applied=%d,skipped=%d", resp.Applied, resp.Skipped))
	return resp, nil
}

// StockOpname reconciles cached stock with physical counts. Matching counts
// record nothing; differences record one OPNAME movement each.
func (s *Service) StockOpname(ctx context.Context, req domain.StockOpnameRequest) (domain.StockOpnameResponse, error) {
	actor, err := s.authorize(ctx, domain.CapManageStock)
	if err != nil {
		return domain.StockOpnameResponse{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.StockOpnameResponse{}, err
	}

	var resp domain.StockOpnameResponse
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		resp = domain.StockOpnameResponse{
			Notes:     strings.TrimSpace(req.Notes),
			Results:   make([]domain.StockOpnameResult, 0, len(req.Items)),
			CreatedAt: s.now().UTC(),
		}

		ids := make([]string, 0, len(req.Items))
		for _, item := range req.Items {
			ids = append(ids, item.VariantID)
		}
		variants, err := tx.GetVariantsForUpdate(ctx, dedupe(ids))
		if err != nil {
			return err
		}
		current := make(map[string]decimal.Decimal, len(variants))
		for id, v := range variants {
			current[id] = v.StockQuantity
		}

		for _, item := range req.Items {
			result := domain.StockOpnameResult{VariantID: item.VariantID, PhysicalCount: item.PhysicalCount.Round(3)}
			v, ok := variants[item.VariantID]
			if !ok {
				result.Error = errVariantNotFound
				resp.Results = append(resp.Results, result)
				continue
			}
			result.Found = true
			result.VariantName = v.DisplayName()
			result.SystemQuantity = current[v.ID]
			result.Discrepancy = result.PhysicalCount.Sub(result.SystemQuantity)

			if !result.Discrepancy.IsZero() {
				note := fmt.Sprintf("Sistem: %s, Fisik: %s", result.SystemQuantity, result.PhysicalCount)
				movement, err := tx.ApplyMovement(ctx, domain.StockMovement{
					VariantID:      v.ID,
					VariantName:    v.DisplayName(),
					QuantityChange: result.Discrepancy,
					Reason:         domain.ReasonPhysicalCount,
					Note:           note,
					Actor:          actor.Username,
				})
				if err != nil {
					return err
				}
				current[v.ID] = movement.ResultingQuantity
				result.Movement = movement
				resp.Adjusted++
			}
			resp.Results = append(resp.Results, result)
		}
		return nil
	})
	if err != nil {
		return domain.StockOpnameResponse{}, err
	}

	for i := 0; i < resp.Adjusted; i++ {
		s.metrics.ObserveMovement(string(domain.ReasonPhysicalCount))
	}
	s.logAudit(ctx, "stock_opname", "stock", "opname", fmt.Sprintf("items=%d,adjusted=%d", len(req.Items), resp.Adjusted))
	return resp, nil
}

func (s *Service) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	if _, err := s.authorizeAny(ctx, domain.CapManageStock, domain.CapViewReports); err != nil {
		return nil, err
	}
	if filter.Reason != "" && !filter.Reason.Valid() {
		return nil, invalid("unknown movement reason %s", filter.Reason)
	}
	if filter.Limit < 1 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxTransactionLimit {
		filter.Limit = maxTransactionLimit
	}
	return s.repo.ListMovements(ctx, filter)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
