package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/xid"
)

const (
	maxNumberAttempts   = 5
	defaultListLimit    = 100
	maxTransactionLimit = 500
)

type pricedCart struct {
	items []domain.LineItem
	gross decimal.Decimal
}

// CreateSale commits a cart as a completed transaction: lock and price the
// variants, check stock and payment, persist, then deduct stock.
func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.Transaction, error) {
	actor, err := s.authorize(ctx, domain.CapSell)
	if err != nil {
		return domain.Transaction{}, err
	}
	req.Items = roundSaleItems(req.Items)
	if err := validateRequest(req); err != nil {
		return domain.Transaction{}, err
	}

	var (
		txnID     string
		movements int
	)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		variants, cart, err := s.priceCart(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		if err := checkStock(cart.items, variants); err != nil {
			return err
		}
		net, change, err := checkPayment(cart.gross, req.Discount, req.AmountPaid)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		txn := domain.Transaction{
			ID:            xid.New("trx"),
			Cashier:       actor.Username,
			Items:         cart.items,
			GrossTotal:    cart.gross,
			Discount:      req.Discount.Round(2),
			NetTotal:      net,
			AmountPaid:    req.AmountPaid.Round(2),
			ChangeDue:     change,
			PaymentMethod: req.PaymentMethod,
			CustomerType:  customerTypeOrDefault(req.CustomerType),
			Status:        domain.TxStatusCompleted,
			Notes:         strings.TrimSpace(req.Notes),
			CreatedAt:     now,
			CompletedAt:   &now,
		}
		if err := s.insertWithNumber(ctx, tx, &txn); err != nil {
			return err
		}
		movements, err = deductStock(ctx, tx, txn, variants, actor.Username)
		if err != nil {
			return err
		}
		txnID = txn.ID
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	saved, err := s.repo.GetTransaction(ctx, txnID)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.observeCompleted(*saved, movements)
	s.logAudit(ctx, "sale_create", "transaction", saved.Number, fmt.Sprintf("net=%s,method=%s,items=%d", saved.NetTotal, saved.PaymentMethod, len(saved.Items)))
	return *saved, nil
}

// HoldTransaction parks a priced cart without touching stock.
func (s *Service) HoldTransaction(ctx context.Context, req domain.HoldRequest) (domain.Transaction, error) {
	actor, err := s.authorize(ctx, domain.CapSell)
	if err != nil {
		return domain.Transaction{}, err
	}
	req.Items = roundSaleItems(req.Items)
	if err := validateRequest(req); err != nil {
		return domain.Transaction{}, err
	}

	var txnID string
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, cart, err := s.priceCart(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		txn := domain.Transaction{
			ID:           xid.New("trx"),
			Cashier:      actor.Username,
			Items:        cart.items,
			GrossTotal:   cart.gross,
			Discount:     decimal.Zero,
			NetTotal:     cart.gross,
			AmountPaid:   decimal.Zero,
			ChangeDue:    decimal.Zero,
			CustomerType: customerTypeOrDefault(req.CustomerType),
			Status:       domain.TxStatusHeld,
			Notes:        strings.TrimSpace(req.Notes),
			CreatedAt:    s.now().UTC(),
		}
		if err := s.insertWithNumber(ctx, tx, &txn); err != nil {
			return err
		}
		txnID = txn.ID
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	saved, err := s.repo.GetTransaction(ctx, txnID)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.logAudit(ctx, "sale_hold", "transaction", saved.Number, fmt.Sprintf("gross=%s,items=%d", saved.GrossTotal, len(saved.Items)))
	return *saved, nil
}

// ResumeTransaction completes a held transaction. Stock is checked against
// current levels while the stored line prices are kept.
func (s *Service) ResumeTransaction(ctx context.Context, id string, req domain.ResumeRequest) (domain.Transaction, error) {
	actor, err := s.authorize(ctx, domain.CapSell)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Transaction{}, err
	}

	var movements int
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		txn, err := lockHeld(ctx, tx, id)
		if err != nil {
			return err
		}
		variants, err := tx.GetVariantsForUpdate(ctx, lineVariantIDs(txn.Items))
		if err != nil {
			return err
		}
		for _, item := range txn.Items {
			if _, ok := variants[item.VariantID]; !ok {
				return fmt.Errorf("%w: variant %s", store.ErrNotFound, item.VariantID)
			}
		}
		if err := checkStock(txn.Items, variants); err != nil {
			return err
		}

		gross := decimal.Zero
		for _, item := range txn.Items {
			gross = gross.Add(item.Subtotal)
		}
		net, change, err := checkPayment(gross, req.Discount, req.AmountPaid)
		if err != nil {
			return err
		}
		movements, err = deductStock(ctx, tx, *txn, variants, actor.Username)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		txn.GrossTotal = gross
		txn.Discount = req.Discount.Round(2)
		txn.NetTotal = net
		txn.AmountPaid = req.AmountPaid.Round(2)
		txn.ChangeDue = change
		txn.PaymentMethod = req.PaymentMethod
		txn.Status = domain.TxStatusCompleted
		txn.CompletedAt = &now
		return tx.UpdateTransaction(ctx, *txn)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	saved, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.observeCompleted(*saved, movements)
	s.logAudit(ctx, "sale_resume", "transaction", saved.Number, fmt.Sprintf("net=%s,method=%s", saved.NetTotal, saved.PaymentMethod))
	return *saved, nil
}

// UpdateHeldTransaction re-prices a held cart and replaces its lines.
func (s *Service) UpdateHeldTransaction(ctx context.Context, id string, req domain.UpdateHeldRequest) (domain.Transaction, error) {
	if _, err := s.authorize(ctx, domain.CapSell); err != nil {
		return domain.Transaction{}, err
	}
	req.Items = roundSaleItems(req.Items)
	if err := validateRequest(req); err != nil {
		return domain.Transaction{}, err
	}

	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		txn, err := lockHeld(ctx, tx, id)
		if err != nil {
			return err
		}
		_, cart, err := s.priceCart(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		if err := tx.ReplaceLineItems(ctx, txn.ID, cart.items); err != nil {
			return err
		}
		txn.GrossTotal = cart.gross
		txn.Discount = decimal.Zero
		txn.NetTotal = cart.gross
		if req.CustomerType != nil {
			txn.CustomerType = customerTypeOrDefault(*req.CustomerType)
		}
		if req.Notes != nil {
			txn.Notes = strings.TrimSpace(*req.Notes)
		}
		return tx.UpdateTransaction(ctx, *txn)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	saved, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.logAudit(ctx, "sale_update_held", "transaction", saved.Number, fmt.Sprintf("gross=%s,items=%d", saved.GrossTotal, len(saved.Items)))
	return *saved, nil
}

// CancelHeldTransaction moves a held transaction to cancelled.
func (s *Service) CancelHeldTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	if _, err := s.authorize(ctx, domain.CapSell); err != nil {
		return domain.Transaction{}, err
	}

	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		txn, err := lockHeld(ctx, tx, id)
		if err != nil {
			return err
		}
		txn.Status = domain.TxStatusCancelled
		return tx.UpdateTransaction(ctx, *txn)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	saved, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.logAudit(ctx, "sale_cancel_held", "transaction", saved.Number, "")
	return *saved, nil
}

// GetTransaction returns a transaction of any status with its line items.
func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	if _, err := s.authorizeAny(ctx, domain.CapSell, domain.CapViewReports); err != nil {
		return domain.Transaction{}, err
	}
	txn, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *txn, nil
}

// ListTransactions filters on created_at and sums the net total of the
// completed transactions in the page.
func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter) (domain.TransactionList, error) {
	if _, err := s.authorizeAny(ctx, domain.CapSell, domain.CapViewReports); err != nil {
		return domain.TransactionList{}, err
	}
	if filter.Limit < 1 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxTransactionLimit {
		filter.Limit = maxTransactionLimit
	}

	txns, err := s.repo.ListTransactions(ctx, store.TransactionQuery{TransactionFilter: filter})
	if err != nil {
		return domain.TransactionList{}, err
	}
	summary := domain.TransactionSummary{TotalSales: decimal.Zero}
	for _, txn := range txns {
		if txn.Status == domain.TxStatusCompleted {
			summary.Count++
			summary.TotalSales = summary.TotalSales.Add(txn.NetTotal)
		}
	}
	return domain.TransactionList{Transactions: txns, Summary: summary}, nil
}

// Receipt pairs a transaction with the current store header for printing.
func (s *Service) Receipt(ctx context.Context, id string) (domain.Receipt, error) {
	txn, err := s.GetTransaction(ctx, id)
	if err != nil {
		return domain.Receipt{}, err
	}
	info, err := s.StoreInfo(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}
	return domain.Receipt{Store: info, Transaction: txn}, nil
}

// priceCart locks the referenced variants and prices each input line at the
// normal price. Repeated variants stay as separate lines.
func (s *Service) priceCart(ctx context.Context, tx store.Tx, inputs []domain.SaleItemInput) (map[string]domain.Variant, pricedCart, error) {
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.VariantID)
	}
	variants, err := tx.GetVariantsForUpdate(ctx, dedupe(ids))
	if err != nil {
		return nil, pricedCart{}, err
	}

	cart := pricedCart{items: make([]domain.LineItem, 0, len(inputs)), gross: decimal.Zero}
	for _, in := range inputs {
		v, ok := variants[in.VariantID]
		if !ok {
			return nil, pricedCart{}, fmt.Errorf("%w: variant %s", store.ErrNotFound, in.VariantID)
		}
		if !v.Active {
			return nil, pricedCart{}, invalid("variant %s is inactive", v.DisplayName())
		}
		qty := in.Quantity
		subtotal := v.NormalPrice.Mul(qty).Round(2)
		cart.items = append(cart.items, domain.LineItem{
			VariantID:   v.ID,
			VariantName: v.DisplayName(),
			Quantity:    qty,
			UnitPrice:   v.NormalPrice,
			Subtotal:    subtotal,
		})
		cart.gross = cart.gross.Add(subtotal)
	}
	return variants, cart, nil
}

// roundSaleItems returns a copy with quantities at stored precision so that
// validation sees the value that will be persisted.
func roundSaleItems(items []domain.SaleItemInput) []domain.SaleItemInput {
	out := make([]domain.SaleItemInput, len(items))
	for i, item := range items {
		item.Quantity = item.Quantity.Round(3)
		out[i] = item
	}
	return out
}

// checkStock sums the requested quantity per tracked variant and compares it
// with the cached stock.
func checkStock(items []domain.LineItem, variants map[string]domain.Variant) error {
	order := make([]string, 0, len(items))
	required := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		if _, seen := required[item.VariantID]; !seen {
			order = append(order, item.VariantID)
		}
		required[item.VariantID] = required[item.VariantID].Add(item.Quantity)
	}
	for _, id := range order {
		v := variants[id]
		if !v.TrackStock {
			continue
		}
		if required[id].GreaterThan(v.StockQuantity) {
			return &store.InsufficientStockError{
				VariantID:   id,
				VariantName: v.DisplayName(),
				Requested:   required[id],
				Available:   v.StockQuantity,
			}
		}
	}
	return nil
}

func checkPayment(gross decimal.Decimal, discount decimal.Decimal, paid decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	discount = discount.Round(2)
	paid = paid.Round(2)
	if discount.IsNegative() || discount.GreaterThan(gross) {
		return decimal.Zero, decimal.Zero, invalid("discount %s exceeds gross total %s", discount, gross)
	}
	net := gross.Sub(discount)
	change := paid.Sub(net)
	if change.IsNegative() {
		return decimal.Zero, decimal.Zero, &store.DeficitError{Err: store.ErrInsufficientPayment, Required: net, Available: paid}
	}
	return net, change, nil
}

// insertWithNumber generates the human transaction number and regenerates it
// on collision.
func (s *Service) insertWithNumber(ctx context.Context, tx store.Tx, txn *domain.Transaction) error {
	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		txn.Number = xid.TransactionNumber(s.now().In(s.loc))
		err := tx.InsertTransaction(ctx, *txn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("allocate transaction number after %d attempts: %w", maxNumberAttempts, lastErr)
}

func deductStock(ctx context.Context, tx store.Tx, txn domain.Transaction, variants map[string]domain.Variant, actor string) (int, error) {
	applied := 0
	for _, item := range txn.Items {
		if !variants[item.VariantID].TrackStock {
			continue
		}
		if _, err := tx.ApplyMovement(ctx, domain.StockMovement{
			VariantID:      item.VariantID,
			VariantName:    item.VariantName,
			QuantityChange: item.Quantity.Neg(),
			Reason:         domain.ReasonSale,
			Note:           "Transaksi No: " + txn.Number,
			Actor:          actor,
		}); err != nil {
			return 0, err
		}
		applied++
	}
	return applied, nil
}

func lockHeld(ctx context.Context, tx store.Tx, id string) (*domain.Transaction, error) {
	txn, err := tx.GetTransactionForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Status != domain.TxStatusHeld {
		return nil, fmt.Errorf("%w: transaction %s is %s", store.ErrInvalidState, txn.Number, txn.Status)
	}
	return txn, nil
}

func (s *Service) observeCompleted(txn domain.Transaction, movements int) {
	s.metrics.ObserveSale(string(txn.PaymentMethod), txn.NetTotal)
	for i := 0; i < movements; i++ {
		s.metrics.ObserveMovement(string(domain.ReasonSale))
	}
}

func lineVariantIDs(items []domain.LineItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantID)
	}
	return dedupe(ids)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func customerTypeOrDefault(t domain.CustomerType) domain.CustomerType {
	if t == "" {
		return domain.CustomerRegular
	}
	return t
}
