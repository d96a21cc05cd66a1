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
	"tokobuning/backend/internal/xid"
)

const defaultDebtLimit = 200

// CreatePayable records money owed to a supplier.
func (s *Service) CreatePayable(ctx context.Context, req domain.PayableCreateRequest) (domain.DebtCredit, error) {
	actor, err := s.authorize(ctx, domain.CapRecordLedger)
	if err != nil {
		return domain.DebtCredit{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.DebtCredit{}, err
	}
	if _, err := s.repo.GetSupplier(ctx, req.SupplierID); err != nil {
		return domain.DebtCredit{}, fmt.Errorf("supplier %s: %w", req.SupplierID, err)
	}
	due, err := s.parseDueDate(req.DueDate)
	if err != nil {
		return domain.DebtCredit{}, err
	}
	return s.insertDebt(ctx, domain.DebtCredit{
		ID:         xid.New("hut"),
		Type:       domain.DebtPayable,
		SupplierID: req.SupplierID,
		Principal:  req.Amount.Round(2),
		DueDate:    due,
		Notes:      strings.TrimSpace(req.Notes),
		RecordedBy: actor.Username,
	})
}

// CreateReceivable records money a customer owes the store.
func (s *Service) CreateReceivable(ctx context.Context, req domain.ReceivableCreateRequest) (domain.DebtCredit, error) {
	actor, err := s.authorize(ctx, domain.CapRecordLedger)
	if err != nil {
		return domain.DebtCredit{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.DebtCredit{}, err
	}
	due, err := s.parseDueDate(req.DueDate)
	if err != nil {
		return domain.DebtCredit{}, err
	}
	return s.insertDebt(ctx, domain.DebtCredit{
		ID:           xid.New("piu"),
		Type:         domain.DebtReceivable,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Principal:    req.Amount.Round(2),
		DueDate:      due,
		Notes:        strings.TrimSpace(req.Notes),
		RecordedBy:   actor.Username,
	})
}

func (s *Service) insertDebt(ctx context.Context, debt domain.DebtCredit) (domain.DebtCredit, error) {
	debt.CreatedAt = s.now().UTC()
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertDebtCredit(ctx, debt)
	})
	if err != nil {
		return domain.DebtCredit{}, err
	}
	saved, err := s.repo.GetDebtCredit(ctx, debt.ID)
	if err != nil {
		return domain.DebtCredit{}, err
	}
	s.logAudit(ctx, "debt_create", strings.ToLower(string(saved.Type)), saved.ID, fmt.Sprintf("counterparty=%s,principal=%s", saved.Counterparty(), saved.Principal))
	return *saved, nil
}

// RecordPayment appends an installment and persists the recomputed settled
// flag in the same unit of work. Overpayment is accepted.
func (s *Service) RecordPayment(ctx context.Context, debtID string, req domain.PaymentRequest) (domain.PaymentResult, error) {
	actor, err := s.authorize(ctx, domain.CapRecordLedger)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.PaymentResult{}, err
	}

	payment := domain.Payment{
		ID:           xid.New("pay"),
		DebtCreditID: debtID,
		Amount:       req.Amount.Round(2),
		Note:         strings.TrimSpace(req.Note),
		RecordedBy:   actor.Username,
		PaidAt:       s.now().UTC(),
	}
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		debt, err := tx.GetDebtCreditForUpdate(ctx, debtID)
		if err != nil {
			return err
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		debt.Recompute(debt.AmountPaid.Add(payment.Amount))
		return tx.UpdateDebtCredit(ctx, debt.ID, debt.Principal, debt.Settled)
	})
	if err != nil {
		return domain.PaymentResult{}, err
	}

	saved, err := s.repo.GetDebtCredit(ctx, debtID)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	s.logAudit(ctx, "debt_payment", strings.ToLower(string(saved.Type)), saved.ID, fmt.Sprintf("amount=%s,remaining=%s,settled=%t", payment.Amount, saved.RemainingBalance, saved.Settled))
	return domain.PaymentResult{Payment: payment, DebtCredit: *saved}, nil
}

// AddAmount raises the principal of an existing debt and recomputes settled.
func (s *Service) AddAmount(ctx context.Context, debtID string, req domain.AddAmountRequest) (domain.DebtCredit, error) {
	if _, err := s.authorize(ctx, domain.CapRecordLedger); err != nil {
		return domain.DebtCredit{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.DebtCredit{}, err
	}

	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		debt, err := tx.GetDebtCreditForUpdate(ctx, debtID)
		if err != nil {
			return err
		}
		debt.Principal = debt.Principal.Add(req.Amount.Round(2))
		debt.Recompute(debt.AmountPaid)
		return tx.UpdateDebtCredit(ctx, debt.ID, debt.Principal, debt.Settled)
	})
	if err != nil {
		return domain.DebtCredit{}, err
	}

	saved, err := s.repo.GetDebtCredit(ctx, debtID)
	if err != nil {
		return domain.DebtCredit{}, err
	}
	s.logAudit(ctx, "debt_add_amount", strings.ToLower(string(saved.Type)), saved.ID, fmt.Sprintf("added=%s,principal=%s", req.Amount, saved.Principal))
	return *saved, nil
}

// GetDebtCredit returns one debt with paid and remaining derived from its payments.
func (s *Service) GetDebtCredit(ctx context.Context, id string) (domain.DebtCredit, error) {
	if _, err := s.authorizeAny(ctx, domain.CapRecordLedger, domain.CapViewReports); err != nil {
		return domain.DebtCredit{}, err
	}
	debt, err := s.repo.GetDebtCredit(ctx, id)
	if err != nil {
		return domain.DebtCredit{}, err
	}
	return *debt, nil
}

// ListDebtCredits lists debts newest first. An empty type lists both.
func (s *Service) ListDebtCredits(ctx context.Context, filter domain.DebtFilter) ([]domain.DebtCredit, error) {
	if _, err := s.authorizeAny(ctx, domain.CapRecordLedger, domain.CapViewReports); err != nil {
		return nil, err
	}
	if err := checkDebtType(filter.Type, true); err != nil {
		return nil, err
	}
	if filter.Limit < 1 {
		filter.Limit = defaultDebtLimit
	}
	return s.repo.ListDebtCredits(ctx, filter)
}

// DebtSummary totals every debt of one type, settled or not.
func (s *Service) DebtSummary(ctx context.Context, debtType domain.DebtType) (domain.DebtSummary, error) {
	if _, err := s.authorizeAny(ctx, domain.CapRecordLedger, domain.CapViewReports); err != nil {
		return domain.DebtSummary{}, err
	}
	if err := checkDebtType(debtType, false); err != nil {
		return domain.DebtSummary{}, err
	}
	debts, err := s.repo.ListDebtCredits(ctx, domain.DebtFilter{Type: debtType})
	if err != nil {
		return domain.DebtSummary{}, err
	}

	summary := domain.DebtSummary{
		Type:             debtType,
		Count:            len(debts),
		TotalPrincipal:   decimal.Zero,
		TotalPaid:        decimal.Zero,
		RemainingBalance: decimal.Zero,
	}
	for _, d := range debts {
		summary.TotalPrincipal = summary.TotalPrincipal.Add(d.Principal)
		summary.TotalPaid = summary.TotalPaid.Add(d.AmountPaid)
	}
	summary.RemainingBalance = summary.TotalPrincipal.Sub(summary.TotalPaid)
	return summary, nil
}

// DebtTimeline merges every debt of the same type and counterparty with its
// installments, oldest first.
func (s *Service) DebtTimeline(ctx context.Context, id string) (domain.DebtTimeline, error) {
	if _, err := s.authorizeAny(ctx, domain.CapRecordLedger, domain.CapViewReports); err != nil {
		return domain.DebtTimeline{}, err
	}
	anchor, err := s.repo.GetDebtCredit(ctx, id)
	if err != nil {
		return domain.DebtTimeline{}, err
	}
	debts, err := s.repo.ListDebtCredits(ctx, domain.DebtFilter{Type: anchor.Type})
	if err != nil {
		return domain.DebtTimeline{}, err
	}

	opening := "Piutang Baru"
	if anchor.Type == domain.DebtPayable {
		opening = "Hutang Baru"
	}
	timeline := domain.DebtTimeline{
		Type:         anchor.Type,
		Counterparty: anchor.Counterparty(),
		Entries:      make([]domain.TimelineEntry, 0, 8),
		Remaining:    decimal.Zero,
	}
	for _, d := range debts {
		if !sameCounterparty(*anchor, d) {
			continue
		}
		timeline.Remaining = timeline.Remaining.Add(d.RemainingBalance)
		timeline.Entries = append(timeline.Entries, domain.TimelineEntry{
			ID:          d.ID,
			At:          d.CreatedAt,
			Description: opening,
			In:          d.Principal,
			Out:         decimal.Zero,
		})
		for _, p := range d.Payments {
			timeline.Entries = append(timeline.Entries, domain.TimelineEntry{
				ID:          p.ID,
				At:          p.PaidAt,
				Description: "Pembayaran Cicilan",
				In:          decimal.Zero,
				Out:         p.Amount,
			})
		}
	}
	slices.SortStableFunc(timeline.Entries, func(a, b domain.TimelineEntry) int { return a.At.Compare(b.At) })
	return timeline, nil
}

func sameCounterparty(a domain.DebtCredit, b domain.DebtCredit) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == domain.DebtPayable {
		return a.SupplierID == b.SupplierID
	}
	return strings.EqualFold(strings.TrimSpace(a.CustomerName), strings.TrimSpace(b.CustomerName))
}

func checkDebtType(t domain.DebtType, allowEmpty bool) error {
	switch t {
	case domain.DebtPayable, domain.DebtReceivable:
		return nil
	case "":
		if allowEmpty {
			return nil
		}
	}
	return invalid("type must be HUTANG or PIUTANG")
}

func (s *Service) parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	due, err := time.ParseInLocation("2006-01-02", raw, s.loc)
	if err != nil {
		return nil, invalid("due_date must be YYYY-MM-DD")
	}
	return &due, nil
}
