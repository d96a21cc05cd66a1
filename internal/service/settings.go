package service

import (
	"context"
	"fmt"
	"strings"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/xid"
)

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Expense, error) {
	actor, err := s.authorize(ctx, domain.CapRecordLedger)
	if err != nil {
		return domain.Expense{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Expense{}, err
	}

	date := s.startOfDay(s.now())
	if req.Date != "" {
		from, _, err := s.parseDateRange(req.Date, "")
		if err != nil {
			return domain.Expense{}, invalid("date must be YYYY-MM-DD")
		}
		date = from
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		ID:          xid.New("exp"),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount.Round(2),
		Date:        date,
		RecordedBy:  actor.Username,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, "expense_create", "expense", created.ID, fmt.Sprintf("amount=%s,date=%s", created.Amount, created.Date.Format("2006-01-02")))
	return *created, nil
}

// ListExpenses takes inclusive YYYY-MM-DD bounds; either may be empty.
func (s *Service) ListExpenses(ctx context.Context, startDate string, endDate string) ([]domain.Expense, error) {
	if _, err := s.authorizeAny(ctx, domain.CapRecordLedger, domain.CapViewReports); err != nil {
		return nil, err
	}
	from, to, err := s.parseDateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, from, to)
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if _, err := s.authorize(ctx, domain.CapManageStore); err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "expense_delete", "expense", id, "")
	return nil
}

// LoadStoreInfo initializes the singleton store record and caches it.
func (s *Service) LoadStoreInfo(ctx context.Context) (domain.StoreInfo, error) {
	info, err := s.repo.InitStoreInfo(ctx, domain.DefaultStoreInfo())
	if err != nil {
		return domain.StoreInfo{}, err
	}
	s.infoMu.Lock()
	s.info = info
	s.infoMu.Unlock()
	return *info, nil
}

// StoreInfo is readable by any role; receipts depend on it.
func (s *Service) StoreInfo(ctx context.Context) (domain.StoreInfo, error) {
	s.infoMu.RLock()
	cached := s.info
	s.infoMu.RUnlock()
	if cached != nil {
		return *cached, nil
	}
	return s.LoadStoreInfo(ctx)
}

func (s *Service) UpdateStoreInfo(ctx context.Context, req domain.StoreInfoRequest) (domain.StoreInfo, error) {
	if _, err := s.authorize(ctx, domain.CapManageStore); err != nil {
		return domain.StoreInfo{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.StoreInfo{}, err
	}
	current, err := s.StoreInfo(ctx)
	if err != nil {
		return domain.StoreInfo{}, err
	}
	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
		if current.Name == "" {
			return domain.StoreInfo{}, invalid("name must not be blank")
		}
	}
	if req.Address != nil {
		current.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		current.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.ReceiptFooter != nil {
		current.ReceiptFooter = strings.TrimSpace(*req.ReceiptFooter)
	}

	saved, err := s.repo.UpdateStoreInfo(ctx, current)
	if err != nil {
		return domain.StoreInfo{}, err
	}
	s.infoMu.Lock()
	s.info = saved
	s.infoMu.Unlock()
	s.logAudit(ctx, "store_info_update", "store_info", "main", saved.Name)
	return *saved, nil
}

// LookupBarcode fetches catalog pre-fill data for a barcode from the
// external product database.
func (s *Service) LookupBarcode(ctx context.Context, code string) (domain.BarcodeProduct, error) {
	if _, err := s.authorize(ctx, domain.CapManageCatalog); err != nil {
		return domain.BarcodeProduct{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.BarcodeProduct{}, invalid("barcode is required")
	}
	if s.barcode == nil {
		return domain.BarcodeProduct{}, ErrLookupDisabled
	}
	return s.barcode.Lookup(ctx, code)
}
