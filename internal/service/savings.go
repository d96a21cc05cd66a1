package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/xid"
)

const (
	defaultDepositNote    = "Setoran tunai."
	defaultWithdrawalNote = "Penarikan tunai."
)

// ListCustomers matches search against name and phone.
func (s *Service) ListCustomers(ctx context.Context, search string) ([]domain.Customer, error) {
	if _, err := s.authorizeAny(ctx, domain.CapRecordLedger, domain.CapViewReports); err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, search)
}

// GetCustomer returns a customer with the current savings balance.
func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	if _, err := s.authorizeAny(ctx, domain.CapRecordLedger, domain.CapViewReports); err != nil {
		return domain.Customer{}, err
	}
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

// CreateCustomer registers a customer with a zero balance.
func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	if _, err := s.authorize(ctx, domain.CapRecordLedger); err != nil {
		return domain.Customer{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Customer{}, err
	}
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		ID:        xid.New("cust"),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_create", "customer", created.ID, created.Name)
	return *created, nil
}

// UpdateCustomer changes contact fields. The balance only moves through
// Deposit and Withdraw.
func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	if _, err := s.authorize(ctx, domain.CapRecordLedger); err != nil {
		return domain.Customer{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.Customer{}, err
	}
	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
		if updated.Name == "" {
			return domain.Customer{}, invalid("name must not be blank")
		}
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_update", "customer", saved.ID, saved.Name)
	return *saved, nil
}

// Deposit credits a customer's savings, creating the customer by name on first
// use. Contact details of an existing customer are left as they are.
func (s *Service) Deposit(ctx context.Context, req domain.DepositRequest) (domain.SavingsResult, error) {
	actor, err := s.authorize(ctx, domain.CapRecordLedger)
	if err != nil {
		return domain.SavingsResult{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.SavingsResult{}, err
	}

	var result domain.SavingsResult
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		customer, err := tx.GetOrCreateCustomer(ctx, domain.Customer{
			ID:        xid.New("cust"),
			Name:      strings.TrimSpace(req.CustomerName),
			Phone:     strings.TrimSpace(req.Phone),
			Address:   strings.TrimSpace(req.Address),
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return err
		}
		locked, err := tx.GetCustomerForUpdate(ctx, customer.ID)
		if err != nil {
			return err
		}

		amount := req.Amount.Round(2)
		movement, err := tx.InsertSavingsMovement(ctx, domain.SavingsMovement{
			CustomerID:       locked.ID,
			Type:             domain.SavingsDeposit,
			Amount:           amount,
			ResultingBalance: locked.SavingsBalance.Add(amount),
			Note:             defaultString(strings.TrimSpace(req.Note), defaultDepositNote),
			RecordedBy:       actor.Username,
			CreatedAt:        s.now().UTC(),
		})
		if err != nil {
			return err
		}
		locked.SavingsBalance = movement.ResultingBalance
		result = domain.SavingsResult{Customer: *locked, Movement: *movement}
		return nil
	})
	if err != nil {
		return domain.SavingsResult{}, err
	}
	s.logAudit(ctx, "savings_deposit", "customer", result.Customer.ID, fmt.Sprintf("amount=%s,balance=%s", result.Movement.Amount, result.Customer.SavingsBalance))
	return result, nil
}

// Withdraw debits a customer's savings. The balance never goes negative.
func (s *Service) Withdraw(ctx context.Context, req domain.WithdrawRequest) (domain.SavingsResult, error) {
	actor, err := s.authorize(ctx, domain.CapRecordLedger)
	if err != nil {
		return domain.SavingsResult{}, err
	}
	if err := validateRequest(req); err != nil {
		return domain.SavingsResult{}, err
	}

	var result domain.SavingsResult
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		locked, err := tx.GetCustomerForUpdate(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		amount := req.Amount.Round(2)
		if amount.GreaterThan(locked.SavingsBalance) {
			return &store.DeficitError{Err: store.ErrInsufficientBalance, Required: amount, Available: locked.SavingsBalance}
		}

		movement, err := tx.InsertSavingsMovement(ctx, domain.SavingsMovement{
			CustomerID:       locked.ID,
			Type:             domain.SavingsWithdrawal,
			Amount:           amount,
			ResultingBalance: locked.SavingsBalance.Sub(amount),
			Note:             defaultString(strings.TrimSpace(req.Note), defaultWithdrawalNote),
			RecordedBy:       actor.Username,
			CreatedAt:        s.now().UTC(),
		})
		if err != nil {
			return err
		}
		locked.SavingsBalance = movement.ResultingBalance
		result = domain.SavingsResult{Customer: *locked, Movement: *movement}
		return nil
	})
	if err != nil {
		return domain.SavingsResult{}, err
	}
	s.logAudit(ctx, "savings_withdraw", "customer", result.Customer.ID, fmt.Sprintf("amount=%s,balance=%s", result.Movement.Amount, result.Customer.SavingsBalance))
	return result, nil
}

// SavingsHistory lists a customer's movements, newest first.
func (s *Service) SavingsHistory(ctx context.Context, customerID string) ([]domain.SavingsMovement, error) {
	if _, err := s.authorizeAny(ctx, domain.CapRecordLedger, domain.CapViewReports); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListSavingsMovements(ctx, customerID)
}

// SavingsSummary sums every customer's balance. Customers with a zero balance
// still count.
func (s *Service) SavingsSummary(ctx context.Context) (domain.SavingsSummary, error) {
	if _, err := s.authorizeAny(ctx, domain.CapRecordLedger, domain.CapViewReports); err != nil {
		return domain.SavingsSummary{}, err
	}
	customers, err := s.repo.ListCustomers(ctx, "")
	if err != nil {
		return domain.SavingsSummary{}, err
	}
	summary := domain.SavingsSummary{TotalActiveSavings: decimal.Zero, CustomerCount: len(customers)}
	for _, c := range customers {
		summary.TotalActiveSavings = summary.TotalActiveSavings.Add(c.SavingsBalance)
	}
	return summary, nil
}
