package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
	RoleGuest   Role = "guest"
)

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleCashier:
		return RoleCashier, nil
	case RoleGuest:
		return RoleGuest, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

type Capability int

const (
	CapViewCatalog Capability = iota
	CapManageCatalog
	CapSell
	CapManageStock
	CapRecordLedger
	CapViewReports
	CapManageStore
	CapManageUsers
)

func (c Capability) String() string {
	switch c {
	case CapViewCatalog:
		return "view_catalog"
	case CapManageCatalog:
		return "manage_catalog"
	case CapSell:
		return "sell"
	case CapManageStock:
		return "manage_stock"
	case CapRecordLedger:
		return "record_ledger"
	case CapViewReports:
		return "view_reports"
	case CapManageStore:
		return "manage_store"
	case CapManageUsers:
		return "manage_users"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// Can reports whether the role grants the capability. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleCashier:
		switch c {
		case CapViewCatalog, CapSell, CapRecordLedger:
			return true
		}
		return false
	case RoleGuest:
		switch c {
		case CapViewCatalog, CapViewReports:
			return true
		}
		return false
	}
	return false
}
