package accounts

import "github.com/aristath/folio/internal/domain"

// Operation identifies a capability an account may exercise. Handlers run
// one Allowed check before dispatching to the ledger, catalog or
// aggregation services; the accounting logic itself never checks roles.
type Operation string

const (
	// OpTrade covers buy/sell submissions against the caller's own ledger
	OpTrade Operation = "trade"
	// OpViewPortfolio covers all read-only portfolio and transaction views
	OpViewPortfolio Operation = "view_portfolio"
	// OpManageCatalog covers stock create/update/delete and price refresh
	OpManageCatalog Operation = "manage_catalog"
	// OpManageAccounts covers account registration and enable/disable
	OpManageAccounts Operation = "manage_accounts"
)

// Allowed reports whether the account may perform the operation.
// A disabled account is denied everything; admins are allowed everything.
func Allowed(account *domain.Account, op Operation) bool {
	if account == nil || !account.Enabled {
		return false
	}

	if account.Role == domain.RoleAdmin {
		return true
	}

	switch op {
	case OpTrade, OpViewPortfolio:
		return true
	default:
		return false
	}
}
