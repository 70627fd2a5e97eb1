package accounts

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/aristath/folio/internal/domain"
)

// CallerHeader names the header carrying the caller's account id.
// Authentication proper sits in front of this service; the header is
// trusted as-is.
const CallerHeader = "X-Account-ID"

// Authorizer resolves the calling account from a request and checks it
// against the capability policy
type Authorizer struct {
	svc *Service
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(svc *Service) *Authorizer {
	return &Authorizer{svc: svc}
}

// Caller resolves the calling account and verifies it may perform op
func (a *Authorizer) Caller(r *http.Request, op Operation) (*domain.Account, error) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		return nil, fmt.Errorf("missing %s header: %w", CallerHeader, domain.ErrInvalidInput)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed %s header: %w", CallerHeader, domain.ErrInvalidInput)
	}

	account, err := a.svc.ByID(id)
	if err != nil {
		return nil, err
	}
	if !Allowed(account, op) {
		return nil, fmt.Errorf("account %d may not %s: %w", id, op, domain.ErrPermissionDenied)
	}
	return account, nil
}
