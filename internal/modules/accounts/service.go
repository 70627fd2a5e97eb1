package accounts

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
)

// Service orchestrates account directory operations. It implements
// domain.AccountDirectory for the ledger and aggregation modules.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new account service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "accounts").Logger(),
	}
}

// ByID resolves an account by id
func (s *Service) ByID(id int64) (*domain.Account, error) {
	account, err := s.repo.ByID(id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account %d", domain.ErrNotFound, id)
	}
	return account, nil
}

// ByEmail resolves an account by email
func (s *Service) ByEmail(email string) (*domain.Account, error) {
	account, err := s.repo.ByEmail(email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, email)
	}
	return account, nil
}

// Register creates a new enabled account
func (s *Service) Register(email, displayName string, role domain.Role) (*domain.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: malformed email %q", domain.ErrInvalidInput, email)
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	exists, err := s.repo.ExistsEmail(email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: email %s", domain.ErrAlreadyExists, email)
	}

	account := &domain.Account{
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		Enabled:     true,
	}
	if err := s.repo.Create(account); err != nil {
		return nil, err
	}

	return account, nil
}

// SetEnabled enables or disables an account
func (s *Service) SetEnabled(id int64, enabled bool) error {
	account, err := s.repo.ByID(id)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: account %d", domain.ErrNotFound, id)
	}
	return s.repo.SetEnabled(id, enabled)
}

// All returns every account in the directory
func (s *Service) All() ([]domain.Account, error) {
	return s.repo.All()
}
