// Package accounts provides the account directory consumed by the ledger
// and aggregation modules for scoping.
package accounts

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
)

// Repository handles account database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new account repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "accounts").Logger(),
	}
}

const accountColumns = `id, email, display_name, role, enabled, created_at`

// ByID returns an account by id, or nil when not found
func (r *Repository) ByID(id int64) (*domain.Account, error) {
	row := r.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// ByEmail returns an account by email (case-insensitive), or nil when not found
func (r *Repository) ByEmail(email string) (*domain.Account, error) {
	row := r.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, strings.TrimSpace(email))
	return scanAccount(row)
}

// ExistsEmail reports whether an account with the email exists (case-insensitive)
func (r *Repository) ExistsEmail(email string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM accounts WHERE email = ?`, strings.TrimSpace(email)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new account and sets its id
func (r *Repository) Create(account *domain.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	res, err := r.db.Exec(
		`INSERT INTO accounts (email, display_name, role, enabled, created_at) VALUES (?, ?, ?, ?, ?)`,
		account.Email, account.DisplayName, string(account.Role), boolToInt(account.Enabled), account.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted account id: %w", err)
	}
	account.ID = id

	r.log.Info().Int64("id", id).Str("email", account.Email).Msg("Account created")
	return nil
}

// SetEnabled flips the enabled flag for an account
func (r *Repository) SetEnabled(id int64, enabled bool) error {
	res, err := r.db.Exec(`UPDATE accounts SET enabled = ? WHERE id = ?`, boolToInt(enabled), id)
	if err != nil {
		return fmt.Errorf("failed to update account enabled flag: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil
	}

	r.log.Info().Int64("id", id).Bool("enabled", enabled).Msg("Account enabled flag updated")
	return nil
}

// All returns all accounts ordered by id
func (r *Repository) All() ([]domain.Account, error) {
	rows, err := r.db.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var acc domain.Account
		var role string
		var enabled int
		var createdAtUnix int64

		if err := rows.Scan(&acc.ID, &acc.Email, &acc.DisplayName, &role, &enabled, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		acc.Role = domain.Role(role)
		acc.Enabled = enabled != 0
		acc.CreatedAt = time.Unix(createdAtUnix, 0)
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var acc domain.Account
	var role string
	var enabled int
	var createdAtUnix int64

	err := row.Scan(&acc.ID, &acc.Email, &acc.DisplayName, &role, &enabled, &createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	acc.Role = domain.Role(role)
	acc.Enabled = enabled != 0
	acc.CreatedAt = time.Unix(createdAtUnix, 0)
	return &acc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
