package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-bus/internal/domain"
)

type AccountRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AccountRepo) With(db DB) *AccountRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AccountRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// CreateAccount stores a and returns its ID.
//
// Returns:
//   - error: repository.ErrConflict if the email is already registered.
func (r *AccountRepo) CreateAccount(ctx context.Context, a domain.Account) (int64, error) {
	const op = "postgres.AccountRepo.CreateAccount"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO accounts(full_name, email, phone, role, operator_id, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		a.FullName, a.Email, a.Phone, string(a.Role), a.OperatorID, a.PasswordHash,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

const accountSelect = `SELECT id, full_name, email, phone, role, operator_id, password_hash, created_at
 FROM accounts`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a    domain.Account
		role string
	)
	if err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.Phone, &role, &a.OperatorID, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}

	a.Role = domain.Role(role)

	return &a, nil
}

// AccountByEmail returns the account registered with email.
//
// Returns:
//   - error: repository.ErrNotFound if no account uses the email.
func (r *AccountRepo) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const op = "postgres.AccountRepo.AccountByEmail"

	a, err := scanAccount(r.handle().QueryRow(ctx,
		accountSelect+` WHERE lower(email) = lower($1)`,
		email,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return a, nil
}

// AccountByID returns the account with the given id.
//
// Returns:
//   - error: repository.ErrNotFound if the account is not found.
func (r *AccountRepo) AccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	const op = "postgres.AccountRepo.AccountByID"

	a, err := scanAccount(r.handle().QueryRow(ctx, accountSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return a, nil
}

// ListAccounts lists accounts, only those holding role when it is non-nil.
func (r *AccountRepo) ListAccounts(ctx context.Context, role *domain.Role) ([]domain.Account, error) {
	const op = "postgres.AccountRepo.ListAccounts"

	var roleArg *string
	if role != nil {
		v := string(*role)
		roleArg = &v
	}

	rows, err := r.handle().Query(ctx,
		accountSelect+`
		 WHERE $1::TEXT IS NULL OR role = $1
		 ORDER BY id`,
		roleArg,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
