package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, a domain.Account) (int64, error)
	AccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	AccountByID(ctx context.Context, id int64) (*domain.Account, error)
	ListAccounts(ctx context.Context, role *domain.Role) ([]domain.Account, error)
}

type Service struct {
	accounts AccountStore
	tokens   *Tokens
	cost     int
}

func New(accounts AccountStore, tokens *Tokens, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{accounts: accounts, tokens: tokens, cost: bcryptCost}
}

func (s *Service) Tokens() *Tokens { return s.tokens }

type RegisterInput struct {
	FullName   string
	Email      string
	Phone      string
	Password   string
	Role       domain.Role
	OperatorID *int64
}

// Register creates an account with a bcrypt password hash. Staff accounts
// must belong to an operator.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	const op = "service.auth.Register"

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Role == "" {
		in.Role = domain.RoleUser
	}

	if err := checkRegister(in); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	a := domain.Account{
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         in.Role,
		OperatorID:   in.OperatorID,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	id, err := s.accounts.CreateAccount(ctx, a)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, emailTaken())
		}
		if errors.Is(err, repository.ErrReferenced) {
			return nil, fmt.Errorf("%s:%w", op, invalidAccount("unknown operator"))
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	a.ID = id

	return &a, nil
}

func checkRegister(in RegisterInput) error {
	switch {
	case in.FullName == "":
		return invalidAccount("full name is required")
	case in.Phone == "":
		return invalidAccount("phone is required")
	case len(in.Password) < 8:
		return invalidAccount("password must have at least 8 characters")
	case len(in.Password) > 72:
		return invalidAccount("password must have at most 72 bytes")
	}

	if _, err := mail.ParseAddress(in.Email); err != nil {
		return invalidAccount("email is malformed")
	}

	if !in.Role.Valid() {
		return invalidAccount("unknown role")
	}
	if in.Role == domain.RoleStaff && in.OperatorID == nil {
		return invalidAccount("staff accounts need an operator")
	}

	return nil
}

type Session struct {
	Token     string          `json:"access_token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *domain.Account `json:"account"`
}

// Login checks the password and issues an access token. Unknown emails and
// wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	const op = "service.auth.Login"

	a, err := s.accounts.AccountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, invalidCredentials())
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%s:%w", op, invalidCredentials())
	}

	token, exp, err := s.tokens.Issue(Principal{AccountID: a.ID, Role: a.Role})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Session{Token: token, ExpiresAt: exp, Account: a}, nil
}

// Account returns the account with the given id. It backs both the
// caller's own profile and the admin account view.
//
// Returns:
//   - error: auth.ErrAccountNotFound if the account does not exist.
func (s *Service) Account(ctx context.Context, id int64) (*domain.Account, error) {
	const op = "service.auth.Account"

	a, err := s.accounts.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, accountNotFound())
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return a, nil
}

// ListAccounts lists accounts, only those holding role when it is non-nil.
func (s *Service) ListAccounts(ctx context.Context, role *domain.Role) ([]domain.Account, error) {
	const op = "service.auth.ListAccounts"

	if role != nil && !role.Valid() {
		return nil, fmt.Errorf("%s:%w", op, invalidAccount("unknown role"))
	}

	out, err := s.accounts.ListAccounts(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if out == nil {
		out = []domain.Account{}
	}

	return out, nil
}
