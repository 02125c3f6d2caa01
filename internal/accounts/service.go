package accounts

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/void1100/Bank-management-system/pkg/db"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
)

const (
	numberPrefix   = "AC"
	numberAttempts = 5
)

// Service exposes account lifecycle and ownership checks.
type Service interface {
	Open(ctx context.Context, userID uuid.UUID, accountType enums.AccountType) (*models.Account, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Account, error)
	GetOwned(ctx context.Context, userID, accountID uuid.UUID) (*models.Account, error)
}

type service struct {
	repo       Repository
	nextNumber func() string
}

// NewService wires the account service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	return &service{repo: repo, nextNumber: randomAccountNumber}, nil
}

func (s *service) Open(ctx context.Context, userID uuid.UUID, accountType enums.AccountType) (*models.Account, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !accountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account type must be savings or current")
	}
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	for attempt := 0; attempt < numberAttempts; attempt++ {
		account := &models.Account{
			UserID:        userID,
			AccountNumber: s.nextNumber(),
			AccountType:   accountType,
		}
		err := s.repo.Create(ctx, account)
		if err == nil {
			return account, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique account number")
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	accounts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list accounts")
	}
	return accounts, nil
}

func (s *service) GetOwned(ctx context.Context, userID, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}
	if err := CheckOwner(account, userID); err != nil {
		return nil, err
	}
	return account, nil
}

// CheckOwner maps a missing account to not-found and a foreign one to forbidden.
func CheckOwner(account *models.Account, userID uuid.UUID) error {
	if account == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	if account.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "account does not belong to user")
	}
	return nil
}

func randomAccountNumber() string {
	return fmt.Sprintf("%s%010d", numberPrefix, 1_000_000_000+rand.Int64N(9_000_000_000))
}
