package fraud

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/void1100/Bank-management-system/pkg/db/models"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
)

const defaultRecentAlertLimit = 3

type accountOwner interface {
	GetOwned(ctx context.Context, userID, accountID uuid.UUID) (*models.Account, error)
}

// Service is the read side used by the API.
type Service interface {
	RecentAlerts(ctx context.Context, userID, accountID uuid.UUID) ([]models.FraudAlert, error)
}

type service struct {
	repo     Repository
	accounts accountOwner
	limit    int
}

// NewService wires the alert read service.
func NewService(repo Repository, accounts accountOwner, limit int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fraud repository required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account service required")
	}
	if limit <= 0 {
		limit = defaultRecentAlertLimit
	}
	return &service{repo: repo, accounts: accounts, limit: limit}, nil
}

func (s *service) RecentAlerts(ctx context.Context, userID, accountID uuid.UUID) ([]models.FraudAlert, error) {
	if _, err := s.accounts.GetOwned(ctx, userID, accountID); err != nil {
		return nil, err
	}
	alerts, err := s.repo.ListRecentAlerts(ctx, accountID, s.limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list fraud alerts")
	}
	return alerts, nil
}
