package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/void1100/Bank-management-system/pkg/db/models"
)

// Repository persists alerts and scores and reads the activity rules need.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertAlert(ctx context.Context, alert *models.FraudAlert) (bool, error)
	UpsertScore(ctx context.Context, score *models.FraudScore) error
	CountTransactionsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error)
	ListRecentAlerts(ctx context.Context, accountID uuid.UUID, limit int) ([]models.FraudAlert, error)
	ListAlertsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.FraudAlert, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a fraud repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertAlert writes the alert unless one already exists for the same event
// and reason. created is false for the duplicate case.
func (r *repository) InsertAlert(ctx context.Context, alert *models.FraudAlert) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "reason"}},
			DoNothing: true,
		}).
		Create(alert)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpsertScore keeps one score row per event, overwriting on re-evaluation.
func (r *repository) UpsertScore(ctx context.Context, score *models.FraudScore) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "account_id", "updated_at"}),
		}).
		Create(score).Error
}

func (r *repository) CountTransactionsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("account_id = ? AND created_at > ?", accountID, since.UTC()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) ListRecentAlerts(ctx context.Context, accountID uuid.UUID, limit int) ([]models.FraudAlert, error) {
	var alerts []models.FraudAlert
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *repository) ListAlertsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.FraudAlert, error) {
	var alerts []models.FraudAlert
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
