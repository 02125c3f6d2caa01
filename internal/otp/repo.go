package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/void1100/Bank-management-system/pkg/db/models"
)

// PendingChallenge is an active challenge joined with the account it guards.
type PendingChallenge struct {
	ID            uuid.UUID       `gorm:"column:id"`
	EventID       uuid.UUID       `gorm:"column:event_id"`
	AccountID     uuid.UUID       `gorm:"column:account_id"`
	AccountNumber string          `gorm:"column:account_number"`
	Amount        decimal.Decimal `gorm:"column:amount"`
	Code          string          `gorm:"column:otp_code"`
	ExpiresAt     time.Time       `gorm:"column:expires_at"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

// Repository persists OTP challenges.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, challenge *models.OTPRequest) error
	FindActiveByEvent(ctx context.Context, eventID uuid.UUID, now time.Time) (*models.OTPRequest, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.OTPRequest, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error
	ListPendingForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]PendingChallenge, error)
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an OTP repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, challenge *models.OTPRequest) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *repository) FindActiveByEvent(ctx context.Context, eventID uuid.UUID, now time.Time) (*models.OTPRequest, error) {
	var challenge models.OTPRequest
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND is_verified = ? AND expires_at > ?", eventID, false, now.UTC()).
		Order("created_at DESC").
		Take(&challenge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.OTPRequest, error) {
	var challenge models.OTPRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&challenge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *repository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.OTPRequest{}).
		Where("id = ? AND is_verified = ?", id, false).
		Updates(map[string]any{
			"is_verified": true,
			"verified_at": at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListPendingForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]PendingChallenge, error) {
	var rows []PendingChallenge
	if err := r.db.WithContext(ctx).
		Table("otp_requests").
		Select("otp_requests.id, otp_requests.event_id, otp_requests.account_id, accounts.account_number, otp_requests.amount, otp_requests.otp_code, otp_requests.expires_at, otp_requests.created_at").
		Joins("JOIN accounts ON accounts.id = otp_requests.account_id").
		Where("accounts.user_id = ?", userID).
		Where("otp_requests.is_verified = ? AND otp_requests.expires_at > ?", false, now.UTC()).
		Order("otp_requests.created_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteStale removes verified or expired challenges older than cutoff whose
// event has already left the queue.
func (r *repository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	queued := r.db.Session(&gorm.Session{NewDB: true}).
		Model(&models.TransactionEvent{}).
		Select("1").
		Where("transaction_events.id = otp_requests.event_id")

	res := r.db.WithContext(ctx).
		Where("otp_requests.created_at < ?", cutoff.UTC()).
		Where("otp_requests.is_verified = ? OR otp_requests.expires_at < ?", true, cutoff.UTC()).
		Where("NOT EXISTS (?)", queued).
		Delete(&models.OTPRequest{})
	return res.RowsAffected, res.Error
}
