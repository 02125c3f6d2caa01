package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/void1100/Bank-management-system/pkg/db/models"
)

// ErrEventNotFound is returned when a mutation targets an event that no longer
// exists.
var ErrEventNotFound = errors.New("transaction event not found")

// Repository is the durable queue of transaction events awaiting review.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Enqueue(ctx context.Context, event *models.TransactionEvent) error
	ClaimNext(ctx context.Context, now time.Time, exclude []uuid.UUID) (*models.TransactionEvent, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.TransactionEvent, error)
	MarkOTPVerified(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	Pending(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a queue repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Enqueue(ctx context.Context, event *models.TransactionEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ClaimNext locks the oldest eligible event with FOR UPDATE SKIP LOCKED. An
// event is eligible unless it is parked behind an active, unverified OTP
// challenge; a verified flag always makes it eligible again. Returns nil when
// nothing can be claimed. Must run inside a transaction so the lock is held
// until commit or rollback.
func (r *repository) ClaimNext(ctx context.Context, now time.Time, exclude []uuid.UUID) (*models.TransactionEvent, error) {
	parked := r.db.Session(&gorm.Session{NewDB: true}).
		Model(&models.OTPRequest{}).
		Select("1").
		Where("otp_requests.event_id = transaction_events.id").
		Where("otp_requests.is_verified = ?", false).
		Where("otp_requests.expires_at > ?", now.UTC())

	query := r.db.WithContext(ctx).
		Clauses(clause.Locking{
			Strength: clause.LockingStrengthUpdate,
			Options:  clause.LockingOptionsSkipLocked,
		}).
		Where("transaction_events.is_otp_verified = ? OR NOT EXISTS (?)", true, parked)
	if len(exclude) > 0 {
		query = query.Where("transaction_events.id NOT IN ?", exclude)
	}

	var event models.TransactionEvent
	err := query.
		Order("transaction_events.created_at ASC").
		Order("transaction_events.id ASC").
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TransactionEvent, error) {
	var event models.TransactionEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkOTPVerified flips the one mutable column on a queued event.
func (r *repository) MarkOTPVerified(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.TransactionEvent{}).
		Where("id = ?", id).
		Update("is_otp_verified", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// Delete removes a terminal event. Deleting an event that is already gone is an
// error so a double completion cannot go unnoticed.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.TransactionEvent{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// Pending counts queued events, parked ones included.
func (r *repository) Pending(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TransactionEvent{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
