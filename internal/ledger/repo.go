package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/pagination"
)

// TypeTotals is the count and sum of log entries of one type.
type TypeTotals struct {
	Type  enums.TransactionType `gorm:"column:type" json:"type"`
	Count int64                 `gorm:"column:count" json:"count"`
	Total decimal.Decimal       `gorm:"column:total" json:"total"`
}

// Repository manages the append-only transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.Transaction) error
	ListPage(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Transaction, error)
	ListChronological(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error)
	TotalsByType(ctx context.Context, accountID uuid.UUID) ([]TypeTotals, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.Transaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListPage returns entries newest first, starting strictly after cursor.
func (r *repository) ListPage(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt.UTC(), cursor.CreatedAt.UTC(), cursor.ID)
	}
	var entries []models.Transaction
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListChronological(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	var entries []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) TotalsByType(ctx context.Context, accountID uuid.UUID) ([]TypeTotals, error) {
	var rows []TypeTotals
	if err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("type, COUNT(*) AS count, SUM(amount) AS total").
		Where("account_id = ?", accountID).
		Group("type").
		Order("type ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
