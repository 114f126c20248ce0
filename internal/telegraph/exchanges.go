package telegraph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/productif/internal/models"
	"gorm.io/gorm"
)

// ExchangeLog records every handled message for analytics.
type ExchangeLog struct {
	db *gorm.DB
}

// NewExchangeLog creates an ExchangeLog.
func NewExchangeLog(db *gorm.DB) (*ExchangeLog, error) {
	if db == nil {
		return nil, fmt.Errorf("telegraph: exchange log: db is required")
	}
	return &ExchangeLog{db: db}, nil
}

// Record stores ex, assigning an ID when it has none.
func (l *ExchangeLog) Record(ctx context.Context, ex *models.Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if err := l.db.WithContext(ctx).Create(ex).Error; err != nil {
		return fmt.Errorf("telegraph: record exchange: %w", err)
	}
	return nil
}

// ActionCount is the number of exchanges that executed an action.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// ActionCounts groups exchanges created at or after since by the action
// they executed, most frequent first.
func (l *ExchangeLog) ActionCounts(ctx context.Context, since time.Time) ([]ActionCount, error) {
	var out []ActionCount
	err := l.db.WithContext(ctx).Model(&models.Exchange{}).
		Select("action_executed AS action, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("action_executed").
		Order("count DESC, action").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("telegraph: action counts: %w", err)
	}
	return out, nil
}

// Recent returns the latest exchanges of a contact, newest first. A zero
// contactID returns exchanges of every contact.
func (l *ExchangeLog) Recent(ctx context.Context, contactID uint, limit int) ([]models.Exchange, error) {
	if limit <= 0 {
		limit = 20
	}
	q := l.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if contactID != 0 {
		q = q.Where("contact_id = ?", contactID)
	}
	var out []models.Exchange
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("telegraph: recent exchanges: %w", err)
	}
	return out, nil
}
