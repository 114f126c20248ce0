package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/productif/internal/models"
)

// GormStore keeps state in the conversation_states table.
type GormStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewGormStore creates a GormStore. A zero ttl means states never expire.
func NewGormStore(db *gorm.DB, ttl time.Duration) *GormStore {
	return &GormStore{db: db, ttl: ttl, now: time.Now}
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, userID string) (Entry, bool, error) {
	var row models.ConversationState
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("state: get %s: %w", userID, err)
	}
	if !row.ExpiresAt.IsZero() && !s.now().Before(row.ExpiresAt) {
		if err := s.Clear(ctx, userID); err != nil {
			return Entry{}, false, err
		}
		return Entry{}, false, nil
	}

	e := Entry{UserID: row.UserID, State: Name(row.State), ExpiresAt: row.ExpiresAt}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &e.Data); err != nil {
			return Entry{}, false, fmt.Errorf("state: decode %s: %w", userID, err)
		}
	}
	return e, true, nil
}

// Set implements Store.
func (s *GormStore) Set(ctx context.Context, userID string, st Name, data map[string]any) error {
	row := models.ConversationState{UserID: userID, State: string(st)}
	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("state: encode %s: %w", userID, err)
		}
		row.Data = string(b)
	}
	if s.ttl > 0 {
		row.ExpiresAt = s.now().Add(s.ttl)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "data", "expires_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("state: set %s: %w", userID, err)
	}
	return nil
}

// Clear implements Store.
func (s *GormStore) Clear(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ConversationState{}).Error
	if err != nil {
		return fmt.Errorf("state: clear %s: %w", userID, err)
	}
	return nil
}

// Sweep deletes every expired state and returns how many were removed.
func (s *GormStore) Sweep(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at > ? AND expires_at <= ?", time.Time{}, s.now()).
		Delete(&models.ConversationState{})
	if res.Error != nil {
		return 0, fmt.Errorf("state: sweep: %w", res.Error)
	}
	return res.RowsAffected, nil
}
