package models

import "time"

// ConversationState holds the pending multi-turn step for one user. A user
// with no row is idle. Rows are upserted when a flow starts waiting for the
// user's next message and deleted when the flow completes or is abandoned.
type ConversationState struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	State     string    `gorm:"size:48;not null;index"` // awaiting_tasks_list, awaiting_deepwork_duration
	Data      string    `gorm:"type:text"`              // JSON object, flow-specific
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
