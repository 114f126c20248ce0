package models

import "time"

// Exchange records one inbound message and the agent's reply. The
// ActionExecuted tag is the analytics key (e.g. "create_task",
// "deepwork_start", "conversation").
type Exchange struct {
	ID             string `gorm:"primaryKey;size:36"`
	ContactID      uint   `gorm:"index"`
	UserID         string `gorm:"size:64;index"`
	Platform       string `gorm:"size:16"`
	Inbound        string `gorm:"type:text;not null"`
	Category       string `gorm:"size:32;index"`
	Handled        bool
	ActionExecuted string `gorm:"size:48;index"`
	Response       string `gorm:"type:text"`
	DurationMS     int64
	CreatedAt      time.Time `gorm:"index"`
}
