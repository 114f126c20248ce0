package models

import "time"

// Contact links a chat identity (a WhatsApp phone number, a Slack or
// Discord user ID) to a backend user and the API token the agent uses on
// that user's behalf.
type Contact struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Platform    string `gorm:"size:16;not null;uniqueIndex:idx_platform_sender"`
	SenderID    string `gorm:"size:128;not null;uniqueIndex:idx_platform_sender"`
	ChannelID   string `gorm:"size:128"` // where replies go (DM channel, phone number)
	UserID      string `gorm:"size:64;not null;index"`
	DisplayName string `gorm:"size:128"`
	APIToken    string `gorm:"size:512"`
	CheckIns    bool   `gorm:"default:true"`
	LastSeenAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
