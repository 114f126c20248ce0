package telegraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/productif/internal/agent"
	"github.com/zulandar/productif/internal/models"
	"gorm.io/gorm"
)

// ErrUnknownContact is returned when a sender has not been linked to a
// backend user.
var ErrUnknownContact = errors.New("telegraph: unknown contact")

// Contacts persists the mapping from chat identities to backend users.
type Contacts struct {
	db *gorm.DB
}

// NewContacts creates a Contacts store.
func NewContacts(db *gorm.DB) (*Contacts, error) {
	if db == nil {
		return nil, fmt.Errorf("telegraph: contacts: db is required")
	}
	return &Contacts{db: db}, nil
}

// Lookup returns the contact for a platform sender, or ErrUnknownContact.
func (cs *Contacts) Lookup(ctx context.Context, platform, senderID string) (*models.Contact, error) {
	var c models.Contact
	err := cs.db.WithContext(ctx).
		Where("platform = ? AND sender_id = ?", platform, senderID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownContact
	}
	if err != nil {
		return nil, fmt.Errorf("telegraph: lookup contact: %w", err)
	}
	return &c, nil
}

// Get returns a contact by ID.
func (cs *Contacts) Get(ctx context.Context, id uint) (*models.Contact, error) {
	var c models.Contact
	err := cs.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownContact
	}
	if err != nil {
		return nil, fmt.Errorf("telegraph: get contact %d: %w", id, err)
	}
	return &c, nil
}

// Add links a new sender. Platform, SenderID and UserID are required. For
// WhatsApp the phone number doubles as the reply address.
func (cs *Contacts) Add(ctx context.Context, c *models.Contact) error {
	c.Platform = strings.ToLower(strings.TrimSpace(c.Platform))
	c.SenderID = strings.TrimSpace(c.SenderID)
	switch {
	case c.Platform == "":
		return fmt.Errorf("telegraph: add contact: platform is required")
	case c.SenderID == "":
		return fmt.Errorf("telegraph: add contact: sender id is required")
	case c.UserID == "":
		return fmt.Errorf("telegraph: add contact: user id is required")
	}
	if c.ChannelID == "" && (c.Platform == PlatformWhatsApp || c.Platform == PlatformConsole) {
		c.ChannelID = c.SenderID
	}

	checkIns := c.CheckIns
	return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("telegraph: add contact: %w", err)
		}
		// gorm skips zero values in favor of the column default.
		if !checkIns {
			if err := tx.Model(c).Update("check_ins", false).Error; err != nil {
				return fmt.Errorf("telegraph: add contact: %w", err)
			}
		}
		return nil
	})
}

// List returns contacts, optionally filtered by platform, ordered by ID.
func (cs *Contacts) List(ctx context.Context, platform string) ([]models.Contact, error) {
	q := cs.db.WithContext(ctx).Order("id")
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}
	var out []models.Contact
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("telegraph: list contacts: %w", err)
	}
	return out, nil
}

// Remove deletes a contact by ID.
func (cs *Contacts) Remove(ctx context.Context, id uint) error {
	result := cs.db.WithContext(ctx).Delete(&models.Contact{}, id)
	if result.Error != nil {
		return fmt.Errorf("telegraph: remove contact %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUnknownContact
	}
	return nil
}

// SetCheckIns turns scheduled check-ins on or off for a contact.
func (cs *Contacts) SetCheckIns(ctx context.Context, id uint, on bool) error {
	result := cs.db.WithContext(ctx).Model(&models.Contact{}).Where("id = ?", id).Update("check_ins", on)
	if result.Error != nil {
		return fmt.Errorf("telegraph: set check-ins for %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUnknownContact
	}
	return nil
}

// Touch records that the contact just wrote from channelID.
func (cs *Contacts) Touch(ctx context.Context, id uint, channelID string, at time.Time) error {
	updates := map[string]interface{}{"last_seen_at": at}
	if channelID != "" {
		updates["channel_id"] = channelID
	}
	if err := cs.db.WithContext(ctx).Model(&models.Contact{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("telegraph: touch contact %d: %w", id, err)
	}
	return nil
}

// CheckInRecipients returns the contacts on platform that accept check-ins
// and have a known reply address.
func (cs *Contacts) CheckInRecipients(ctx context.Context, platform string) ([]models.Contact, error) {
	var out []models.Contact
	err := cs.db.WithContext(ctx).
		Where("platform = ? AND check_ins = ? AND channel_id <> ''", platform, true).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("telegraph: check-in recipients: %w", err)
	}
	return out, nil
}

// UserFor converts a contact into the identity the agent acts for.
func UserFor(c *models.Contact) agent.User {
	return agent.User{
		ID:      c.UserID,
		Address: c.ChannelID,
		Token:   c.APIToken,
		Name:    c.DisplayName,
	}
}
