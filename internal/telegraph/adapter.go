// Package telegraph bridges chat platforms (WhatsApp, Slack, Discord, a
// local terminal) to the productivity agent.
package telegraph

import (
	"context"
	"time"
)

// Platform identifiers, stored in Contact.Platform.
const (
	PlatformWhatsApp = "whatsapp"
	PlatformSlack    = "slack"
	PlatformDiscord  = "discord"
	PlatformConsole  = "console"
)

// Adapter is the interface that platform-specific implementations must satisfy.
// Each adapter handles connection management and message sending/receiving
// for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the adapter is closed. Listen must only
	// be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform  string    // one of the Platform constants
	MessageID string    // platform message id, used for de-duplication
	ChannelID string    // where a reply goes (DM channel, phone number)
	UserID    string    // platform sender identifier
	UserName  string    // human-readable sender name
	Text      string    // raw message text
	Timestamp time.Time // when the message was sent
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string // target channel or phone number
	Text      string // plain text; adapters split it to the platform limit
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}

// Messenger sends agent-initiated messages through an Adapter. It
// satisfies agent.Messenger.
type Messenger struct {
	adapter Adapter
}

// NewMessenger wraps adapter for out-of-band sends.
func NewMessenger(adapter Adapter) *Messenger {
	return &Messenger{adapter: adapter}
}

// Send delivers text to the given channel address.
func (m *Messenger) Send(ctx context.Context, to, text string) error {
	return m.adapter.Send(ctx, OutboundMessage{ChannelID: to, Text: text})
}
