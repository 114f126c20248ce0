package telegraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/productif/internal/models"
	"github.com/zulandar/productif/internal/state"
)

// commandPrefix is the prefix that triggers account commands. They bypass
// the agent entirely.
const commandPrefix = "!pio"

// CommandHandler processes "!pio" account commands from chat.
type CommandHandler struct {
	contacts *Contacts
	states   state.Store
}

// CommandHandlerOpts holds parameters for creating a CommandHandler.
type CommandHandlerOpts struct {
	Contacts *Contacts
	States   state.Store
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(opts CommandHandlerOpts) (*CommandHandler, error) {
	if opts.Contacts == nil {
		return nil, fmt.Errorf("telegraph: command handler: contacts is required")
	}
	if opts.States == nil {
		return nil, fmt.Errorf("telegraph: command handler: state store is required")
	}
	return &CommandHandler{contacts: opts.Contacts, states: opts.States}, nil
}

func isCommand(text string) bool {
	return text == commandPrefix || strings.HasPrefix(text, commandPrefix+" ")
}

// parseCommand strips the "!pio" prefix and splits the remaining text.
func parseCommand(text string) []string {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), commandPrefix))
	if text == "" {
		return nil
	}
	return strings.Fields(strings.ToLower(text))
}

// Execute runs a "!pio" command for the sender of msg and returns the reply.
// c is nil when the sender is not linked; only "id" and "aide" work then.
func (ch *CommandHandler) Execute(ctx context.Context, msg InboundMessage, c *models.Contact) string {
	args := parseCommand(msg.Text)
	if len(args) == 0 {
		return helpText()
	}

	switch args[0] {
	case "aide", "help":
		return helpText()
	case "id":
		return fmt.Sprintf("Ton identifiant %s : %s", msg.Platform, msg.UserID)
	case "reset":
		if c == nil {
			return linkHint(msg)
		}
		return ch.cmdReset(ctx, c)
	case "checkins":
		if c == nil {
			return linkHint(msg)
		}
		return ch.cmdCheckIns(ctx, c, args[1:])
	default:
		return fmt.Sprintf("Commande inconnue : %s\n\n%s", args[0], helpText())
	}
}

func (ch *CommandHandler) cmdReset(ctx context.Context, c *models.Contact) string {
	if err := ch.states.Clear(ctx, c.UserID); err != nil {
		return fmt.Sprintf("Impossible de réinitialiser la conversation : %v", err)
	}
	return "🔄 Conversation réinitialisée. On repart de zéro !"
}

func (ch *CommandHandler) cmdCheckIns(ctx context.Context, c *models.Contact, args []string) string {
	if len(args) == 0 || (args[0] != "on" && args[0] != "off") {
		return "Usage : !pio checkins on|off"
	}
	on := args[0] == "on"
	if err := ch.contacts.SetCheckIns(ctx, c.ID, on); err != nil {
		return fmt.Sprintf("Impossible de modifier les rappels : %v", err)
	}
	if on {
		return "⏰ Rappels du matin et du soir activés."
	}
	return "🔕 Rappels du matin et du soir désactivés."
}

// helpText returns usage information for all commands.
func helpText() string {
	return "Commandes Productif.io\n" +
		"!pio id : ton identifiant pour lier ton compte\n" +
		"!pio reset : abandonner la question en cours\n" +
		"!pio checkins on|off : rappels du matin et du soir\n" +
		"!pio aide : ce message"
}

// linkHint is the reply to a sender with no linked account.
func linkHint(msg InboundMessage) string {
	return fmt.Sprintf("👋 Je ne connais pas encore ce compte. Pour lier ton compte Productif.io, "+
		"transmets cet identifiant à ton administrateur : %s (%s).", msg.UserID, msg.Platform)
}
