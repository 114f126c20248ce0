package telegraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/productif/internal/agent"
	"github.com/zulandar/productif/internal/models"
	"go.uber.org/zap"
)

// Responder is the part of the agent the bridge drives.
type Responder interface {
	HandleMessage(ctx context.Context, u agent.User, text string) agent.Result
	CheckIn(ctx context.Context, u agent.User, k agent.CheckIn) (agent.Result, error)
}

// Router resolves the sender of each inbound message and routes it to the
// command handler or the agent, then sends the reply and logs the exchange.
type Router struct {
	responder  Responder
	cmdHandler *CommandHandler
	contacts   *Contacts
	exchanges  *ExchangeLog
	adapter    Adapter
	botUserID  string
	now        func() time.Time
	log        *zap.Logger
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Responder  Responder
	CmdHandler *CommandHandler
	Contacts   *Contacts
	Exchanges  *ExchangeLog
	Adapter    Adapter
	BotUserID  string           // bot's user ID for self-message filtering
	Now        func() time.Time // defaults to time.Now
	Logger     *zap.Logger      // defaults to zap.NewNop()
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Responder == nil {
		return nil, fmt.Errorf("telegraph: router: responder is required")
	}
	if opts.CmdHandler == nil {
		return nil, fmt.Errorf("telegraph: router: command handler is required")
	}
	if opts.Contacts == nil {
		return nil, fmt.Errorf("telegraph: router: contacts is required")
	}
	if opts.Exchanges == nil {
		return nil, fmt.Errorf("telegraph: router: exchange log is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: router: adapter is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Router{
		responder:  opts.Responder,
		cmdHandler: opts.CmdHandler,
		contacts:   opts.Contacts,
		exchanges:  opts.Exchanges,
		adapter:    opts.Adapter,
		botUserID:  opts.BotUserID,
		now:        opts.Now,
		log:        opts.Logger,
	}, nil
}

// Handle routes a single inbound message. Routing paths:
//  1. Bot self-message or empty text → ignore
//  2. Command prefix "!pio" → command handler
//  3. Unlinked sender → linking hint
//  4. Everything else → agent
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.botUserID != "" && msg.UserID == r.botUserID {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	log := r.log.With(zap.String("platform", msg.Platform), zap.String("sender", msg.UserID))
	log.Debug("recv", zap.String("text", truncate(text, 80)))

	c, err := r.contacts.Lookup(ctx, msg.Platform, msg.UserID)
	if err != nil && !errors.Is(err, ErrUnknownContact) {
		log.Error("resolve contact", zap.Error(err))
		r.reply(ctx, log, msg.ChannelID, "😕 Oups, un problème technique m'empêche de te répondre. Réessaie dans un instant.")
		return
	}

	if isCommand(text) {
		r.reply(ctx, log, msg.ChannelID, r.cmdHandler.Execute(ctx, msg, c))
		return
	}
	if c == nil {
		log.Info("unlinked sender")
		r.reply(ctx, log, msg.ChannelID, linkHint(msg))
		return
	}

	start := r.now()
	res := r.responder.HandleMessage(ctx, r.userFor(c, msg), text)
	if res.Response != "" {
		r.reply(ctx, log, msg.ChannelID, res.Response)
	}

	if err := r.contacts.Touch(ctx, c.ID, msg.ChannelID, start); err != nil {
		log.Warn("touch contact", zap.Error(err))
	}
	r.record(ctx, log, c, text, res, r.now().Sub(start))
}

// userFor builds the agent identity, replying on the channel the message
// came from.
func (r *Router) userFor(c *models.Contact, msg InboundMessage) agent.User {
	u := UserFor(c)
	if msg.ChannelID != "" {
		u.Address = msg.ChannelID
	}
	if u.Name == "" {
		u.Name = msg.UserName
	}
	return u
}

func (r *Router) reply(ctx context.Context, log *zap.Logger, channelID, text string) {
	if err := r.adapter.Send(ctx, OutboundMessage{ChannelID: channelID, Text: text}); err != nil {
		log.Error("send reply", zap.Error(err))
	}
}

func (r *Router) record(ctx context.Context, log *zap.Logger, c *models.Contact, inbound string, res agent.Result, took time.Duration) {
	ex := &models.Exchange{
		ContactID:      c.ID,
		UserID:         c.UserID,
		Platform:       c.Platform,
		Inbound:        inbound,
		Category:       string(res.Category),
		Handled:        res.Handled,
		ActionExecuted: res.ActionExecuted,
		Response:       res.Response,
		DurationMS:     took.Milliseconds(),
	}
	if err := r.exchanges.Record(ctx, ex); err != nil {
		log.Warn("record exchange", zap.Error(err))
	}
}
