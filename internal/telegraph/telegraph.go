package telegraph

import (
	"context"
	"fmt"

	"github.com/zulandar/productif/internal/config"
	"github.com/zulandar/productif/internal/state"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Daemon is the main telegraph process. It connects to a chat platform via
// an Adapter, pumps inbound messages to the agent, and sends scheduled
// check-ins.
type Daemon struct {
	db        *gorm.DB
	cfg       *config.Config
	adapter   Adapter
	platform  string
	responder Responder
	states    state.Store
	checkIns  bool
	log       *zap.Logger
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB        *gorm.DB
	Config    *config.Config
	Adapter   Adapter
	Platform  string // contact namespace of the adapter's senders
	Responder Responder
	States    state.Store
	CheckIns  bool        // run the configured check-in schedule
	Logger    *zap.Logger // defaults to zap.NewNop()
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("telegraph: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("telegraph: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: adapter is required")
	}
	if opts.Platform == "" {
		return nil, fmt.Errorf("telegraph: platform is required")
	}
	if opts.Responder == nil {
		return nil, fmt.Errorf("telegraph: responder is required")
	}
	if opts.States == nil {
		return nil, fmt.Errorf("telegraph: state store is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Daemon{
		db:        opts.DB,
		cfg:       opts.Config,
		adapter:   opts.Adapter,
		platform:  opts.Platform,
		responder: opts.Responder,
		states:    opts.States,
		checkIns:  opts.CheckIns,
		log:       opts.Logger.Named("telegraph").With(zap.String("platform", opts.Platform)),
	}, nil
}

// Run connects the adapter, builds the router and check-in scheduler, and
// blocks until the context is cancelled or the adapter's inbound channel
// closes. Messages already queued are handled before it returns.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info("connecting")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("telegraph: connect: %w", err)
	}

	// Extract bot user ID if the adapter supports it.
	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	contacts, err := NewContacts(d.db)
	if err != nil {
		d.adapter.Close()
		return err
	}
	exchanges, err := NewExchangeLog(d.db)
	if err != nil {
		d.adapter.Close()
		return err
	}
	cmdHandler, err := NewCommandHandler(CommandHandlerOpts{Contacts: contacts, States: d.states})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("telegraph: build command handler: %w", err)
	}
	router, err := NewRouter(RouterOpts{
		Responder:  d.responder,
		CmdHandler: cmdHandler,
		Contacts:   contacts,
		Exchanges:  exchanges,
		Adapter:    d.adapter,
		BotUserID:  botUserID,
		Logger:     d.log,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("telegraph: build router: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("telegraph: listen: %w", err)
	}

	if d.checkIns {
		sched, err := NewCheckIns(CheckInsOpts{
			Responder: d.responder,
			Contacts:  contacts,
			Exchanges: exchanges,
			Adapter:   d.adapter,
			Platform:  d.platform,
			Schedule:  d.cfg.CheckIns,
			Location:  d.cfg.Location(),
			Logger:    d.log,
		})
		if err != nil {
			d.adapter.Close()
			return fmt.Errorf("telegraph: build check-ins: %w", err)
		}
		go func() {
			if err := sched.Run(ctx); err != nil {
				d.log.Error("check-in scheduler stopped", zap.Error(err))
			}
		}()
	}

	d.log.Info("online")

	// Main event loop: pump inbound messages until context is cancelled.
	// Each sender gets its own lane so one slow backend call never delays
	// another user, while a user's own messages stay ordered.
	work := newLanes()
	for {
		select {
		case <-ctx.Done():
			d.log.Info("shutting down")
			work.wait()
			if err := d.adapter.Close(); err != nil {
				d.log.Warn("close adapter", zap.Error(err))
			}
			d.log.Info("stopped")
			return nil

		case msg, ok := <-inbound:
			if !ok {
				d.log.Info("inbound channel closed")
				work.wait()
				return nil
			}
			work.dispatch(msg, func(m InboundMessage) {
				router.Handle(ctx, m)
			})
		}
	}
}
