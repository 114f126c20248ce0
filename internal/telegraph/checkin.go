package telegraph

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/productif/internal/agent"
	"github.com/zulandar/productif/internal/config"
	"github.com/zulandar/productif/internal/models"
	"go.uber.org/zap"
)

// CheckIns sends the scheduled morning and evening messages to every
// contact of one platform that accepts them.
type CheckIns struct {
	responder Responder
	contacts  *Contacts
	exchanges *ExchangeLog
	adapter   Adapter
	platform  string
	schedule  config.CheckInsConfig
	loc       *time.Location
	log       *zap.Logger
}

// CheckInsOpts holds parameters for creating a CheckIns scheduler.
type CheckInsOpts struct {
	Responder Responder
	Contacts  *Contacts
	Exchanges *ExchangeLog
	Adapter   Adapter
	Platform  string
	Schedule  config.CheckInsConfig
	Location  *time.Location // cron evaluation zone; defaults to time.Local
	Logger    *zap.Logger
}

// NewCheckIns creates a CheckIns scheduler.
func NewCheckIns(opts CheckInsOpts) (*CheckIns, error) {
	if opts.Responder == nil {
		return nil, fmt.Errorf("telegraph: check-ins: responder is required")
	}
	if opts.Contacts == nil {
		return nil, fmt.Errorf("telegraph: check-ins: contacts is required")
	}
	if opts.Exchanges == nil {
		return nil, fmt.Errorf("telegraph: check-ins: exchange log is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: check-ins: adapter is required")
	}
	if opts.Platform == "" {
		return nil, fmt.Errorf("telegraph: check-ins: platform is required")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &CheckIns{
		responder: opts.Responder,
		contacts:  opts.Contacts,
		exchanges: opts.Exchanges,
		adapter:   opts.Adapter,
		platform:  opts.Platform,
		schedule:  opts.Schedule,
		loc:       opts.Location,
		log:       opts.Logger.Named("checkins"),
	}, nil
}

// Enabled reports whether any check-in has a schedule.
func (s *CheckIns) Enabled() bool {
	return s.schedule.Morning != "" || s.schedule.Evening != ""
}

// Run schedules the configured check-ins and blocks until ctx is cancelled.
// It returns immediately if no check-in is scheduled.
func (s *CheckIns) Run(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(s.loc))
	for _, job := range []struct {
		kind agent.CheckIn
		expr string
	}{
		{agent.MorningCheckIn, s.schedule.Morning},
		{agent.EveningCheckIn, s.schedule.Evening},
	} {
		if job.expr == "" {
			continue
		}
		kind := job.kind
		if _, err := c.AddFunc(job.expr, func() { s.Fire(ctx, kind) }); err != nil {
			return fmt.Errorf("telegraph: schedule %s check-in: %w", kind, err)
		}
		if next, err := nextFire(job.expr, time.Now().In(s.loc)); err == nil {
			s.log.Info("check-in scheduled", zap.String("kind", string(kind)), zap.Time("next", next))
		}
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Fire sends one check-in of the given kind to every recipient and returns
// how many were delivered. A failure for one contact never stops the others.
func (s *CheckIns) Fire(ctx context.Context, kind agent.CheckIn) int {
	recipients, err := s.contacts.CheckInRecipients(ctx, s.platform)
	if err != nil {
		s.log.Error("list recipients", zap.Error(err))
		return 0
	}

	sent := 0
	for i := range recipients {
		c := &recipients[i]
		log := s.log.With(zap.String("kind", string(kind)), zap.Uint("contact", c.ID))

		start := time.Now()
		res, err := s.responder.CheckIn(ctx, UserFor(c), kind)
		if err != nil {
			log.Warn("build check-in", zap.Error(err))
			continue
		}
		if err := s.adapter.Send(ctx, OutboundMessage{ChannelID: c.ChannelID, Text: res.Response}); err != nil {
			log.Warn("send check-in", zap.Error(err))
			continue
		}
		sent++

		ex := &models.Exchange{
			ContactID:      c.ID,
			UserID:         c.UserID,
			Platform:       c.Platform,
			Inbound:        "checkin:" + string(kind),
			Category:       string(res.Category),
			Handled:        res.Handled,
			ActionExecuted: res.ActionExecuted,
			Response:       res.Response,
			DurationMS:     time.Since(start).Milliseconds(),
		}
		if err := s.exchanges.Record(ctx, ex); err != nil {
			log.Warn("record check-in", zap.Error(err))
		}
	}
	s.log.Info("check-in sent", zap.String("kind", string(kind)), zap.Int("sent", sent), zap.Int("recipients", len(recipients)))
	return sent
}
