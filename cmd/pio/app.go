package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zulandar/productif/internal/agent"
	"github.com/zulandar/productif/internal/backend"
	"github.com/zulandar/productif/internal/config"
	"github.com/zulandar/productif/internal/db"
	"github.com/zulandar/productif/internal/intent"
	"github.com/zulandar/productif/internal/llm"
	"github.com/zulandar/productif/internal/state"
	"github.com/zulandar/productif/internal/telegraph"
	"github.com/zulandar/productif/internal/telegraph/discord"
	slackadapter "github.com/zulandar/productif/internal/telegraph/slack"
	"github.com/zulandar/productif/internal/telegraph/whatsapp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app bundles what every command needs: config, logger, database and the
// conversation state store.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	states  state.Store
	sweeper *state.GormStore // nil when state lives in redis
	closers []func()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// openApp loads the config, connects and migrates the database and opens
// the state store.
func openApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(flags.verbose)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a := &app{cfg: cfg, log: log, closers: []func(){func() { _ = log.Sync() }}}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		a.Close()
		return nil, err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		a.closers = append(a.closers, func() { sqlDB.Close() })
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		a.Close()
		return nil, err
	}
	a.db = gormDB

	switch cfg.Agent.StateBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, func() { rdb.Close() })
		a.states = state.NewRedisStore(rdb, cfg.StateTTL())
	default:
		gs := state.NewGormStore(gormDB, cfg.StateTTL())
		a.states, a.sweeper = gs, gs
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newAgent wires the backend client, the optional completion model and the
// intent classifier into an Agent.
func (a *app) newAgent(messenger agent.Messenger) (*agent.Agent, error) {
	client, err := backend.NewClient(backend.ClientOpts{
		BaseURL: a.cfg.Backend.BaseURL,
		Timeout: time.Duration(a.cfg.Backend.TimeoutSec) * time.Second,
		Logger:  a.log.Named("backend"),
	})
	if err != nil {
		return nil, err
	}

	var completer llm.Completer
	var classifier intent.Classifier = intent.NewRules()
	if a.cfg.LLM.APIKey != "" {
		oa, err := llm.NewOpenAI(llm.OpenAIOpts{
			APIKey:  a.cfg.LLM.APIKey,
			BaseURL: a.cfg.LLM.BaseURL,
			Model:   a.cfg.LLM.Model,
			Timeout: time.Duration(a.cfg.LLM.TimeoutSec) * time.Second,
			Logger:  a.log,
		})
		if err != nil {
			return nil, err
		}
		completer = oa
		if a.cfg.LLM.Classify {
			lc, err := intent.NewLLMClassifier(intent.LLMClassifierOpts{
				Completer: oa,
				Fallback:  classifier,
				Logger:    a.log,
			})
			if err != nil {
				return nil, err
			}
			classifier = lc
		}
	} else if a.cfg.LLM.Classify {
		a.log.Warn("llm.classify is set but llm.api_key is empty, using rule classifier")
	}

	return agent.New(agent.Opts{
		Backend:    client,
		States:     a.states,
		Classifier: classifier,
		Completer:  completer,
		Messenger:  messenger,
		Location:   a.cfg.Location(),
		Logger:     a.log,
	})
}

// newAdapter builds the chat adapter for the configured platform.
func newAdapter(cfg *config.Config, log *zap.Logger) (telegraph.Adapter, error) {
	switch cfg.Telegraph.Platform {
	case telegraph.PlatformWhatsApp:
		wa := cfg.Telegraph.WhatsApp
		return whatsapp.New(whatsapp.AdapterOpts{
			PhoneNumberID: wa.PhoneNumberID,
			AccessToken:   wa.AccessToken,
			VerifyToken:   wa.VerifyToken,
			AppSecret:     wa.AppSecret,
			GraphURL:      wa.GraphURL,
			APIVersion:    wa.APIVersion,
			Logger:        log,
		})
	case telegraph.PlatformSlack:
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken: cfg.Telegraph.Slack.AppToken,
			BotToken: cfg.Telegraph.Slack.BotToken,
			Logger:   log,
		})
	case telegraph.PlatformDiscord:
		return discord.New(discord.AdapterOpts{
			BotToken: cfg.Telegraph.Discord.BotToken,
			Logger:   log,
		})
	case "":
		return nil, fmt.Errorf("no chat platform configured (set telegraph.platform)")
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Telegraph.Platform)
	}
}
