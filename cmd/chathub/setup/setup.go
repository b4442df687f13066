// Package setup wires configuration, logging, the protocol client and the
// session manager for the chathub commands.
package setup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/chathub/pkg/chathub"
	"github.com/papercomputeco/chathub/pkg/config"
	"github.com/papercomputeco/chathub/pkg/logger"
	"github.com/papercomputeco/chathub/pkg/session"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
}

// Env is everything a command needs to run turns.
type Env struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zap.Logger
	Client     *chathub.Client
	Store      session.Storer
	Manager    *session.Manager
}

// New loads the configuration and builds the client, store and manager.
func New(ctx context.Context, opts *Options) (*Env, error) {
	path := config.ResolvePath(opts.ConfigPath)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("could not load config %s: %w", path, err)
	}

	level := cfg.Logging.Level
	if opts.Debug {
		level = "debug"
	}
	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return nil, err
	}

	store, err := session.Open(ctx, cfg.SessionStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("could not open session store: %w", err)
	}

	client := chathub.New(cfg.ClientConfig(), log)
	manager := session.NewManager(client, store, cfg.ManagerConfig(), log)

	log.Debug("chathub configured",
		zap.String("config", path),
		zap.String("store", cfg.Store.Driver),
		zap.String("style", cfg.ChatHub.Style),
	)

	return &Env{
		Config:     cfg,
		ConfigPath: path,
		Logger:     log,
		Client:     client,
		Store:      store,
		Manager:    manager,
	}, nil
}

// Apply pushes the hot-reloadable settings of cfg into the running client and
// manager.
func (e *Env) Apply(cfg *config.Config) {
	e.Client.SetCookie(cfg.ChatHub.Cookie)
	mc := cfg.ManagerConfig()
	e.Manager.SetDefaults(mc.Style, mc.SystemPrompt)
}

// Close releases the session store and flushes the logger.
func (e *Env) Close() error {
	_ = e.Logger.Sync()
	return e.Store.Close()
}
