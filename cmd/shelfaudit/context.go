package main

import (
	"log/slog"
	"strings"
	"sync"

	"shelfaudit/internal/audit"
	"shelfaudit/internal/config"
	"shelfaudit/internal/healthdb"
	"shelfaudit/internal/library"
	"shelfaudit/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// stores bundles everything a command needs to audit the library.
type stores struct {
	cfg    *config.Config
	lib    *library.Store
	health *healthdb.Store
	policy *audit.Policy
	logger *slog.Logger
}

func (s *stores) close() {
	if s.lib != nil {
		_ = s.lib.Close()
	}
	if s.health != nil {
		_ = s.health.Close()
	}
}

// openStores opens the metadata and health databases and builds the policy.
// quiet commands pass a nop logger; long-running ones build one from config.
func (c *commandContext) openStores(logger *slog.Logger) (*stores, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lib, err := library.Open(cfg)
	if err != nil {
		return nil, err
	}
	health, err := healthdb.Open(cfg)
	if err != nil {
		_ = lib.Close()
		return nil, err
	}
	return &stores{
		cfg:    cfg,
		lib:    lib,
		health: health,
		policy: audit.New(cfg, logger),
		logger: logger,
	}, nil
}
