package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"strikearr/internal/api"
	"strikearr/internal/config"
	"strikearr/internal/daemonctl"
	"strikearr/internal/ledger"
)

const apiTimeout = 15 * time.Second

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
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
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// daemonRunning reports whether the pid file names a live daemon.
func (c *commandContext) daemonRunning() (bool, int) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return false, 0
	}
	alive, pid, err := daemonctl.ProcessInfo(cfg.PIDPath())
	if err != nil {
		return false, 0
	}
	return alive, pid
}

func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.API.Bind, cfg.API.Token, apiTimeout)
}

// withLedgerAPI runs fn against the daemon API when the daemon is running and
// against the ledger file otherwise.
func (c *commandContext) withLedgerAPI(ctx context.Context, fn func(ledgerAPI) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if alive, _ := c.daemonRunning(); alive {
		client, err := c.apiClient()
		if err != nil {
			return err
		}
		err = fn(&ledgerHTTPAdapter{client: client})
		if !errors.Is(err, api.ErrUnavailable) {
			return err
		}
	}

	store, err := ledger.Open(cfg.Ledger.Path, ledger.WithHistoryLimit(cfg.Ledger.HistoryLimit))
	if err != nil {
		return fmt.Errorf("open strike ledger: %w", err)
	}
	defer store.Close()
	return fn(&ledgerStoreAdapter{store: store, cfg: cfg, configPath: c.configPath})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
