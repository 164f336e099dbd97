package main

import (
	"context"
	"strings"

	"strikearr/internal/api"
	"strikearr/internal/config"
	"strikearr/internal/ledger"
	"strikearr/internal/logging"
	"strikearr/internal/notifications"
	"strikearr/internal/poller"
)

// ledgerAPI is what the read-only commands need, served either by the running
// daemon or by the ledger file directly.
type ledgerAPI interface {
	Status(ctx context.Context) (*api.StatusResponse, error)
	Strikes(ctx context.Context, instance string) ([]api.StrikeRecord, error)
	Actions(ctx context.Context, limit int) ([]api.Action, error)
	Live() bool
}

// --- HTTP adapter ---

type ledgerHTTPAdapter struct {
	client *api.Client
}

func (a *ledgerHTTPAdapter) Status(ctx context.Context) (*api.StatusResponse, error) {
	return a.client.Status(ctx)
}

func (a *ledgerHTTPAdapter) Strikes(ctx context.Context, instance string) ([]api.StrikeRecord, error) {
	resp, err := a.client.Strikes(ctx, instance)
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (a *ledgerHTTPAdapter) Actions(ctx context.Context, limit int) ([]api.Action, error) {
	resp, err := a.client.Actions(ctx, limit)
	if err != nil {
		return nil, err
	}
	return resp.Actions, nil
}

func (a *ledgerHTTPAdapter) Live() bool { return true }

// --- Direct store adapter ---

type ledgerStoreAdapter struct {
	store      *ledger.Store
	cfg        *config.Config
	configPath string
}

func (a *ledgerStoreAdapter) Status(ctx context.Context) (*api.StatusResponse, error) {
	resp := &api.StatusResponse{
		ConfigPath: a.configPath,
		LockPath:   a.cfg.LockPath(),
		Channels:   configuredChannels(a.cfg),
		Instances:  make([]api.InstanceStatus, 0, len(a.cfg.Instances)),
	}
	for _, inst := range a.cfg.EnabledInstances() {
		resp.Instances = append(resp.Instances, api.FromPollerStatus(poller.Status{
			Instance:    inst.Name,
			ServiceType: inst.ServiceType,
			State:       poller.StateStopped,
		}))
	}
	totals, err := a.store.Totals(ctx)
	if err != nil {
		return nil, err
	}
	resp.Totals = api.FromTotals(totals)
	health, err := a.store.CheckHealth(ctx)
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}
	resp.Database = api.FromDatabaseHealth(health)
	return resp, nil
}

func (a *ledgerStoreAdapter) Strikes(ctx context.Context, instance string) ([]api.StrikeRecord, error) {
	records, err := a.store.List(ctx, ledger.Filter{InstanceID: strings.TrimSpace(instance)})
	if err != nil {
		return nil, err
	}
	return api.FromRecords(records), nil
}

func (a *ledgerStoreAdapter) Actions(ctx context.Context, limit int) ([]api.Action, error) {
	actions, err := a.store.RecentActions(ctx, limit)
	if err != nil {
		return nil, err
	}
	return api.FromActions(actions), nil
}

func (a *ledgerStoreAdapter) Live() bool { return false }

// configuredChannels lists enabled channel names without sending anything.
func configuredChannels(cfg *config.Config) []string {
	dispatcher := notifications.NewFromConfig(cfg, logging.NewNop())
	defer dispatcher.Close()
	return dispatcher.Channels()
}
