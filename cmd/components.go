package cmd

import (
	"fmt"
	"os"
	"time"

	"opay/config"
	"opay/db"
	"opay/engine"
	"opay/events"
	"opay/keystore"
	"opay/queue"
	"opay/verifier"
)

// components bundles the wired-up engine stack shared by the subcommands
type components struct {
	cfg      *config.AgentConfig
	syncCfg  *config.SyncConfig
	cacheCfg *config.CacheConfig
	provider db.DatabaseProvider
	keyStore *keystore.KeyStore
	pending  *queue.PendingQueue
	remote   *verifier.Client
	bus      *events.EventBus
	engine   *engine.Engine
}

func buildComponents() (*components, error) {
	cfg, err := config.LoadAgentConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load agent config: %w", err)
	}

	syncCfg, err := config.LoadSyncConfig(tuningPath)
	if err != nil {
		syncCfg = config.DefaultSyncConfig()
	}
	cacheCfg, err := config.LoadCacheConfig(tuningPath)
	if err != nil {
		cacheCfg = config.DefaultCacheConfig()
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	provider, err := db.NewProvider(cfg.DBBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ks, err := keystore.NewKeyStore(provider)
	if err != nil {
		return nil, err
	}
	pq, err := queue.NewPendingQueue(provider)
	if err != nil {
		return nil, err
	}

	remote := verifier.NewClient(verifier.Config{
		BaseURL:        cfg.VerifierURL,
		TokenPath:      cfg.TokenPath,
		RequestTimeout: time.Duration(syncCfg.RequestTimeoutSeconds) * time.Second,
	})

	bus := events.NewEventBus()
	eng := engine.NewEngine(ks, pq, remote, bus, engine.Config{
		SyncInterval: time.Duration(syncCfg.IntervalSeconds) * time.Second,
	})

	return &components{
		cfg:      cfg,
		syncCfg:  syncCfg,
		cacheCfg: cacheCfg,
		provider: provider,
		keyStore: ks,
		pending:  pq,
		remote:   remote,
		bus:      bus,
		engine:   eng,
	}, nil
}

func (c *components) Close() {
	_ = c.provider.Close()
}
