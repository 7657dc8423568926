package config

import (
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"opay/logx"
)

// LoadAgentConfig reads and parses the agent.yml file
func LoadAgentConfig(path string) (*AgentConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		logx.Error("CONFIG", "Failed to open config file: ", err)
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		logx.Error("CONFIG", "Failed to decode YAML: ", err)
		return nil, err
	}

	cfg := &cfgFile.Config
	cfg.applyDefaults()
	logx.Info("CONFIG", "Loaded agent config | user_id=", cfg.UserID, " data_dir=", cfg.DataDir)
	return cfg, nil
}

func (c *AgentConfig) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.DBBackend == "" {
		c.DBBackend = "bolt"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":7070"
	}
	if c.APIPrefix == "" {
		c.APIPrefix = "/api/"
	}
	if c.CacheVersion == "" {
		c.CacheVersion = "offline-pay-v1"
	}
	if c.ShellEntry == "" {
		c.ShellEntry = "/index.html"
	}
	if len(c.ShellAssets) == 0 {
		c.ShellAssets = []string{"/", "/index.html", "/manifest.json", "/vite.svg"}
	}
}

type SyncConfig struct {
	IntervalSeconds       int `ini:"interval_seconds"`
	RequestTimeoutSeconds int `ini:"request_timeout_seconds"`
	ProbeIntervalSeconds  int `ini:"probe_interval_seconds"`
}

type CacheConfig struct {
	FetchTimeoutSeconds int `ini:"fetch_timeout_seconds"`
}

// DefaultSyncConfig is used when no tuning file is present.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		IntervalSeconds:       60,
		RequestTimeoutSeconds: 15,
		ProbeIntervalSeconds:  20,
	}
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{FetchTimeoutSeconds: 10}
}

// LoadSyncConfig reads sync tuning from an .ini file
func LoadSyncConfig(path string) (*SyncConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	syncSection := cfg.Section("sync")
	syncCfg := DefaultSyncConfig()
	err = syncSection.MapTo(syncCfg)
	if err != nil {
		return nil, err
	}
	return syncCfg, nil
}

// LoadCacheConfig reads cache tuning from an .ini file
func LoadCacheConfig(path string) (*CacheConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	cacheSection := cfg.Section("cache")
	cacheCfg := DefaultCacheConfig()
	err = cacheSection.MapTo(cacheCfg)
	if err != nil {
		return nil, err
	}
	return cacheCfg, nil
}
