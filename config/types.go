package config

// AgentConfig holds the device-local agent configuration from agent.yml
type AgentConfig struct {
	UserID        string   `yaml:"user_id"`
	DataDir       string   `yaml:"data_dir"`
	DBBackend     string   `yaml:"db_backend"` // "bolt" (default) or "leveldb"
	ListenAddr    string   `yaml:"listen_addr"`
	VerifierURL   string   `yaml:"verifier_url"`
	UpstreamURL   string   `yaml:"upstream_url"`
	TokenPath     string   `yaml:"token_path"`
	APIPrefix     string   `yaml:"api_prefix"`
	CacheVersion  string   `yaml:"cache_version"`
	ShellEntry    string   `yaml:"shell_entry"`
	ShellAssets   []string `yaml:"shell_assets"`
}

// ConfigFile is the top-level structure for agent.yml
type ConfigFile struct {
	Config AgentConfig `yaml:"config"`
}
