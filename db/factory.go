package db

import (
	"fmt"
	"path/filepath"

	"opay/logx"
)

const (
	BackendBolt    = "bolt"
	BackendLevelDB = "leveldb"
)

// NewProvider opens the configured backend under dataDir. Both backends give
// the same durability contract; Bolt is the default single-file store.
func NewProvider(backend, dataDir string) (DatabaseProvider, error) {
	switch backend {
	case BackendBolt, "":
		path := filepath.Join(dataDir, "opay.db")
		logx.Info("DB", "Opening BoltDB store at ", path)
		return NewBoltProvider(path)
	case BackendLevelDB:
		path := filepath.Join(dataDir, "leveldb")
		logx.Info("DB", "Opening LevelDB store at ", path)
		return NewLevelDBProvider(path)
	default:
		return nil, fmt.Errorf("unknown db backend %q", backend)
	}
}
