package database

import (
	"fmt"
	"os"
	"path/filepath"

	"reqstore/internal/config"
	"reqstore/internal/req"
)

// FileName is the name of the store file for hostID inside data_dir.
func FileName(hostID string) string {
	return hostID + ".reqstore.db"
}

// NewDatabaseFromConfig opens the store described by cfg. A sqlite store
// lives in data_dir, which is created if missing; a memory store is empty
// and gone on Close.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, hostID string) (req.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		return open(filepath.Join(cfg.DataDir, FileName(hostID)))
	case "memory":
		return open(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %q", cfg.Type)
	}
}

// open keeps a failed open from surfacing as a non-nil interface.
func open(path string) (req.Database, error) {
	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}
