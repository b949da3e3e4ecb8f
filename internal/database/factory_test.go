package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reqstore/internal/config"
)

func TestNewDatabaseFromConfig(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "db")

	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		wantFile string
		wantErr  bool
	}{
		{name: "memory", cfg: config.DatabaseConfig{Type: "memory"}},
		{
			name:     "sqlite creates data_dir",
			cfg:      config.DatabaseConfig{Type: "sqlite", DataDir: dataDir},
			wantFile: filepath.Join(dataDir, "host-1.reqstore.db"),
		},
		{name: "sqlite without data_dir", cfg: config.DatabaseConfig{Type: "sqlite"}, wantErr: true},
		{name: "unknown type", cfg: config.DatabaseConfig{Type: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewDatabaseFromConfig(tt.cfg, "host-1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewDatabaseFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Error("NewDatabaseFromConfig() should return nil on error")
				}
				return
			}
			defer got.Close()

			if err := got.CheckMigrations(); err != nil {
				t.Errorf("CheckMigrations() error = %v", err)
			}
			if id, err := got.MaxOperationID(context.Background()); err != nil || id != 0 {
				t.Errorf("MaxOperationID() = %d, %v; want 0 on a fresh store", id, err)
			}
			if tt.wantFile != "" {
				if _, err := os.Stat(tt.wantFile); err != nil {
					t.Errorf("store file: %v", err)
				}
			}
		})
	}
}
