package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:  "test-host-abc",
		BaseDir: "/home/user/.local/share/reqstore",
		LogDir:  "/home/user/.local/share/reqstore/log",
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: "/backup/vault"},
			{Type: "s3", Name: "remote", S3Bucket: "reqs", S3Region: "eu-west-1", S3Endpoint: "http://localhost:9000"},
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  "/home/user/.local/share/reqstore/keys/reqstore.pub",
			PrivateKeyPath: "/home/user/.local/share/reqstore/keys/reqstore.key",
			Armor:          true,
		},
		Database:  DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/reqstore/db"},
		Scripting: ScriptingConfig{TimeoutMS: 500, MaxCallStack: 128, LayoutWorkers: 8, ProgramCacheTTL: 60},
		Impact:    ImpactConfig{DefaultDepth: 3, MaxDepth: 10},
		Archive:   ArchiveConfig{Encrypt: true},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HostID != original.HostID {
		t.Errorf("HostID = %q, want %q", got.HostID, original.HostID)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if len(got.Vaults) != 2 {
		t.Fatalf("len(Vaults) = %d, want 2", len(got.Vaults))
	}
	if got.Vaults[0].FSVaultRoot != "/backup/vault" {
		t.Errorf("Vault.FSVaultRoot = %q, want %q", got.Vaults[0].FSVaultRoot, "/backup/vault")
	}
	if got.Vaults[1].S3Endpoint != "http://localhost:9000" {
		t.Errorf("Vault.S3Endpoint = %q, want %q", got.Vaults[1].S3Endpoint, "http://localhost:9000")
	}
	if !got.Encryption.Armor {
		t.Error("Encryption.Armor = false, want true")
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Scripting != original.Scripting {
		t.Errorf("Scripting = %+v, want %+v", got.Scripting, original.Scripting)
	}
	if got.Impact != original.Impact {
		t.Errorf("Impact = %+v, want %+v", got.Impact, original.Impact)
	}
	if !got.Archive.Encrypt {
		t.Error("Archive.Encrypt = false, want true")
	}
}

func TestManager_Read_TOMLKeys(t *testing.T) {
	input := `
host_id = "h1"

[scripting]
timeout_ms = 250
program_cache_ttl_s = 5

[impact]
max_depth = 7
`
	m := &Manager{}
	got, err := m.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Scripting.TimeoutMS != 250 || got.Scripting.ProgramCacheTTL != 5 {
		t.Errorf("Scripting = %+v", got.Scripting)
	}
	if got.Impact.MaxDepth != 7 {
		t.Errorf("Impact.MaxDepth = %d, want 7", got.Impact.MaxDepth)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/reqstore")

	if cfg.HostID != "host-1" {
		t.Errorf("HostID = %q, want %q", cfg.HostID, "host-1")
	}
	if cfg.LogDir != "/data/reqstore/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/reqstore/log")
	}
	if cfg.Database.DataDir != "/data/reqstore/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/reqstore/db")
	}
	if len(cfg.Vaults) != 1 || cfg.Vaults[0].FSVaultRoot != "/data/reqstore/vault" {
		t.Errorf("Vaults = %+v, want one filesystem vault", cfg.Vaults)
	}
	if cfg.Encryption.PublicKeyPath != "/data/reqstore/keys/reqstore.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Impact.DefaultDepth != 5 || cfg.Impact.MaxDepth != 20 {
		t.Errorf("Impact = %+v, want 5/20", cfg.Impact)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing host id", func(c *Config) { c.HostID = "" }},
		{"negative timeout", func(c *Config) { c.Scripting.TimeoutMS = -1 }},
		{"negative depth", func(c *Config) { c.Impact.MaxDepth = -1 }},
		{"default above max", func(c *Config) { c.Impact.DefaultDepth = 30 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("h1", "/data")
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "reqstore.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "reqstore.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "reqstore.toml")
		if err := Init(path, NewConfig("", dir)); err == nil {
			t.Fatal("Init() expected error for missing host id")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "reqstore.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/reqstore.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
