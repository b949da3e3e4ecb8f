package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"reqstore/internal/config"
	"reqstore/internal/req"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig("test-host", t.TempDir())
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Vaults = []config.VaultConfig{{Type: "memory", Name: "mem"}}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *ReqApp {
	t.Helper()
	a, err := NewReqApp(context.Background(), cfg, "Test", false)
	if err != nil {
		t.Fatalf("NewReqApp() error = %v", err)
	}
	return a
}

func TestNewReqApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no vaults", func(c *config.Config) { c.Vaults = nil }},
		{"unknown vault", func(c *config.Config) { c.Vaults[0].Type = "tape" }},
		{"unknown database", func(c *config.Config) { c.Database.Type = "postgres" }},
		{"unknown encryption", func(c *config.Config) { c.Encryption.Type = "rot13" }},
		{"missing host id", func(c *config.Config) { c.HostID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(cfg)
			if a, err := NewReqApp(context.Background(), cfg, "Test", false); err == nil {
				a.Close(context.Background())
				t.Error("NewReqApp() expected error")
			}
		})
	}
}

func TestReqApp_MutateUploadsSnapshot(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t))

	err := a.Mutate(ctx, "SRS", func(ctx context.Context, svc *req.Service) error {
		_, err := svc.CreateModule(ctx, req.CreateModuleInput{Name: "SRS"})
		return err
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if !a.op.Persisted() {
		t.Fatal("operation not persisted")
	}

	ops, err := a.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != "Test" || ops[0].Parameters != "SRS" {
		t.Errorf("History() = %+v", ops)
	}

	v := a.vault
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	version, err := v.GetMetadataVersion(ctx, "test-host", "db")
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != a.op.ID {
		t.Errorf("snapshot version = %d, want operation id %d", version, a.op.ID)
	}
	var snapshot bytes.Buffer
	if err := v.GetMetadata(ctx, "test-host", "db", &snapshot); err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if !bytes.HasPrefix(snapshot.Bytes(), []byte("SQLite format 3")) {
		t.Error("snapshot is not a SQLite database")
	}
}

func TestReqApp_ReadOnlySkipsSnapshot(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t))

	if _, err := a.Service().ListModules(ctx); err != nil {
		t.Fatalf("ListModules() error = %v", err)
	}
	v := a.vault
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if version, _ := v.GetMetadataVersion(ctx, "test-host", "db"); version != 0 {
		t.Errorf("snapshot version = %d, want none", version)
	}
}

func TestReqApp_MutateFailureMarksOperation(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t))
	defer a.Close(ctx)

	boom := errors.New("boom")
	err := a.Mutate(ctx, "", func(context.Context, *req.Service) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Mutate() error = %v, want boom", err)
	}
	if a.op.Status != "error" {
		t.Errorf("Status = %q, want error", a.op.Status)
	}
}

func TestReqApp_Resolve(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t))
	defer a.Close(ctx)
	svc := a.Service()

	m, err := svc.CreateModule(ctx, req.CreateModuleInput{Name: "SRS"})
	if err != nil {
		t.Fatalf("CreateModule() error = %v", err)
	}
	lt, err := svc.CreateLinkType(ctx, "verifies", "")
	if err != nil {
		t.Fatalf("CreateLinkType() error = %v", err)
	}

	for _, ref := range []string{m.ID, "SRS", " SRS "} {
		got, err := a.ResolveModule(ctx, ref)
		if err != nil || got.ID != m.ID {
			t.Errorf("ResolveModule(%q) = %v, %v", ref, got, err)
		}
	}
	if _, err := a.ResolveModule(ctx, "TST"); !errors.Is(err, req.ErrNotFound) {
		t.Errorf("ResolveModule(TST) error = %v, want ErrNotFound", err)
	}

	for _, ref := range []string{lt.ID, "verifies"} {
		if got, err := a.ResolveLinkType(ctx, ref); err != nil || got != lt.ID {
			t.Errorf("ResolveLinkType(%q) = %q, %v", ref, got, err)
		}
	}
	if got, err := a.ResolveLinkType(ctx, ""); err != nil || got != "" {
		t.Errorf("ResolveLinkType(\"\") = %q, %v", got, err)
	}
	if _, err := a.ResolveLinkType(ctx, "refines"); !errors.Is(err, req.ErrNotFound) {
		t.Errorf("ResolveLinkType(refines) error = %v, want ErrNotFound", err)
	}
}

func TestReqApp_FetchEncryptedArchive(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.Archive.Encrypt = true
	a := newTestApp(t, cfg)
	defer a.Close(ctx)
	svc := a.Service()

	m, err := svc.CreateModule(ctx, req.CreateModuleInput{Name: "SRS"})
	if err != nil {
		t.Fatalf("CreateModule() error = %v", err)
	}
	b, err := svc.CreateBaseline(ctx, req.CreateBaselineInput{ModuleID: m.ID, Name: "v1"})
	if err != nil {
		t.Fatalf("CreateBaseline() error = %v", err)
	}
	archive, err := svc.ArchiveBaseline(ctx, b.ID)
	if err != nil {
		t.Fatalf("ArchiveBaseline() error = %v", err)
	}

	prompts := 0
	doc, err := a.FetchArchive(ctx, archive.Checksum, func() (string, error) {
		prompts++
		return "", nil
	})
	if err != nil {
		t.Fatalf("FetchArchive() error = %v", err)
	}
	if prompts != 1 || doc.BaselineID != b.ID {
		t.Errorf("prompts = %d, document = %+v", prompts, doc)
	}

	_, err = a.FetchArchive(ctx, archive.Checksum, func() (string, error) { return "wrong", nil })
	if err == nil {
		t.Error("FetchArchive() with wrong passphrase expected error")
	}
}

func TestReqApp_CheckVault(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t))
	defer a.Close(ctx)

	name, err := a.CheckVault(ctx)
	if err != nil || name != "mem" {
		t.Errorf("CheckVault() = %q, %v", name, err)
	}
}
