package vault

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMemoryVault_PutAndGetContent(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")

	tests := []struct {
		name     string
		checksum string
		content  string
		size     int64
		wantErr  bool
	}{
		{name: "baseline document", checksum: "abc123", content: "baseline_id: b1\n", size: 16},
		{name: "empty content", checksum: "empty", content: "", size: 0},
		{name: "large content", checksum: "large", content: strings.Repeat("x", 10000), size: 10000},
		{name: "size mismatch", checksum: "short", content: "abc", size: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vault.PutContent(ctx, tt.checksum, strings.NewReader(tt.content), tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PutContent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			var buf bytes.Buffer
			if err := vault.GetContent(ctx, tt.checksum, &buf); err != nil {
				t.Fatalf("GetContent() unexpected error: %v", err)
			}
			if got := buf.String(); got != tt.content {
				t.Errorf("GetContent() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_GetContentNotFound(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var buf bytes.Buffer
	err := vault.GetContent(context.Background(), "missing", &buf)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetContent() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryVault_Metadata(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")

	version, err := vault.GetMetadataVersion(ctx, "host-1", "db")
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("GetMetadataVersion() before put = %d, want 0", version)
	}

	for i, data := range []string{"snapshot-1", "snapshot-two"} {
		if err := vault.PutMetadata(ctx, "host-1", "db", strings.NewReader(data), int64(len(data)), int64(i+1)); err != nil {
			t.Fatalf("PutMetadata() error = %v", err)
		}
	}

	var buf bytes.Buffer
	if err := vault.GetMetadata(ctx, "host-1", "db", &buf); err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if buf.String() != "snapshot-two" {
		t.Errorf("GetMetadata() = %q, want latest snapshot", buf.String())
	}
	version, _ = vault.GetMetadataVersion(ctx, "host-1", "db")
	if version != 2 {
		t.Errorf("GetMetadataVersion() = %d, want 2", version)
	}

	buf.Reset()
	if err := vault.GetMetadata(ctx, "host-2", "db", &buf); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMetadata() other host error = %v, want ErrNotFound", err)
	}
}

func TestMemoryVault_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vault := NewMemoryVault("test-vault")

	if err := vault.PutContent(ctx, "abc", strings.NewReader("x"), 1); !errors.Is(err, context.Canceled) {
		t.Errorf("PutContent() error = %v, want context.Canceled", err)
	}
	if err := vault.ValidateSetup(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ValidateSetup() error = %v, want context.Canceled", err)
	}
}

func TestMemoryVault_Name(t *testing.T) {
	if got := NewMemoryVault("archive").Name(); got != "archive" {
		t.Errorf("Name() = %q, want %q", got, "archive")
	}
}
