package req

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// BaselineDocument is the published form of a baseline: its metadata and
// the content of every pinned object version, resolved from history.
type BaselineDocument struct {
	BaselineID  string           `yaml:"baseline_id"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	ModuleID    string           `yaml:"module_id"`
	ModuleName  string           `yaml:"module_name"`
	CreatedAt   time.Time        `yaml:"created_at"`
	ArchivedAt  time.Time        `yaml:"archived_at"`
	ArchivedBy  string           `yaml:"archived_by"`
	Entries     []ArchivedObject `yaml:"entries"`
}

// ArchivedObject is one baseline entry with its historical content.
type ArchivedObject struct {
	Ordinal   int       `yaml:"ordinal"`
	DiffEntry `yaml:",inline"`
}

// ArchiveBaseline renders a baseline as YAML, encrypts it when archive
// encryption is enabled, and stores it in the vault under the SHA-256 of
// the stored bytes. Archiving identical content twice stores it once but
// records a new archive row.
func (s *Service) ArchiveBaseline(ctx context.Context, baselineID string) (*BaselineArchive, error) {
	if s.vault == nil {
		return nil, errors.New("no vault configured")
	}
	encrypt := s.settings.EncryptArchives
	if encrypt && (s.encryptor == nil || !s.encryptor.IsConfigured()) {
		return nil, errors.New("archive encryption enabled but no keys are configured")
	}

	doc := &BaselineDocument{}
	err := s.database.View(ctx, func(tx Tx) error {
		b, err := loadBaseline(ctx, tx, baselineID)
		if err != nil {
			return err
		}
		module, err := mustModule(ctx, tx, b.ModuleID)
		if err != nil {
			return err
		}
		doc.BaselineID = b.ID
		doc.Name = b.Name
		doc.Description = b.Description
		doc.ModuleID = module.ID
		doc.ModuleName = module.Name
		doc.CreatedAt = b.CreatedAt
		doc.Entries = make([]ArchivedObject, 0, len(b.Entries))
		for _, e := range b.Entries {
			entry, err := diffEntry(ctx, tx, e.ObjectID, e.Version)
			if err != nil {
				return err
			}
			doc.Entries = append(doc.Entries, ArchivedObject{Ordinal: e.Ordinal, DiffEntry: entry})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	doc.ArchivedAt = s.clock.Now()
	doc.ArchivedBy = ActorFromContext(ctx)

	plain, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling baseline document: %w", err)
	}

	payload := plain
	if encrypt {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(plain), &buf); err != nil {
			return nil, fmt.Errorf("encrypting baseline document: %w", err)
		}
		payload = buf.Bytes()
	}

	sum := sha256.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])

	if err := s.vault.PutContent(ctx, checksum, bytes.NewReader(payload), int64(len(payload))); err != nil {
		return nil, fmt.Errorf("storing baseline document: %w", err)
	}

	archive := &BaselineArchive{
		ID:         s.idgen.New(),
		BaselineID: baselineID,
		Checksum:   checksum,
		Vault:      s.vault.Name(),
		Encrypted:  encrypt,
		Size:       int64(len(payload)),
		CreatedAt:  doc.ArchivedAt,
	}
	err = s.database.Update(ctx, func(tx Tx) error {
		if err := tx.InsertBaselineArchive(ctx, archive); err != nil {
			return fmt.Errorf("recording baseline archive: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("baseline archived", "baseline", baselineID, "checksum", checksum, "vault", archive.Vault, "encrypted", encrypt)
	return archive, nil
}

// FetchArchive retrieves a published baseline document by checksum.
// dc is required only for encrypted archives.
func (s *Service) FetchArchive(ctx context.Context, checksum string, dc DecryptionContext) (*BaselineDocument, error) {
	if s.vault == nil {
		return nil, errors.New("no vault configured")
	}

	var archive *BaselineArchive
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		archive, err = tx.FindBaselineArchive(ctx, checksum)
		if err != nil {
			return fmt.Errorf("finding baseline archive: %w", err)
		}
		if archive == nil {
			return notFound("archive", checksum)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var stored bytes.Buffer
	if err := s.vault.GetContent(ctx, checksum, &stored); err != nil {
		return nil, fmt.Errorf("fetching baseline document: %w", err)
	}
	sum := sha256.Sum256(stored.Bytes())
	if got := hex.EncodeToString(sum[:]); got != checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", checksum, got)
	}

	plain := stored.Bytes()
	if archive.Encrypted {
		if dc == nil {
			return nil, validationf("passphrase", "archive %s is encrypted", checksum)
		}
		var buf bytes.Buffer
		if err := dc.Decrypt(bytes.NewReader(plain), &buf); err != nil {
			return nil, fmt.Errorf("decrypting baseline document: %w", err)
		}
		plain = buf.Bytes()
	}

	var doc BaselineDocument
	if err := yaml.Unmarshal(plain, &doc); err != nil {
		return nil, fmt.Errorf("parsing baseline document: %w", err)
	}
	return &doc, nil
}

// ListArchives returns the archives published for a baseline, oldest first.
func (s *Service) ListArchives(ctx context.Context, baselineID string) ([]*BaselineArchive, error) {
	var archives []*BaselineArchive
	err := s.database.View(ctx, func(tx Tx) error {
		if _, err := loadBaseline(ctx, tx, baselineID); err != nil {
			return err
		}
		var err error
		archives, err = tx.ListBaselineArchives(ctx, baselineID)
		if err != nil {
			return fmt.Errorf("listing baseline archives: %w", err)
		}
		return nil
	})
	return archives, err
}
