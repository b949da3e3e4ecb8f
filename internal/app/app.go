package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"reqstore/internal/config"
	"reqstore/internal/database"
	"reqstore/internal/encryption"
	"reqstore/internal/req"
	"reqstore/internal/script"
	"reqstore/internal/vault"
)

// ReqApp is the application layer between the CLI and req.Service.
// It constructs all dependencies from config, resolves the raw strings the
// CLI passes in, and manages the DB lifecycle on Close.
type ReqApp struct {
	cfg       *config.Config
	db        req.Database
	vault     req.Vault
	encryptor req.Encryptor
	service   *req.Service
	op        *Operation
	logFile   *os.File
}

// NewReqApp creates a fully wired ReqApp from the given config.
// operation identifies the CLI command being run (e.g. "CreateObject").
// verbose mirrors debug logging to stderr. The caller must call Close when done.
func NewReqApp(ctx context.Context, cfg *config.Config, operation string, verbose bool) (*ReqApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	// A newer snapshot in the vault means another run mutated the store
	// from a copy this host does not have.
	remoteVersion, err := v.GetMetadataVersion(ctx, cfg.HostID, "db")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking remote metadata version: %w", err)
	}
	localMax, err := db.MaxOperationID(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking local metadata version: %w", err)
	}
	if remoteVersion > localMax {
		db.Close()
		return nil, fmt.Errorf("local database is behind remote (local=%d, remote=%d): restore from vault or re-initialize", localMax, remoteVersion)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, verbose)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	reqLogger := &slogAdapter{l: logger}

	engine := script.NewEngine(script.Options{
		Timeout:      time.Duration(cfg.Scripting.TimeoutMS) * time.Millisecond,
		MaxCallStack: cfg.Scripting.MaxCallStack,
		CacheTTL:     time.Duration(cfg.Scripting.ProgramCacheTTL) * time.Second,
	}, reqLogger)

	svc := req.NewService(db, engine, v, enc, reqLogger, req.RealClock{}, req.UUIDGenerator{}, req.Settings{
		DefaultImpactDepth: cfg.Impact.DefaultDepth,
		MaxImpactDepth:     cfg.Impact.MaxDepth,
		LayoutWorkers:      cfg.Scripting.LayoutWorkers,
		EncryptArchives:    cfg.Archive.Encrypt,
	})

	return &ReqApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		service:   svc,
		op:        NewOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// Service returns the wired service for read and write calls.
func (a *ReqApp) Service() *req.Service {
	return a.service
}

// Mutate records this invocation as a mutating operation and runs fn.
// A failing fn marks the operation as failed; the database snapshot is
// still uploaded on Close.
func (a *ReqApp) Mutate(ctx context.Context, parameters string, fn func(ctx context.Context, svc *req.Service) error) error {
	if err := a.persistOperation(ctx, parameters); err != nil {
		return err
	}
	if err := fn(ctx, a.service); err != nil {
		a.op.Status = "error"
		return err
	}
	return nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for DB-mutating commands.
func (a *ReqApp) persistOperation(ctx context.Context, parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(ctx, a.op.Name, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// ResolveModule finds a module by id, falling back to its name.
func (a *ReqApp) ResolveModule(ctx context.Context, ref string) (*req.Module, error) {
	ref = strings.TrimSpace(ref)
	m, err := a.service.GetModule(ctx, ref)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, req.ErrNotFound) {
		return nil, err
	}
	return a.service.FindModuleByName(ctx, ref)
}

// ResolveLinkType finds a link type by id or name. An empty ref resolves
// to "" so callers can pass it on as "any type".
func (a *ReqApp) ResolveLinkType(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	types, err := a.service.ListLinkTypes(ctx)
	if err != nil {
		return "", err
	}
	for _, lt := range types {
		if lt.ID == ref || lt.Name == ref {
			return lt.ID, nil
		}
	}
	return "", &req.NotFoundError{Kind: "link type", ID: ref}
}

// ReadScriptSource loads script source from a file, or from stdin when
// path is "-".
func ReadScriptSource(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading script source: %w", err)
	}
	return string(data), nil
}

// SetupKeys generates the archive key pair protected by passphrase.
func (a *ReqApp) SetupKeys(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// FetchArchive retrieves a published baseline document. passphrase is
// only called when the archive turns out to be encrypted.
func (a *ReqApp) FetchArchive(ctx context.Context, checksum string, passphrase func() (string, error)) (*req.BaselineDocument, error) {
	doc, err := a.service.FetchArchive(ctx, checksum, nil)
	if err == nil || !errors.Is(err, req.ErrValidation) {
		return doc, err
	}

	pass, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	dc, err := a.encryptor.Unlock(pass)
	if err != nil {
		return nil, fmt.Errorf("unlocking private key: %w", err)
	}
	return a.service.FetchArchive(ctx, checksum, dc)
}

// CheckVault verifies the configured vault is reachable and writable.
func (a *ReqApp) CheckVault(ctx context.Context) (string, error) {
	if err := a.vault.ValidateSetup(ctx); err != nil {
		return a.vault.Name(), fmt.Errorf("vault %q: %w", a.vault.Name(), err)
	}
	return a.vault.Name(), nil
}

// History returns the most recent mutating operations.
func (a *ReqApp) History(ctx context.Context, limit int) ([]*req.Operation, error) {
	return a.db.ListOperations(ctx, limit)
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the DB,
// and uploads the snapshot to the vault. Otherwise it just closes the database.
func (a *ReqApp) Close(ctx context.Context) error {
	var errs []error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(ctx, a.op.ID, a.op.Status); err != nil {
			errs = append(errs, fmt.Errorf("finishing operation: %w", err))
		}

		tmpPath, err := a.snapshot()
		if err != nil {
			errs = append(errs, err)
		}
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		if tmpPath != "" {
			if err := a.uploadMetadata(ctx, tmpPath, a.op.ID); err != nil {
				errs = append(errs, err)
			}
			os.Remove(tmpPath)
		}
	} else if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

// snapshot writes a copy of the database to a temp file and returns its path.
func (a *ReqApp) snapshot() (string, error) {
	tmpFile, err := os.CreateTemp("", "reqstore-db-backup-*.db")
	if err != nil {
		return "", fmt.Errorf("creating temp file for db backup: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(tmpPath)

	if err := a.db.BackupTo(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("backing up database: %w", err)
	}
	return tmpPath, nil
}

// uploadMetadata opens the temp DB file and uploads it to the vault as metadata.
func (a *ReqApp) uploadMetadata(ctx context.Context, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db backup for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db backup: %w", err)
	}

	if err := a.vault.PutMetadata(ctx, a.cfg.HostID, "db", f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading metadata to vault: %w", err)
	}
	return nil
}
