package req

import (
	"context"
	"time"
)

// Database provides transactional access to the store.
// Update runs fn in a read-write transaction that commits if fn returns nil.
// View runs fn in a read-only transaction that always rolls back.
// Implementations serialize transactions, so every Update is an exclusive
// section and every View observes one consistent snapshot.
type Database interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error

	// Operation tracking

	// CreateOperation records the start of a mutating CLI invocation.
	CreateOperation(ctx context.Context, operation, parameters string) (*Operation, error)

	// FinishOperation stamps an operation with its final status.
	FinishOperation(ctx context.Context, id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(ctx context.Context, limit int) ([]*Operation, error)

	// MaxOperationID returns the highest operation id, or 0 when none exist.
	MaxOperationID(ctx context.Context) (int64, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the database to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}

// ObjectFilter narrows ListObjects. The zero value lists live objects.
// A ParentID pointing at "" selects root objects. Search matches heading
// or body as a case-insensitive substring.
type ObjectFilter struct {
	IncludeDeleted bool
	Classification Classification
	ParentID       *string
	NeedsReview    bool
	Search         string
}

// LinkFilter narrows ListLinks. Empty fields match everything.
type LinkFilter struct {
	ObjectID    string
	ModuleID    string
	LinkTypeID  string
	SuspectOnly bool
}

// Tx is the set of queries available inside a transaction.
// Find methods return (nil, nil) when the row does not exist.
type Tx interface {
	// Modules

	InsertModule(ctx context.Context, m *Module) error
	FindModule(ctx context.Context, id string) (*Module, error)
	FindModuleByName(ctx context.Context, name string) (*Module, error)
	ListModules(ctx context.Context) ([]*Module, error)

	// Objects

	InsertObject(ctx context.Context, o *Object) error
	UpdateObject(ctx context.Context, o *Object) error
	UpdateObjectLevel(ctx context.Context, id, level string) error
	FindObject(ctx context.Context, id string) (*Object, error)
	// ListModuleObjects returns every object of a module, including deleted
	// ones, ordered by position then creation order.
	ListModuleObjects(ctx context.Context, moduleID string) ([]*Object, error)
	// ListObjects returns filtered objects of a module in no particular
	// order; callers sort by level.
	ListObjects(ctx context.Context, moduleID string, filter ObjectFilter) ([]*Object, error)
	MaxChildPosition(ctx context.Context, moduleID string, parentID *string) (float64, bool, error)

	// History

	InsertHistory(ctx context.Context, h *ObjectHistory) error
	ListHistory(ctx context.Context, objectID string) ([]*ObjectHistory, error)
	FindHistoryVersion(ctx context.Context, objectID string, version int64) (*ObjectHistory, error)

	// Link types

	InsertLinkType(ctx context.Context, lt *LinkType) error
	FindLinkType(ctx context.Context, id string) (*LinkType, error)
	FindLinkTypeByName(ctx context.Context, name string) (*LinkType, error)
	ListLinkTypes(ctx context.Context) ([]*LinkType, error)

	// Links

	InsertLink(ctx context.Context, l *Link) error
	FindLink(ctx context.Context, id string) (*Link, error)
	FindLinkByEndpoints(ctx context.Context, sourceID, targetID, linkTypeID string) (*Link, error)
	ListLinks(ctx context.Context, filter LinkFilter) ([]*Link, error)
	ListLinksFrom(ctx context.Context, objectID string) ([]*Link, error)
	ListLinksTo(ctx context.Context, objectID string) ([]*Link, error)
	UpdateLinkSuspect(ctx context.Context, id string, suspect bool, updatedAt time.Time) error
	UpdateLinkFingerprints(ctx context.Context, l *Link) error
	DeleteLink(ctx context.Context, id string) error

	// Baselines

	InsertBaselineSet(ctx context.Context, bs *BaselineSet) error
	FindBaselineSet(ctx context.Context, id string) (*BaselineSet, error)
	ListBaselineSets(ctx context.Context) ([]*BaselineSet, error)
	InsertBaseline(ctx context.Context, b *Baseline) error
	InsertBaselineEntry(ctx context.Context, e *BaselineEntry) error
	FindBaseline(ctx context.Context, id string) (*Baseline, error)
	ListBaselines(ctx context.Context, moduleID string) ([]*Baseline, error)
	ListBaselinesInSet(ctx context.Context, setID string) ([]*Baseline, error)
	ListBaselineEntries(ctx context.Context, baselineID string) ([]BaselineEntry, error)
	DeleteBaseline(ctx context.Context, id string) error

	// Baseline archives

	InsertBaselineArchive(ctx context.Context, a *BaselineArchive) error
	FindBaselineArchive(ctx context.Context, checksum string) (*BaselineArchive, error)
	ListBaselineArchives(ctx context.Context, baselineID string) ([]*BaselineArchive, error)

	// Scripts

	InsertScript(ctx context.Context, s *Script) error
	UpdateScript(ctx context.Context, s *Script) error
	FindScript(ctx context.Context, id string) (*Script, error)
	ListScripts(ctx context.Context, moduleID string) ([]*Script, error)
	// ListTriggers returns enabled triggers at a hook point in creation order.
	ListTriggers(ctx context.Context, moduleID string, hook HookPoint) ([]*Script, error)
	DeleteScript(ctx context.Context, id string) error
}
