package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reqstore/internal/req"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// queries implements req.Tx over a DBTX.
type queries struct {
	db DBTX
}

var _ req.Tx = (*queries)(nil)

type scanner interface {
	Scan(dest ...any) error
}

// Modules

const moduleColumns = `id, name, description, required_attributes, default_classification, created_at, updated_at`

func (q *queries) InsertModule(ctx context.Context, m *req.Module) error {
	required, err := encodeJSON(nonNilStrings(m.RequiredAttributes))
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO modules (`+moduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Description, required, string(m.DefaultClassification), m.CreatedAt, m.UpdatedAt)
	return err
}

func (q *queries) FindModule(ctx context.Context, id string) (*req.Module, error) {
	return scanModule(q.db.QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = ?`, id))
}

func (q *queries) FindModuleByName(ctx context.Context, name string) (*req.Module, error) {
	return scanModule(q.db.QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE name = ?`, name))
}

func (q *queries) ListModules(ctx context.Context) ([]*req.Module, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+moduleColumns+` FROM modules ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanModule)
}

func scanModule(row scanner) (*req.Module, error) {
	var m req.Module
	var required, class string
	err := row.Scan(&m.ID, &m.Name, &m.Description, &required, &class, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(required), &m.RequiredAttributes); err != nil {
		return nil, fmt.Errorf("decoding required attributes of module %s: %w", m.ID, err)
	}
	m.DefaultClassification = req.Classification(class)
	return &m, nil
}

// Objects

const objectColumns = `id, module_id, parent_id, position, level, heading, body, attributes, classification,
	content_fingerprint, reviewed_fingerprint, current_version, object_type_id, deleted_at, created_at, updated_at`

func (q *queries) InsertObject(ctx context.Context, o *req.Object) error {
	attrs, err := encodeJSON(nonNilAttributes(o.Attributes))
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO objects (`+objectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ModuleID, nullString(o.ParentID), o.Position, o.Level, o.Heading, nullString(o.Body), attrs,
		string(o.Classification), o.ContentFingerprint, nullString(o.ReviewedFingerprint), o.CurrentVersion,
		nullString(o.ObjectTypeID), nullTime(o.DeletedAt), o.CreatedAt, o.UpdatedAt)
	return err
}

func (q *queries) UpdateObject(ctx context.Context, o *req.Object) error {
	attrs, err := encodeJSON(nonNilAttributes(o.Attributes))
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE objects SET parent_id = ?, position = ?, level = ?, heading = ?, body = ?, attributes = ?,
			classification = ?, content_fingerprint = ?, reviewed_fingerprint = ?, current_version = ?,
			object_type_id = ?, deleted_at = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(o.ParentID), o.Position, o.Level, o.Heading, nullString(o.Body), attrs,
		string(o.Classification), o.ContentFingerprint, nullString(o.ReviewedFingerprint), o.CurrentVersion,
		nullString(o.ObjectTypeID), nullTime(o.DeletedAt), o.UpdatedAt, o.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "object", o.ID)
}

func (q *queries) UpdateObjectLevel(ctx context.Context, id, level string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE objects SET level = ? WHERE id = ?`, level, id)
	return err
}

func (q *queries) FindObject(ctx context.Context, id string) (*req.Object, error) {
	return scanObject(q.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE id = ?`, id))
}

func (q *queries) ListModuleObjects(ctx context.Context, moduleID string) ([]*req.Object, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE module_id = ? ORDER BY position, created_at, rowid`, moduleID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanObject)
}

func (q *queries) ListObjects(ctx context.Context, moduleID string, filter req.ObjectFilter) ([]*req.Object, error) {
	where := []string{"module_id = ?"}
	args := []any{moduleID}
	if !filter.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if filter.Classification != "" {
		where = append(where, "classification = ?")
		args = append(args, string(filter.Classification))
	}
	if filter.ParentID != nil {
		if *filter.ParentID == "" {
			where = append(where, "parent_id IS NULL")
		} else {
			where = append(where, "parent_id = ?")
			args = append(args, *filter.ParentID)
		}
	}
	if filter.NeedsReview {
		where = append(where, "(reviewed_fingerprint IS NULL OR reviewed_fingerprint != content_fingerprint)")
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		where = append(where, `(lower(heading) LIKE ? ESCAPE '\' OR lower(coalesce(body, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE `+strings.Join(where, " AND ")+` ORDER BY position, created_at, rowid`,
		args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanObject)
}

func (q *queries) MaxChildPosition(ctx context.Context, moduleID string, parentID *string) (float64, bool, error) {
	var pos sql.NullFloat64
	var err error
	if parentID == nil {
		err = q.db.QueryRowContext(ctx,
			`SELECT MAX(position) FROM objects WHERE module_id = ? AND parent_id IS NULL AND deleted_at IS NULL`,
			moduleID).Scan(&pos)
	} else {
		err = q.db.QueryRowContext(ctx,
			`SELECT MAX(position) FROM objects WHERE module_id = ? AND parent_id = ? AND deleted_at IS NULL`,
			moduleID, *parentID).Scan(&pos)
	}
	if err != nil {
		return 0, false, err
	}
	return pos.Float64, pos.Valid, nil
}

func scanObject(row scanner) (*req.Object, error) {
	var o req.Object
	var parentID, body, reviewed, typeID sql.NullString
	var attrs, class string
	var deleted sql.NullTime
	err := row.Scan(&o.ID, &o.ModuleID, &parentID, &o.Position, &o.Level, &o.Heading, &body, &attrs, &class,
		&o.ContentFingerprint, &reviewed, &o.CurrentVersion, &typeID, &deleted, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	o.ParentID = fromNullString(parentID)
	o.Body = fromNullString(body)
	o.ReviewedFingerprint = fromNullString(reviewed)
	o.ObjectTypeID = fromNullString(typeID)
	o.DeletedAt = fromNullTime(deleted)
	o.Classification = req.Classification(class)
	if o.Attributes, err = decodeAttributes(attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes of object %s: %w", o.ID, err)
	}
	return &o, nil
}

// History

const historyColumns = `id, object_id, module_id, version, heading, body, attributes, classification, change_type, changed_by, changed_at`

func (q *queries) InsertHistory(ctx context.Context, h *req.ObjectHistory) error {
	attrs, err := encodeJSON(nonNilAttributes(h.Attributes))
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO object_history (object_id, module_id, version, heading, body, attributes, classification,
			change_type, changed_by, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ObjectID, h.ModuleID, h.Version, h.Heading, nullString(h.Body), attrs, string(h.Classification),
		string(h.ChangeType), h.ChangedBy, h.ChangedAt)
	if err != nil {
		return err
	}
	h.ID, err = res.LastInsertId()
	return err
}

func (q *queries) ListHistory(ctx context.Context, objectID string) ([]*req.ObjectHistory, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM object_history WHERE object_id = ? ORDER BY version`, objectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanHistory)
}

func (q *queries) FindHistoryVersion(ctx context.Context, objectID string, version int64) (*req.ObjectHistory, error) {
	return scanHistory(q.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM object_history WHERE object_id = ? AND version = ?`, objectID, version))
}

func scanHistory(row scanner) (*req.ObjectHistory, error) {
	var h req.ObjectHistory
	var body sql.NullString
	var attrs, class, change string
	err := row.Scan(&h.ID, &h.ObjectID, &h.ModuleID, &h.Version, &h.Heading, &body, &attrs, &class,
		&change, &h.ChangedBy, &h.ChangedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	h.Body = fromNullString(body)
	h.Classification = req.Classification(class)
	h.ChangeType = req.ChangeType(change)
	if h.Attributes, err = decodeAttributes(attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes of %s v%d: %w", h.ObjectID, h.Version, err)
	}
	return &h, nil
}

// Link types

const linkTypeColumns = `id, name, description, created_at`

func (q *queries) InsertLinkType(ctx context.Context, lt *req.LinkType) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO link_types (`+linkTypeColumns+`) VALUES (?, ?, ?, ?)`,
		lt.ID, lt.Name, lt.Description, lt.CreatedAt)
	return err
}

func (q *queries) FindLinkType(ctx context.Context, id string) (*req.LinkType, error) {
	return scanLinkType(q.db.QueryRowContext(ctx, `SELECT `+linkTypeColumns+` FROM link_types WHERE id = ?`, id))
}

func (q *queries) FindLinkTypeByName(ctx context.Context, name string) (*req.LinkType, error) {
	return scanLinkType(q.db.QueryRowContext(ctx, `SELECT `+linkTypeColumns+` FROM link_types WHERE name = ?`, name))
}

func (q *queries) ListLinkTypes(ctx context.Context) ([]*req.LinkType, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+linkTypeColumns+` FROM link_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLinkType)
}

func scanLinkType(row scanner) (*req.LinkType, error) {
	var lt req.LinkType
	if err := row.Scan(&lt.ID, &lt.Name, &lt.Description, &lt.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &lt, nil
}

// Links

const linkColumns = `id, source_object_id, target_object_id, link_type_id, attributes, suspect,
	source_fingerprint, target_fingerprint, created_at, updated_at`

func (q *queries) InsertLink(ctx context.Context, l *req.Link) error {
	attrs, err := encodeJSON(nonNilAttributes(l.Attributes))
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.SourceObjectID, l.TargetObjectID, l.LinkTypeID, attrs, l.Suspect,
		l.SourceFingerprint, l.TargetFingerprint, l.CreatedAt, l.UpdatedAt)
	return err
}

func (q *queries) FindLink(ctx context.Context, id string) (*req.Link, error) {
	return scanLink(q.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id))
}

func (q *queries) FindLinkByEndpoints(ctx context.Context, sourceID, targetID, linkTypeID string) (*req.Link, error) {
	return scanLink(q.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE source_object_id = ? AND target_object_id = ? AND link_type_id = ?`,
		sourceID, targetID, linkTypeID))
}

func (q *queries) ListLinks(ctx context.Context, filter req.LinkFilter) ([]*req.Link, error) {
	where := []string{"1 = 1"}
	var args []any
	if filter.ObjectID != "" {
		where = append(where, "(source_object_id = ? OR target_object_id = ?)")
		args = append(args, filter.ObjectID, filter.ObjectID)
	}
	if filter.ModuleID != "" {
		where = append(where, `(source_object_id IN (SELECT id FROM objects WHERE module_id = ?)
			OR target_object_id IN (SELECT id FROM objects WHERE module_id = ?))`)
		args = append(args, filter.ModuleID, filter.ModuleID)
	}
	if filter.LinkTypeID != "" {
		where = append(where, "link_type_id = ?")
		args = append(args, filter.LinkTypeID)
	}
	if filter.SuspectOnly {
		where = append(where, "suspect = 1")
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at, rowid`,
		args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLink)
}

func (q *queries) ListLinksFrom(ctx context.Context, objectID string) ([]*req.Link, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE source_object_id = ? ORDER BY created_at, rowid`, objectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLink)
}

func (q *queries) ListLinksTo(ctx context.Context, objectID string) ([]*req.Link, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE target_object_id = ? ORDER BY created_at, rowid`, objectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLink)
}

func (q *queries) UpdateLinkSuspect(ctx context.Context, id string, suspect bool, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE links SET suspect = ?, updated_at = ? WHERE id = ?`, suspect, updatedAt, id)
	return err
}

func (q *queries) UpdateLinkFingerprints(ctx context.Context, l *req.Link) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE links SET source_fingerprint = ?, target_fingerprint = ?, suspect = ?, updated_at = ? WHERE id = ?`,
		l.SourceFingerprint, l.TargetFingerprint, l.Suspect, l.UpdatedAt, l.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "link", l.ID)
}

func (q *queries) DeleteLink(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	return err
}

func scanLink(row scanner) (*req.Link, error) {
	var l req.Link
	var attrs string
	err := row.Scan(&l.ID, &l.SourceObjectID, &l.TargetObjectID, &l.LinkTypeID, &attrs, &l.Suspect,
		&l.SourceFingerprint, &l.TargetFingerprint, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	if l.Attributes, err = decodeAttributes(attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes of link %s: %w", l.ID, err)
	}
	return &l, nil
}

// Baselines

const (
	baselineSetColumns = `id, name, version, description, created_at`
	baselineColumns    = `id, module_id, name, description, baseline_set_id, locked, created_at`
)

func (q *queries) InsertBaselineSet(ctx context.Context, bs *req.BaselineSet) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO baseline_sets (`+baselineSetColumns+`) VALUES (?, ?, ?, ?, ?)`,
		bs.ID, bs.Name, bs.Version, bs.Description, bs.CreatedAt)
	return err
}

func (q *queries) FindBaselineSet(ctx context.Context, id string) (*req.BaselineSet, error) {
	return scanBaselineSet(q.db.QueryRowContext(ctx, `SELECT `+baselineSetColumns+` FROM baseline_sets WHERE id = ?`, id))
}

func (q *queries) ListBaselineSets(ctx context.Context) ([]*req.BaselineSet, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+baselineSetColumns+` FROM baseline_sets ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBaselineSet)
}

func scanBaselineSet(row scanner) (*req.BaselineSet, error) {
	var bs req.BaselineSet
	if err := row.Scan(&bs.ID, &bs.Name, &bs.Version, &bs.Description, &bs.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &bs, nil
}

func (q *queries) InsertBaseline(ctx context.Context, b *req.Baseline) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO baselines (`+baselineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ModuleID, b.Name, b.Description, nullString(b.BaselineSetID), b.Locked, b.CreatedAt)
	return err
}

func (q *queries) InsertBaselineEntry(ctx context.Context, e *req.BaselineEntry) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO baseline_entries (baseline_id, object_id, version, ordinal) VALUES (?, ?, ?, ?)`,
		e.BaselineID, e.ObjectID, e.Version, e.Ordinal)
	return err
}

func (q *queries) FindBaseline(ctx context.Context, id string) (*req.Baseline, error) {
	return scanBaseline(q.db.QueryRowContext(ctx, `SELECT `+baselineColumns+` FROM baselines WHERE id = ?`, id))
}

func (q *queries) ListBaselines(ctx context.Context, moduleID string) ([]*req.Baseline, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+baselineColumns+` FROM baselines WHERE module_id = ? ORDER BY created_at, rowid`, moduleID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBaseline)
}

func (q *queries) ListBaselinesInSet(ctx context.Context, setID string) ([]*req.Baseline, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+baselineColumns+` FROM baselines WHERE baseline_set_id = ? ORDER BY created_at, rowid`, setID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBaseline)
}

func (q *queries) ListBaselineEntries(ctx context.Context, baselineID string) ([]req.BaselineEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT baseline_id, object_id, version, ordinal FROM baseline_entries WHERE baseline_id = ? ORDER BY ordinal`,
		baselineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []req.BaselineEntry{}
	for rows.Next() {
		var e req.BaselineEntry
		if err := rows.Scan(&e.BaselineID, &e.ObjectID, &e.Version, &e.Ordinal); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *queries) DeleteBaseline(ctx context.Context, id string) error {
	// Entries and archive rows cascade.
	_, err := q.db.ExecContext(ctx, `DELETE FROM baselines WHERE id = ?`, id)
	return err
}

func scanBaseline(row scanner) (*req.Baseline, error) {
	var b req.Baseline
	var setID sql.NullString
	if err := row.Scan(&b.ID, &b.ModuleID, &b.Name, &b.Description, &setID, &b.Locked, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	b.BaselineSetID = fromNullString(setID)
	return &b, nil
}

// Baseline archives

const archiveColumns = `id, baseline_id, checksum, vault, encrypted, size, created_at`

func (q *queries) InsertBaselineArchive(ctx context.Context, a *req.BaselineArchive) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO baseline_archives (`+archiveColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.BaselineID, a.Checksum, a.Vault, a.Encrypted, a.Size, a.CreatedAt)
	return err
}

func (q *queries) FindBaselineArchive(ctx context.Context, checksum string) (*req.BaselineArchive, error) {
	return scanArchive(q.db.QueryRowContext(ctx,
		`SELECT `+archiveColumns+` FROM baseline_archives WHERE checksum = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		checksum))
}

func (q *queries) ListBaselineArchives(ctx context.Context, baselineID string) ([]*req.BaselineArchive, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+archiveColumns+` FROM baseline_archives WHERE baseline_id = ? ORDER BY created_at, rowid`, baselineID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanArchive)
}

func scanArchive(row scanner) (*req.BaselineArchive, error) {
	var a req.BaselineArchive
	if err := row.Scan(&a.ID, &a.BaselineID, &a.Checksum, &a.Vault, &a.Encrypted, &a.Size, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &a, nil
}

// Scripts

const scriptColumns = `id, module_id, name, script_type, hook_point, source, enabled, created_at, updated_at`

func (q *queries) InsertScript(ctx context.Context, s *req.Script) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO scripts (`+scriptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ModuleID, s.Name, string(s.Type), nullHook(s.Hook), s.Source, s.Enabled, s.CreatedAt, s.UpdatedAt)
	return err
}

func (q *queries) UpdateScript(ctx context.Context, s *req.Script) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE scripts SET name = ?, hook_point = ?, source = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		s.Name, nullHook(s.Hook), s.Source, s.Enabled, s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "script", s.ID)
}

func (q *queries) FindScript(ctx context.Context, id string) (*req.Script, error) {
	return scanScript(q.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE id = ?`, id))
}

func (q *queries) ListScripts(ctx context.Context, moduleID string) ([]*req.Script, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+scriptColumns+` FROM scripts WHERE module_id = ? ORDER BY created_at, rowid`, moduleID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanScript)
}

func (q *queries) ListTriggers(ctx context.Context, moduleID string, hook req.HookPoint) ([]*req.Script, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+scriptColumns+` FROM scripts
		 WHERE module_id = ? AND script_type = ? AND hook_point = ? AND enabled = 1
		 ORDER BY created_at, rowid`,
		moduleID, string(req.ScriptTrigger), string(hook))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanScript)
}

func (q *queries) DeleteScript(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM scripts WHERE id = ?`, id)
	return err
}

func scanScript(row scanner) (*req.Script, error) {
	var s req.Script
	var typ string
	var hook sql.NullString
	err := row.Scan(&s.ID, &s.ModuleID, &s.Name, &typ, &hook, &s.Source, &s.Enabled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	s.Type = req.ScriptType(typ)
	s.Hook = req.HookPoint(hook.String)
	return &s, nil
}

// Helpers

// collect scans every row and closes rows. It always returns a non-nil slice.
func collect[T any](rows *sql.Rows, scan func(scanner) (*T, error)) ([]*T, error) {
	defer rows.Close()
	out := []*T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: no rows updated", kind, id)
	}
	return nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json column: %w", err)
	}
	return string(b), nil
}

func decodeAttributes(s string) (req.Attributes, error) {
	attrs := req.Attributes{}
	if s == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(s), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func nonNilAttributes(a req.Attributes) req.Attributes {
	if a == nil {
		return req.Attributes{}
	}
	return a
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullHook(h req.HookPoint) sql.NullString {
	if h == req.HookNone {
		return sql.NullString{}
	}
	return sql.NullString{String: string(h), Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
