package req

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// CreateBaselineInput names a new baseline. BaselineSetID optionally
// attaches it to a release set.
type CreateBaselineInput struct {
	ModuleID      string  `validate:"required"`
	Name          string  `validate:"required,max=200"`
	Description   string  `validate:"max=4000"`
	BaselineSetID *string `validate:"omitempty,min=1"`
}

// DiffEntry is one object's content at a recorded version.
type DiffEntry struct {
	ObjectID       string         `json:"object_id" yaml:"object_id"`
	Version        int64          `json:"version" yaml:"version"`
	Heading        string         `json:"heading" yaml:"heading"`
	Body           *string        `json:"body" yaml:"body"`
	Attributes     Attributes     `json:"attributes" yaml:"attributes"`
	Classification Classification `json:"classification" yaml:"classification"`
}

// AttributeChange reports one attribute whose value differs between two
// versions. Before or After is nil when the key is absent on that side.
type AttributeChange struct {
	Key    string `json:"key"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// ModifiedEntry carries both versions of an object present in both
// baselines at different versions, with word and attribute diffs.
type ModifiedEntry struct {
	ObjectID         string            `json:"object_id"`
	Before           DiffEntry         `json:"before"`
	After            DiffEntry         `json:"after"`
	HeadingDiff      []Segment         `json:"heading_diff"`
	BodyDiff         []Segment         `json:"body_diff"`
	AttributeChanges []AttributeChange `json:"attribute_changes"`
}

// BaselineDiff is the result of comparing baseline A to baseline B.
type BaselineDiff struct {
	BaselineA string          `json:"baseline_a"`
	BaselineB string          `json:"baseline_b"`
	Added     []DiffEntry     `json:"added"`
	Removed   []DiffEntry     `json:"removed"`
	Modified  []ModifiedEntry `json:"modified"`
}

// Empty reports whether the two baselines pinned identical versions.
func (d *BaselineDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// CreateBaseline pins the current version of every live object in the
// module, ordered by level, in a single transaction.
func (s *Service) CreateBaseline(ctx context.Context, in CreateBaselineInput) (*Baseline, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var baseline *Baseline
	err := s.database.Update(ctx, func(tx Tx) error {
		module, err := mustModule(ctx, tx, in.ModuleID)
		if err != nil {
			return err
		}
		if in.BaselineSetID != nil {
			set, err := tx.FindBaselineSet(ctx, *in.BaselineSetID)
			if err != nil {
				return fmt.Errorf("finding baseline set: %w", err)
			}
			if set == nil {
				return notFound("baseline set", *in.BaselineSetID)
			}
		}

		objects, err := tx.ListObjects(ctx, module.ID, ObjectFilter{})
		if err != nil {
			return fmt.Errorf("loading objects: %w", err)
		}
		sortByLevel(objects)

		baseline = &Baseline{
			ID:            s.idgen.New(),
			ModuleID:      module.ID,
			Name:          in.Name,
			Description:   in.Description,
			BaselineSetID: cloneString(in.BaselineSetID),
			Locked:        true,
			CreatedAt:     s.clock.Now(),
		}
		if err := tx.InsertBaseline(ctx, baseline); err != nil {
			return fmt.Errorf("inserting baseline: %w", err)
		}

		baseline.Entries = make([]BaselineEntry, 0, len(objects))
		for i, o := range objects {
			e := BaselineEntry{
				BaselineID: baseline.ID,
				ObjectID:   o.ID,
				Version:    o.CurrentVersion,
				Ordinal:    i + 1,
			}
			if err := tx.InsertBaselineEntry(ctx, &e); err != nil {
				return fmt.Errorf("inserting baseline entry: %w", err)
			}
			baseline.Entries = append(baseline.Entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("baseline created", "baseline", baseline.ID, "name", baseline.Name, "entries", len(baseline.Entries))
	return baseline, nil
}

// GetBaseline returns a baseline with its entries in ordinal order.
func (s *Service) GetBaseline(ctx context.Context, id string) (*Baseline, error) {
	var b *Baseline
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		b, err = loadBaseline(ctx, tx, id)
		return err
	})
	return b, err
}

// ListBaselines returns a module's baselines, oldest first, without entries.
func (s *Service) ListBaselines(ctx context.Context, moduleID string) ([]*Baseline, error) {
	var baselines []*Baseline
	err := s.database.View(ctx, func(tx Tx) error {
		if _, err := mustModule(ctx, tx, moduleID); err != nil {
			return err
		}
		var err error
		baselines, err = tx.ListBaselines(ctx, moduleID)
		if err != nil {
			return fmt.Errorf("listing baselines: %w", err)
		}
		return nil
	})
	return baselines, err
}

// DeleteBaseline removes a baseline and its entries. History is untouched.
func (s *Service) DeleteBaseline(ctx context.Context, id string) error {
	err := s.database.Update(ctx, func(tx Tx) error {
		b, err := tx.FindBaseline(ctx, id)
		if err != nil {
			return fmt.Errorf("finding baseline: %w", err)
		}
		if b == nil {
			return notFound("baseline", id)
		}
		if err := tx.DeleteBaseline(ctx, id); err != nil {
			return fmt.Errorf("deleting baseline: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("baseline deleted", "baseline", id)
	return nil
}

// DiffBaselines compares two baselines using only their entries and the
// immutable history, so repeated diffs of the same pair are identical.
// Added and modified follow B's ordinal order; removed follows A's.
func (s *Service) DiffBaselines(ctx context.Context, aID, bID string) (*BaselineDiff, error) {
	diff := &BaselineDiff{
		BaselineA: aID,
		BaselineB: bID,
		Added:     []DiffEntry{},
		Removed:   []DiffEntry{},
		Modified:  []ModifiedEntry{},
	}

	err := s.database.View(ctx, func(tx Tx) error {
		a, err := loadBaseline(ctx, tx, aID)
		if err != nil {
			return err
		}
		b, err := loadBaseline(ctx, tx, bID)
		if err != nil {
			return err
		}

		inA := make(map[string]BaselineEntry, len(a.Entries))
		for _, e := range a.Entries {
			inA[e.ObjectID] = e
		}
		inB := make(map[string]bool, len(b.Entries))

		for _, eb := range b.Entries {
			inB[eb.ObjectID] = true
			ea, ok := inA[eb.ObjectID]
			if !ok {
				entry, err := diffEntry(ctx, tx, eb.ObjectID, eb.Version)
				if err != nil {
					return err
				}
				diff.Added = append(diff.Added, entry)
				continue
			}
			if ea.Version == eb.Version {
				continue
			}
			before, err := diffEntry(ctx, tx, ea.ObjectID, ea.Version)
			if err != nil {
				return err
			}
			after, err := diffEntry(ctx, tx, eb.ObjectID, eb.Version)
			if err != nil {
				return err
			}
			diff.Modified = append(diff.Modified, ModifiedEntry{
				ObjectID:         eb.ObjectID,
				Before:           before,
				After:            after,
				HeadingDiff:      WordDiff(before.Heading, after.Heading),
				BodyDiff:         WordDiff(derefString(before.Body), derefString(after.Body)),
				AttributeChanges: DiffAttributes(before.Attributes, after.Attributes),
			})
		}

		for _, ea := range a.Entries {
			if inB[ea.ObjectID] {
				continue
			}
			entry, err := diffEntry(ctx, tx, ea.ObjectID, ea.Version)
			if err != nil {
				return err
			}
			diff.Removed = append(diff.Removed, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diff, nil
}

// DiffAttributes reports every key in the union of a and b whose values
// differ structurally, sorted by key. Unchanged keys are omitted.
func DiffAttributes(a, b Attributes) []AttributeChange {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	changes := []AttributeChange{}
	for _, k := range sorted {
		av, aok := a[k]
		bv, bok := b[k]
		if aok == bok && reflect.DeepEqual(av, bv) {
			continue
		}
		changes = append(changes, AttributeChange{Key: k, Before: av, After: bv})
	}
	return changes
}

// CreateBaselineSet registers a release label that baselines can join.
func (s *Service) CreateBaselineSet(ctx context.Context, name, version, description string) (*BaselineSet, error) {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" {
		return nil, validationf("name", "is required")
	}
	if version == "" {
		return nil, validationf("version", "is required")
	}

	set := &BaselineSet{
		ID:          s.idgen.New(),
		Name:        name,
		Version:     version,
		Description: description,
		CreatedAt:   s.clock.Now(),
	}
	err := s.database.Update(ctx, func(tx Tx) error {
		if err := tx.InsertBaselineSet(ctx, set); err != nil {
			return fmt.Errorf("inserting baseline set: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("baseline set created", "set", set.ID, "name", set.Name, "version", set.Version)
	return set, nil
}

// GetBaselineSet returns a set with its member baselines.
func (s *Service) GetBaselineSet(ctx context.Context, id string) (*BaselineSet, error) {
	var set *BaselineSet
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		set, err = tx.FindBaselineSet(ctx, id)
		if err != nil {
			return fmt.Errorf("finding baseline set: %w", err)
		}
		if set == nil {
			return notFound("baseline set", id)
		}
		set.Baselines, err = tx.ListBaselinesInSet(ctx, id)
		if err != nil {
			return fmt.Errorf("listing set baselines: %w", err)
		}
		return nil
	})
	return set, err
}

// ListBaselineSets returns all baseline sets, oldest first.
func (s *Service) ListBaselineSets(ctx context.Context) ([]*BaselineSet, error) {
	var sets []*BaselineSet
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		sets, err = tx.ListBaselineSets(ctx)
		if err != nil {
			return fmt.Errorf("listing baseline sets: %w", err)
		}
		return nil
	})
	return sets, err
}

func loadBaseline(ctx context.Context, tx Tx, id string) (*Baseline, error) {
	b, err := tx.FindBaseline(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding baseline: %w", err)
	}
	if b == nil {
		return nil, notFound("baseline", id)
	}
	b.Entries, err = tx.ListBaselineEntries(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing baseline entries: %w", err)
	}
	return b, nil
}

// diffEntry resolves an object's content at a version from history.
func diffEntry(ctx context.Context, tx Tx, objectID string, version int64) (DiffEntry, error) {
	h, err := tx.FindHistoryVersion(ctx, objectID, version)
	if err != nil {
		return DiffEntry{}, fmt.Errorf("finding history for %s v%d: %w", objectID, version, err)
	}
	if h == nil {
		return DiffEntry{}, fmt.Errorf("history missing for %s v%d", objectID, version)
	}
	return DiffEntry{
		ObjectID:       h.ObjectID,
		Version:        h.Version,
		Heading:        h.Heading,
		Body:           h.Body,
		Attributes:     h.Attributes,
		Classification: h.Classification,
	}, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
