package req

import (
	"context"
	"fmt"
	"sort"
)

// CreateObjectInput holds the fields of a new object. A nil Position
// appends the object after its last sibling. An empty Classification takes
// the module default.
type CreateObjectInput struct {
	ModuleID       string         `validate:"required"`
	ParentID       *string        `validate:"omitempty,min=1"`
	Position       *float64
	Heading        string         `validate:"max=2000"`
	Body           *string
	Attributes     Attributes
	Classification Classification `validate:"classification"`
	ObjectTypeID   *string
	Reviewed       bool
}

// UpdateObjectInput is a partial update; nil fields are left unchanged.
// Attributes, when non-nil, replaces the attribute map. ClearBody sets the
// body to null and MoveToRoot detaches the object from its parent.
// Reviewed true signs off the resulting content, false withdraws sign-off.
type UpdateObjectInput struct {
	Heading         *string         `validate:"omitempty,max=2000"`
	Body            *string
	ClearBody       bool
	Attributes      Attributes
	Classification  *Classification `validate:"omitempty,classification"`
	ParentID        *string         `validate:"omitempty,min=1"`
	MoveToRoot      bool
	Position        *float64
	ObjectTypeID    *string
	Reviewed        *bool
	ExpectedVersion *int64
}

// CreateObject validates, runs pre_save triggers, and inserts a new object
// at version 1. post_save triggers run after commit.
func (s *Service) CreateObject(ctx context.Context, in CreateObjectInput) (*Object, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	attrs, err := normalizeAttributes(in.Attributes)
	if err != nil {
		return nil, err
	}
	if in.Position != nil {
		if err := validPosition(*in.Position); err != nil {
			return nil, err
		}
	}

	var created *Object
	var post *postRun
	err = s.database.Update(ctx, func(tx Tx) error {
		module, err := mustModule(ctx, tx, in.ModuleID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		obj := &Object{
			ID:             s.idgen.New(),
			ModuleID:       module.ID,
			ParentID:       cloneString(in.ParentID),
			Heading:        in.Heading,
			Body:           cloneString(in.Body),
			Attributes:     attrs,
			Classification: in.Classification,
			ObjectTypeID:   cloneString(in.ObjectTypeID),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if obj.Classification == "" {
			obj.Classification = module.DefaultClassification
		}

		if obj.ParentID != nil {
			if _, err := s.checkParent(ctx, tx, module.ID, *obj.ParentID); err != nil {
				return err
			}
		}

		if in.Position != nil {
			obj.Position = *in.Position
		} else {
			last, ok, err := tx.MaxChildPosition(ctx, module.ID, obj.ParentID)
			if err != nil {
				return fmt.Errorf("finding sibling position: %w", err)
			}
			obj.Position = 1
			if ok {
				obj.Position = last + 1
			}
		}

		if err := s.settings.Schema.ValidateObject(ctx, module, obj); err != nil {
			return err
		}

		if err := s.runPreTriggers(ctx, tx, module, obj, HookPreSave, "create"); err != nil {
			return err
		}

		fingerprintObject(obj)
		obj.CurrentVersion = 1
		if in.Reviewed {
			fp := obj.ContentFingerprint
			obj.ReviewedFingerprint = &fp
		}

		if err := tx.InsertObject(ctx, obj); err != nil {
			return fmt.Errorf("inserting object: %w", err)
		}
		if err := s.appendHistory(ctx, tx, obj, ChangeCreate); err != nil {
			return err
		}
		if err := s.recomputeLevels(ctx, tx, module.ID); err != nil {
			return err
		}

		created, err = mustObject(ctx, tx, obj.ID)
		if err != nil {
			return err
		}
		post, err = s.preparePostTriggers(ctx, tx, module, created, HookPostSave, "create")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("object created", "object", created.ID, "module", created.ModuleID, "level", created.Level)
	s.runPostTriggers(ctx, post)
	return created, nil
}

// UpdateObject applies a partial update as one atomic mutation.
func (s *Service) UpdateObject(ctx context.Context, id string, in UpdateObjectInput) (*Object, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Attributes != nil {
		attrs, err := normalizeAttributes(in.Attributes)
		if err != nil {
			return nil, err
		}
		in.Attributes = attrs
	}
	if in.Position != nil {
		if err := validPosition(*in.Position); err != nil {
			return nil, err
		}
	}
	if in.MoveToRoot && in.ParentID != nil {
		return nil, validationf("parent_id", "cannot both set a parent and move to root")
	}
	if in.ClearBody && in.Body != nil {
		return nil, validationf("body", "cannot both set and clear the body")
	}

	var updated *Object
	var post *postRun
	err := s.database.Update(ctx, func(tx Tx) error {
		current, err := mustLiveObject(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != current.CurrentVersion {
			return conflictf("object %s is at version %d, expected %d", id, current.CurrentVersion, *in.ExpectedVersion)
		}
		module, err := mustModule(ctx, tx, current.ModuleID)
		if err != nil {
			return err
		}

		pending, structural, err := s.mergeUpdate(ctx, tx, current, in)
		if err != nil {
			return err
		}

		updated, err = s.commitUpdate(ctx, tx, module, current, pending, structural, in.Reviewed, "update")
		if err != nil {
			return err
		}
		post, err = s.preparePostTriggers(ctx, tx, module, updated, HookPostSave, "update")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("object updated", "object", updated.ID, "version", updated.CurrentVersion)
	s.runPostTriggers(ctx, post)
	return updated, nil
}

// mergeUpdate applies the input to a copy of current and validates any
// structural change. It reports whether parent or position changed.
func (s *Service) mergeUpdate(ctx context.Context, tx Tx, current *Object, in UpdateObjectInput) (*Object, bool, error) {
	pending := current.Clone()

	if in.Heading != nil {
		pending.Heading = *in.Heading
	}
	if in.Body != nil {
		pending.Body = cloneString(in.Body)
	}
	if in.ClearBody {
		pending.Body = nil
	}
	if in.Attributes != nil {
		pending.Attributes = cloneAttributes(in.Attributes)
	}
	if in.Classification != nil {
		pending.Classification = *in.Classification
	}
	if in.ObjectTypeID != nil {
		pending.ObjectTypeID = cloneString(in.ObjectTypeID)
	}

	structural := false
	if in.Position != nil && *in.Position != current.Position {
		pending.Position = *in.Position
		structural = true
	}
	if in.MoveToRoot && current.ParentID != nil {
		pending.ParentID = nil
		structural = true
	}
	if in.ParentID != nil && (current.ParentID == nil || *current.ParentID != *in.ParentID) {
		if *in.ParentID == current.ID {
			return nil, false, conflictf("object %s cannot be its own parent", current.ID)
		}
		if _, err := s.checkParent(ctx, tx, current.ModuleID, *in.ParentID); err != nil {
			return nil, false, err
		}

		objects, err := tx.ListModuleObjects(ctx, current.ModuleID)
		if err != nil {
			return nil, false, fmt.Errorf("loading module objects: %w", err)
		}
		byID := make(map[string]*Object, len(objects))
		for _, o := range objects {
			byID[o.ID] = o
		}
		if isDescendant(byID, *in.ParentID, current.ID) {
			return nil, false, conflictf("object %s cannot move under its own descendant %s", current.ID, *in.ParentID)
		}

		pending.ParentID = cloneString(in.ParentID)
		structural = true
		if in.Position == nil {
			last, ok, err := tx.MaxChildPosition(ctx, current.ModuleID, pending.ParentID)
			if err != nil {
				return nil, false, fmt.Errorf("finding sibling position: %w", err)
			}
			pending.Position = 1
			if ok {
				pending.Position = last + 1
			}
		}
	}

	return pending, structural, nil
}

// commitUpdate runs steps shared by every update path: schema validation,
// pre_save triggers, fingerprint, version, history, levels and suspect flags.
func (s *Service) commitUpdate(ctx context.Context, tx Tx, module *Module, current, pending *Object, structural bool, reviewed *bool, op string) (*Object, error) {
	if err := s.settings.Schema.ValidateObject(ctx, module, pending); err != nil {
		return nil, err
	}
	if err := s.runPreTriggers(ctx, tx, module, pending, HookPreSave, op); err != nil {
		return nil, err
	}

	fingerprintObject(pending)
	contentChanged := pending.ContentFingerprint != current.ContentFingerprint
	switch {
	case reviewed != nil && *reviewed:
		fp := pending.ContentFingerprint
		pending.ReviewedFingerprint = &fp
	case reviewed != nil && !*reviewed:
		pending.ReviewedFingerprint = nil
	case contentChanged:
		pending.ReviewedFingerprint = nil
	}

	pending.CurrentVersion = current.CurrentVersion + 1
	pending.UpdatedAt = s.clock.Now()

	if err := tx.UpdateObject(ctx, pending); err != nil {
		return nil, fmt.Errorf("updating object: %w", err)
	}
	if err := s.appendHistory(ctx, tx, pending, ChangeUpdate); err != nil {
		return nil, err
	}
	if structural {
		if err := s.recomputeLevels(ctx, tx, module.ID); err != nil {
			return nil, err
		}
	}
	if contentChanged {
		if err := s.refreshSuspect(ctx, tx, pending); err != nil {
			return nil, err
		}
	}

	return mustObject(ctx, tx, pending.ID)
}

// DeleteObject soft-deletes an object and its whole subtree. Each deleted
// object gets a version bump and a delete history row. Links stay in place
// and become dangling.
func (s *Service) DeleteObject(ctx context.Context, id string) error {
	var deleted []*Object
	var post *postRun
	err := s.database.Update(ctx, func(tx Tx) error {
		target, err := mustLiveObject(ctx, tx, id)
		if err != nil {
			return err
		}
		module, err := mustModule(ctx, tx, target.ModuleID)
		if err != nil {
			return err
		}

		if err := s.runPreTriggers(ctx, tx, module, target.Clone(), HookPreDelete, "delete"); err != nil {
			return err
		}

		objects, err := tx.ListModuleObjects(ctx, module.ID)
		if err != nil {
			return fmt.Errorf("loading module objects: %w", err)
		}
		children := make(map[string][]*Object)
		for _, o := range objects {
			if o.ParentID != nil && !o.Deleted() {
				children[*o.ParentID] = append(children[*o.ParentID], o)
			}
		}

		now := s.clock.Now()
		stack := []*Object{target}
		for len(stack) > 0 {
			o := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			o.DeletedAt = &now
			o.UpdatedAt = now
			o.CurrentVersion++
			if err := tx.UpdateObject(ctx, o); err != nil {
				return fmt.Errorf("deleting object %s: %w", o.ID, err)
			}
			if err := s.appendHistory(ctx, tx, o, ChangeDelete); err != nil {
				return err
			}
			deleted = append(deleted, o)

			kids := children[o.ID]
			for i := len(kids) - 1; i >= 0; i-- {
				stack = append(stack, kids[i])
			}
		}

		if err := s.recomputeLevels(ctx, tx, module.ID); err != nil {
			return err
		}

		post, err = s.preparePostTriggers(ctx, tx, module, target, HookPostDelete, "delete")
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("object deleted", "object", id, "cascade", len(deleted)-1)
	s.runPostTriggers(ctx, post)
	return nil
}

// GetObject returns an object by id, including soft-deleted ones.
func (s *Service) GetObject(ctx context.Context, id string) (*Object, error) {
	var o *Object
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		o, err = mustObject(ctx, tx, id)
		return err
	})
	return o, err
}

// ListObjects returns a module's objects in level order.
func (s *Service) ListObjects(ctx context.Context, moduleID string, filter ObjectFilter) ([]*Object, error) {
	if filter.Classification != "" && !filter.Classification.Valid() {
		return nil, validationf("classification", "must be one of normative, informative, heading")
	}
	var objects []*Object
	err := s.database.View(ctx, func(tx Tx) error {
		if _, err := mustModule(ctx, tx, moduleID); err != nil {
			return err
		}
		var err error
		objects, err = tx.ListObjects(ctx, moduleID, filter)
		if err != nil {
			return fmt.Errorf("listing objects: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByLevel(objects)
	return objects, nil
}

// GetObjectHistory returns every recorded version of an object, oldest first.
func (s *Service) GetObjectHistory(ctx context.Context, id string) ([]*ObjectHistory, error) {
	var history []*ObjectHistory
	err := s.database.View(ctx, func(tx Tx) error {
		if _, err := mustObject(ctx, tx, id); err != nil {
			return err
		}
		var err error
		history, err = tx.ListHistory(ctx, id)
		if err != nil {
			return fmt.Errorf("listing history: %w", err)
		}
		return nil
	})
	return history, err
}

// checkParent verifies a prospective parent lives in the same module.
func (s *Service) checkParent(ctx context.Context, tx Tx, moduleID, parentID string) (*Object, error) {
	parent, err := tx.FindObject(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("finding parent: %w", err)
	}
	if parent == nil {
		return nil, validationf("parent_id", "parent object %s does not exist", parentID)
	}
	if parent.ModuleID != moduleID {
		return nil, validationf("parent_id", "parent object %s belongs to another module", parentID)
	}
	if parent.Deleted() {
		return nil, conflictf("parent object %s is deleted", parentID)
	}
	return parent, nil
}

func (s *Service) appendHistory(ctx context.Context, tx Tx, o *Object, change ChangeType) error {
	h := &ObjectHistory{
		ObjectID:       o.ID,
		ModuleID:       o.ModuleID,
		Version:        o.CurrentVersion,
		Heading:        o.Heading,
		Body:           cloneString(o.Body),
		Attributes:     cloneAttributes(o.Attributes),
		Classification: o.Classification,
		ChangeType:     change,
		ChangedBy:      ActorFromContext(ctx),
		ChangedAt:      s.clock.Now(),
	}
	if err := tx.InsertHistory(ctx, h); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

// recomputeLevels rewrites the level of every live object in the module
// whose derived level changed.
func (s *Service) recomputeLevels(ctx context.Context, tx Tx, moduleID string) error {
	objects, err := tx.ListModuleObjects(ctx, moduleID)
	if err != nil {
		return fmt.Errorf("loading module objects: %w", err)
	}
	levels := computeLevels(objects)
	for _, o := range objects {
		level, ok := levels[o.ID]
		if !ok || level == o.Level {
			continue
		}
		if err := tx.UpdateObjectLevel(ctx, o.ID, level); err != nil {
			return fmt.Errorf("updating level of %s: %w", o.ID, err)
		}
	}
	return nil
}

// applyMutation merges one store.set call into a pending object.
// heading, body and classification address fields; any other key is an
// attribute.
func applyMutation(o *Object, m Mutation) error {
	switch m.Key {
	case "":
		return validationf("key", "mutation key is required")
	case "heading":
		h, ok := m.Value.(string)
		if !ok {
			return validationf("heading", "must be a string")
		}
		o.Heading = h
	case "body":
		switch v := m.Value.(type) {
		case nil:
			o.Body = nil
		case string:
			o.Body = &v
		default:
			return validationf("body", "must be a string or null")
		}
	case "classification":
		c, ok := m.Value.(string)
		if !ok || !Classification(c).Valid() {
			return validationf("classification", "must be one of normative, informative, heading")
		}
		o.Classification = Classification(c)
	default:
		v, err := normalizeValue(m.Value)
		if err != nil {
			return validationf(m.Key, "must be JSON-encodable: %v", err)
		}
		if o.Attributes == nil {
			o.Attributes = Attributes{}
		}
		o.Attributes[m.Key] = v
	}
	return nil
}

func sortByLevel(objects []*Object) {
	sort.SliceStable(objects, func(i, j int) bool {
		return compareLevels(objects[i].Level, objects[j].Level) < 0
	})
}
