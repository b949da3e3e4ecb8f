package req

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// CreateScriptInput holds the fields of a new script. Hook is required for
// triggers and must be empty otherwise. Enabled defaults to true.
type CreateScriptInput struct {
	ModuleID string     `validate:"required"`
	Name     string     `validate:"required,max=200"`
	Type     ScriptType `validate:"scripttype"`
	Hook     HookPoint  `validate:"hookpoint"`
	Source   string     `validate:"required"`
	Enabled  *bool
}

// UpdateScriptInput is a partial script update; nil fields are unchanged.
type UpdateScriptInput struct {
	Name    *string    `validate:"omitempty,min=1,max=200"`
	Hook    *HookPoint `validate:"omitempty,hookpoint"`
	Source  *string    `validate:"omitempty,min=1"`
	Enabled *bool
}

// TestScriptInput selects the object a test run binds as obj. Object, when
// set, is used as-is as a mock; otherwise ObjectID is loaded. Hook
// overrides the trigger's own hook point.
type TestScriptInput struct {
	Object   *Object
	ObjectID string
	Hook     HookPoint
}

// ExecuteResult is the outcome of running an action for real.
type ExecuteResult struct {
	Output           []string `json:"output"`
	Logs             []string `json:"logs"`
	MutationsApplied int      `json:"mutations_applied"`
}

// LayoutResult is one object's computed layout value. Error is set and
// Value empty when the script failed for that object.
type LayoutResult struct {
	ObjectID string `json:"object_id"`
	Value    string `json:"value"`
	Error    string `json:"error,omitempty"`
}

// CreateScript validates and compiles a script before storing it.
func (s *Service) CreateScript(ctx context.Context, in CreateScriptInput) (*Script, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := checkHook(in.Type, in.Hook); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	script := &Script{
		ID:        s.idgen.New(),
		ModuleID:  in.ModuleID,
		Name:      in.Name,
		Type:      in.Type,
		Hook:      in.Hook,
		Source:    in.Source,
		Enabled:   in.Enabled == nil || *in.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.engine.Compile(script); err != nil {
		return nil, validationf("source", "%v", err)
	}

	err := s.database.Update(ctx, func(tx Tx) error {
		if _, err := mustModule(ctx, tx, in.ModuleID); err != nil {
			return err
		}
		if err := tx.InsertScript(ctx, script); err != nil {
			return fmt.Errorf("inserting script: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("script created", "script", script.ID, "name", script.Name, "type", string(script.Type))
	return script, nil
}

// UpdateScript changes a script's name, hook, source or enabled flag.
func (s *Service) UpdateScript(ctx context.Context, id string, in UpdateScriptInput) (*Script, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var script *Script
	err := s.database.Update(ctx, func(tx Tx) error {
		var err error
		script, err = mustScript(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			script.Name = strings.TrimSpace(*in.Name)
		}
		if in.Hook != nil {
			script.Hook = *in.Hook
		}
		if in.Source != nil {
			script.Source = *in.Source
		}
		if in.Enabled != nil {
			script.Enabled = *in.Enabled
		}
		if err := checkHook(script.Type, script.Hook); err != nil {
			return err
		}
		if err := s.engine.Compile(script); err != nil {
			return validationf("source", "%v", err)
		}
		script.UpdatedAt = s.clock.Now()
		if err := tx.UpdateScript(ctx, script); err != nil {
			return fmt.Errorf("updating script: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return script, nil
}

// DeleteScript removes a script.
func (s *Service) DeleteScript(ctx context.Context, id string) error {
	return s.database.Update(ctx, func(tx Tx) error {
		if _, err := mustScript(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.DeleteScript(ctx, id); err != nil {
			return fmt.Errorf("deleting script: %w", err)
		}
		return nil
	})
}

// GetScript returns a script by id.
func (s *Service) GetScript(ctx context.Context, id string) (*Script, error) {
	var script *Script
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		script, err = mustScript(ctx, tx, id)
		return err
	})
	return script, err
}

// ListScripts returns a module's scripts in creation order.
func (s *Service) ListScripts(ctx context.Context, moduleID string) ([]*Script, error) {
	var scripts []*Script
	err := s.database.View(ctx, func(tx Tx) error {
		if _, err := mustModule(ctx, tx, moduleID); err != nil {
			return err
		}
		var err error
		scripts, err = tx.ListScripts(ctx, moduleID)
		if err != nil {
			return fmt.Errorf("listing scripts: %w", err)
		}
		return nil
	})
	return scripts, err
}

// TestScript runs any script as a dry run. Mutations, rejections and
// layout values are reported but nothing is applied.
func (s *Service) TestScript(ctx context.Context, id string, in TestScriptInput) (*ScriptResult, error) {
	script, module, snap, err := s.prepareRun(ctx, id)
	if err != nil {
		return nil, err
	}

	inv := &Invocation{
		Script:    script,
		Hook:      script.Hook,
		Operation: "test",
		Module:    module,
		Snapshot:  snap,
	}
	if script.Type == ScriptAction {
		inv.Operation = operationAction
	}
	if in.Hook != HookNone {
		if script.Type != ScriptTrigger || !in.Hook.Valid() {
			return nil, validationf("hook", "only triggers accept a hook override")
		}
		inv.Hook = in.Hook
	}

	if script.Type != ScriptAction {
		switch {
		case in.Object != nil:
			obj := in.Object.Clone()
			if obj.ModuleID == "" {
				obj.ModuleID = module.ID
			}
			fingerprintObject(obj)
			inv.Object = obj
		case in.ObjectID != "":
			obj := snap.Object(in.ObjectID)
			if obj == nil {
				return nil, notFound("object", in.ObjectID)
			}
			inv.Object = obj.Clone()
		default:
			return nil, validationf("object", "a mock object or object id is required for %s scripts", script.Type)
		}
	}

	res, err := s.engine.Run(ctx, inv)
	if err != nil {
		return nil, err
	}
	if script.Type == ScriptAction && !res.Rejected {
		if err := checkMutationScope(module, snap, res.Mutations); err != nil {
			return nil, err
		}
	}
	s.logger.Info("script tested", "script", script.Name, "mutations", len(res.Mutations), "rejected", res.Rejected)
	return res, nil
}

// ExecuteScript runs an action script and applies its buffered mutations
// atomically through the normal update pipeline, including pre_save
// triggers. Any failure or rejection discards every mutation.
func (s *Service) ExecuteScript(ctx context.Context, id string) (*ExecuteResult, error) {
	script, module, snap, err := s.prepareRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if script.Type != ScriptAction {
		return nil, validationf("script_type", "only action scripts can be executed")
	}
	if !script.Enabled {
		return nil, validationf("enabled", "script %q is disabled", script.Name)
	}

	res, err := s.engine.Run(ctx, &Invocation{
		Script:    script,
		Operation: operationAction,
		Module:    module,
		Snapshot:  snap,
	})
	if err != nil {
		return nil, err
	}
	s.logScriptResult(script, "", res)

	var posts []*postRun
	if len(res.Mutations) > 0 {
		err = s.database.Update(ctx, func(tx Tx) error {
			posts = nil
			return s.applyMutations(ctx, tx, module, res.Mutations, &posts)
		})
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("action executed", "script", script.Name, "mutations", len(res.Mutations))
	for _, p := range posts {
		s.runPostTriggers(ctx, p)
	}

	return &ExecuteResult{
		Output:           res.Output,
		Logs:             res.Logs,
		MutationsApplied: len(res.Mutations),
	}, nil
}

// operationAction is the context.operation seen by action scripts, both
// when executed and when dry run.
const operationAction = "action"

// applyMutations groups mutations per object in first-seen order and
// commits one update per object. Every object must be a live member of
// module; one outside it fails the whole batch.
func (s *Service) applyMutations(ctx context.Context, tx Tx, module *Module, mutations []Mutation, posts *[]*postRun) error {
	var order []string
	grouped := make(map[string][]Mutation)
	for _, m := range mutations {
		if _, ok := grouped[m.ObjectID]; !ok {
			order = append(order, m.ObjectID)
		}
		grouped[m.ObjectID] = append(grouped[m.ObjectID], m)
	}

	for _, objectID := range order {
		current, err := mustLiveObject(ctx, tx, objectID)
		if err != nil {
			return err
		}
		if current.ModuleID != module.ID {
			return outOfModule(module, current)
		}

		pending := current.Clone()
		for _, m := range grouped[objectID] {
			if err := applyMutation(pending, m); err != nil {
				return err
			}
		}
		updated, err := s.commitUpdate(ctx, tx, module, current, pending, false, nil, operationAction)
		if err != nil {
			return err
		}
		post, err := s.preparePostTriggers(ctx, tx, module, updated, HookPostSave, operationAction)
		if err != nil {
			return err
		}
		if post != nil {
			*posts = append(*posts, post)
		}
	}
	return nil
}

// checkMutationScope fails a dry run the way applyMutations would fail
// the real one, using the snapshot in place of the store.
func checkMutationScope(module *Module, snap *Snapshot, mutations []Mutation) error {
	for _, m := range mutations {
		o := snap.Object(m.ObjectID)
		if o == nil {
			return notFound("object", m.ObjectID)
		}
		if o.ModuleID != module.ID {
			return outOfModule(module, o)
		}
	}
	return nil
}

func outOfModule(module *Module, o *Object) error {
	return validationf("mutations", "object %s belongs to module %s, actions of %s may only change their own module", o.ID, o.ModuleID, module.Name)
}

// Layout computes one object's layout value.
func (s *Service) Layout(ctx context.Context, scriptID, objectID string) (string, error) {
	script, module, snap, err := s.prepareRun(ctx, scriptID)
	if err != nil {
		return "", err
	}
	if script.Type != ScriptLayout {
		return "", validationf("script_type", "only layout scripts compute layout values")
	}
	obj := snap.Object(objectID)
	if obj == nil || obj.ModuleID != module.ID {
		return "", notFound("object", objectID)
	}

	res, err := s.engine.Run(ctx, &Invocation{
		Script:    script,
		Operation: "layout",
		Module:    module,
		Object:    obj.Clone(),
		Snapshot:  snap,
	})
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

// BatchLayout computes the layout value of every live object of the
// script's module in level order. Objects are evaluated in parallel, each
// in its own sandbox; a failure only affects that object's entry.
func (s *Service) BatchLayout(ctx context.Context, scriptID string) ([]LayoutResult, error) {
	script, module, snap, err := s.prepareRun(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if script.Type != ScriptLayout {
		return nil, validationf("script_type", "only layout scripts compute layout values")
	}

	objects := snap.Objects()
	results := make([]LayoutResult, len(objects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.LayoutWorkers)
	for i, obj := range objects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = LayoutResult{ObjectID: obj.ID}
			res, err := s.engine.Run(gctx, &Invocation{
				Script:    script,
				Operation: "layout",
				Module:    module,
				Object:    obj.Clone(),
				Snapshot:  snap,
			})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				results[i].Error = err.Error()
				return nil
			}
			results[i].Value = res.Value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("running batch layout: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	s.logger.Info("batch layout complete", "script", script.Name, "objects", len(results), "failed", failed)
	return results, nil
}

// prepareRun loads a script, its module and a snapshot of the module in
// one read transaction.
func (s *Service) prepareRun(ctx context.Context, id string) (*Script, *Module, *Snapshot, error) {
	var script *Script
	var module *Module
	var snap *Snapshot
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		script, err = mustScript(ctx, tx, id)
		if err != nil {
			return err
		}
		module, err = mustModule(ctx, tx, script.ModuleID)
		if err != nil {
			return err
		}
		snap, err = s.loadSnapshot(ctx, tx, module.ID)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return script, module, snap, nil
}

func checkHook(t ScriptType, h HookPoint) error {
	if t == ScriptTrigger && !h.Valid() {
		return validationf("hook", "triggers require a hook point")
	}
	if t != ScriptTrigger && h != HookNone {
		return validationf("hook", "only triggers take a hook point")
	}
	return nil
}

func mustScript(ctx context.Context, tx Tx, id string) (*Script, error) {
	script, err := tx.FindScript(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding script: %w", err)
	}
	if script == nil {
		return nil, notFound("script", id)
	}
	return script, nil
}
