package req

import (
	"context"
	"fmt"
)

// postRun is a set of post_* triggers prepared inside a mutation
// transaction and run after it commits.
type postRun struct {
	triggers []*Script
	module   *Module
	object   *Object
	hook     HookPoint
	op       string
	snapshot *Snapshot
}

// runPreTriggers runs enabled triggers at a pre_* hook in creation order.
// Staged set calls on obj are merged into it so later triggers see them.
// The first rejection aborts with a *RejectedError.
func (s *Service) runPreTriggers(ctx context.Context, tx Tx, module *Module, obj *Object, hook HookPoint, op string) error {
	triggers, err := tx.ListTriggers(ctx, module.ID, hook)
	if err != nil {
		return fmt.Errorf("listing %s triggers: %w", hook, err)
	}
	if len(triggers) == 0 {
		return nil
	}

	snap, err := s.loadSnapshot(ctx, tx, module.ID)
	if err != nil {
		return err
	}

	for _, script := range triggers {
		view := obj.Clone()
		fingerprintObject(view)

		res, err := s.engine.Run(ctx, &Invocation{
			Script:    script,
			Hook:      hook,
			Operation: op,
			Module:    module,
			Object:    view,
			Snapshot:  snap,
		})
		if err != nil {
			return err
		}
		s.logScriptResult(script, obj.ID, res)

		if res.Rejected {
			s.logger.Info("mutation rejected", "script", script.Name, "object", obj.ID, "reason", res.Reason)
			return &RejectedError{Script: script.Name, Reason: res.Reason}
		}

		for _, m := range res.Mutations {
			if m.ObjectID != obj.ID || hook == HookPreDelete {
				s.logger.Warn("trigger mutation ignored", "script", script.Name, "object", m.ObjectID, "key", m.Key)
				continue
			}
			if err := applyMutation(obj, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// preparePostTriggers captures the triggers and committed state needed to
// run post_* hooks once the transaction is done.
func (s *Service) preparePostTriggers(ctx context.Context, tx Tx, module *Module, obj *Object, hook HookPoint, op string) (*postRun, error) {
	triggers, err := tx.ListTriggers(ctx, module.ID, hook)
	if err != nil {
		return nil, fmt.Errorf("listing %s triggers: %w", hook, err)
	}
	if len(triggers) == 0 {
		return nil, nil
	}
	snap, err := s.loadSnapshot(ctx, tx, module.ID)
	if err != nil {
		return nil, err
	}
	return &postRun{
		triggers: triggers,
		module:   module,
		object:   obj.Clone(),
		hook:     hook,
		op:       op,
		snapshot: snap,
	}, nil
}

// runPostTriggers runs prepared post_* hooks best-effort. Failures are
// logged and staged set calls are discarded; the mutation already committed.
func (s *Service) runPostTriggers(ctx context.Context, p *postRun) {
	if p == nil {
		return
	}
	for _, script := range p.triggers {
		res, err := s.engine.Run(ctx, &Invocation{
			Script:    script,
			Hook:      p.hook,
			Operation: p.op,
			Module:    p.module,
			Object:    p.object.Clone(),
			Snapshot:  p.snapshot,
		})
		if err != nil {
			s.logger.Error("post trigger failed", "script", script.Name, "object", p.object.ID, "hook", string(p.hook), "error", err)
			continue
		}
		s.logScriptResult(script, p.object.ID, res)
		if len(res.Mutations) > 0 {
			s.logger.Warn("post trigger mutations discarded", "script", script.Name, "count", len(res.Mutations))
		}
	}
}

// loadSnapshot reads the module's live objects, the links touching them,
// and the live objects at the far end of those links.
func (s *Service) loadSnapshot(ctx context.Context, tx Tx, moduleID string) (*Snapshot, error) {
	objects, err := tx.ListObjects(ctx, moduleID, ObjectFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot objects: %w", err)
	}
	sortByLevel(objects)

	inModule := make(map[string]bool, len(objects))
	for _, o := range objects {
		inModule[o.ID] = true
	}

	links, err := tx.ListLinks(ctx, LinkFilter{ModuleID: moduleID})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot links: %w", err)
	}

	var live []*Link
	var external []*Object
	seen := make(map[string]bool)
	for _, l := range links {
		ok := true
		for _, id := range []string{l.SourceObjectID, l.TargetObjectID} {
			if inModule[id] || seen[id] {
				continue
			}
			o, err := tx.FindObject(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("loading linked object: %w", err)
			}
			if o == nil || o.Deleted() {
				ok = false
				continue
			}
			seen[id] = true
			external = append(external, o)
		}
		if ok {
			live = append(live, l)
		}
	}

	linkTypes, err := tx.ListLinkTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading link types: %w", err)
	}

	return NewSnapshot(objects, external, live, linkTypes), nil
}

func (s *Service) logScriptResult(script *Script, objectID string, res *ScriptResult) {
	if len(res.Logs) == 0 && len(res.Output) == 0 {
		return
	}
	l := s.logger.With("script", script.Name, "object", objectID)
	for _, line := range res.Logs {
		l.Info(line)
	}
	for _, line := range res.Output {
		l.Debug(line, "stream", "print")
	}
}
