package req

import (
	"context"
	"time"
)

// ScriptType selects how and when a script runs.
type ScriptType string

const (
	ScriptTrigger ScriptType = "trigger"
	ScriptLayout  ScriptType = "layout"
	ScriptAction  ScriptType = "action"
)

// Valid reports whether t is a known script type.
func (t ScriptType) Valid() bool {
	switch t {
	case ScriptTrigger, ScriptLayout, ScriptAction:
		return true
	}
	return false
}

// HookPoint names the mutation phase a trigger is bound to.
type HookPoint string

const (
	HookNone       HookPoint = ""
	HookPreSave    HookPoint = "pre_save"
	HookPostSave   HookPoint = "post_save"
	HookPreDelete  HookPoint = "pre_delete"
	HookPostDelete HookPoint = "post_delete"
	// HookValidate triggers never run on mutations; ValidateModule runs
	// them once per object and reports rejections as issues.
	HookValidate   HookPoint = "validate"
)

// Valid reports whether h is a known hook point. HookNone is not valid.
func (h HookPoint) Valid() bool {
	switch h {
	case HookPreSave, HookPostSave, HookPreDelete, HookPostDelete, HookValidate:
		return true
	}
	return false
}

// Pre reports whether the hook runs before the mutation is applied.
func (h HookPoint) Pre() bool {
	return h == HookPreSave || h == HookPreDelete
}

// CanReject reports whether triggers at h may call reject.
func (h HookPoint) CanReject() bool {
	return h.Pre() || h == HookValidate
}

// Script is an automation unit scoped to a module.
type Script struct {
	ID        string     `json:"id"`
	ModuleID  string     `json:"module_id"`
	Name      string     `json:"name"`
	Type      ScriptType `json:"script_type"`
	Hook      HookPoint  `json:"hook_point,omitempty"`
	Source    string     `json:"source"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Mutation is one buffered store.set call.
type Mutation struct {
	ObjectID string `json:"object_id"`
	Key      string `json:"key"`
	Value    any    `json:"value"`
}

// Invocation describes a single sandboxed script run.
type Invocation struct {
	Script *Script
	Hook   HookPoint
	// Operation is the mutation or call that caused the run, e.g. "create".
	Operation string
	Module    *Module
	// Object is bound as obj for triggers and layouts. Nil for actions.
	Object   *Object
	Snapshot *Snapshot
}

// ScriptResult is everything a finished script produced.
type ScriptResult struct {
	Output    []string   `json:"output"`
	Logs      []string   `json:"logs"`
	Mutations []Mutation `json:"mutations"`
	Rejected  bool       `json:"rejected"`
	Reason    string     `json:"reason,omitempty"`
	Value     string     `json:"value,omitempty"`
}

// ScriptEngine runs scripts in a fresh sandbox per invocation.
// Uncaught errors and exceeded budgets are returned as *ScriptFailureError.
type ScriptEngine interface {
	// Compile checks that source is syntactically valid for its type.
	Compile(script *Script) error
	Run(ctx context.Context, inv *Invocation) (*ScriptResult, error)
}

// Snapshot is the immutable view of the store a script reads from.
type Snapshot struct {
	objects   []*Object
	byID      map[string]*Object
	links     []*Link
	linkTypes map[string]string
}

// NewSnapshot builds a snapshot. objects are the module's live objects in
// level order; external holds live objects of other modules that links
// reach. links and linkTypes may be nil.
func NewSnapshot(objects, external []*Object, links []*Link, linkTypes []*LinkType) *Snapshot {
	s := &Snapshot{
		objects:   objects,
		byID:      make(map[string]*Object, len(objects)+len(external)),
		links:     links,
		linkTypes: make(map[string]string, len(linkTypes)),
	}
	for _, o := range objects {
		s.byID[o.ID] = o
	}
	for _, o := range external {
		s.byID[o.ID] = o
	}
	for _, lt := range linkTypes {
		s.linkTypes[lt.ID] = lt.Name
	}
	return s
}

// Objects returns the module's live objects in level order.
func (s *Snapshot) Objects() []*Object { return s.objects }

// Object returns a live object by id, or nil.
func (s *Snapshot) Object(id string) *Object { return s.byID[id] }

// Links returns every link touching id, or every module link when id is empty.
func (s *Snapshot) Links(id string) []*Link {
	if id == "" {
		return s.links
	}
	var out []*Link
	for _, l := range s.links {
		if l.SourceObjectID == id || l.TargetObjectID == id {
			out = append(out, l)
		}
	}
	return out
}

// LinkTypeName resolves a link type id to its name.
func (s *Snapshot) LinkTypeName(id string) string { return s.linkTypes[id] }
