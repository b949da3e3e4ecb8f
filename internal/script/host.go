package script

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"reqstore/internal/req"
)

// host holds the per-invocation state behind the store namespace.
type host struct {
	vm       *goja.Runtime
	inv      *req.Invocation
	output   []string
	logs     []string
	staged   []req.Mutation
	rejected bool
	reason   string
}

func newHost(vm *goja.Runtime, inv *req.Invocation) *host {
	return &host{vm: vm, inv: inv}
}

// moduleView is the module global.
type moduleView struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	RequiredAttributes    []string `json:"required_attributes"`
	DefaultClassification string   `json:"default_classification"`
}

// contextView is the context global.
type contextView struct {
	Hook       string `json:"hook"`
	Operation  string `json:"operation"`
	ScriptType string `json:"script_type"`
	ScriptName string `json:"script_name"`
}

// linkView is a link as scripts see it, with the type resolved to a name.
type linkView struct {
	ID             string         `json:"id"`
	SourceObjectID string         `json:"source_object_id"`
	TargetObjectID string         `json:"target_object_id"`
	LinkTypeID     string         `json:"link_type_id"`
	LinkType       string         `json:"link_type"`
	Attributes     req.Attributes `json:"attributes"`
	Suspect        bool           `json:"suspect"`
}

// bootstrap installs the globals and removes eval.
func (h *host) bootstrap() error {
	setup, err := h.vm.RunProgram(bootstrapProgram)
	if err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(setup)
	if !ok {
		return fmt.Errorf("bootstrap did not evaluate to a function")
	}

	m := h.inv.Module
	moduleJSON, err := json.Marshal(moduleView{
		ID:                    m.ID,
		Name:                  m.Name,
		Description:           m.Description,
		RequiredAttributes:    nonNil(m.RequiredAttributes),
		DefaultClassification: string(m.DefaultClassification),
	})
	if err != nil {
		return fmt.Errorf("encoding module: %w", err)
	}
	contextJSON, err := json.Marshal(contextView{
		Hook:       string(h.inv.Hook),
		Operation:  h.inv.Operation,
		ScriptType: string(h.inv.Script.Type),
		ScriptName: h.inv.Script.Name,
	})
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}
	objJSON := ""
	if h.inv.Object != nil && h.inv.Script.Type != req.ScriptAction {
		b, err := json.Marshal(h.inv.Object)
		if err != nil {
			return fmt.Errorf("encoding object: %w", err)
		}
		objJSON = string(b)
	}

	if _, err := fn(goja.Undefined(),
		h.bindings(),
		h.vm.ToValue(string(moduleJSON)),
		h.vm.ToValue(string(contextJSON)),
		h.vm.ToValue(objJSON),
	); err != nil {
		return err
	}

	if err := h.vm.GlobalObject().Delete("eval"); err != nil {
		return fmt.Errorf("removing eval: %w", err)
	}
	return nil
}

// bindings builds the host object passed to the bootstrap function. It
// exchanges JSON strings so no Go value is ever exposed to scripts.
func (h *host) bindings() *goja.Object {
	o := h.vm.NewObject()
	o.Set("objects", h.objects)
	o.Set("getObject", h.getObject)
	o.Set("links", h.links)
	o.Set("set", h.set)
	o.Set("reject", h.reject)
	o.Set("log", func(call goja.FunctionCall) goja.Value {
		h.logs = append(h.logs, call.Argument(0).String())
		return goja.Undefined()
	})
	o.Set("print", func(call goja.FunctionCall) goja.Value {
		h.output = append(h.output, call.Argument(0).String())
		return goja.Undefined()
	})
	return o
}

func (h *host) objects(call goja.FunctionCall) goja.Value {
	if h.inv.Script.Type == req.ScriptTrigger {
		panic(h.vm.NewTypeError("store.objects() is not available to trigger scripts"))
	}
	objects := h.inv.Snapshot.Objects()
	if objects == nil {
		objects = []*req.Object{}
	}
	return h.encode(objects)
}

func (h *host) getObject(call goja.FunctionCall) goja.Value {
	o := h.inv.Snapshot.Object(call.Argument(0).String())
	if o == nil {
		return h.vm.ToValue("")
	}
	return h.encode(o)
}

func (h *host) links(call goja.FunctionCall) goja.Value {
	snap := h.inv.Snapshot
	links := snap.Links(call.Argument(0).String())
	views := make([]linkView, 0, len(links))
	for _, l := range links {
		views = append(views, linkView{
			ID:             l.ID,
			SourceObjectID: l.SourceObjectID,
			TargetObjectID: l.TargetObjectID,
			LinkTypeID:     l.LinkTypeID,
			LinkType:       snap.LinkTypeName(l.LinkTypeID),
			Attributes:     l.Attributes,
			Suspect:        l.Suspect,
		})
	}
	return h.encode(views)
}

// set stages a mutation. Layout scripts may call it but nothing is kept.
func (h *host) set(call goja.FunctionCall) goja.Value {
	objectID := call.Argument(0).String()
	key := call.Argument(1).String()
	if objectID == "" {
		panic(h.vm.NewTypeError("store.set() requires an object id"))
	}
	if key == "" {
		panic(h.vm.NewTypeError("store.set() requires a key"))
	}
	var value any
	if err := json.Unmarshal([]byte(call.Argument(2).String()), &value); err != nil {
		panic(h.vm.NewTypeError(fmt.Sprintf("store.set() value is not serializable: %v", err)))
	}
	if h.inv.Script.Type == req.ScriptLayout {
		return goja.Undefined()
	}
	h.staged = append(h.staged, req.Mutation{ObjectID: objectID, Key: key, Value: value})
	return goja.Undefined()
}

// reject marks the mutation as vetoed. The first reason wins and the
// script keeps running.
func (h *host) reject(call goja.FunctionCall) goja.Value {
	if h.inv.Script.Type != req.ScriptTrigger || !h.inv.Hook.CanReject() {
		panic(h.vm.NewTypeError("store.reject() is only available to pre_* and validate triggers"))
	}
	if !h.rejected {
		h.rejected = true
		h.reason = call.Argument(0).String()
		if h.reason == "" {
			h.reason = "rejected by script"
		}
	}
	return goja.Undefined()
}

func (h *host) encode(v any) goja.Value {
	b, err := json.Marshal(v)
	if err != nil {
		panic(h.vm.NewGoError(fmt.Errorf("encoding value: %w", err)))
	}
	return h.vm.ToValue(string(b))
}

func (h *host) result() *req.ScriptResult {
	res := &req.ScriptResult{
		Output:    nonNil(h.output),
		Logs:      nonNil(h.logs),
		Mutations: h.staged,
		Rejected:  h.rejected,
		Reason:    h.reason,
	}
	if res.Mutations == nil {
		res.Mutations = []req.Mutation{}
	}
	return res
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
