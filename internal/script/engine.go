// Package script runs user scripts in a goja sandbox.
//
// Each invocation gets a fresh runtime. A bootstrap function seeds the
// frozen globals module, context and obj and the frozen store namespace;
// the host bindings behind store are only reachable through that closure.
package script

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/patrickmn/go-cache"

	"reqstore/internal/req"
)

//go:embed bootstrap.js
var bootstrapSource string

var bootstrapProgram = goja.MustCompile("bootstrap.js", bootstrapSource, true)

// Options bounds every invocation. Zero fields take defaults.
type Options struct {
	// Timeout is the wall-clock budget of one invocation.
	Timeout time.Duration
	// MaxCallStack limits JS call depth.
	MaxCallStack int
	// CacheTTL is how long an unused compiled program stays cached.
	CacheTTL time.Duration
}

const (
	DefaultTimeout      = 2 * time.Second
	DefaultMaxCallStack = 512
	DefaultCacheTTL     = 30 * time.Minute
)

// Engine implements req.ScriptEngine. It is safe for concurrent use; only
// compiled programs are shared between invocations.
type Engine struct {
	opts     Options
	programs *cache.Cache
	logger   req.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options, logger req.Logger) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxCallStack <= 0 {
		opts.MaxCallStack = DefaultMaxCallStack
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if logger == nil {
		logger = req.NewNopLogger()
	}
	return &Engine{
		opts:     opts,
		programs: cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		logger:   logger,
	}
}

// Compile checks the script's syntax and caches the compiled program.
func (e *Engine) Compile(s *req.Script) error {
	_, err := e.program(s)
	return err
}

// Run executes one invocation in a fresh runtime.
func (e *Engine) Run(ctx context.Context, inv *req.Invocation) (*req.ScriptResult, error) {
	s := inv.Script
	prog, err := e.program(s)
	if err != nil {
		return nil, &req.ScriptFailureError{Script: s.Name, Err: err}
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(e.opts.MaxCallStack)

	h := newHost(vm, inv)
	if err := h.bootstrap(); err != nil {
		return nil, &req.ScriptFailureError{Script: s.Name, Err: fmt.Errorf("bootstrapping sandbox: %w", err)}
	}

	timer := time.AfterFunc(e.opts.Timeout, func() {
		vm.Interrupt(fmt.Sprintf("execution budget of %s exceeded", e.opts.Timeout))
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	start := time.Now()
	value, err := vm.RunProgram(prog)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		e.logger.Debug("script failed", "script", s.Name, "elapsed", elapsed, "error", err)
		return nil, &req.ScriptFailureError{Script: s.Name, Err: err}
	}

	res := h.result()
	if s.Type == req.ScriptLayout {
		res.Value = layoutValue(value)
	}
	e.logger.Debug("script finished", "script", s.Name, "type", string(s.Type), "elapsed", elapsed, "mutations", len(res.Mutations))
	return res, nil
}

// program returns the compiled program for a script, compiling on a miss.
// Programs are keyed by a hash of the source so edits never hit stale code.
func (e *Engine) program(s *req.Script) (*goja.Program, error) {
	sum := sha256.Sum256([]byte(s.Source))
	key := hex.EncodeToString(sum[:])
	if p, ok := e.programs.Get(key); ok {
		return p.(*goja.Program), nil
	}

	// User code runs as a function body so layouts can return their value.
	wrapped := "(function () {\n" + s.Source + "\n})()"
	p, err := goja.Compile(s.Name, wrapped, true)
	if err != nil {
		var syntax *goja.CompilerSyntaxError
		if errors.As(err, &syntax) {
			return nil, fmt.Errorf("syntax error: %s", syntax.Error())
		}
		return nil, fmt.Errorf("compiling script: %w", err)
	}
	e.programs.Set(key, p, cache.DefaultExpiration)
	return p, nil
}

// layoutValue coerces a layout's return value to its display string.
// Strings, numbers and booleans convert; anything else is empty.
func layoutValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	switch v.Export().(type) {
	case string, int64, float64, bool:
		return v.String()
	}
	return ""
}
