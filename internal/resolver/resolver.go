// SPDX-License-Identifier: MPL-2.0

// Package resolver drives modules from discovered to active through a
// bounded fixpoint iteration: each pass attempts every still-pending module,
// loading the ones whose module dependencies are loaded and whose
// non-optional tools check out. Nested chains discovered by a successful
// load join the work-list for later passes. When a pass makes no progress,
// everything still pending fails with the unmet names listed — this covers
// both dependency cycles and references to modules that never load, without
// ever looping indefinitely.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fibr-cli/internal/module"
	"fibr-cli/internal/toolcheck"

	"github.com/charmbracelet/log"
)

const (
	// ReasonUnresolved prefixes the failure reason for modules that never
	// resolved.
	ReasonUnresolved = "unresolved-dependency"
	// ReasonDisabled is the terminal reason for user-disabled modules.
	ReasonDisabled = "disabled by configuration"
)

type (
	// ToolChecker is the tool status engine dependency.
	ToolChecker interface {
		BatchCheck(ctx context.Context, tools map[string]toolcheck.Config, concurrency int, timeout time.Duration) map[string]toolcheck.Result
	}

	// ChainExpander enumerates chains nested under a just-loaded module.
	ChainExpander interface {
		ExpandChains(parent *module.Module) ([]*module.Module, error)
	}

	// Installer acquires a missing tool. Invoked only after a tool is
	// confirmed not installed; the resolver decides solely whether to
	// re-check afterward.
	Installer interface {
		Install(ctx context.Context, tool string, cfg toolcheck.Config) error
	}

	// StatusStore persists tool results between runs. Satisfied by
	// *statuscache.Cache.
	StatusStore interface {
		Lookup(tool string) (toolcheck.Result, bool)
		StoreAll(results map[string]toolcheck.Result)
	}

	// Activator performs a module's activation side effects (e.g., running a
	// nested chain's init script). Activation failures fail the module, not
	// the run.
	Activator interface {
		Activate(ctx context.Context, m *module.Module) error
	}

	// Options tunes a resolution run.
	Options struct {
		// Concurrency bounds concurrent tool checks per batch.
		Concurrency int
		// CheckTimeout bounds one tool check.
		CheckTimeout time.Duration
		// Install enables the install-then-recheck extension: a missing
		// installable tool is installed and re-checked once.
		Install bool
	}

	// Resolver is the dependency loader state machine.
	Resolver struct {
		reg       *module.Registry
		checker   ToolChecker
		expander  ChainExpander
		installer Installer
		store     StatusStore
		activator Activator
		logger    *log.Logger
		opts      Options

		// statuses is the run's tool-status view, updated only by
		// whole-entry replacement.
		statuses map[string]toolcheck.Result
		// installTried tracks tools already sent through
		// install-then-recheck, which happens at most once per tool.
		installTried map[string]bool
	}

	// ModuleStatus is one module's final line in the report.
	ModuleStatus struct {
		ID     module.ID
		Kind   module.Kind
		State  module.State
		Reason string
		// Pass is the pass number that reached the terminal state, 0 when
		// the module never left pending inside the loop.
		Pass int
	}

	// Report summarizes a resolution run. The resolver always completes its
	// bounded passes and reports a final status for every module rather than
	// aborting on first failure.
	Report struct {
		Modules []ModuleStatus
		Tools   map[string]toolcheck.Result
		Passes  int
	}
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithInstaller enables install-then-recheck through the given executor.
func WithInstaller(i Installer) Option {
	return func(r *Resolver) { r.installer = i }
}

// WithStatusStore attaches a persisted tool-status store consulted before
// checking and updated after.
func WithStatusStore(s StatusStore) Option {
	return func(r *Resolver) { r.store = s }
}

// WithActivator attaches activation side effects for loading modules.
func WithActivator(a Activator) Option {
	return func(r *Resolver) { r.activator = a }
}

// WithLogger sets the resolver logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New creates a Resolver over a discovered registry.
func New(reg *module.Registry, checker ToolChecker, expander ChainExpander, opts Options, options ...Option) *Resolver {
	r := &Resolver{
		reg:          reg,
		checker:      checker,
		expander:     expander,
		logger:       log.Default().WithPrefix("resolver"),
		opts:         opts,
		statuses:     make(map[string]toolcheck.Result),
		installTried: make(map[string]bool),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Resolve runs the bounded fixpoint loop to completion. It returns an error
// only for cancellation; per-module failures are reported, not returned.
// Evaluation order within a pass is unspecified and must not be relied upon;
// a dependent is only ever loaded in a later pass than its dependencies.
func (r *Resolver) Resolve(ctx context.Context) (*Report, error) {
	passes := 0
	loadedPass := make(map[module.ID]int)

	// Each productive pass resolves at least one module, so the loop cannot
	// need more passes than there are modules; reg.Len() is re-read because
	// the graph grows as nested chains are discovered.
	for passes < r.reg.Len() {
		if err := ctx.Err(); err != nil {
			return r.report(passes, loadedPass), fmt.Errorf("resolution canceled: %w", err)
		}
		passes++

		pending := r.pendingModules()
		if len(pending) == 0 {
			break
		}
		if err := r.ensureToolStatuses(ctx, pending); err != nil {
			return r.report(passes, loadedPass), err
		}

		// Dependency gating uses the states as of pass start, so a
		// dependent always loads in a strictly later pass than its
		// dependencies.
		loaded := r.loadedSet()

		progress := false
		for _, m := range pending {
			if err := ctx.Err(); err != nil {
				return r.report(passes, loadedPass), fmt.Errorf("resolution canceled: %w", err)
			}
			switch r.attempt(ctx, m, loaded) {
			case module.StateLoaded, module.StateDisabled, module.StateFailed:
				progress = true
				loadedPass[m.ID] = passes
			}
		}
		if !progress {
			break
		}
	}

	// Fixpoint reached: everything still pending can never resolve.
	for _, m := range r.pendingModules() {
		unmet := r.unmetNames(m)
		r.reg.SetState(m.ID, module.StateFailed, fmt.Sprintf("%s: %s", ReasonUnresolved, strings.Join(unmet, ", ")))
		r.logger.Debug("module failed at fixpoint", "id", m.ID, "unmet", unmet)
	}

	if r.store != nil {
		r.store.StoreAll(r.statuses)
	}
	return r.report(passes, loadedPass), nil
}

// attempt evaluates one pending module and returns the state it reached in
// this pass (StatePending when unmet conditions leave it for the next pass).
func (r *Resolver) attempt(ctx context.Context, m *module.Module, loaded map[module.ID]bool) module.State {
	// Disabled modules terminate immediately, with no dependency or tool
	// evaluation performed.
	if !m.Enabled {
		r.reg.SetState(m.ID, module.StateDisabled, ReasonDisabled)
		r.logger.Debug("module disabled", "id", m.ID)
		return module.StateDisabled
	}

	for _, dep := range m.Deps {
		if !loaded[dep] {
			return module.StatePending
		}
	}
	if !r.toolsSatisfied(ctx, m) {
		return module.StatePending
	}

	r.reg.SetState(m.ID, module.StateLoading, "")
	if r.activator != nil {
		if err := r.activator.Activate(ctx, m); err != nil {
			r.reg.SetState(m.ID, module.StateFailed, fmt.Sprintf("activation failed: %v", err))
			r.logger.Debug("activation failed", "id", m.ID, "err", err)
			return module.StateFailed
		}
	}
	r.reg.SetState(m.ID, module.StateLoaded, "")
	r.logger.Debug("module loaded", "id", m.ID)

	// A successful load may expose nested chains; register them for
	// subsequent passes. Expansion failures fail nothing: the chains simply
	// stay undiscovered.
	if r.expander != nil {
		nested, err := r.expander.ExpandChains(m)
		if err != nil {
			r.logger.Warn("nested chain expansion failed", "id", m.ID, "err", err)
			return module.StateLoaded
		}
		for _, child := range nested {
			var dup *module.DuplicateError
			if err := r.reg.Register(child); err != nil && !errors.As(err, &dup) {
				r.logger.Warn("nested chain registration failed", "id", child.ID, "err", err)
			}
		}
	}
	return module.StateLoaded
}

// loadedSet snapshots the IDs currently in StateLoaded.
func (r *Resolver) loadedSet() map[module.ID]bool {
	loaded := make(map[module.ID]bool)
	for _, m := range r.reg.All() {
		if m.State == module.StateLoaded {
			loaded[m.ID] = true
		}
	}
	return loaded
}

// toolsSatisfied reports whether every non-optional tool dependency is
// installed with a valid version, running install-then-recheck once per
// missing installable tool when enabled.
func (r *Resolver) toolsSatisfied(ctx context.Context, m *module.Module) bool {
	ok := true
	for name, cfg := range m.Tools {
		if cfg.Optional {
			continue
		}
		res := r.statuses[name]
		if res.Satisfied() {
			continue
		}
		if res.Status == toolcheck.StatusNotInstalled && r.canInstall(name, cfg) {
			res = r.installAndRecheck(ctx, name, cfg)
		}
		if !res.Satisfied() {
			ok = false
		}
	}
	return ok
}

func (r *Resolver) canInstall(name string, cfg toolcheck.Config) bool {
	return r.opts.Install && r.installer != nil && cfg.Install != "" && !r.installTried[name]
}

// installAndRecheck invokes the installer collaborator and re-checks the
// tool exactly once, replacing its status entry whole.
func (r *Resolver) installAndRecheck(ctx context.Context, name string, cfg toolcheck.Config) toolcheck.Result {
	r.installTried[name] = true
	r.logger.Info("installing missing tool", "tool", name, "method", cfg.Install)

	if err := r.installer.Install(ctx, name, cfg); err != nil {
		r.logger.Warn("install failed", "tool", name, "err", err)
		res := toolcheck.Result{Status: toolcheck.StatusError, Detail: fmt.Sprintf("install failed: %v", err)}
		r.statuses[name] = res
		return res
	}

	rechecked := r.checker.BatchCheck(ctx, map[string]toolcheck.Config{name: cfg}, 1, r.opts.CheckTimeout)
	res := rechecked[name]
	r.statuses[name] = res
	return res
}

// ensureToolStatuses fills the run's status view for every tool referenced
// by the given modules: first from the persisted store, then by a bounded
// concurrent batch check of whatever is still unknown.
func (r *Resolver) ensureToolStatuses(ctx context.Context, pending []*module.Module) error {
	need := make(map[string]toolcheck.Config)
	for _, m := range pending {
		if !m.Enabled {
			// Disabled modules are terminal before any tool evaluation.
			continue
		}
		for name, cfg := range m.Tools {
			if _, known := r.statuses[name]; known {
				continue
			}
			if r.store != nil {
				if res, ok := r.store.Lookup(name); ok {
					r.statuses[name] = res
					continue
				}
			}
			need[name] = cfg
		}
	}
	if len(need) == 0 {
		return nil
	}

	results := r.checker.BatchCheck(ctx, need, r.opts.Concurrency, r.opts.CheckTimeout)
	for name, res := range results {
		r.statuses[name] = res
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("resolution canceled: %w", err)
	}
	return nil
}

// unmetNames lists, for a module stuck at the fixpoint, the dependency and
// tool names that kept it pending.
func (r *Resolver) unmetNames(m *module.Module) []string {
	var names []string
	for _, dep := range m.Deps {
		target := r.reg.Get(dep)
		if target == nil || target.State != module.StateLoaded {
			names = append(names, string(dep))
		}
	}
	var tools []string
	for name, cfg := range m.Tools {
		if cfg.Optional {
			continue
		}
		if !r.statuses[name].Satisfied() {
			tools = append(tools, name)
		}
	}
	sort.Strings(tools)
	names = append(names, tools...)
	if len(names) == 0 {
		names = append(names, "unknown")
	}
	return names
}

// pendingModules snapshots the still-pending modules in discovery order.
func (r *Resolver) pendingModules() []*module.Module {
	var out []*module.Module
	for _, m := range r.reg.All() {
		if m.State == module.StatePending {
			out = append(out, m)
		}
	}
	return out
}

// report assembles the final per-module and per-tool view.
func (r *Resolver) report(passes int, loadedPass map[module.ID]int) *Report {
	rep := &Report{
		Tools:  make(map[string]toolcheck.Result, len(r.statuses)),
		Passes: passes,
	}
	for _, m := range r.reg.All() {
		rep.Modules = append(rep.Modules, ModuleStatus{
			ID:     m.ID,
			Kind:   m.Kind,
			State:  m.State,
			Reason: m.Reason,
			Pass:   loadedPass[m.ID],
		})
	}
	for name, res := range r.statuses {
		rep.Tools[name] = res
	}
	return rep
}
