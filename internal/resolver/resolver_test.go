// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"fibr-cli/internal/module"
	"fibr-cli/internal/toolcheck"

	"github.com/charmbracelet/log"
)

// fakeChecker serves canned results keyed by tool name and records every
// tool it was asked about. Tools without a canned result come back not
// installed.
type fakeChecker struct {
	mu      sync.Mutex
	results map[string]toolcheck.Result
	calls   []string
}

func (f *fakeChecker) BatchCheck(_ context.Context, tools map[string]toolcheck.Config, _ int, _ time.Duration) map[string]toolcheck.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]toolcheck.Result, len(tools))
	for name := range tools {
		f.calls = append(f.calls, name)
		res, ok := f.results[name]
		if !ok {
			res = toolcheck.Result{Status: toolcheck.StatusNotInstalled, Detail: "not found"}
		}
		out[name] = res
	}
	return out
}

func (f *fakeChecker) set(name string, res toolcheck.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = res
}

func (f *fakeChecker) checked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeExpander hands out nested chains keyed by parent ID.
type fakeExpander struct {
	nested map[module.ID][]*module.Module
}

func (f *fakeExpander) ExpandChains(parent *module.Module) ([]*module.Module, error) {
	return f.nested[parent.ID], nil
}

// fakeInstaller records install calls and optionally flips the checker's
// answer for the installed tool.
type fakeInstaller struct {
	mu      sync.Mutex
	calls   []string
	err     error
	onEmpty func(tool string)
}

func (f *fakeInstaller) Install(_ context.Context, tool string, _ toolcheck.Config) error {
	f.mu.Lock()
	f.calls = append(f.calls, tool)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.onEmpty != nil {
		f.onEmpty(tool)
	}
	return nil
}

func (f *fakeInstaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStore struct {
	entries map[string]toolcheck.Result
	stored  map[string]toolcheck.Result
}

func (f *fakeStore) Lookup(tool string) (toolcheck.Result, bool) {
	res, ok := f.entries[tool]
	return res, ok
}

func (f *fakeStore) StoreAll(results map[string]toolcheck.Result) {
	f.stored = results
}

func installed() toolcheck.Result {
	return toolcheck.Result{Installed: true, ValidVersion: true, Status: toolcheck.StatusInstalled}
}

func newModule(id string, kind module.Kind, deps ...string) *module.Module {
	m := &module.Module{ID: module.ID(id), Kind: kind, Enabled: true}
	for _, d := range deps {
		m.Deps = append(m.Deps, module.ID(d))
	}
	return m
}

func newResolver(t *testing.T, reg *module.Registry, checker ToolChecker, opts Options, options ...Option) *Resolver {
	t.Helper()
	options = append(options, WithLogger(log.New(io.Discard)))
	return New(reg, checker, &fakeExpander{}, opts, options...)
}

func register(t *testing.T, reg *module.Registry, mods ...*module.Module) {
	t.Helper()
	for _, m := range mods {
		if err := reg.Register(m); err != nil {
			t.Fatalf("Register(%s): %v", m.ID, err)
		}
	}
}

func moduleStatus(t *testing.T, rep *Report, id string) ModuleStatus {
	t.Helper()
	for _, ms := range rep.Modules {
		if ms.ID == module.ID(id) {
			return ms
		}
	}
	t.Fatalf("module %s not in report", id)
	return ModuleStatus{}
}

func TestResolve_DependencyOrder(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry()
	register(t, reg,
		newModule("core", module.KindFiber),
		newModule("db", module.KindFiber, "core"),
	)

	r := newResolver(t, reg, &fakeChecker{results: map[string]toolcheck.Result{}}, Options{})
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	core := moduleStatus(t, rep, "core")
	db := moduleStatus(t, rep, "db")
	if core.State != module.StateLoaded || db.State != module.StateLoaded {
		t.Fatalf("states: core=%s db=%s", core.State, db.State)
	}
	if core.Pass != 1 {
		t.Errorf("core loaded in pass %d, want 1", core.Pass)
	}
	if db.Pass != 2 {
		t.Errorf("db loaded in pass %d, want 2", db.Pass)
	}
}

func TestResolve_MissingToolFailsModule(t *testing.T) {
	t.Parallel()

	migrate := newModule("db:migrate", module.KindChain, "db")
	migrate.Tools = map[string]toolcheck.Config{
		"psql": {CheckCommand: "psql --version"},
	}
	reg := module.NewRegistry()
	register(t, reg, newModule("db", module.KindFiber), migrate)

	checker := &fakeChecker{results: map[string]toolcheck.Result{}}
	r := newResolver(t, reg, checker, Options{})
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if got := moduleStatus(t, rep, "db").State; got != module.StateLoaded {
		t.Fatalf("db state = %s, want loaded", got)
	}
	ms := moduleStatus(t, rep, "db:migrate")
	if ms.State != module.StateFailed {
		t.Fatalf("db:migrate state = %s, want failed", ms.State)
	}
	if !strings.HasPrefix(ms.Reason, ReasonUnresolved) || !strings.Contains(ms.Reason, "psql") {
		t.Errorf("reason = %q, want %s listing psql", ms.Reason, ReasonUnresolved)
	}
}

func TestResolve_DisabledSkipsEvaluation(t *testing.T) {
	t.Parallel()

	fiberX := newModule("fiberx", module.KindFiber)
	fiberX.Enabled = false
	fiberX.Tools = map[string]toolcheck.Config{
		"terraform": {CheckCommand: "terraform version"},
	}
	reg := module.NewRegistry()
	register(t, reg, fiberX, newModule("fibery", module.KindFiber, "fiberx"))

	checker := &fakeChecker{results: map[string]toolcheck.Result{}}
	r := newResolver(t, reg, checker, Options{})
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ms := moduleStatus(t, rep, "fiberx")
	if ms.State != module.StateDisabled || ms.Reason != ReasonDisabled {
		t.Fatalf("fiberx = %s (%q), want disabled", ms.State, ms.Reason)
	}
	if len(checker.checked()) != 0 {
		t.Errorf("disabled module's tool was checked: %v", checker.checked())
	}
	// A dependent of a disabled module can never load.
	dep := moduleStatus(t, rep, "fibery")
	if dep.State != module.StateFailed || !strings.Contains(dep.Reason, "fiberx") {
		t.Errorf("fibery = %s (%q), want failed listing fiberx", dep.State, dep.Reason)
	}
}

func TestResolve_CycleFails(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry()
	register(t, reg,
		newModule("a", module.KindFiber, "b"),
		newModule("b", module.KindFiber, "a"),
	)

	r := newResolver(t, reg, &fakeChecker{results: map[string]toolcheck.Result{}}, Options{})
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	a := moduleStatus(t, rep, "a")
	b := moduleStatus(t, rep, "b")
	if a.State != module.StateFailed || b.State != module.StateFailed {
		t.Fatalf("states: a=%s b=%s, want both failed", a.State, b.State)
	}
	if !strings.Contains(a.Reason, "b") || !strings.Contains(b.Reason, "a") {
		t.Errorf("reasons: a=%q b=%q", a.Reason, b.Reason)
	}
}

func TestResolve_TerminationBound(t *testing.T) {
	t.Parallel()

	// A linear chain needs one pass per link; the pass count must never
	// exceed the module count.
	reg := module.NewRegistry()
	ids := []string{"m1", "m2", "m3", "m4", "m5"}
	register(t, reg, newModule(ids[0], module.KindFiber))
	for i := 1; i < len(ids); i++ {
		register(t, reg, newModule(ids[i], module.KindFiber, ids[i-1]))
	}

	r := newResolver(t, reg, &fakeChecker{results: map[string]toolcheck.Result{}}, Options{})
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, id := range ids {
		if got := moduleStatus(t, rep, id).State; got != module.StateLoaded {
			t.Fatalf("%s state = %s, want loaded", id, got)
		}
	}
	if rep.Passes > reg.Len() {
		t.Errorf("used %d passes for %d modules", rep.Passes, reg.Len())
	}
}

func TestResolve_NestedChainExpansion(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry()
	migrate := newModule("db:migrate", module.KindChain, "db")
	migrate.Dir = "/modules/db/chains/migrate"
	register(t, reg, newModule("db", module.KindFiber), migrate)

	seed := newModule("db:migrate:seed", module.KindChain, "db:migrate")
	expander := &fakeExpander{nested: map[module.ID][]*module.Module{
		"db:migrate": {seed},
	}}

	r := New(reg, &fakeChecker{results: map[string]toolcheck.Result{}}, expander, Options{},
		WithLogger(log.New(io.Discard)))
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ms := moduleStatus(t, rep, "db:migrate:seed")
	if ms.State != module.StateLoaded {
		t.Fatalf("nested chain state = %s, want loaded", ms.State)
	}
	if ms.Pass <= moduleStatus(t, rep, "db:migrate").Pass {
		t.Errorf("nested chain loaded in pass %d, parent in pass %d", ms.Pass, moduleStatus(t, rep, "db:migrate").Pass)
	}
}

func TestResolve_InstallThenRecheck(t *testing.T) {
	t.Parallel()

	m := newModule("infra", module.KindFiber)
	m.Tools = map[string]toolcheck.Config{
		"kubectl": {CheckCommand: "kubectl version --client", Install: toolcheck.InstallBrew, InstallSpec: "kubectl"},
	}
	reg := module.NewRegistry()
	register(t, reg, m)

	checker := &fakeChecker{results: map[string]toolcheck.Result{}}
	installer := &fakeInstaller{onEmpty: func(tool string) {
		checker.set(tool, installed())
	}}
	r := newResolver(t, reg, checker, Options{Install: true}, WithInstaller(installer))
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if got := moduleStatus(t, rep, "infra").State; got != module.StateLoaded {
		t.Fatalf("infra state = %s, want loaded after install", got)
	}
	if installer.count() != 1 {
		t.Errorf("installer called %d times, want 1", installer.count())
	}
}

func TestResolve_InstallFailureTriedOnce(t *testing.T) {
	t.Parallel()

	m := newModule("infra", module.KindFiber)
	m.Tools = map[string]toolcheck.Config{
		"kubectl": {CheckCommand: "kubectl version --client", Install: toolcheck.InstallBrew, InstallSpec: "kubectl"},
	}
	reg := module.NewRegistry()
	register(t, reg, m)

	installer := &fakeInstaller{err: errors.New("brew exploded")}
	r := newResolver(t, reg, &fakeChecker{results: map[string]toolcheck.Result{}},
		Options{Install: true}, WithInstaller(installer))
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ms := moduleStatus(t, rep, "infra")
	if ms.State != module.StateFailed || !strings.Contains(ms.Reason, "kubectl") {
		t.Fatalf("infra = %s (%q), want failed listing kubectl", ms.State, ms.Reason)
	}
	if installer.count() != 1 {
		t.Errorf("failed install retried: %d calls", installer.count())
	}
}

func TestResolve_OptionalToolMissing(t *testing.T) {
	t.Parallel()

	m := newModule("dev", module.KindFiber)
	m.Tools = map[string]toolcheck.Config{
		"shellcheck": {CheckCommand: "shellcheck --version", Optional: true},
	}
	reg := module.NewRegistry()
	register(t, reg, m)

	r := newResolver(t, reg, &fakeChecker{results: map[string]toolcheck.Result{}}, Options{})
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := moduleStatus(t, rep, "dev").State; got != module.StateLoaded {
		t.Errorf("dev state = %s, want loaded despite missing optional tool", got)
	}
}

func TestResolve_StatusStoreShortCircuitsCheck(t *testing.T) {
	t.Parallel()

	m := newModule("db", module.KindFiber)
	m.Tools = map[string]toolcheck.Config{
		"psql": {CheckCommand: "psql --version"},
	}
	reg := module.NewRegistry()
	register(t, reg, m)

	checker := &fakeChecker{results: map[string]toolcheck.Result{}}
	store := &fakeStore{entries: map[string]toolcheck.Result{"psql": installed()}}
	r := newResolver(t, reg, checker, Options{}, WithStatusStore(store))
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if got := moduleStatus(t, rep, "db").State; got != module.StateLoaded {
		t.Fatalf("db state = %s, want loaded from cached status", got)
	}
	if len(checker.checked()) != 0 {
		t.Errorf("checker called for cached tool: %v", checker.checked())
	}
	if _, ok := store.stored["psql"]; !ok {
		t.Error("resolver did not write statuses back to the store")
	}
}

type failingActivator struct{}

func (failingActivator) Activate(_ context.Context, m *module.Module) error {
	if m.ID == "db" {
		return errors.New("init script exited 1")
	}
	return nil
}

func TestResolve_ActivationFailure(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry()
	register(t, reg, newModule("core", module.KindFiber), newModule("db", module.KindFiber))

	r := newResolver(t, reg, &fakeChecker{results: map[string]toolcheck.Result{}},
		Options{}, WithActivator(failingActivator{}))
	rep, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ms := moduleStatus(t, rep, "db")
	if ms.State != module.StateFailed || !strings.Contains(ms.Reason, "activation failed") {
		t.Errorf("db = %s (%q), want activation failure", ms.State, ms.Reason)
	}
	if got := moduleStatus(t, rep, "core").State; got != module.StateLoaded {
		t.Errorf("core state = %s, want loaded", got)
	}
}

func TestResolve_Canceled(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry()
	register(t, reg, newModule("core", module.KindFiber))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newResolver(t, reg, &fakeChecker{results: map[string]toolcheck.Result{}}, Options{})
	if _, err := r.Resolve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve on canceled context: %v", err)
	}
}
