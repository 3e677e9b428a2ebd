// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"fmt"
	"os"

	"fibr-cli/internal/config"
	"fibr-cli/internal/conftree"
	"fibr-cli/internal/module"

	"github.com/charmbracelet/log"
)

// Discovery builds the module graph from the on-disk layout.
type Discovery struct {
	cfg    *config.Config
	lister Lister
	reader ConfigReader
	logger *log.Logger
}

// Option configures a Discovery.
type Option func(*Discovery)

// WithLister substitutes the directory-listing collaborator.
func WithLister(l Lister) Option {
	return func(d *Discovery) { d.lister = l }
}

// WithReader substitutes the structured-config reader collaborator.
func WithReader(r ConfigReader) Option {
	return func(d *Discovery) { d.reader = r }
}

// WithLogger sets the discovery logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Discovery) { d.logger = logger }
}

// New creates a Discovery with production collaborators.
func New(cfg *config.Config, opts ...Option) *Discovery {
	d := &Discovery{
		cfg:    cfg,
		lister: NewDirLister(),
		reader: NewYAMLReader(),
		logger: log.Default().WithPrefix("discovery"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root resolves the project root: the configured one, or the working
// directory. Inability to locate the root is fatal to the run.
func (d *Discovery) Root() (string, error) {
	root := d.cfg.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot determine working directory: %w", err)
		}
		root = wd
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("cannot locate project root %s", root)
	}
	return root, nil
}

// Discover enumerates fibers and their first-level chains and registers them
// in a fresh registry, in discovery order. Modules with invalid tool
// declarations are registered already failed; sibling modules are unaffected.
// Chains nested deeper are discovered lazily via ExpandChains once their
// owner loads.
func (d *Discovery) Discover(root string) (*module.Registry, error) {
	reg := module.NewRegistry()

	fibers, err := d.lister.Fibers(root)
	if err != nil {
		return nil, err
	}
	if len(fibers) == 0 {
		return nil, fmt.Errorf("no modules found under project root %s", root)
	}

	for _, fc := range fibers {
		fiber := d.buildModule(module.ID(fc.Name), module.KindFiber, fc)
		if err := reg.Register(fiber); err != nil {
			return nil, err
		}
		d.logger.Debug("discovered fiber", "id", fiber.ID, "state", fiber.State)

		chains, err := d.lister.Chains(fc.Dir)
		if err != nil {
			return nil, err
		}
		for _, cc := range chains {
			chain := d.buildModule(fiber.ID.Child(cc.Name), module.KindChain, cc)
			if err := reg.Register(chain); err != nil {
				return nil, err
			}
			d.logger.Debug("discovered chain", "id", chain.ID, "state", chain.State)
		}
	}
	return reg, nil
}

// ExpandChains enumerates the chains nested directly inside a just-loaded
// chain's directory. Only directory-backed chains can nest; flat single-file
// chains carry no directory of their own and expand to nothing.
func (d *Discovery) ExpandChains(parent *module.Module) ([]*module.Module, error) {
	if parent.Kind != module.KindChain || parent.Dir == "" {
		return nil, nil
	}

	cands, err := d.lister.NestedChains(parent.Dir)
	if err != nil {
		return nil, err
	}
	var out []*module.Module
	for _, cc := range cands {
		out = append(out, d.buildModule(parent.ID.Child(cc.Name), module.KindChain, cc))
	}
	return out, nil
}

// buildModule loads a candidate's effective configuration (defaults <
// declaration file < user override) and extracts it into a module record.
// A broken declaration file fails the module, not the discovery pass.
func (d *Discovery) buildModule(id module.ID, kind module.Kind, cand Candidate) *module.Module {
	layers := []conftree.Tree{defaultDecl()}

	if cand.DeclFile != "" {
		decl, err := d.reader.Read(cand.DeclFile)
		if err != nil {
			return &module.Module{
				ID: id, Kind: kind, State: module.StateFailed,
				Reason: err.Error(), Dir: cand.Dir, Config: defaultDecl(),
			}
		}
		layers = append(layers, decl)
	}

	if override := d.cfg.OverrideTree(id.Segments()); override != nil {
		layers = append(layers, override)
	}

	merged := conftree.Merge(layers, conftree.Options{})
	return extractModule(id, kind, merged, cand)
}
