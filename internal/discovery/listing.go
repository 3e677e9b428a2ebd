// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DeclFileName is the per-module declaration file.
	DeclFileName = "fibr.yaml"
	// CoreModuleName is the root module every project carries.
	CoreModuleName = "core"
	// chainsDirName is the per-fiber directory holding chain definitions.
	chainsDirName = "chains"
	// initScriptName is the optional script run before the rest of a nested
	// chain's contents.
	initScriptName = "init.sh"
	// declExt is the extension of flat single-file chain definitions.
	declExt = ".yaml"
)

type (
	// Candidate is one discovered module location, before its configuration
	// has been loaded.
	Candidate struct {
		// Name is the unscoped module name (directory or file base name).
		Name string
		// Dir is the module directory. For flat single-file chains it is the
		// owning chains directory.
		Dir string
		// DeclFile is the declaration file path. Empty when the module has
		// no declaration (defaults apply).
		DeclFile string
		// InitScript is the optional init script path, when present.
		InitScript string
	}

	// Lister enumerates candidate module locations. It is a boundary
	// collaborator: the graph builder never touches the filesystem except
	// through it, so tests can substitute fixture listings.
	Lister interface {
		// Fibers lists the core module plus sibling module directories under
		// the project root, core first.
		Fibers(root string) ([]Candidate, error)
		// Chains lists a fiber's chains area: flat single-file chains and
		// first-level nested chain directories.
		Chains(fiberDir string) ([]Candidate, error)
		// NestedChains lists chain directories nested inside a chain's own
		// directory. Called lazily, once the owning chain has loaded.
		NestedChains(chainDir string) ([]Candidate, error)
	}

	// dirLister is the production Lister over the real filesystem.
	dirLister struct{}
)

// NewDirLister returns the filesystem-backed Lister.
func NewDirLister() Lister { return dirLister{} }

// Fibers lists the core module and sibling fiber directories. Only
// directories carrying a declaration file are candidates. Core sorts first;
// the rest keep lexical order for deterministic discovery.
func (dirLister) Fibers(root string) ([]Candidate, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("cannot locate project root %s: %w", root, err)
	}

	var out []Candidate
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		decl := filepath.Join(dir, DeclFileName)
		if !fileExists(decl) {
			continue
		}
		out = append(out, Candidate{Name: e.Name(), Dir: dir, DeclFile: decl})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == CoreModuleName {
			return true
		}
		if out[j].Name == CoreModuleName {
			return false
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Chains lists a fiber's chains area. A missing chains directory simply
// means the fiber has no chains.
func (dirLister) Chains(fiberDir string) ([]Candidate, error) {
	return listChainsDir(filepath.Join(fiberDir, chainsDirName))
}

// NestedChains lists chain directories nested directly inside a chain dir.
func (dirLister) NestedChains(chainDir string) ([]Candidate, error) {
	entries, err := os.ReadDir(chainDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list nested chains in %s: %w", chainDir, err)
	}
	var out []Candidate
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, chainDirCandidate(filepath.Join(chainDir, e.Name()), e.Name()))
	}
	sortCandidates(out)
	return out, nil
}

func listChainsDir(dir string) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list chains in %s: %w", dir, err)
	}

	var out []Candidate
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			out = append(out, chainDirCandidate(filepath.Join(dir, name), name))
			continue
		}
		if strings.HasSuffix(name, declExt) && name != DeclFileName {
			// Flat chains have no directory of their own; Dir stays empty so
			// they are never expanded for nested chains.
			out = append(out, Candidate{
				Name:     strings.TrimSuffix(name, declExt),
				DeclFile: filepath.Join(dir, name),
			})
		}
	}
	sortCandidates(out)
	return out, nil
}

// chainDirCandidate builds the candidate for a nested chain directory: its
// declaration file (when present) and optional init script.
func chainDirCandidate(dir, name string) Candidate {
	c := Candidate{Name: name, Dir: dir}
	if decl := filepath.Join(dir, DeclFileName); fileExists(decl) {
		c.DeclFile = decl
	}
	if init := filepath.Join(dir, initScriptName); fileExists(init) {
		c.InitScript = init
	}
	return c
}

func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
