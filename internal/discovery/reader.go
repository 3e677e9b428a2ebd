// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"fmt"
	"os"

	"fibr-cli/internal/conftree"

	"gopkg.in/yaml.v3"
)

// ConfigReader parses an on-disk structured config file into a Tree. It is a
// boundary collaborator so tests can feed trees directly.
type ConfigReader interface {
	Read(path string) (conftree.Tree, error)
}

// yamlReader is the production ConfigReader for YAML declaration files.
type yamlReader struct{}

// NewYAMLReader returns the YAML-backed ConfigReader.
func NewYAMLReader() ConfigReader { return yamlReader{} }

// Read parses a YAML file into a Tree. An empty file yields an empty tree.
func (yamlReader) Read(path string) (conftree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read declaration %s: %w", path, err)
	}
	var tree conftree.Tree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse declaration %s: %w", path, err)
	}
	if tree == nil {
		tree = conftree.Tree{}
	}
	return tree, nil
}
