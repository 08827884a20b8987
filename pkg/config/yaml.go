package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile loads a configuration file, choosing the parser by extension.
// Files ending in .yaml or .yml use the YAML parser; everything else is
// parsed as the INI-style format.
func LoadFile(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	default:
		return Load(path)
	}
}

// LoadYAML reads a YAML configuration file. The document must be a two-level
// mapping: section name -> option name -> value. Lists of scalars are
// accepted for list-valued options.
func LoadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	c, err := LoadYAMLBytes(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// LoadYAMLBytes parses a YAML configuration document.
func LoadYAMLBytes(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}

	c := New()
	if root.Kind == 0 || len(root.Content) == 0 {
		// Empty document
		return c, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, errors.New("top level must be a mapping of sections")
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		secNode := doc.Content[i]
		valNode := doc.Content[i+1]
		if valNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("section %q must be a mapping of options", secNode.Value)
		}

		options := make(map[string]string, len(valNode.Content)/2)
		for j := 0; j+1 < len(valNode.Content); j += 2 {
			optNode := valNode.Content[j]
			v, err := yamlOptionValue(valNode.Content[j+1])
			if err != nil {
				return nil, fmt.Errorf("[%s] %s: %w", secNode.Value, optNode.Value, err)
			}
			options[optNode.Value] = v
		}
		c.addSection(secNode.Value, options)
	}

	return c, nil
}

// yamlOptionValue renders one option value as the string form the Section
// accessors parse. Sequences become comma separated lists.
func yamlOptionValue(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return "", errors.New("nested collections are not supported")
			}
			parts = append(parts, item.Value)
		}
		return strings.Join(parts, ", "), nil
	default:
		return "", errors.New("value must be a scalar or a list of scalars")
	}
}
