// Package manifest provides loading and parsing of plugin.yaml manifest files.
// A manifest declares a plugin's identity, permissions, hook subscriptions,
// and configuration schema; the registry turns it into a stored descriptor
// at install time.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/plexa-ai/runtime/schema"
	"github.com/plexa-ai/runtime/types"
)

// Manifest represents a plugin.yaml manifest file.
type Manifest struct {
	// Identity
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description,omitempty"`
	Author      string `yaml:"author,omitempty"`

	// Categorization
	Category types.Category `yaml:"category,omitempty"`
	Tags     []string       `yaml:"tags,omitempty"`

	// Main is the loader reference: a name registered with the local
	// loader, or a host:port target for the gRPC loader.
	Main string `yaml:"main"`

	// Dependencies lists plugin IDs this plugin requires to be installed.
	Dependencies []string `yaml:"dependencies,omitempty"`

	// Permissions declares the capability flags the plugin requests.
	// The section is mandatory; install is rejected without it.
	Permissions *types.Permissions `yaml:"permissions"`

	// ConfigSchema constrains instance configuration.
	ConfigSchema schema.JSON `yaml:"config_schema,omitempty"`

	// Hooks lists the hook subscriptions with optional priorities.
	Hooks []types.HookSubscription `yaml:"hooks,omitempty"`
}

// Descriptor converts the manifest into an install-ready plugin descriptor.
// The registry assigns the ID, status, and timestamps.
func (m *Manifest) Descriptor() *types.Plugin {
	return &types.Plugin{
		Name:         m.Name,
		Version:      m.Version,
		Description:  m.Description,
		Author:       m.Author,
		Category:     m.Category,
		Tags:         m.Tags,
		Main:         m.Main,
		Dependencies: m.Dependencies,
		Permissions:  m.Permissions,
		ConfigSchema: m.ConfigSchema,
		Hooks:        m.Hooks,
	}
}

// Validate checks the manifest for the fields required at install time.
func (m *Manifest) Validate() error {
	return m.Descriptor().Validate()
}

// Load reads and parses a plugin.yaml file from the given path.
// If the path is a directory, it looks for plugin.yaml or plugin.yml in
// that directory.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var manifestPath string
	if info.IsDir() {
		yamlPath := filepath.Join(path, "plugin.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			manifestPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "plugin.yml")
			if _, err := os.Stat(ymlPath); err == nil {
				manifestPath = ymlPath
			} else {
				return nil, fmt.Errorf("no plugin.yaml or plugin.yml found in %s", path)
			}
		}
	} else {
		manifestPath = path
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	return Parse(data)
}

// Parse decodes manifest bytes and validates the result.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// LoadDir loads every plugin manifest found directly under dir. Each plugin
// lives in its own subdirectory containing a plugin.yaml. Subdirectories
// without a manifest are skipped.
func LoadDir(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			// A directory without a manifest is not an error; a broken
			// manifest is.
			if _, statErr := os.Stat(filepath.Join(dir, entry.Name(), "plugin.yaml")); statErr != nil {
				if _, statErr := os.Stat(filepath.Join(dir, entry.Name(), "plugin.yml")); statErr != nil {
					continue
				}
			}
			return nil, fmt.Errorf("plugin %s: %w", entry.Name(), err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}
