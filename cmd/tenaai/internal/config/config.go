// Package config stores tenaai settings as named contexts.
//
// The root is $TENAAI_CONFIG_DIR, or os.UserConfigDir()/tenaai:
//
//	tenaai/
//	├── current-context          # name of the active context
//	└── contexts/
//	    ├── local/
//	    │   └── engine.yaml
//	    └── prod/
//	        └── engine.yaml
//
// A context usually points at one snapshot (persist_dir or an S3 prefix)
// together with the embedding and LLM providers that go with it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// EnvConfigDir overrides the configuration root.
const EnvConfigDir = "TENAAI_CONFIG_DIR"

const (
	appDir             = "tenaai"
	currentContextFile = "current-context"
	contextsDir        = "contexts"
)

var (
	// ErrNoCurrentContext is returned when no context was named and none
	// is selected.
	ErrNoCurrentContext = errors.New("no current context set; use 'tenaai config use-context <name>'")

	// ErrContextNotFound is returned for a context without a directory.
	ErrContextNotFound = errors.New("context not found")

	// ErrContextExists is returned by AddContext for an existing name.
	ErrContextExists = errors.New("context already exists")
)

// Config is the configuration root and its selected context.
type Config struct {
	Dir            string
	CurrentContext string
}

// Load opens the configuration root from $TENAAI_CONFIG_DIR or the user
// config directory. The root does not need to exist yet.
func Load() (*Config, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return LoadFrom(dir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locate user config dir: %w", err)
	}
	return LoadFrom(filepath.Join(base, appDir))
}

// LoadFrom opens the configuration rooted at dir.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}
	data, err := os.ReadFile(filepath.Join(dir, currentContextFile))
	switch {
	case err == nil:
		cfg.CurrentContext = strings.TrimSpace(string(data))
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read current context: %w", err)
	}
	return cfg, nil
}

// ContextsDir returns the directory holding all contexts.
func (c *Config) ContextsDir() string {
	return filepath.Join(c.Dir, contextsDir)
}

// ContextDir returns the directory of the named context. It does not check
// that the context exists.
func (c *Config) ContextDir(name string) string {
	return filepath.Join(c.ContextsDir(), name)
}

// CurrentContextDir returns the directory of the selected context.
func (c *Config) CurrentContextDir() (string, error) {
	if c.CurrentContext == "" {
		return "", ErrNoCurrentContext
	}
	return c.existing(c.CurrentContext)
}

// ResolveContext returns the directory of name, or of the selected context
// when name is empty.
func (c *Config) ResolveContext(name string) (string, error) {
	if name == "" {
		return c.CurrentContextDir()
	}
	return c.existing(name)
}

// ListContexts returns context names in lexical order.
func (c *Config) ListContexts() ([]string, error) {
	entries, err := os.ReadDir(c.ContextsDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && ValidateContextName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// AddContext creates an empty context.
func (c *Config) AddContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}
	dir := c.ContextDir(name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %q", ErrContextExists, name)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create context %q: %w", name, err)
	}
	return nil
}

// DeleteContext removes a context with its service files. Deleting the
// selected context clears the selection.
func (c *Config) DeleteContext(name string) error {
	dir, err := c.existing(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete context %q: %w", name, err)
	}
	if c.CurrentContext != name {
		return nil
	}
	c.CurrentContext = ""
	return c.writeCurrent()
}

// UseContext selects an existing context.
func (c *Config) UseContext(name string) error {
	if _, err := c.existing(name); err != nil {
		return err
	}
	c.CurrentContext = name
	return c.writeCurrent()
}

// existing validates name and returns its directory if present.
func (c *Config) existing(name string) (string, error) {
	if err := ValidateContextName(name); err != nil {
		return "", err
	}
	dir := c.ContextDir(name)
	fi, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !fi.IsDir()) {
		return "", fmt.Errorf("%w: %q", ErrContextNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("stat context %q: %w", name, err)
	}
	return dir, nil
}

func (c *Config) writeCurrent() error {
	return writeFileAtomic(filepath.Join(c.Dir, currentContextFile), []byte(c.CurrentContext+"\n"), 0644)
}

// ValidateContextName rejects names that are not a single path element.
func ValidateContextName(name string) error {
	return validateName("context", name)
}

// ValidateServiceName applies the same rules to service file names.
func ValidateServiceName(name string) error {
	return validateName("service", name)
}

func validateName(kind, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%s name cannot be empty", kind)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%s name %q must not contain path separators", kind, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%s name %q must not start with '.'", kind, name)
	}
	return nil
}

// writeFileAtomic replaces path through a temporary file in the same
// directory, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
