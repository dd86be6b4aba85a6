package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// ServicePath returns the YAML file of service inside the named context.
func (c *Config) ServicePath(context, service string) string {
	return servicePath(c.ContextDir(context), service)
}

func servicePath(contextDir, service string) string {
	return filepath.Join(contextDir, service+".yaml")
}

// LoadService decodes {contextDir}/{service}.yaml into a new T. A missing
// file yields an error wrapping os.ErrNotExist; an empty file yields the
// zero T.
func LoadService[T any](contextDir, service string) (*T, error) {
	if err := ValidateServiceName(service); err != nil {
		return nil, err
	}
	path := servicePath(contextDir, service)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no %s config in %s: %w", service, contextDir, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	v := new(T)
	if err := yaml.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// SaveService encodes v as {contextDir}/{service}.yaml. Files are written
// owner-only since they may hold API keys.
func SaveService[T any](contextDir, service string, v *T) error {
	if err := ValidateServiceName(service); err != nil {
		return err
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s config: %w", service, err)
	}
	return writeFileAtomic(servicePath(contextDir, service), data, 0600)
}

// ListServices returns the names of the YAML service files in a context.
func ListServices(contextDir string) ([]string, error) {
	entries, err := os.ReadDir(contextDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	var services []string
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if e.IsDir() || strings.HasPrefix(name, ".") || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		services = append(services, strings.TrimSuffix(name, ext))
	}
	return services, nil
}
