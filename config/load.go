package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Load reads and decodes the configuration from a file or directory.
//
// YAML files (.yaml, .yml) are decoded directly. CUE files (.cue) are
// evaluated and their `config` value is decoded the same way. Directories
// merge all contained configuration files in lexical order. Files listed
// under `modules` are merged into the including configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	visited := make(map[string]struct{})
	var cfg *Config
	if info.IsDir() {
		cfg, err = loadDir(abs, visited)
	} else {
		cfg, err = loadFile(abs, visited)
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return &Config{}, nil
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, visited map[string]struct{}) (*Config, error) {
	if _, ok := visited[path]; ok {
		return nil, fmt.Errorf("config include cycle detected at %s", path)
	}
	visited[path] = struct{}{}
	defer delete(visited, path)

	var raw []byte
	var err error
	if isCUEFile(path) {
		raw, err = evaluateCUE(path)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var document yaml.Node
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if len(document.Content) == 0 || document.Content[0] == nil {
		return nil, fmt.Errorf("config %s is empty", path)
	}
	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config %s: top-level document must be a mapping", path)
	}

	var cfg Config
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.setSource(ModuleReference{File: path, Name: cfg.Name, Description: cfg.Description})

	modules := cfg.Modules
	cfg.Modules = nil

	baseDir := filepath.Dir(path)
	for _, module := range modules {
		if module.Path == "" {
			continue
		}
		modulePath := module.Path
		if !filepath.IsAbs(modulePath) {
			modulePath = filepath.Join(baseDir, module.Path)
		}
		info, err := os.Stat(modulePath)
		if err != nil {
			return nil, fmt.Errorf("load module %s: %w", module.Path, err)
		}
		var child *Config
		if info.IsDir() {
			child, err = loadDir(modulePath, visited)
		} else {
			child, err = loadFile(modulePath, visited)
		}
		if err != nil {
			return nil, fmt.Errorf("load module %s: %w", module.Path, err)
		}
		if child == nil {
			continue
		}
		child.applyModuleMetadata(ModuleReference{
			Name:        firstNonEmpty(module.Name, child.Source.Name),
			Description: firstNonEmpty(module.Description, child.Source.Description),
		})
		mergeConfig(&cfg, child)
	}
	return &cfg, nil
}

func loadDir(path string, visited map[string]struct{}) (*Config, error) {
	if _, ok := visited[path]; ok {
		return nil, fmt.Errorf("config include cycle detected at %s", path)
	}
	visited[path] = struct{}{}
	defer delete(visited, path)

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %s: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	result := &Config{}
	result.setSource(ModuleReference{File: path})
	for _, entry := range entries {
		if entry.IsDir() || !isConfigFile(entry.Name()) {
			continue
		}
		cfg, err := loadFile(filepath.Join(path, entry.Name()), visited)
		if err != nil {
			return nil, err
		}
		mergeConfig(result, cfg)
	}
	return result, nil
}

func isConfigFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".cue":
		return true
	default:
		return false
	}
}

func isCUEFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".cue")
}

// Validate checks identifiers and uniqueness of instruments and parameters.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration must not be nil")
	}
	instruments := make(map[string]struct{}, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		if err := ensureIdentifier(inst.Name, "instrument"); err != nil {
			return err
		}
		if _, dup := instruments[inst.Name]; dup {
			return fmt.Errorf("duplicate instrument %q", inst.Name)
		}
		instruments[inst.Name] = struct{}{}
		if strings.TrimSpace(inst.Driver) == "" {
			return fmt.Errorf("instrument %s: driver is required", inst.Name)
		}
		params := make(map[string]struct{}, len(inst.Parameters))
		for _, param := range inst.Parameters {
			if err := ensureIdentifier(param.Name, "parameter"); err != nil {
				return fmt.Errorf("instrument %s: %w", inst.Name, err)
			}
			if _, dup := params[param.Name]; dup {
				return fmt.Errorf("instrument %s: duplicate parameter %q", inst.Name, param.Name)
			}
			params[param.Name] = struct{}{}
			if err := validateParameter(param); err != nil {
				return fmt.Errorf("instrument %s: parameter %s: %w", inst.Name, param.Name, err)
			}
		}
	}
	return nil
}

func validateParameter(param ParameterConfig) error {
	for _, mode := range []AccessMode{param.Get.Normalize(), param.Set.Normalize()} {
		switch mode {
		case AccessDriver, AccessManual, AccessNone:
		default:
			return fmt.Errorf("unsupported access mode %q", mode)
		}
	}
	if len(param.ValMapping) > 0 && param.OnOff != nil {
		return errors.New("val_mapping and on_off are mutually exclusive")
	}
	if param.InitialValue != nil && param.InitialCacheValue != nil {
		return errors.New("initial_value and initial_cache_value are mutually exclusive")
	}
	return nil
}

func ensureIdentifier(value, kind string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s identifier must not be empty", kind)
	}
	if strings.Contains(trimmed, ".") {
		return fmt.Errorf("%s %q must not contain '.'", kind, trimmed)
	}
	for idx, r := range trimmed {
		if idx == 0 && unicode.IsDigit(r) {
			return fmt.Errorf("%s %q must not start with a digit", kind, trimmed)
		}
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return fmt.Errorf("%s %q contains invalid character %q", kind, trimmed, r)
		}
	}
	return nil
}

func mergeConfig(dst, src *Config) {
	if dst == nil || src == nil {
		return
	}
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}
	if src.Logging.Loki.Enabled || src.Logging.Loki.URL != "" || len(src.Logging.Loki.Labels) > 0 {
		dst.Logging.Loki = src.Logging.Loki
	}
	if src.Telemetry.Enabled || src.Telemetry.Provider != "" {
		dst.Telemetry = src.Telemetry
	}
	if src.HotReload {
		dst.HotReload = true
	}
	if src.ReloadInterval.Duration != 0 {
		dst.ReloadInterval = src.ReloadInterval
	}
	dst.Instruments = append(dst.Instruments, src.Instruments...)
}

func (c *Config) setSource(meta ModuleReference) {
	if c == nil {
		return
	}
	if meta.File == "" {
		meta.File = c.Source.File
	}
	if meta.Name == "" {
		meta.Name = c.Name
	}
	if meta.Description == "" {
		meta.Description = c.Description
	}
	c.Source = meta
	for i := range c.Instruments {
		c.Instruments[i].Source = mergeInitialSource(c.Instruments[i].Source, meta)
	}
}

func (c *Config) applyModuleMetadata(meta ModuleReference) {
	if c == nil {
		return
	}
	c.Source = mergeModuleOverride(c.Source, meta)
	for i := range c.Instruments {
		c.Instruments[i].Source = mergeModuleOverride(c.Instruments[i].Source, meta)
	}
}

func mergeInitialSource(child, meta ModuleReference) ModuleReference {
	if child.File == "" && meta.File != "" {
		child.File = meta.File
	}
	if child.Name == "" && meta.Name != "" {
		child.Name = meta.Name
	}
	if child.Description == "" && meta.Description != "" {
		child.Description = meta.Description
	}
	return child
}

func mergeModuleOverride(base, override ModuleReference) ModuleReference {
	if override.File != "" {
		base.File = override.File
	}
	if override.Name != "" {
		base.Name = override.Name
	}
	if override.Description != "" {
		base.Description = override.Description
	}
	return base
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
