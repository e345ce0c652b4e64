package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SourceFiles lists the absolute paths of the files the configuration and
// its instruments were read from. The watcher polls exactly these files.
func SourceFiles(cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	refs := make([]ModuleReference, 0, len(cfg.Instruments)+1)
	refs = append(refs, cfg.Source)
	for _, inst := range cfg.Instruments {
		refs = append(refs, inst.Source)
	}

	var files []string
	for _, ref := range refs {
		if file, ok := ref.watchPath(); ok {
			files = append(files, file)
		}
	}
	slices.Sort(files)
	return slices.Compact(files)
}

// watchPath reports the absolute file behind ref. Directory references
// stand for a module directory and are not watched.
func (ref ModuleReference) watchPath() (string, bool) {
	file := strings.TrimSpace(ref.File)
	if file == "" {
		return "", false
	}
	if info, err := os.Stat(file); err == nil && info.IsDir() {
		return "", false
	}
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}
	return file, true
}
