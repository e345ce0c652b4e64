package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue/load"
)

// OverlayDescriptor describes a virtual CUE file. Path is relative to the
// directory of the configuration being loaded.
type OverlayDescriptor struct {
	Path   string
	Source load.Source
}

// overlayRegistry holds virtual CUE files shared by every CUE load. Files
// under cue.mod/pkg become importable packages; files at the top level join
// the package of the configuration file.
type overlayRegistry struct {
	mu       sync.RWMutex
	sources  map[string]load.Source
	defaults []func() error
}

var overlays = &overlayRegistry{sources: make(map[string]load.Source)}

func (r *overlayRegistry) add(path string, src load.Source) error {
	key, err := overlayKey(path)
	if err != nil {
		return err
	}
	if src == nil {
		return errors.New("overlay source must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[key]; exists {
		return fmt.Errorf("overlay %s already registered", key)
	}
	r.sources[key] = src
	return nil
}

func (r *overlayRegistry) rooted(baseDir string) map[string]load.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.sources) == 0 {
		return nil
	}
	out := make(map[string]load.Source, len(r.sources))
	for key, src := range r.sources {
		out[filepath.Join(baseDir, key)] = src
	}
	return out
}

func (r *overlayRegistry) paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for key := range r.sources {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (r *overlayRegistry) reset() {
	r.mu.Lock()
	r.sources = make(map[string]load.Source)
	defaults := append([]func() error(nil), r.defaults...)
	r.mu.Unlock()
	for _, register := range defaults {
		mustRegister(register)
	}
}

// overlayKey cleans path and keeps it inside the configuration directory.
func overlayKey(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("overlay path must not be empty")
	}
	if filepath.IsAbs(trimmed) {
		return "", fmt.Errorf("overlay path %s must be relative", trimmed)
	}
	key := filepath.Clean(trimmed)
	if key == "." || key == ".." || strings.HasPrefix(key, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("overlay path %s must name a file below the configuration directory", trimmed)
	}
	return key, nil
}

func mustRegister(register func() error) {
	if err := register(); err != nil {
		panic(fmt.Sprintf("register default overlay: %v", err))
	}
}

// RegisterOverlay makes src visible to CUE configuration files as path.
func RegisterOverlay(path string, src load.Source) error {
	return overlays.add(path, src)
}

// RegisterOverlayString registers CUE source text.
func RegisterOverlayString(path, cue string) error {
	return overlays.add(path, load.FromString(cue))
}

// RegisterOverlayDescriptors registers every descriptor and stops at the
// first failure.
func RegisterOverlayDescriptors(descs ...OverlayDescriptor) error {
	for _, desc := range descs {
		if err := overlays.add(desc.Path, desc.Source); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDefaultOverlay runs register now and again after every
// ResetOverlaysForTest. Packages call it from init to ship their schemas.
func RegisterDefaultOverlay(register func() error) {
	if register == nil {
		return
	}
	overlays.mu.Lock()
	overlays.defaults = append(overlays.defaults, register)
	overlays.mu.Unlock()
	mustRegister(register)
}

// ResolveOverlays returns the registered overlays keyed by their path below baseDir.
func ResolveOverlays(baseDir string) map[string]load.Source {
	return overlays.rooted(baseDir)
}

// RegisteredOverlays lists the relative overlay paths in lexical order.
func RegisteredOverlays() []string {
	return overlays.paths()
}

// ResetOverlaysForTest drops custom overlays and registers the defaults again.
func ResetOverlaysForTest() {
	overlays.reset()
}
