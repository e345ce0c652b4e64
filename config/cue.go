package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// evaluateCUE builds the CUE file at path together with the registered
// overlays and returns its concrete `config` value encoded as JSON, which the
// YAML decoder accepts unchanged.
func evaluateCUE(path string) ([]byte, error) {
	dir := filepath.Dir(path)
	overlay := ResolveOverlays(dir)
	files := []string{filepath.Base(path)}
	// Overlays placed next to the file join its package; cue.mod overlays are imported.
	for overlayPath := range overlay {
		if filepath.Dir(overlayPath) == dir && filepath.Ext(overlayPath) == ".cue" && overlayPath != path {
			files = append(files, filepath.Base(overlayPath))
		}
	}
	sort.Strings(files[1:])
	instances := load.Instances(files, &load.Config{
		Dir:     dir,
		Overlay: overlay,
	})
	if len(instances) == 0 {
		return nil, errors.New("no CUE instance loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load cue: %w", inst.Err)
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build cue: %w", err)
	}
	cfg := value.LookupPath(cue.ParsePath("config"))
	if !cfg.Exists() {
		return nil, errors.New("cue file does not define a config value")
	}
	if err := cfg.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate cue config: %w", err)
	}
	data, err := cfg.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode cue config: %w", err)
	}
	return data, nil
}
