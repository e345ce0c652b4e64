package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadYAMLParameters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.yaml")
	writeConfig(t, path, `name: bench
reload_interval: 500ms
instruments:
  - name: dmm
    driver: virtual
    parameters:
      - name: volt
        unit: V
        scale: 1000
        offset: 0.5
        max_val_age: 2s
        vals:
          type: numbers
          min: -10
          max: 10
      - name: output
        set: manual
        get: manual
        on_off:
          on: 1
          off: 0
      - name: mode
        register: MODE
        val_mapping:
          - value: dc
            raw: 0
          - value: ac
            raw: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "bench" {
		t.Fatalf("unexpected name %q", cfg.Name)
	}
	if cfg.ReloadEvery() != 500*time.Millisecond {
		t.Fatalf("unexpected reload interval %v", cfg.ReloadEvery())
	}
	inst, ok := cfg.Instrument("dmm")
	if !ok {
		t.Fatalf("instrument dmm missing")
	}
	if len(inst.Parameters) != 3 {
		t.Fatalf("expected 3 parameters, got %d", len(inst.Parameters))
	}
	volt := inst.Parameters[0]
	if volt.Scale == nil || *volt.Scale != 1000 {
		t.Fatalf("unexpected scale %v", volt.Scale)
	}
	if volt.MaxValAge == nil || volt.MaxValAge.Duration != 2*time.Second {
		t.Fatalf("unexpected max_val_age %v", volt.MaxValAge)
	}
	if volt.Vals == nil || volt.Vals.Type != "numbers" || volt.Vals.Max == nil || *volt.Vals.Max != 10 {
		t.Fatalf("unexpected validator %+v", volt.Vals)
	}
	if volt.Get.Normalize() != AccessDriver {
		t.Fatalf("expected driver access by default, got %q", volt.Get.Normalize())
	}
	output := inst.Parameters[1]
	if output.Set.Normalize() != AccessManual || output.OnOff == nil {
		t.Fatalf("unexpected output parameter %+v", output)
	}
	mode := inst.Parameters[2]
	if mode.RegisterName() != "MODE" || len(mode.ValMapping) != 2 {
		t.Fatalf("unexpected mode parameter %+v", mode)
	}
	if inst.Source.File != path {
		t.Fatalf("expected instrument source %s, got %s", path, inst.Source.File)
	}
}

func TestLoadModules(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "station.yaml")
	modulePath := filepath.Join(dir, "scope.yaml")

	writeConfig(t, modulePath, `instruments:
  - name: scope
    driver: ats9440
`)
	writeConfig(t, mainPath, `modules:
  - path: scope.yaml
    name: digitizer
instruments:
  - name: dmm
    driver: virtual
`)

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Instruments) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(cfg.Instruments))
	}
	scope, ok := cfg.Instrument("scope")
	if !ok {
		t.Fatalf("module instrument missing")
	}
	if scope.Source.File != modulePath || scope.Source.Name != "digitizer" {
		t.Fatalf("unexpected module source %+v", scope.Source)
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeConfig(t, a, "modules:\n  - b.yaml\n")
	writeConfig(t, b, "modules:\n  - a.yaml\n")

	_, err := Load(a)
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadDirectoryMergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, "01-dmm.yaml"), "name: lab\ninstruments:\n  - name: dmm\n    driver: virtual\n")
	writeConfig(t, filepath.Join(dir, "02-source.yml"), "instruments:\n  - name: source\n    driver: virtual\n")
	writeConfig(t, filepath.Join(dir, "notes.txt"), "ignored")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "lab" {
		t.Fatalf("unexpected name %q", cfg.Name)
	}
	if len(cfg.Instruments) != 2 || cfg.Instruments[0].Name != "dmm" || cfg.Instruments[1].Name != "source" {
		t.Fatalf("unexpected instruments %+v", cfg.Instruments)
	}
}

func TestValidateRejectsInvalidConfigurations(t *testing.T) {
	one := 1.0
	cases := map[string]*Config{
		"duplicate instrument": {Instruments: []InstrumentConfig{
			{Name: "dmm", Driver: "virtual"},
			{Name: "dmm", Driver: "virtual"},
		}},
		"dotted name": {Instruments: []InstrumentConfig{{Name: "a.b", Driver: "virtual"}}},
		"missing driver": {Instruments: []InstrumentConfig{{Name: "dmm"}}},
		"duplicate parameter": {Instruments: []InstrumentConfig{{Name: "dmm", Driver: "virtual", Parameters: []ParameterConfig{
			{Name: "volt"}, {Name: "volt"},
		}}}},
		"bad access": {Instruments: []InstrumentConfig{{Name: "dmm", Driver: "virtual", Parameters: []ParameterConfig{
			{Name: "volt", Get: "sometimes"},
		}}}},
		"mapping and on_off": {Instruments: []InstrumentConfig{{Name: "dmm", Driver: "virtual", Parameters: []ParameterConfig{
			{Name: "out", ValMapping: []MappingConfig{{Value: "on", Raw: 1}}, OnOff: &OnOffConfig{On: 1, Off: 0}},
		}}}},
		"both initial values": {Instruments: []InstrumentConfig{{Name: "dmm", Driver: "virtual", Parameters: []ParameterConfig{
			{Name: "volt", InitialValue: one, InitialCacheValue: one},
		}}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadCUEConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.cue")
	writeConfig(t, path, `package station

config: {
	name: "cue-bench"
	instruments: [{
		name:   "dmm"
		driver: "virtual"
		parameters: [{
			name:        "volt"
			scale:       2.5
			max_val_age: "1s"
		}]
	}]
}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "cue-bench" {
		t.Fatalf("unexpected name %q", cfg.Name)
	}
	inst, ok := cfg.Instrument("dmm")
	if !ok || len(inst.Parameters) != 1 {
		t.Fatalf("unexpected instruments %+v", cfg.Instruments)
	}
	param := inst.Parameters[0]
	if param.Scale == nil || *param.Scale != 2.5 {
		t.Fatalf("unexpected scale %v", param.Scale)
	}
	if param.MaxValAge == nil || param.MaxValAge.Duration != time.Second {
		t.Fatalf("unexpected max_val_age %v", param.MaxValAge)
	}
}

func TestLoadCUERequiresConfigValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.cue")
	writeConfig(t, path, "package station\n\nother: 1\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing config value")
	}
}

func TestSourceFiles(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.yaml")
	module := filepath.Join(dir, "module.yaml")
	cfg := &Config{
		Source: ModuleReference{File: main},
		Instruments: []InstrumentConfig{
			{Name: "a", Source: ModuleReference{File: module}},
			{Name: "b", Source: ModuleReference{File: main}},
			{Name: "c", Source: ModuleReference{File: dir}},
		},
	}
	files := SourceFiles(cfg)
	if len(files) != 2 || files[0] != main || files[1] != module {
		t.Fatalf("unexpected source files %v", files)
	}
}
