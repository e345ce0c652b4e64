package reload

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/timzifer/qlab/config"
)

func TestUniquePathsFiltersDuplicatesAndEmptyValues(t *testing.T) {
	got := uniquePaths([]string{"", "/tmp/a", "/tmp/b", "/tmp/a", "/tmp/c", "/tmp/b"})
	want := []string{"/tmp/a", "/tmp/b", "/tmp/c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("uniquePaths() = %v, want %v", got, want)
	}
}

func TestWatcherTracksConfigInstrumentAndRootFiles(t *testing.T) {
	dir := t.TempDir()
	stationFile := filepath.Join(dir, "station.yaml")
	scopeFile := filepath.Join(dir, "scope.yaml")
	rootFile := filepath.Join(dir, "root.cue")
	writeFile(t, stationFile, "station")
	writeFile(t, scopeFile, "scope")
	writeFile(t, rootFile, "root")

	cfg := &config.Config{
		Source:      config.ModuleReference{File: stationFile},
		Instruments: []config.InstrumentConfig{{Name: "scope", Source: config.ModuleReference{File: scopeFile}}},
	}

	var w Watcher
	if err := w.Update(rootFile, cfg); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	want := []string{rootFile, scopeFile, stationFile}
	if got := w.Tracked(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Tracked() = %v, want %v", got, want)
	}
}

func TestWatcherSkipsMissingFiles(t *testing.T) {
	cfg := &config.Config{Source: config.ModuleReference{File: filepath.Join(t.TempDir(), "missing.yaml")}}
	var w Watcher
	if err := w.Update("", cfg); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(w.Tracked()) != 0 {
		t.Fatalf("expected no tracked files, got %v", w.Tracked())
	}
}

func TestWatcherCheckDetectsChangesAndRemovals(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.yaml")
	fileB := filepath.Join(dir, "b.yaml")
	writeFile(t, fileA, "first")
	writeFile(t, fileB, "second")

	cfg := &config.Config{
		Source:      config.ModuleReference{File: fileA},
		Instruments: []config.InstrumentConfig{{Name: "b", Source: config.ModuleReference{File: fileB}}},
	}
	w, err := NewWatcher("", cfg)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if changed, err := w.Check(); err != nil || len(changed) != 0 {
		t.Fatalf("expected no changes on first check, got %v, %v", changed, err)
	}

	writeFile(t, fileA, "first-UPDATED")
	if err := os.Remove(fileB); err != nil {
		t.Fatalf("Remove(%s) error = %v", fileB, err)
	}
	changed, err := w.Check()
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if want := []string{fileA, fileB}; !reflect.DeepEqual(changed, want) {
		t.Fatalf("Check() = %v, want %v", changed, want)
	}
}

func TestWatcherRunReportsChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "station.yaml")
	writeFile(t, file, "v1")
	w, err := NewWatcher(file, &config.Config{})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	writeFile(t, file, "version-2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reported := make(chan []string, 1)
	go func() {
		_ = w.Run(ctx, 10*time.Millisecond, func(changed []string) {
			select {
			case reported <- changed:
			default:
			}
			cancel()
		})
	}()

	select {
	case changed := <-reported:
		if !reflect.DeepEqual(changed, []string{file}) {
			t.Fatalf("Run() reported %v", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run() did not report the change")
	}
}

func TestWatcherHandlesNilReceiver(t *testing.T) {
	var w *Watcher
	if err := w.Update("", &config.Config{}); err != nil {
		t.Fatalf("nil watcher Update() error = %v", err)
	}
	if changed, err := w.Check(); err != nil || changed != nil {
		t.Fatalf("expected nil result from nil watcher, got %v, %v", changed, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}
