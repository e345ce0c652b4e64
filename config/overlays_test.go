package config

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestSchemaOverlayRegistered(t *testing.T) {
	ResetOverlaysForTest()
	t.Cleanup(ResetOverlaysForTest)

	overlays := ResolveOverlays("/base")
	for _, path := range []string{schemaModulePath, schemaOverlayPath} {
		if _, ok := overlays[filepath.Join("/base", path)]; !ok {
			t.Fatalf("overlay %q not registered", path)
		}
	}
}

func TestRegisterOverlayRejectsInvalidPaths(t *testing.T) {
	ResetOverlaysForTest()
	t.Cleanup(ResetOverlaysForTest)

	if err := RegisterOverlayString("extra/extra.cue", "package extra"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := RegisterOverlayString("extra/./extra.cue", "package extra"); err == nil {
		t.Fatalf("expected duplicate overlay error")
	}
	for _, path := range []string{"  ", ".", "../outside.cue", "/abs/file.cue"} {
		if err := RegisterOverlayString(path, "package extra"); err == nil {
			t.Fatalf("expected error for path %q", path)
		}
	}
	if err := RegisterOverlay("nil.cue", nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
}

func TestResetOverlaysDropsCustomEntries(t *testing.T) {
	ResetOverlaysForTest()
	t.Cleanup(ResetOverlaysForTest)

	if err := RegisterOverlayDescriptors(OverlayDescriptor{Path: "extra/extra.cue", Source: nil}); err == nil {
		t.Fatalf("expected descriptor with nil source to fail")
	}
	if err := RegisterOverlayString("extra/extra.cue", "package extra"); err != nil {
		t.Fatalf("register: %v", err)
	}
	ResetOverlaysForTest()

	want := []string{schemaModulePath, schemaOverlayPath}
	if got := RegisteredOverlays(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected default overlays %v, got %v", want, got)
	}
}
