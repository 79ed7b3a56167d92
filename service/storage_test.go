package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreValidate(t *testing.T) {
	ctx := context.Background()

	store, err := NewArtifactStore(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Validate(ctx); err != nil {
		t.Errorf("expected valid store: %v", err)
	}

	store, err = NewArtifactStore(ctx, filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatal(err)
	}
	err = store.Validate(ctx)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	var dirErr ErrOutputDirectory
	if !errors.As(err, &dirErr) {
		t.Errorf("expected ErrOutputDirectory, got %v", err)
	}
	if !Fatal(err) {
		t.Errorf("ErrOutputDirectory must be fatal")
	}
}

func TestLocalStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewArtifactStore(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Save(ctx, "a.xml", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if ok, err := store.Exists(ctx, "a.xml"); err != nil || !ok {
		t.Fatalf("expected artifact to exist (%v)", err)
	}
	if err := store.Save(ctx, "a.xml", []byte("second")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "a.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("expected overwrite, got %s", data)
	}
}

func TestLocalStoreSaveFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewArtifactStore(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "src.tif")
	if err := os.WriteFile(src, []byte("raster"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveFile(ctx, "out.tif", src); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out.tif"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "raster" {
		t.Errorf("unexpected content: %s", data)
	}
	info, err := os.Stat(filepath.Join(dir, "out.tif"))
	if err != nil {
		t.Fatal(err)
	}
	// the temp file mode must not survive the rename
	if info.Mode().Perm() != 0644 {
		t.Errorf("unexpected artifact mode: %v", info.Mode().Perm())
	}
	if got := store.URI("out.tif"); got != filepath.Join(dir, "out.tif") {
		t.Errorf("unexpected uri: %s", got)
	}
}
