package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
)

// ErrOutputDirectory is returned when the output target is missing or not
// writable. It is fatal for the whole run and checked before any work begins.
type ErrOutputDirectory struct {
	Target string
	Reason string
}

func (e ErrOutputDirectory) Error() string {
	return fmt.Sprintf("output directory %s: %s", e.Target, e.Reason)
}

func (e ErrOutputDirectory) Fatal() bool { return true }

// ArtifactStore persists output artifacts under their canonical names.
// An artifact with the same name is overwritten, so that a re-run with
// identical inputs is idempotent.
type ArtifactStore interface {
	// Validate checks that the output target exists and is writable
	Validate(ctx context.Context) error
	// SaveFile copies a local file to the store under the given name
	SaveFile(ctx context.Context, name, srcPath string) error
	// Save writes the given content under the given name
	Save(ctx context.Context, name string, data []byte) error
	// Exists returns whether an artifact with the given name is already stored
	Exists(ctx context.Context, name string) (bool, error)
	// URI returns the full uri of the named artifact
	URI(name string) string
}

// NewArtifactStore returns a store for the given output uri: a gs:// bucket
// prefix, or a pre-existing local directory.
func NewArtifactStore(ctx context.Context, outputURI string) (ArtifactStore, error) {
	if strings.HasPrefix(outputURI, "gs://") {
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("NewArtifactStore.NewClient: %w", err)
		}
		trimmed := strings.TrimPrefix(outputURI, "gs://")
		bucket, prefix, _ := strings.Cut(trimmed, "/")
		if bucket == "" {
			return nil, ErrOutputDirectory{Target: outputURI, Reason: "missing bucket name"}
		}
		return &gcsStore{client: client, bucket: bucket, prefix: prefix}, nil
	}
	return &localStore{dir: outputURI}, nil
}

type localStore struct {
	dir string
}

func (s *localStore) Validate(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return ErrOutputDirectory{Target: s.dir, Reason: "does not exist"}
	}
	if !info.IsDir() {
		return ErrOutputDirectory{Target: s.dir, Reason: "not a directory"}
	}
	probe, err := os.CreateTemp(s.dir, ".s2fetch-probe")
	if err != nil {
		return ErrOutputDirectory{Target: s.dir, Reason: "not writable"}
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

func (s *localStore) SaveFile(ctx context.Context, name, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("SaveFile.Open: %w", err)
	}
	defer src.Close()

	// Write to a sibling temp file, then rename over the destination so a
	// partial copy never shadows a complete artifact.
	dst := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".part")
	if err != nil {
		return MakeTemporary(fmt.Errorf("SaveFile.CreateTemp: %w", err))
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return MakeTemporary(fmt.Errorf("SaveFile.Copy: %w", err))
	}
	// CreateTemp mode is 0600 and survives the rename
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("SaveFile.Chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return MakeTemporary(fmt.Errorf("SaveFile.Close: %w", err))
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("SaveFile.Rename: %w", err)
	}
	return nil
}

func (s *localStore) Save(ctx context.Context, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return fmt.Errorf("Save[%s]: %w", name, err)
	}
	return nil
}

func (s *localStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *localStore) URI(name string) string {
	return filepath.Join(s.dir, name)
}

type gcsStore struct {
	client *gstorage.Client
	bucket string
	prefix string
}

func (s *gcsStore) Validate(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return ErrOutputDirectory{Target: "gs://" + s.bucket, Reason: err.Error()}
	}
	return nil
}

func (s *gcsStore) SaveFile(ctx context.Context, name, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("SaveFile.Open: %w", err)
	}
	defer src.Close()

	w := s.object(name).NewWriter(ctx)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return MakeTemporary(fmt.Errorf("SaveFile.Copy to %s: %w", s.URI(name), err))
	}
	if err := w.Close(); err != nil {
		return MakeTemporary(fmt.Errorf("SaveFile.Close %s: %w", s.URI(name), err))
	}
	return nil
}

func (s *gcsStore) Save(ctx context.Context, name string, data []byte) error {
	w := s.object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return MakeTemporary(fmt.Errorf("Save %s: %w", s.URI(name), err))
	}
	if err := w.Close(); err != nil {
		return MakeTemporary(fmt.Errorf("Save.Close %s: %w", s.URI(name), err))
	}
	return nil
}

func (s *gcsStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.object(name).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if err == gstorage.ErrObjectNotExist {
		return false, nil
	}
	return false, err
}

func (s *gcsStore) object(name string) *gstorage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, name))
}

func (s *gcsStore) URI(name string) string {
	return "gs://" + s.bucket + "/" + path.Join(s.prefix, name)
}
