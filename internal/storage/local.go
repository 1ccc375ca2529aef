package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidKey = errors.New("invalid storage key")

// Local stores objects as files below Root.
type Local struct {
	Root string
}

func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &Local{Root: abs}, nil
}

// path maps key below Root and refuses keys escaping it.
func (l *Local) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	p := filepath.Join(l.Root, filepath.FromSlash(key))
	if p != l.Root && !strings.HasPrefix(p, l.Root+string(os.PathSeparator)) {
		return "", ErrInvalidKey
	}
	return p, nil
}

func (l *Local) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("moving %s into place: %w", key, err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	info, err := l.Stat(ctx, key)
	if err != nil {
		return nil, Info{}, err
	}
	p, _ := l.path(key)
	f, err := os.Open(p)
	if err != nil {
		return nil, Info{}, l.wrap(key, err)
	}
	return f, info, nil
}

func (l *Local) Stat(ctx context.Context, key string) (Info, error) {
	p, err := l.path(key)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return Info{}, l.wrap(key, err)
	}
	if fi.IsDir() {
		return Info{}, ErrNotExist
	}
	return Info{
		Size:        fi.Size(),
		ModTime:     fi.ModTime(),
		ContentType: mime.TypeByExtension(filepath.Ext(p)),
	}, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return l.wrap(key, err)
	}
	return nil
}

func (l *Local) DeletePrefix(ctx context.Context, prefix string) error {
	p, err := l.path(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return err
	}
	if p == l.Root {
		return ErrInvalidKey
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("deleting %s: %w", prefix, err)
	}
	return nil
}

// HealthCheck writes and removes a temporary file below Root.
func (l *Local) HealthCheck(ctx context.Context) error {
	f, err := os.CreateTemp(l.Root, ".health-*")
	if err != nil {
		return fmt.Errorf("storage root is not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}

func (l *Local) wrap(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotExist
	}
	return fmt.Errorf("accessing %s: %w", key, err)
}
