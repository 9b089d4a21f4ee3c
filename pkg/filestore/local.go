package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// LocalProvider implements Provider over the plain local filesystem.
type LocalProvider struct {
	log zerolog.Logger
}

// NewLocalProvider returns a Provider rooted at the OS filesystem.
func NewLocalProvider(log zerolog.Logger) *LocalProvider {
	return &LocalProvider{log: log}
}

func (l *LocalProvider) FileExists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *LocalProvider) IsDir(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (l *LocalProvider) GetSize(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (l *LocalProvider) Store(_ context.Context, path string, data io.Reader, overwrite bool) (string, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", ErrAlreadyExists
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

func (l *LocalProvider) OpenRead(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (l *LocalProvider) OpenWrite(_ context.Context, path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func (l *LocalProvider) EnsureDirectoryExists(_ context.Context, path string) error {
	return os.MkdirAll(path, 0o755)
}

func (l *LocalProvider) CopyFile(_ context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func (l *LocalProvider) Remove(_ context.Context, path string) error {
	return os.Remove(path)
}

func (l *LocalProvider) RemoveAll(_ context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		l.log.Warn().Err(err).Str("path", path).Msg("remove_all failed, ignoring")
		return nil
	}
	return nil
}

func (l *LocalProvider) List(_ context.Context, path string) ([]string, error) {
	var entries []string
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		entries = append(entries, rel)
		return nil
	})
	return entries, err
}
