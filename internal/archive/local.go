package archive

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// LocalStore writes archive objects under a local directory. This is the
// default archiver for development.
type LocalStore struct {
	basePath string
	compress bool
}

// NewLocalStore creates a file-based archiver. If basePath is empty, it
// defaults to "~/.gencore/archive".
func NewLocalStore(basePath string, compress bool) *LocalStore {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			basePath = filepath.Join(os.TempDir(), "gencore", "archive")
		} else {
			basePath = filepath.Join(home, ".gencore", "archive")
		}
	}
	return &LocalStore{basePath: basePath, compress: compress}
}

func (a *LocalStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	fpath := filepath.Join(a.basePath, filepath.FromSlash(key))
	if a.compress {
		fpath += ".gz"
	}
	if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	f, err := os.Create(fpath)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	if a.compress {
		gw := gzip.NewWriter(f)
		if _, err := gw.Write(body); err != nil {
			return "", fmt.Errorf("write archive %s: %w", key, err)
		}
		if err := gw.Close(); err != nil {
			return "", fmt.Errorf("flush archive %s: %w", key, err)
		}
	} else if _, err := f.Write(body); err != nil {
		return "", fmt.Errorf("write archive %s: %w", key, err)
	}

	log.Debug().Str("path", fpath).Int("bytes", len(body)).Msg("Archived record to local file")
	return "file://" + fpath, nil
}

// HealthCheck verifies the base path is writable.
func (a *LocalStore) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(a.basePath, 0o755); err != nil {
		return fmt.Errorf("archive path not writable: %w", err)
	}
	testFile := filepath.Join(a.basePath, ".healthcheck")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("archive path not writable: %w", err)
	}
	os.Remove(testFile)
	return nil
}
