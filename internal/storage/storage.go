// Package storage holds exported chat archives, behind one interface with an
// S3-compatible binding and a filesystem binding.
package storage

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"
)

type ObjectStore interface {
	Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type Config struct {
	Type      string // "s3" or "local"
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	LocalPath string
}

// New selects the binding; an unreachable S3 endpoint falls back to the
// filesystem so exports keep working.
func New(cfg Config) (ObjectStore, error) {
	if cfg.Type == "s3" {
		store, err := NewS3Store(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.UseSSL)
		if err == nil {
			return store, nil
		}
		log.Warn().Err(err).Msg("storage: s3 unavailable, falling back to local")
	}
	return NewLocalStore(cfg.LocalPath)
}
