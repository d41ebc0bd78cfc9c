// Package blob stores opaque byte payloads and hands back a URL for them.
// The link lifecycle never reads what it stores; it only keeps the URL.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/formlink/pkg/config"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrForeignURL = errors.New("url does not belong to this store")
)

// Store is the blob collaborator: store(bytes) → url, fetch(url) → bytes.
type Store interface {
	Store(ctx context.Context, data []byte) (string, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// New builds the store selected by cfg.Provider.
func New(ctx context.Context, cfg config.BlobConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3(ctx, cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	case "memory", "":
		logger.Warn("using in-memory blob store; archives are lost on restart")
		return NewMemory("local", cfg.Prefix), nil
	}
	return nil, fmt.Errorf("unsupported blob provider %q", cfg.Provider)
}

// Location is a parsed blob URL.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

func ParseURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parsing blob url: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme == "" || u.Host == "" || key == "" {
		return Location{}, fmt.Errorf("blob url %q must look like scheme://bucket/key", raw)
	}
	return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
}

// locate parses raw and checks it was issued by a store with this scheme
// and bucket.
func locate(raw, scheme, bucket string) (Location, error) {
	loc, err := ParseURL(raw)
	if err != nil {
		return Location{}, err
	}
	if loc.Scheme != scheme || loc.Bucket != bucket {
		return Location{}, fmt.Errorf("%w: %s", ErrForeignURL, raw)
	}
	return loc, nil
}

// newKey lays objects out by day so a bucket lifecycle rule can expire
// them by prefix.
func newKey(prefix string, now time.Time) string {
	return path.Join(prefix, now.UTC().Format("2006/01/02"), uuid.NewString())
}
