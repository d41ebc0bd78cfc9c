package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/hugh/formlink/pkg/config"
	"google.golang.org/api/option"
)

const schemeGCS = "gs"

// GCS stores blobs in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(ctx context.Context, cfg config.BlobConfig) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	return &GCS{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (g *GCS) Store(ctx context.Context, data []byte) (string, error) {
	loc := Location{Scheme: schemeGCS, Bucket: g.bucket, Key: newKey(g.prefix, time.Now())}

	w := g.client.Bucket(loc.Bucket).Object(loc.Key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("writing gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing gcs object: %w", err)
	}
	return loc.String(), nil
}

func (g *GCS) Fetch(ctx context.Context, url string) ([]byte, error) {
	loc, err := locate(url, schemeGCS, g.bucket)
	if err != nil {
		return nil, err
	}

	r, err := g.client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening gcs object: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading gcs object: %w", err)
	}
	return data, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
