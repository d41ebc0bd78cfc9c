package blob

import (
	"context"
	"sync"
	"time"
)

const schemeMemory = "mem"

// Memory keeps blobs in process. Development and tests only.
type Memory struct {
	bucket string
	prefix string

	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory(bucket, prefix string) *Memory {
	return &Memory{
		bucket:  bucket,
		prefix:  prefix,
		objects: make(map[string][]byte),
	}
}

func (m *Memory) Store(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	loc := Location{Scheme: schemeMemory, Bucket: m.bucket, Key: newKey(m.prefix, time.Now())}

	m.mu.Lock()
	m.objects[loc.Key] = append([]byte(nil), data...)
	m.mu.Unlock()

	return loc.String(), nil
}

func (m *Memory) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc, err := locate(url, schemeMemory, m.bucket)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.objects[loc.Key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Len reports how many blobs are held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
