// Package artifacttest provides an in-memory artifact.Store for tests.
package artifacttest

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mozilla-ai/lumigator/pkg/artifact"
	"github.com/pkg/errors"
)

type MemoryStore struct {
	mu      sync.Mutex
	Bucket  string
	Objects map[string][]byte
	// FailPut makes every write fail with this error.
	FailPut error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Bucket: "lumigator-storage", Objects: map[string][]byte{}}
}

func (m *MemoryStore) PutObject(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.FailPut != nil {
		return m.FailPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	return nil
}

func (m *MemoryStore) PutFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.PutObject(ctx, key, f, -1, "")
}

func (m *MemoryStore) GetObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, found := m.Objects[key]
	if !found {
		return nil, errors.Wrapf(artifact.ErrNotFound, "%s", key)
	}
	return data, nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.Objects[key]
	return found, nil
}

func (m *MemoryStore) ListObjects(_ context.Context, prefix string) ([]artifact.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects := []artifact.ObjectInfo{}
	for k, v := range m.Objects {
		if strings.HasPrefix(k, prefix) {
			objects = append(objects, artifact.ObjectInfo{Key: k, Size: int64(len(v)), LastModified: time.Now()})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *MemoryStore) RemoveRecursive(ctx context.Context, prefix string) error {
	objects, _ := m.ListObjects(ctx, prefix)
	if len(objects) == 0 {
		return errors.Wrapf(artifact.ErrNotFound, "nothing under %s", prefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range objects {
		delete(m.Objects, o.Key)
	}
	return nil
}

func (m *MemoryStore) PresignedGetURL(_ context.Context, key string) (string, error) {
	return "http://localhost:9000/" + m.Bucket + "/" + key + "?X-Amz-Signature=test", nil
}

func (m *MemoryStore) URI(key string) string {
	return "s3://" + m.Bucket + "/" + key
}

func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.Objects[key]
	return found
}

var _ artifact.Store = &MemoryStore{}
