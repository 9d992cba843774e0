package objectstore

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/server/models"
)

// Memory is an in-process Store for tests. Descriptors point at the
// memory:// scheme; tests move bytes with Put and Get.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    map[string]error
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte), fail: make(map[string]error)}
}

// Fail makes the named operation ("upload", "download", "stat", "delete")
// return err until cleared with a nil err.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

// Put stores data under key, as a client upload would.
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// Get returns the object stored under key.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return append([]byte(nil), b...), ok
}

// Keys lists stored object keys.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

func (m *Memory) PresignUpload(ctx context.Context, key string, maxSize int64, ttl time.Duration) (*models.UploadDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["upload"]; err != nil {
		return nil, err
	}
	return &models.UploadDescriptor{
		URL:    "memory://upload",
		Fields: map[string]string{"key": key},
	}, nil
}

func (m *Memory) PresignDownload(ctx context.Context, key, filename string, ttl time.Duration) (*models.DownloadDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["download"]; err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("response-content-disposition", contentDisposition(filename))
	return &models.DownloadDescriptor{URL: "memory://download/" + key + "?" + q.Encode()}, nil
}

func (m *Memory) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["stat"]; err != nil {
		return nil, err
	}
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["delete"]; err != nil {
		return err
	}
	delete(m.objects, key)
	return nil
}
