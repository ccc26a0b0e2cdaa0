package cache

import (
	"time"

	pkgerrors "sjsage522/propertyworker/pkg/errors"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 2 * time.Second
	return &MemcacheService{
		client: client,
	}
}

// Ping checks that the memcache server answers
func (m *MemcacheService) Ping() error {
	if err := m.client.Ping(); err != nil {
		return pkgerrors.NewCache("", "memcache unreachable", err)
	}
	return nil
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if err != nil {
		return pkgerrors.NewCache(key, "set failed", err)
	}
	return nil
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if err != nil && err != memcache.ErrCacheMiss {
		return pkgerrors.NewCache(key, "delete failed", err)
	}
	return nil
}
