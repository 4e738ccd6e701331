package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

// MemoryAdapter keeps items in process memory. Used for local runs and tests.
type MemoryAdapter struct {
	mu     sync.RWMutex
	items  map[int64]domain.Item
	names  map[string]int64
	nextID int64
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		items: make(map[int64]domain.Item),
		names: make(map[string]int64),
	}
}

func (m *MemoryAdapter) Get(ctx context.Context, id int64) (*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (m *MemoryAdapter) Exists(ctx context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.items[id]
	return ok, nil
}

func (m *MemoryAdapter) List(ctx context.Context) ([]domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *MemoryAdapter) Create(ctx context.Context, item domain.Item) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.names[item.Name]; taken {
		return nil, domain.ErrDuplicateName
	}

	m.nextID++
	now := time.Now().UTC()
	item.ID = m.nextID
	item.Version = 0
	item.CreatedAt = now
	item.UpdatedAt = now

	m.items[item.ID] = item
	m.names[item.Name] = item.ID
	return &item, nil
}

func (m *MemoryAdapter) Replace(ctx context.Context, id int64, item domain.Item) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if owner, taken := m.names[item.Name]; taken && owner != id {
		return nil, domain.ErrDuplicateName
	}

	delete(m.names, current.Name)
	item.ID = id
	item.Version = current.Version + 1
	item.CreatedAt = current.CreatedAt
	item.UpdatedAt = time.Now().UTC()

	m.items[id] = item
	m.names[item.Name] = id
	return &item, nil
}

func (m *MemoryAdapter) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	delete(m.names, item.Name)
	return nil
}

func (m *MemoryAdapter) CompareAndSetQuantity(ctx context.Context, id int64, expected, newQuantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok || item.Quantity != expected {
		return false, nil
	}

	item.Quantity = newQuantity
	item.Version++
	item.UpdatedAt = time.Now().UTC()
	m.items[id] = item
	return true, nil
}

// MemoryIdempotency is the in-process counterpart of RedisIdempotency.
type MemoryIdempotency struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]time.Time
}

func NewMemoryIdempotency(ttl time.Duration) *MemoryIdempotency {
	return &MemoryIdempotency{ttl: ttl, keys: make(map[string]time.Time)}
}

func (m *MemoryIdempotency) Acquire(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if expires, ok := m.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.keys[key] = now.Add(m.ttl)
	return true, nil
}

func (m *MemoryIdempotency) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	return nil
}
