package service

import (
	"context"
	"sort"
	"sync"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

// Mock ItemRepository
type mockItemRepo struct {
	mu     sync.Mutex
	items  map[int64]domain.Item
	nextID int64

	getErr error
	casErr map[int64]error
	// beforeCAS runs without the lock held, before the compare-and-set on id
	beforeCAS func(id int64)
	casCalls  []int64
}

func newMockItemRepo(items ...domain.Item) *mockItemRepo {
	m := &mockItemRepo{items: make(map[int64]domain.Item), casErr: make(map[int64]error)}
	for _, item := range items {
		m.items[item.ID] = item
		if item.ID > m.nextID {
			m.nextID = item.ID
		}
	}
	return m
}

func (m *mockItemRepo) quantity(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Quantity
}

func (m *mockItemRepo) set(id int64, q int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.items[id]
	item.Quantity = q
	m.items[id] = item
}

func (m *mockItemRepo) Get(ctx context.Context, id int64) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (m *mockItemRepo) Exists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok, nil
}

func (m *mockItemRepo) List(ctx context.Context) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *mockItemRepo) Create(ctx context.Context, item domain.Item) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.Name == item.Name {
			return nil, domain.ErrDuplicateName
		}
	}
	m.nextID++
	item.ID = m.nextID
	m.items[item.ID] = item
	return &item, nil
}

func (m *mockItemRepo) Replace(ctx context.Context, id int64, item domain.Item) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return nil, domain.ErrNotFound
	}
	for _, existing := range m.items {
		if existing.Name == item.Name && existing.ID != id {
			return nil, domain.ErrDuplicateName
		}
	}
	item.ID = id
	m.items[id] = item
	return &item, nil
}

func (m *mockItemRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockItemRepo) CompareAndSetQuantity(ctx context.Context, id int64, expected, newQuantity int) (bool, error) {
	if m.beforeCAS != nil {
		m.beforeCAS(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.casCalls = append(m.casCalls, id)
	if err := m.casErr[id]; err != nil {
		return false, err
	}
	item, ok := m.items[id]
	if !ok || item.Quantity != expected {
		return false, nil
	}
	item.Quantity = newQuantity
	item.Version++
	m.items[id] = item
	return true, nil
}
