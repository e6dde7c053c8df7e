package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rl1809/auction/internal/core/domain"
)

// MemoryAdapter keeps auctions in process. The mutex only makes each store
// call atomic, the same guarantee a database gives per row.
type MemoryAdapter struct {
	mu    sync.RWMutex
	items map[string]domain.AuctionItem
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{items: make(map[string]domain.AuctionItem)}
}

func (m *MemoryAdapter) Get(ctx context.Context, id string) (domain.AuctionItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return domain.AuctionItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (m *MemoryAdapter) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, next domain.AuctionItem) (domain.AuctionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.items[id]
	if !ok {
		return domain.AuctionItem{}, domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return domain.AuctionItem{}, domain.ErrVersionConflict
	}

	cur = applyUpdate(cur, next)
	m.items[id] = cur
	return cur, nil
}

func (m *MemoryAdapter) Create(ctx context.Context, item domain.AuctionItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.Version = 0

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[item.ID]; exists {
		return "", fmt.Errorf("create auction %s: already exists", item.ID)
	}
	m.items[item.ID] = item
	return item.ID, nil
}

func (m *MemoryAdapter) List(ctx context.Context, filter domain.ListFilter) ([]domain.AuctionItem, error) {
	m.mu.RLock()
	items := make([]domain.AuctionItem, 0, len(m.items))
	for _, item := range m.items {
		if filter.Match(item) {
			items = append(items, item)
		}
	}
	m.mu.RUnlock()

	sortByClosingTime(items)
	return limit(items, filter.Limit), nil
}
