package repository

import (
	"context"
	"sync"

	"github.com/creditgate/creditgate/internal/model"
)

// ItemRepository holds the shared item collection.
type ItemRepository struct {
	mu    sync.RWMutex
	items []model.Item
}

// NewItemRepository creates a collection seeded with the given items.
func NewItemRepository(seed ...model.Item) *ItemRepository {
	items := make([]model.Item, len(seed))
	copy(items, seed)
	return &ItemRepository{items: items}
}

// List returns a copy of the collection in insertion order.
func (r *ItemRepository) List(ctx context.Context) []model.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Item, len(r.items))
	copy(out, r.items)
	return out
}

// Create appends a new item. Its id is the collection length plus one, so
// after a deletion a new item can reuse an id that is still in the list.
func (r *ItemRepository) Create(ctx context.Context, name, description string) model.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := model.Item{
		ID:          len(r.items) + 1,
		Name:        name,
		Description: description,
	}
	r.items = append(r.items, item)
	return item
}

// Update applies fn to the first item with the given id. If fn returns an
// error the item is left unchanged and the error is returned.
func (r *ItemRepository) Update(ctx context.Context, id int, fn func(item *model.Item) error) (model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx == -1 {
		return model.Item{}, ErrItemNotFound
	}

	updated := r.items[idx]
	if err := fn(&updated); err != nil {
		return model.Item{}, err
	}
	updated.ID = r.items[idx].ID
	r.items[idx] = updated

	return updated, nil
}

// Delete removes the first item with the given id and returns it.
func (r *ItemRepository) Delete(ctx context.Context, id int) (model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx == -1 {
		return model.Item{}, ErrItemNotFound
	}

	deleted := r.items[idx]
	r.items = append(r.items[:idx], r.items[idx+1:]...)
	return deleted, nil
}

func (r *ItemRepository) indexOf(id int) int {
	for i, item := range r.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
