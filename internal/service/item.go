package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/creditgate/creditgate/internal/metrics"
	"github.com/creditgate/creditgate/internal/model"
	"github.com/creditgate/creditgate/internal/repository"
)

// ItemService handles item business logic.
type ItemService struct {
	repo    *repository.ItemRepository
	metrics metrics.Recorder
}

// NewItemService creates a new ItemService.
func NewItemService(repo *repository.ItemRepository, recorder metrics.Recorder) *ItemService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ItemService{repo: repo, metrics: recorder}
}

// ItemInput carries the writable item fields.
type ItemInput struct {
	Name        string
	Description string
}

// ListItems returns the whole collection.
func (s *ItemService) ListItems(ctx context.Context) []model.Item {
	return s.repo.List(ctx)
}

// CreateItem appends a new item.
func (s *ItemService) CreateItem(ctx context.Context, input ItemInput) model.Item {
	item := s.repo.Create(ctx, input.Name, input.Description)
	s.metrics.IncItemCreated()
	return item
}

// UpdateItem overwrites the non-empty fields of input on the item.
// A missing item wins over an empty input.
func (s *ItemService) UpdateItem(ctx context.Context, id int, input ItemInput) (*model.Item, error) {
	item, err := s.repo.Update(ctx, id, func(item *model.Item) error {
		if input.Name == "" && input.Description == "" {
			return ErrMissingFields
		}
		if input.Name != "" {
			item.Name = input.Name
		}
		if input.Description != "" {
			item.Description = input.Description
		}
		return nil
	})
	if err != nil {
		return nil, mapItemError(err)
	}

	s.metrics.IncItemUpdated()
	return &item, nil
}

// DeleteItem removes an item and returns it.
func (s *ItemService) DeleteItem(ctx context.Context, id int) (*model.Item, error) {
	item, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, mapItemError(err)
	}

	s.metrics.IncItemDeleted()
	return &item, nil
}

func mapItemError(err error) error {
	switch {
	case errors.Is(err, repository.ErrItemNotFound):
		return ErrItemNotFound
	case errors.Is(err, ErrMissingFields):
		return ErrMissingFields
	default:
		return fmt.Errorf("item operation failed: %w", err)
	}
}
