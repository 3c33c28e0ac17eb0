package model

// Item is an entry of the shared item collection.
type Item struct {
	ID          int    `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// DefaultItems returns the collection every fresh process starts with.
func DefaultItems() []Item {
	return []Item{
		{ID: 1, Name: "Item 1", Description: "Description de l'item 1"},
		{ID: 2, Name: "Item 2", Description: "Description de l'item 2"},
	}
}
