package models

import (
	"encoding/json"
	"time"
)

// DefaultShelfID groups books that were saved without a shelf.
const DefaultShelfID = "default"

// Book is a saved document-like object grouped on a shelf.
type Book struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	ShelfID   string          `json:"shelfId"`
	Pages     json.RawMessage `json:"pages,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Setting is a single key/value pair. Writes overwrite; no history is kept.
type Setting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
