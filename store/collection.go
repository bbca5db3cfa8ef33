package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection is a typed view over one collection of a Database. T must
// marshal to a JSON object carrying a string "id" field.
type Collection[T any] struct {
	db   Database
	name string
}

// NewCollection binds the named collection of db to record type T.
func NewCollection[T any](db Database, name string) *Collection[T] {
	return &Collection[T]{db: db, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// FindOne returns the first record matching filter or ErrNotFound.
func (c *Collection[T]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	doc, err := c.db.FindOne(ctx, c.name, filter)
	if err != nil {
		return nil, err
	}
	return fromDocument[T](doc)
}

// Find returns every record matching filter.
func (c *Collection[T]) Find(ctx context.Context, filter Filter) ([]T, error) {
	docs, err := c.db.Find(ctx, c.name, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		rec, err := fromDocument[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Create persists record as a new document.
func (c *Collection[T]) Create(ctx context.Context, record *T) error {
	doc, err := ToDocument(record)
	if err != nil {
		return err
	}
	return c.db.Create(ctx, c.name, doc)
}

// Update shallow-merges patch into the record with the given id.
func (c *Collection[T]) Update(ctx context.Context, id string, patch Document) error {
	return c.db.Update(ctx, c.name, id, patch)
}

// Remove deletes the record with the given id.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	return c.db.Remove(ctx, c.name, id)
}

// ToDocument converts any JSON-marshalable value into a Document.
func ToDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode record: %w", err)
	}
	return decodeDocument(data)
}

func fromDocument[T any](doc Document) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("store: decode record: %w", err)
	}
	return &out, nil
}
