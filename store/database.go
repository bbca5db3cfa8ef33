package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNotFound is returned when a document or key does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrMissingID is returned by Create when the document has no string "id".
	ErrMissingID = errors.New("store: document id missing")
	// ErrDuplicateID is returned by Create when the id is already taken in the collection.
	ErrDuplicateID = errors.New("store: duplicate document id")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// Document is a single JSON object stored in a collection.
type Document map[string]any

// Filter selects documents whose top-level fields equal every given value.
// An empty filter matches all documents.
type Filter map[string]any

// Database is the generic document store the engine persists into.
//
// Implementations must be safe for concurrent use. Update performs a shallow
// merge of the patch into the stored document; the "id" field is immutable.
// Remove is idempotent.
type Database interface {
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)
	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Create(ctx context.Context, collection string, doc Document) error
	Update(ctx context.Context, collection, id string, patch Document) error
	Remove(ctx context.Context, collection, id string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// DocumentID returns the string id of doc.
func DocumentID(doc Document) (string, error) {
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return "", ErrMissingID
	}
	return id, nil
}

func encodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	return doc, nil
}

// normalizeFilter round-trips the filter through JSON so its values compare
// equal to decoded document fields (numbers become float64, structs become maps).
func normalizeFilter(filter Filter) (Filter, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("store: encode filter: %w", err)
	}
	var out Filter
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("store: decode filter: %w", err)
	}
	return out, nil
}

func matches(doc Document, filter Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func mergeDocument(data []byte, patch Document) ([]byte, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	return encodeDocument(doc)
}
