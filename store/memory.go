package store

import (
	"context"
	"sync"
)

type memoryCollection struct {
	order []string
	docs  map[string][]byte
}

// Memory is a process-local Database. Documents are kept JSON-encoded so every
// read hands out an independent copy.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	kv          map[string][]byte
}

// NewMemory returns an empty in-memory Database.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memoryCollection),
		kv:          make(map[string][]byte),
	}
}

func (m *Memory) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	docs, err := m.scan(collection, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (m *Memory) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	return m.scan(collection, filter, 0)
}

func (m *Memory) scan(collection string, filter Filter, limit int) ([]Document, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.collections[collection]
	if c == nil {
		return nil, nil
	}

	if id, ok := filter["id"].(string); ok {
		data, ok := c.docs[id]
		if !ok {
			return nil, nil
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		if !matches(doc, filter) {
			return nil, nil
		}
		return []Document{doc}, nil
	}

	var out []Document
	for _, id := range c.order {
		doc, err := decodeDocument(c.docs[id])
		if err != nil {
			return nil, err
		}
		if !matches(doc, filter) {
			continue
		}
		out = append(out, doc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Create(ctx context.Context, collection string, doc Document) error {
	id, err := DocumentID(doc)
	if err != nil {
		return err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collections[collection]
	if c == nil {
		c = &memoryCollection{docs: make(map[string][]byte)}
		m.collections[collection] = c
	}
	if _, exists := c.docs[id]; exists {
		return ErrDuplicateID
	}
	c.docs[id] = data
	c.order = append(c.order, id)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collections[collection]
	if c == nil {
		return ErrNotFound
	}
	data, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeDocument(data, patch)
	if err != nil {
		return err
	}
	c.docs[id] = merged
	return nil
}

func (m *Memory) Remove(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collections[collection]
	if c == nil {
		return nil
	}
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.kv[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	m.kv[key] = v
	m.mu.Unlock()
	return nil
}
