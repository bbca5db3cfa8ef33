package store

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    string            `json:"id"`
	Owner string            `json:"owner"`
	Count int               `json:"count"`
	Live  bool              `json:"live"`
	Tags  map[string]string `json:"tags,omitempty"`
}

func backends(t *testing.T) map[string]Database {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Database{
		"memory": NewMemory(),
		"redis":  NewRedis(client, "test"),
	}
}

func TestDatabaseCreateAndFind(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			widgets := NewCollection[widget](db, "ns/widgets")

			require.NoError(t, widgets.Create(ctx, &widget{ID: "w1", Owner: "alice", Count: 1, Live: true}))
			require.NoError(t, widgets.Create(ctx, &widget{ID: "w2", Owner: "alice", Count: 2}))
			require.NoError(t, widgets.Create(ctx, &widget{ID: "w3", Owner: "bob", Count: 3, Live: true}))

			got, err := widgets.FindOne(ctx, Filter{"id": "w2"})
			require.NoError(t, err)
			require.Equal(t, "alice", got.Owner)
			require.Equal(t, 2, got.Count)

			alice, err := widgets.Find(ctx, Filter{"owner": "alice"})
			require.NoError(t, err)
			require.Len(t, alice, 2)

			live, err := widgets.Find(ctx, Filter{"live": true})
			require.NoError(t, err)
			require.Len(t, live, 2)

			byCount, err := widgets.FindOne(ctx, Filter{"count": 3})
			require.NoError(t, err)
			require.Equal(t, "w3", byCount.ID)

			all, err := widgets.Find(ctx, nil)
			require.NoError(t, err)
			require.Len(t, all, 3)

			_, err = widgets.FindOne(ctx, Filter{"owner": "carol"})
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestDatabaseCreateRejectsDuplicateAndMissingID(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, db.Create(ctx, "c", Document{"id": "x"}))
			require.ErrorIs(t, db.Create(ctx, "c", Document{"id": "x"}), ErrDuplicateID)
			require.ErrorIs(t, db.Create(ctx, "c", Document{"name": "no-id"}), ErrMissingID)
		})
	}
}

func TestDatabaseUpdateMergesShallow(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			widgets := NewCollection[widget](db, "widgets")

			require.NoError(t, widgets.Create(ctx, &widget{ID: "w1", Owner: "alice", Count: 1, Tags: map[string]string{"a": "1"}}))
			require.NoError(t, widgets.Update(ctx, "w1", Document{
				"count": 5,
				"tags":  map[string]string{"b": "2"},
				"id":    "hijack",
			}))

			got, err := widgets.FindOne(ctx, Filter{"id": "w1"})
			require.NoError(t, err)
			require.Equal(t, "alice", got.Owner)
			require.Equal(t, 5, got.Count)
			require.Equal(t, map[string]string{"b": "2"}, got.Tags)

			require.ErrorIs(t, widgets.Update(ctx, "missing", Document{"count": 1}), ErrNotFound)
		})
	}
}

func TestDatabaseRemoveIsIdempotent(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, db.Create(ctx, "c", Document{"id": "x"}))
			require.NoError(t, db.Remove(ctx, "c", "x"))
			require.NoError(t, db.Remove(ctx, "c", "x"))
			require.NoError(t, db.Remove(ctx, "never", "x"))

			_, err := db.FindOne(ctx, "c", Filter{"id": "x"})
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestDatabaseGetSet(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := db.Get(ctx, "ns/blacklist")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Set(ctx, "ns/blacklist", []byte(`[{"ip":"1.2.3.4"}]`)))
			got, err := db.Get(ctx, "ns/blacklist")
			require.NoError(t, err)
			require.JSONEq(t, `[{"ip":"1.2.3.4"}]`, string(got))
		})
	}
}

func TestDatabaseConcurrentUpdatesKeepDocument(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, db.Create(ctx, "c", Document{"id": "x"}))

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func(field string) {
					defer wg.Done()
					_ = db.Update(ctx, "c", "x", Document{field: true})
				}(string(rune('a' + i)))
			}
			wg.Wait()

			doc, err := db.FindOne(ctx, "c", Filter{"id": "x"})
			require.NoError(t, err)
			require.Equal(t, "x", doc["id"])
		})
	}
}

func TestRedisUnavailableIsWrapped(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	db := NewRedis(client, "")
	mr.Close()

	_, err = db.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrUnavailable)
}
