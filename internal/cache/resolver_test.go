package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/testutil"
	"github.com/npezzotti/flashchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]types.PublicUser
	getErr  error
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]types.PublicUser)}
}

func (c *mapCache) Get(_ context.Context, id string) (types.PublicUser, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return types.PublicUser{}, false, c.getErr
	}
	u, ok := c.entries[id]
	return u, ok, nil
}

func (c *mapCache) Set(_ context.Context, u types.PublicUser) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[u.Id] = u
	return nil
}

func (c *mapCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func TestProfileResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetUsersByIds", []string{"u1"}).
			Return([]database.User{{Id: "u1", Name: "alice", Avatar: "a.png", Email: "alice@example.com"}}, nil).
			Once()

		c := newMapCache()
		r := NewProfileResolver(db, c, testutil.TestLogger(t))

		got, err := r.Resolve(ctx, "u1", "u1")
		require.NoError(t, err)
		assert.Equal(t, types.PublicUser{Id: "u1", Name: "alice", Avatar: "a.png"}, got["u1"])

		got, err = r.Resolve(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "alice", got["u1"].Name)

		db.AssertNumberOfCalls(t, "GetUsersByIds", 1)
	})

	t.Run("unknown ids are absent", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetUsersByIds", []string{"ghost"}).Return([]database.User{}, nil)

		r := NewProfileResolver(db, nil, testutil.TestLogger(t))
		got, err := r.Resolve(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = r.One(ctx, "ghost")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("cache failure falls through to the store", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetUsersByIds", []string{"u2"}).Return([]database.User{{Id: "u2", Name: "bob"}}, nil)

		c := newMapCache()
		c.getErr = errors.New("connection refused")
		r := NewProfileResolver(db, c, testutil.TestLogger(t))

		p, err := r.One(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "bob", p.Name)
	})

	t.Run("store failure", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetUsersByIds", mock.Anything).Return(nil, errors.New("db down"))

		r := NewProfileResolver(db, NopProfileCache{}, testutil.TestLogger(t))
		_, err := r.Resolve(ctx, "u3")
		assert.Error(t, err)
	})
}

func TestProfileResolver_Invalidate(t *testing.T) {
	c := newMapCache()
	c.entries["u1"] = types.PublicUser{Id: "u1", Name: "stale"}

	db := &database.MockRepository{}
	db.On("GetUsersByIds", []string{"u1"}).Return([]database.User{{Id: "u1", Name: "fresh"}}, nil)

	r := NewProfileResolver(db, c, testutil.TestLogger(t))
	r.Invalidate(context.Background(), "u1")

	p, err := r.One(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", p.Name)
}
