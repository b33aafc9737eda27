package mgstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var stableTime = time.Date(2022, 11, 9, 10, 11, 12, 0, time.UTC)

func TestStorePosts(t *testing.T) {
	ctx := context.Background()

	var store *Store

	setup := func(test func(t *testing.T)) func(t *testing.T) {
		return func(t *testing.T) {
			store = openTestStore(t)
			test(t)
		}
	}

	t.Run("InsertAndGet", setup(func(t *testing.T) {
		inserted, err := store.InsertPost(ctx, stableTime, stableTime, "Hello.\n")
		require.NoError(t, err)
		require.Greater(t, inserted.ID, int64(0))
		require.Equal(t, stableTime, inserted.Created)
		require.Equal(t, stableTime, inserted.Updated)
		require.Equal(t, "Hello.\n", inserted.Content)

		post, err := store.GetPost(ctx, inserted.ID)
		require.NoError(t, err)
		require.Equal(t, inserted, post)
	}))

	t.Run("GetNotFound", setup(func(t *testing.T) {
		_, err := store.GetPost(ctx, 123)
		require.ErrorIs(t, err, ErrPostNotFound)
	}))

	t.Run("SubsecondPrecisionDropped", setup(func(t *testing.T) {
		precise := stableTime.Add(123 * time.Millisecond)

		inserted, err := store.InsertPost(ctx, precise, precise, "content\n")
		require.NoError(t, err)
		require.Equal(t, stableTime, inserted.Created)
		require.Equal(t, stableTime, inserted.Updated)
	}))

	t.Run("ListNewestFirst", setup(func(t *testing.T) {
		post1, err := store.InsertPost(ctx, stableTime, stableTime, "first\n")
		require.NoError(t, err)
		post2, err := store.InsertPost(ctx, stableTime.Add(1*time.Hour), stableTime.Add(1*time.Hour), "second\n")
		require.NoError(t, err)
		post3, err := store.InsertPost(ctx, stableTime.Add(2*time.Hour), stableTime.Add(2*time.Hour), "third\n")
		require.NoError(t, err)

		posts, err := store.ListPosts(ctx)
		require.NoError(t, err)
		require.Equal(t, []*Post{post3, post2, post1}, posts)
	}))

	t.Run("ListTiesBrokenByID", setup(func(t *testing.T) {
		post1, err := store.InsertPost(ctx, stableTime, stableTime, "older\n")
		require.NoError(t, err)
		post2, err := store.InsertPost(ctx, stableTime, stableTime, "newer\n")
		require.NoError(t, err)

		posts, err := store.ListPosts(ctx)
		require.NoError(t, err)
		require.Equal(t, []*Post{post2, post1}, posts)
	}))

	t.Run("ListEmpty", setup(func(t *testing.T) {
		posts, err := store.ListPosts(ctx)
		require.NoError(t, err)
		require.Empty(t, posts)
	}))

	t.Run("Update", setup(func(t *testing.T) {
		inserted, err := store.InsertPost(ctx, stableTime, stableTime, "before\n")
		require.NoError(t, err)

		inserted.Updated = stableTime.Add(1 * time.Hour)
		inserted.Content = "after\n"
		require.NoError(t, store.UpdatePost(ctx, inserted))

		post, err := store.GetPost(ctx, inserted.ID)
		require.NoError(t, err)
		require.Equal(t, stableTime, post.Created)
		require.Equal(t, stableTime.Add(1*time.Hour), post.Updated)
		require.Equal(t, "after\n", post.Content)
	}))

	t.Run("UpdateMissingIsNoOp", setup(func(t *testing.T) {
		err := store.UpdatePost(ctx, &Post{ID: 123, Created: stableTime, Updated: stableTime, Content: "x"})
		require.NoError(t, err)
	}))

	t.Run("Delete", setup(func(t *testing.T) {
		inserted, err := store.InsertPost(ctx, stableTime, stableTime, "doomed\n")
		require.NoError(t, err)

		require.NoError(t, store.DeletePost(ctx, inserted.ID))

		_, err = store.GetPost(ctx, inserted.ID)
		require.ErrorIs(t, err, ErrPostNotFound)
	}))

	t.Run("DeleteMissingIsNoOp", setup(func(t *testing.T) {
		require.NoError(t, store.DeletePost(ctx, 123))
	}))
}

func TestStoreKV(t *testing.T) {
	ctx := context.Background()

	var store *Store

	setup := func(test func(t *testing.T)) func(t *testing.T) {
		return func(t *testing.T) {
			store = openTestStore(t)
			test(t)
		}
	}

	t.Run("SetAndGet", setup(func(t *testing.T) {
		require.NoError(t, store.KVSet(ctx, KeyAbout, []byte("A blog about nothing.")))

		value, err := store.KVGet(ctx, KeyAbout)
		require.NoError(t, err)
		require.Equal(t, []byte("A blog about nothing."), value)
	}))

	t.Run("GetNotFound", setup(func(t *testing.T) {
		_, err := store.KVGet(ctx, "missing")
		require.ErrorIs(t, err, ErrKeyNotFound)
	}))

	t.Run("SetOverwrites", setup(func(t *testing.T) {
		require.NoError(t, store.KVSet(ctx, KeySalt, []byte("one")))
		require.NoError(t, store.KVSet(ctx, KeySalt, []byte("two")))

		value, err := store.KVGet(ctx, KeySalt)
		require.NoError(t, err)
		require.Equal(t, []byte("two"), value)
	}))
}

// Data survives a close/reopen cycle and rerunning migrations on an existing
// database is a no-op.
func TestStoreReopen(t *testing.T) {
	ctx := context.Background()

	logger := logrus.New()
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(logger, path)
	require.NoError(t, err)

	inserted, err := store.InsertPost(ctx, stableTime, stableTime, "durable\n")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(logger, path)
	require.NoError(t, err)
	defer store.Close()

	post, err := store.GetPost(ctx, inserted.ID)
	require.NoError(t, err)
	require.Equal(t, inserted, post)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(logrus.New(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}
