package drafts

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-authoring/internal/db"
	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

func draft(id, owner, name string, at time.Time) Draft {
	return Draft{
		Owner: owner,
		Snapshot: wizard.Snapshot{
			SessionID: id,
			Activity:  wizard.ActivityQuiz,
			General:   wizard.GeneralFields{Name: name, CourseID: 10},
			GroupIDs:  []int{2},
			SavedAt:   at,
		},
		UpdatedAt: at,
	}
}

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh, time.Hour)
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{
		"memory": NewMemoryStore(time.Hour),
		"sqlite": openSQLite(t),
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if client.Ping(context.Background()).Err() == nil {
			t.Cleanup(func() { client.Close() })
			out["redis"] = NewRedisStore(client, time.Hour)
		}
	}
	return out
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Now().UTC().Truncate(time.Millisecond)
			owner := "teacher-" + t.Name()
			require.NoError(t, s.Save(ctx, draft("rt-1", owner, "Week 1", at)))

			got, err := s.Load(ctx, "rt-1")
			require.NoError(t, err)
			assert.Equal(t, owner, got.Owner)
			assert.Equal(t, "Week 1", got.Snapshot.General.Name)
			assert.Equal(t, []int{2}, got.Snapshot.GroupIDs)
			assert.True(t, at.Equal(got.UpdatedAt))

			require.NoError(t, s.Save(ctx, draft("rt-1", owner, "Week 1 (edited)", at.Add(time.Second))))
			got, err = s.Load(ctx, "rt-1")
			require.NoError(t, err)
			assert.Equal(t, "Week 1 (edited)", got.Snapshot.General.Name)

			require.NoError(t, s.Delete(ctx, "rt-1"))
			_, err = s.Load(ctx, "rt-1")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, s.Delete(ctx, "rt-1"), "deleting twice is fine")
		})
	}
}

func TestStoreListByOwnerNewestFirst(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Now().UTC()
			owner := "owner-" + t.Name()
			require.NoError(t, s.Save(ctx, draft("ls-1", owner, "older", at.Add(-time.Minute))))
			require.NoError(t, s.Save(ctx, draft("ls-2", owner, "newer", at)))
			require.NoError(t, s.Save(ctx, draft("ls-3", "someone-else", "other", at)))

			list, err := s.List(ctx, owner)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "ls-2", list[0].SessionID)
			assert.Equal(t, "newer", list[0].Name)
			assert.Equal(t, wizard.ActivityQuiz, list[0].Activity)
			assert.Equal(t, "ls-1", list[1].SessionID)
		})
	}
}

func TestSaveWithoutSessionID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Save(context.Background(), Draft{Owner: "x"}))
		})
	}
}

func TestMemoryDraftsExpire(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour).(*memoryStore)
	s.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, draft("old", "t", "quiz", now)))

	now = now.Add(2 * time.Hour)
	_, err := s.Load(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	list, err := s.List(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLDraftsExpireAndPurge(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := openSQLite(t)
	s.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, draft("a", "t", "quiz", now)))
	require.NoError(t, s.Save(ctx, draft("b", "t", "quiz", now)))

	now = now.Add(2 * time.Hour)
	list, err := s.List(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
