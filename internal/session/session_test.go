package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/secretaria/internal/auth"
)

func sample(id string, seen time.Time) *auth.Session {
	return &auth.Session{
		ID:           id,
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    seen.Add(time.Hour).UTC().Truncate(time.Microsecond),
		User: &auth.User{
			ID:       7,
			Nombre:   "Ana",
			Email:    "ana@example.com",
			Roles:    []string{"secretaria"},
			Permisos: []string{"contratos.ver"},
		},
		CreatedAt:  seen.UTC().Truncate(time.Microsecond),
		UpdatedAt:  seen.UTC().Truncate(time.Microsecond),
		LastSeenAt: seen.UTC().Truncate(time.Microsecond),
	}
}

// exerciseStore runs the behaviour every auth.Store must share.
func exerciseStore(t *testing.T, store auth.Store) {
	ctx := context.Background()
	now := time.Now()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	s := sample("a", now)
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, s.AccessToken, got.AccessToken)
	assert.Equal(t, s.User, got.User)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	s.AccessToken = "rotated"
	require.NoError(t, store.Save(ctx, s))
	got, err = store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.AccessToken)

	require.NoError(t, store.Save(ctx, sample("old", now.Add(-2*time.Hour))))
	n, err := store.DeleteIdle(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = store.Load(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "a"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_IsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := sample("a", time.Now())
	require.NoError(t, store.Save(ctx, s))

	s.User.Permisos[0] = "changed"
	got, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "contratos.ver", got.User.Permisos[0])

	got.User.Nombre = "otra"
	again, _ := store.Load(ctx, "a")
	assert.Equal(t, "Ana", again.User.Nombre)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("SESSION_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SESSION_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))
	_, err = pool.Exec(ctx, "DELETE FROM console_sessions")
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestPruner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.Save(ctx, sample("fresh", now)))
	require.NoError(t, store.Save(ctx, sample("stale", now.Add(-3*time.Hour))))

	p, err := NewPruner(store, 2*time.Hour, "", nil)
	require.NoError(t, err)
	p.now = func() time.Time { return now }

	assert.Equal(t, 1, p.Run(ctx))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, p.Run(ctx))
}

func TestPruner_BadSchedule(t *testing.T) {
	_, err := NewPruner(NewMemoryStore(), time.Hour, "every now and then", nil)
	assert.Error(t, err)
}
