package booking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() Session {
	return Session{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		Stage:     StageSlot,
		Draft: Draft{
			Specialization: "Cardiology",
			DoctorID:       uuid.New(),
			DoctorName:     "Dr. Reyes",
			Date:           dec1,
			Time:           "09:00 AM",
		},
		UpdatedAt: time.Date(2025, time.November, 20, 9, 0, 0, 0, time.UTC),
	}
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(time.Minute)
	now := time.Date(2025, time.November, 20, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	s := sampleSession()
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, *got)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStoreKeepsSessionRefreshedDuringExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(time.Minute)
	now := time.Date(2025, time.November, 20, 9, 0, 0, 0, time.UTC)

	s := sampleSession()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Save(ctx, s))

	// the first clock read inside Get lands a concurrent Save before the delete
	now = now.Add(2 * time.Minute)
	saved := false
	store.now = func() time.Time {
		if !saved {
			saved = true
			require.NoError(t, store.Save(ctx, s))
		}
		return now
	}

	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	require.True(t, saved)

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, *got)
}

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisSessionStore(client, 30*time.Minute)

	s := sampleSession()
	require.NoError(t, store.Save(ctx, s))
	assert.Equal(t, 30*time.Minute, mr.TTL(sessionKeyPrefix+s.ID.String()))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Draft, got.Draft)
	assert.Equal(t, s.Stage, got.Stage)
	assert.True(t, s.UpdatedAt.Equal(got.UpdatedAt))

	mr.FastForward(31 * time.Minute)
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
