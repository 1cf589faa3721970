package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

func TestAttemptStore_PutGetDelete(t *testing.T) {
	st := NewAttemptStore()
	ctx := context.Background()
	now := time.Now()

	_, err := st.Get(ctx, "admin-1", "login")
	require.ErrorIs(t, err, store.ErrAttemptNotFound)

	require.NoError(t, st.Put(ctx, &models.VerificationAttempt{
		SubjectID:     "admin-1",
		AttemptType:   "login",
		FailedCount:   2,
		LastAttemptAt: now,
		UpdatedAt:     now,
	}))

	// Attempt types are partitioned
	_, err = st.Get(ctx, "admin-1", "2fa")
	require.ErrorIs(t, err, store.ErrAttemptNotFound)

	got, err := st.Get(ctx, "admin-1", "login")
	require.NoError(t, err)
	require.Equal(t, 2, got.FailedCount)

	require.NoError(t, st.Delete(ctx, "admin-1", "login"))
	require.NoError(t, st.Delete(ctx, "admin-1", "login"))

	_, err = st.Get(ctx, "admin-1", "login")
	require.ErrorIs(t, err, store.ErrAttemptNotFound)
}

func TestAttemptStore_DeleteExpired(t *testing.T) {
	st := NewAttemptStore()
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.NoError(t, st.Put(ctx, &models.VerificationAttempt{SubjectID: "a", AttemptType: "login", FailedCount: 5, LockoutUntil: &past}))
	require.NoError(t, st.Put(ctx, &models.VerificationAttempt{SubjectID: "b", AttemptType: "login", FailedCount: 5, LockoutUntil: &future}))
	require.NoError(t, st.Put(ctx, &models.VerificationAttempt{SubjectID: "c", AttemptType: "login", FailedCount: 1}))

	count, err := st.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = st.Get(ctx, "a", "login")
	require.ErrorIs(t, err, store.ErrAttemptNotFound)
	_, err = st.Get(ctx, "b", "login")
	require.NoError(t, err)
	_, err = st.Get(ctx, "c", "login")
	require.NoError(t, err)
}
