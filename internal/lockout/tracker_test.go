package lockout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
	"github.com/wolfeidau/shortlink/internal/store/memory"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTracker(t *testing.T, policies Policies) (*Tracker, *testClock, *memory.AttemptStore) {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	attempts := memory.NewAttemptStore()

	tracker, err := NewTracker("test", attempts, policies, WithNow(clock.Now))
	require.NoError(t, err)

	return tracker, clock, attempts
}

func TestNewTracker_validation(t *testing.T) {
	_, err := NewTracker("test", nil, AdminPolicies())
	require.Error(t, err)

	_, err = NewTracker("test", memory.NewAttemptStore(), Policies{})
	require.Error(t, err)

	_, err = NewTracker("test", memory.NewAttemptStore(), Policies{
		AttemptLogin: {MaxAttempts: 0, LockoutDuration: time.Minute},
	})
	require.Error(t, err)
}

func TestTracker_IsLocked_noRecord(t *testing.T) {
	for name, policies := range map[string]Policies{"admin": AdminPolicies(), "user": UserPolicies()} {
		tracker, _, _ := newTestTracker(t, policies)

		for attemptType, policy := range policies {
			t.Run(name+"/"+string(attemptType), func(t *testing.T) {
				status, err := tracker.IsLocked(context.Background(), "subject-1", attemptType)
				require.NoError(t, err)
				require.False(t, status.Locked)
				require.Equal(t, policy.MaxAttempts, status.RemainingAttempts)
				require.Nil(t, status.LockoutEndsAt)
			})
		}
	}
}

func TestTracker_RecordFailedAttempt_locksAtThreshold(t *testing.T) {
	policies := AdminPolicies()
	ctx := context.Background()

	for attemptType, policy := range policies {
		t.Run(string(attemptType), func(t *testing.T) {
			tracker, clock, _ := newTestTracker(t, policies)

			for i := 1; i < policy.MaxAttempts; i++ {
				status, err := tracker.RecordFailedAttempt(ctx, "admin-1", attemptType)
				require.NoError(t, err)
				require.False(t, status.Locked)
				require.Equal(t, policy.MaxAttempts-i, status.RemainingAttempts)
			}

			status, err := tracker.RecordFailedAttempt(ctx, "admin-1", attemptType)
			require.NoError(t, err)
			require.True(t, status.Locked)
			require.Zero(t, status.RemainingAttempts)
			require.NotNil(t, status.LockoutEndsAt)
			require.WithinDuration(t, clock.Now().Add(policy.LockoutDuration), *status.LockoutEndsAt, time.Second)

			status, err = tracker.IsLocked(ctx, "admin-1", attemptType)
			require.NoError(t, err)
			require.True(t, status.Locked)
		})
	}
}

func TestTracker_attemptTypesArePartitioned(t *testing.T) {
	tracker, _, _ := newTestTracker(t, AdminPolicies())
	ctx := context.Background()

	for range 5 {
		_, err := tracker.RecordFailedAttempt(ctx, "admin-1", AttemptTwoFactor)
		require.NoError(t, err)
	}

	status, err := tracker.IsLocked(ctx, "admin-1", AttemptTwoFactor)
	require.NoError(t, err)
	require.True(t, status.Locked)

	status, err = tracker.IsLocked(ctx, "admin-1", AttemptPasswordReset)
	require.NoError(t, err)
	require.False(t, status.Locked)
	require.Equal(t, 5, status.RemainingAttempts)

	status, err = tracker.IsLocked(ctx, "admin-2", AttemptTwoFactor)
	require.NoError(t, err)
	require.False(t, status.Locked)
}

func TestTracker_lockedFailureDoesNotExtend(t *testing.T) {
	tracker, clock, _ := newTestTracker(t, AdminPolicies())
	ctx := context.Background()

	var locked Status
	for range 5 {
		var err error
		locked, err = tracker.RecordFailedAttempt(ctx, "admin-1", AttemptLogin)
		require.NoError(t, err)
	}
	require.True(t, locked.Locked)

	clock.Advance(5 * time.Minute)

	status, err := tracker.RecordFailedAttempt(ctx, "admin-1", AttemptLogin)
	require.NoError(t, err)
	require.True(t, status.Locked)
	require.True(t, locked.LockoutEndsAt.Equal(*status.LockoutEndsAt))
}

func TestTracker_expiredLockoutResets(t *testing.T) {
	ctx := context.Background()

	t.Run("IsLocked clears and restores budget", func(t *testing.T) {
		tracker, clock, attempts := newTestTracker(t, AdminPolicies())
		for range 5 {
			_, err := tracker.RecordFailedAttempt(ctx, "admin-1", AttemptLogin)
			require.NoError(t, err)
		}

		clock.Advance(15*time.Minute + time.Second)

		status, err := tracker.IsLocked(ctx, "admin-1", AttemptLogin)
		require.NoError(t, err)
		require.False(t, status.Locked)
		require.Equal(t, 5, status.RemainingAttempts)

		record, err := attempts.Get(ctx, "admin-1", string(AttemptLogin))
		require.NoError(t, err)
		require.Zero(t, record.FailedCount)
		require.Nil(t, record.LockoutUntil)

		// Idempotent
		status, err = tracker.IsLocked(ctx, "admin-1", AttemptLogin)
		require.NoError(t, err)
		require.False(t, status.Locked)
		require.Equal(t, 5, status.RemainingAttempts)
	})

	t.Run("RecordFailedAttempt starts a fresh count", func(t *testing.T) {
		tracker, clock, _ := newTestTracker(t, AdminPolicies())
		for range 5 {
			_, err := tracker.RecordFailedAttempt(ctx, "admin-1", AttemptLogin)
			require.NoError(t, err)
		}

		clock.Advance(16 * time.Minute)

		status, err := tracker.RecordFailedAttempt(ctx, "admin-1", AttemptLogin)
		require.NoError(t, err)
		require.False(t, status.Locked)
		require.Equal(t, 4, status.RemainingAttempts)
	})
}

func TestTracker_Inspect_isReadOnly(t *testing.T) {
	tracker, clock, attempts := newTestTracker(t, AdminPolicies())
	ctx := context.Background()

	for range 5 {
		_, err := tracker.RecordFailedAttempt(ctx, "admin-1", AttemptLogin)
		require.NoError(t, err)
	}
	clock.Advance(time.Hour)

	in, err := tracker.Inspect(ctx, "admin-1", AttemptLogin)
	require.NoError(t, err)
	require.True(t, in.Stale)
	require.False(t, in.Status.Locked)
	require.Equal(t, 5, in.Status.RemainingAttempts)

	// Nothing written yet
	record, err := attempts.Get(ctx, "admin-1", string(AttemptLogin))
	require.NoError(t, err)
	require.Equal(t, 5, record.FailedCount)
	require.NotNil(t, record.LockoutUntil)

	require.NoError(t, tracker.Reconcile(ctx, in))

	record, err = attempts.Get(ctx, "admin-1", string(AttemptLogin))
	require.NoError(t, err)
	require.Zero(t, record.FailedCount)
	require.Nil(t, record.LockoutUntil)
}

func TestTracker_RecordSuccess(t *testing.T) {
	tracker, _, attempts := newTestTracker(t, AdminPolicies())
	ctx := context.Background()

	for failures := range 6 {
		for range failures {
			_, err := tracker.RecordFailedAttempt(ctx, "admin-1", AttemptLogin)
			require.NoError(t, err)
		}

		require.NoError(t, tracker.RecordSuccess(ctx, "admin-1", AttemptLogin))

		status, err := tracker.IsLocked(ctx, "admin-1", AttemptLogin)
		require.NoError(t, err)
		require.False(t, status.Locked)
		require.Equal(t, 5, status.RemainingAttempts)

		_, err = attempts.Get(ctx, "admin-1", string(AttemptLogin))
		require.ErrorIs(t, err, store.ErrAttemptNotFound)
	}
}

func TestTracker_RemainingLockSeconds(t *testing.T) {
	tracker, clock, _ := newTestTracker(t, AdminPolicies())
	ctx := context.Background()

	seconds, err := tracker.RemainingLockSeconds(ctx, "admin-1", AttemptTwoFactor)
	require.NoError(t, err)
	require.Zero(t, seconds)

	for range 5 {
		_, err := tracker.RecordFailedAttempt(ctx, "admin-1", AttemptTwoFactor)
		require.NoError(t, err)
	}

	seconds, err = tracker.RemainingLockSeconds(ctx, "admin-1", AttemptTwoFactor)
	require.NoError(t, err)
	require.Equal(t, 30*60, seconds)

	clock.Advance(10*time.Minute + 500*time.Millisecond)

	seconds, err = tracker.RemainingLockSeconds(ctx, "admin-1", AttemptTwoFactor)
	require.NoError(t, err)
	require.Equal(t, 20*60, seconds)
}

func TestTracker_CleanupExpired(t *testing.T) {
	tracker, clock, attempts := newTestTracker(t, AdminPolicies())
	ctx := context.Background()

	for range 5 {
		_, err := tracker.RecordFailedAttempt(ctx, "admin-1", AttemptLogin)
		require.NoError(t, err)
		_, err = tracker.RecordFailedAttempt(ctx, "admin-2", AttemptTwoFactor)
		require.NoError(t, err)
	}

	// Login lockout (15m) has ended, 2fa lockout (30m) has not
	clock.Advance(20 * time.Minute)

	count, err := tracker.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = attempts.Get(ctx, "admin-1", string(AttemptLogin))
	require.ErrorIs(t, err, store.ErrAttemptNotFound)
	_, err = attempts.Get(ctx, "admin-2", string(AttemptTwoFactor))
	require.NoError(t, err)
}

func TestTracker_callerMisuse(t *testing.T) {
	tracker, _, _ := newTestTracker(t, UserPolicies())
	ctx := context.Background()

	_, err := tracker.IsLocked(ctx, "", AttemptEmailVerification)
	require.ErrorIs(t, err, ErrMissingSubject)

	_, err = tracker.RecordFailedAttempt(ctx, "user-1", AttemptLogin)
	require.ErrorIs(t, err, ErrUnknownAttemptType)
}

type failingAttemptStore struct {
	*memory.AttemptStore
}

var errStoreDown = errors.New("store unavailable")

func (s *failingAttemptStore) Get(ctx context.Context, subjectID, attemptType string) (*models.VerificationAttempt, error) {
	return nil, errStoreDown
}

func TestTracker_storeFailurePropagates(t *testing.T) {
	tracker, err := NewTracker("test", &failingAttemptStore{memory.NewAttemptStore()}, AdminPolicies())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = tracker.IsLocked(ctx, "admin-1", AttemptLogin)
	require.ErrorIs(t, err, errStoreDown)

	_, err = tracker.RecordFailedAttempt(ctx, "admin-1", AttemptLogin)
	require.ErrorIs(t, err, errStoreDown)
}
