// Package lockout tracks failed verification attempts per (subject, attempt type) and locks
// a pair out for a policy-defined duration once it has failed too often.
//
// The same Tracker serves admin and end-user accounts; each call site supplies its own
// policy table and its own AttemptStore, which keeps the two subject namespaces apart.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
	"github.com/wolfeidau/shortlink/internal/telemetry"
	"go.opentelemetry.io/otel/metric"
)

// ErrMissingSubject is returned when a subject ID is empty.
var ErrMissingSubject = errors.New("subject id is required")

// Status is the lockout state of one (subject, attempt type) pair.
type Status struct {
	Locked bool

	// RemainingAttempts is the number of failures left before a lockout, zero while locked.
	RemainingAttempts int

	// LockoutEndsAt is set while locked.
	LockoutEndsAt *time.Time
}

// RemainingSeconds returns the whole seconds left on the lockout at now, rounded up.
func (s Status) RemainingSeconds(now time.Time) int {
	if !s.Locked || s.LockoutEndsAt == nil {
		return 0
	}
	remaining := s.LockoutEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

// Inspection is the result of a read-only lockout check.
//
// When Stale is true the stored record still carries a lockout that has already ended; the
// reported Status already treats it as cleared, and Reconcile writes that reset back.
type Inspection struct {
	Status Status
	Stale  bool

	subjectID   string
	attemptType AttemptType
}

// Tracker applies lockout policies on top of an AttemptStore.
type Tracker struct {
	name     string
	attempts store.AttemptStore
	policies Policies
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNow overrides the clock, used by tests.
func WithNow(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker. name labels log lines, e.g. "admin" or "user".
func NewTracker(name string, attempts store.AttemptStore, policies Policies, opts ...Option) (*Tracker, error) {
	if attempts == nil {
		return nil, errors.New("attempt store is required")
	}
	if err := policies.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lockout policies: %w", err)
	}

	t := &Tracker{
		name:     name,
		attempts: attempts,
		policies: policies,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Policy returns the policy for an attempt type.
func (t *Tracker) Policy(attemptType AttemptType) (Policy, error) {
	policy, ok := t.policies[attemptType]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s", ErrUnknownAttemptType, attemptType)
	}
	return policy, nil
}

// Inspect reads the lockout state without writing anything.
func (t *Tracker) Inspect(ctx context.Context, subjectID string, attemptType AttemptType) (Inspection, error) {
	policy, err := t.checkArgs(subjectID, attemptType)
	if err != nil {
		return Inspection{}, err
	}

	in := Inspection{subjectID: subjectID, attemptType: attemptType}
	now := t.now()

	attempt, err := t.attempts.Get(ctx, subjectID, string(attemptType))
	if err != nil {
		if errors.Is(err, store.ErrAttemptNotFound) {
			in.Status = Status{RemainingAttempts: policy.MaxAttempts}
			return in, nil
		}
		return Inspection{}, fmt.Errorf("failed to get attempt record: %w", err)
	}

	if attempt.LockoutElapsed(now) {
		in.Stale = true
		in.Status = Status{RemainingAttempts: policy.MaxAttempts}
		return in, nil
	}

	in.Status = statusFor(attempt, policy, now)
	return in, nil
}

// Reconcile resets the failure count and clears the ended lockout of a stale inspection.
// It does nothing for inspections that are not stale.
func (t *Tracker) Reconcile(ctx context.Context, in Inspection) error {
	if !in.Stale {
		return nil
	}

	now := t.now()
	err := t.attempts.Put(ctx, &models.VerificationAttempt{
		SubjectID:     in.subjectID,
		AttemptType:   string(in.attemptType),
		FailedCount:   0,
		LastAttemptAt: now,
		UpdatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("failed to reset attempt record: %w", err)
	}

	log.Debug().
		Str("tracker", t.name).
		Str("subject_id", in.subjectID).
		Str("attempt_type", string(in.attemptType)).
		Msg("Cleared ended lockout")

	return nil
}

// IsLocked reports the lockout state, resetting an ended lockout on the way (lazy cleanup on read).
func (t *Tracker) IsLocked(ctx context.Context, subjectID string, attemptType AttemptType) (Status, error) {
	in, err := t.Inspect(ctx, subjectID, attemptType)
	if err != nil {
		return Status{}, err
	}

	if err := t.Reconcile(ctx, in); err != nil {
		return Status{}, err
	}

	return in.Status, nil
}

// RecordFailedAttempt counts one failure and starts a lockout when the policy threshold is reached.
// A failure recorded while a lockout is active leaves the record unchanged and reports the lockout.
func (t *Tracker) RecordFailedAttempt(ctx context.Context, subjectID string, attemptType AttemptType) (Status, error) {
	policy, err := t.checkArgs(subjectID, attemptType)
	if err != nil {
		return Status{}, err
	}

	now := t.now()

	attempt, err := t.attempts.Get(ctx, subjectID, string(attemptType))
	switch {
	case errors.Is(err, store.ErrAttemptNotFound):
		attempt = &models.VerificationAttempt{
			SubjectID:   subjectID,
			AttemptType: string(attemptType),
		}
	case err != nil:
		return Status{}, fmt.Errorf("failed to get attempt record: %w", err)
	}

	if attempt.IsLocked(now) {
		return statusFor(attempt, policy, now), nil
	}

	if attempt.LockoutElapsed(now) {
		attempt.FailedCount = 0
		attempt.LockoutUntil = nil
	}

	attempt.FailedCount++
	attempt.LastAttemptAt = now
	attempt.UpdatedAt = now

	metrics := telemetry.GetMetrics()
	metrics.FailedAttemptsTotal.Add(ctx, 1, telemetryAttrs(attemptType))

	if attempt.FailedCount >= policy.MaxAttempts {
		until := now.Add(policy.LockoutDuration)
		attempt.LockoutUntil = &until

		metrics.LockoutsTotal.Add(ctx, 1, telemetryAttrs(attemptType))

		log.Info().
			Str("tracker", t.name).
			Str("subject_id", subjectID).
			Str("attempt_type", string(attemptType)).
			Int("failed_count", attempt.FailedCount).
			Time("lockout_until", until).
			Msg("Lockout started")
	}

	if err := t.attempts.Put(ctx, attempt); err != nil {
		return Status{}, fmt.Errorf("failed to store attempt record: %w", err)
	}

	return statusFor(attempt, policy, now), nil
}

// RecordSuccess deletes the attempt record so no stale count or lockout survives a success.
func (t *Tracker) RecordSuccess(ctx context.Context, subjectID string, attemptType AttemptType) error {
	if _, err := t.checkArgs(subjectID, attemptType); err != nil {
		return err
	}

	if err := t.attempts.Delete(ctx, subjectID, string(attemptType)); err != nil {
		return fmt.Errorf("failed to delete attempt record: %w", err)
	}

	return nil
}

// RemainingLockSeconds returns the whole seconds left on an active lockout, or zero.
func (t *Tracker) RemainingLockSeconds(ctx context.Context, subjectID string, attemptType AttemptType) (int, error) {
	status, err := t.IsLocked(ctx, subjectID, attemptType)
	if err != nil {
		return 0, err
	}

	return status.RemainingSeconds(t.now()), nil
}

// CleanupExpired deletes every record whose lockout has ended (cleanup job).
func (t *Tracker) CleanupExpired(ctx context.Context) (int, error) {
	count, err := t.attempts.DeleteExpired(ctx, t.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired attempt records: %w", err)
	}

	if count > 0 {
		log.Info().
			Str("tracker", t.name).
			Int("count", count).
			Msg("Deleted expired lockouts")
	}

	return count, nil
}

func (t *Tracker) checkArgs(subjectID string, attemptType AttemptType) (Policy, error) {
	if subjectID == "" {
		return Policy{}, ErrMissingSubject
	}
	return t.Policy(attemptType)
}

func statusFor(attempt *models.VerificationAttempt, policy Policy, now time.Time) Status {
	if attempt.IsLocked(now) {
		until := *attempt.LockoutUntil
		return Status{Locked: true, LockoutEndsAt: &until}
	}

	return Status{RemainingAttempts: max(policy.MaxAttempts-attempt.FailedCount, 0)}
}

func telemetryAttrs(attemptType AttemptType) metric.MeasurementOption {
	return metric.WithAttributes(telemetry.AttrAttemptType.String(string(attemptType)))
}
