package lockout

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AttemptType partitions failure budgets so unrelated flows don't share a counter.
type AttemptType string

const (
	AttemptLogin             AttemptType = "login"
	AttemptTwoFactor         AttemptType = "2fa"
	AttemptPasswordReset     AttemptType = "password_reset"
	AttemptEmailVerification AttemptType = "email_verification"
)

// ErrUnknownAttemptType is returned when a tracker has no policy for an attempt type.
var ErrUnknownAttemptType = errors.New("unknown attempt type")

// Policy is the lockout rule for one attempt type.
type Policy struct {
	// MaxAttempts is the number of consecutive failures that starts a lockout.
	MaxAttempts int `yaml:"max_attempts"`

	// LockoutDuration is how long a lockout lasts once started.
	LockoutDuration time.Duration `yaml:"lockout_duration"`
}

// Validate checks that the policy is usable.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be greater than 0, got %d", p.MaxAttempts)
	}
	if p.LockoutDuration <= 0 {
		return fmt.Errorf("lockout duration must be greater than 0, got %s", p.LockoutDuration)
	}
	return nil
}

// Policies maps attempt types to their lockout rules.
type Policies map[AttemptType]Policy

// Validate checks every policy in the table.
func (p Policies) Validate() error {
	if len(p) == 0 {
		return errors.New("at least one lockout policy is required")
	}
	for attemptType, policy := range p {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("invalid %q policy: %w", attemptType, err)
		}
	}
	return nil
}

// Merge returns a copy of p with the entries of override replacing or adding to it.
func (p Policies) Merge(override Policies) Policies {
	merged := make(Policies, len(p)+len(override))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// AdminPolicies returns the lockout rules for admin accounts.
// A second factor locks for longer than a password since guessing a short code is cheaper.
func AdminPolicies() Policies {
	return Policies{
		AttemptLogin:         {MaxAttempts: 5, LockoutDuration: 15 * time.Minute},
		AttemptTwoFactor:     {MaxAttempts: 5, LockoutDuration: 30 * time.Minute},
		AttemptPasswordReset: {MaxAttempts: 5, LockoutDuration: 15 * time.Minute},
	}
}

// UserPolicies returns the lockout rules for end-user accounts.
func UserPolicies() Policies {
	return Policies{
		AttemptEmailVerification: {MaxAttempts: 5, LockoutDuration: 60 * time.Minute},
		AttemptTwoFactor:         {MaxAttempts: 5, LockoutDuration: 60 * time.Minute},
		AttemptPasswordReset:     {MaxAttempts: 5, LockoutDuration: 60 * time.Minute},
	}
}

// PolicyFile is the YAML document used to override the built-in policy tables.
//
//	admin:
//	  login:
//	    max_attempts: 3
//	    lockout_duration: 20m
//	user:
//	  email_verification:
//	    max_attempts: 10
//	    lockout_duration: 2h
type PolicyFile struct {
	Admin Policies `yaml:"admin"`
	User  Policies `yaml:"user"`
}

// LoadPolicyFile reads policy overrides from a YAML file.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	for name, policies := range map[string]Policies{"admin": file.Admin, "user": file.User} {
		for attemptType, policy := range policies {
			if err := policy.Validate(); err != nil {
				return nil, fmt.Errorf("invalid %s %q policy: %w", name, attemptType, err)
			}
		}
	}

	return &file, nil
}
