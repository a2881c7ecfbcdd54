// Package impl contains the implementation of the application's business logic.
package impl

import (
	"time"

	"propguard/config"
	"propguard/internal/domain/entity"
)

// lockoutPolicy is the effective lockout decision for one account: the
// process-wide configuration with any per-user overrides applied.
type lockoutPolicy struct {
	maxAttempts int
	duration    time.Duration
}

// resolveLockoutPolicy merges configuration defaults with the user's
// security-settings overrides.
func resolveLockoutPolicy(cfg *config.AuthConfig, settings *entity.SecuritySettings) lockoutPolicy {
	policy := lockoutPolicy{
		maxAttempts: cfg.MaxFailedAttempts,
		duration:    cfg.LockoutDuration,
	}

	if settings == nil {
		return policy
	}
	if settings.MaxFailedAttempts != nil && *settings.MaxFailedAttempts > 0 {
		policy.maxAttempts = *settings.MaxFailedAttempts
	}
	if settings.LockoutDurationMinutes != nil && *settings.LockoutDurationMinutes > 0 {
		policy.duration = time.Duration(*settings.LockoutDurationMinutes) * time.Minute
	}

	return policy
}

// shouldLock reports whether the attempt count has reached the threshold.
func (p lockoutPolicy) shouldLock(failedAttempts int) bool {
	return failedAttempts >= p.maxAttempts
}

// lockedUntil computes the lock expiry from the moment the threshold tripped.
func (p lockoutPolicy) lockedUntil(now time.Time) time.Time {
	return now.Add(p.duration)
}
