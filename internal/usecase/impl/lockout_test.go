package impl

import (
	"testing"
	"time"

	"propguard/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestResolveLockoutPolicy(t *testing.T) {
	cfg := newTestConfig().Auth

	t.Run("defaults apply without settings", func(t *testing.T) {
		policy := resolveLockoutPolicy(cfg, nil)

		assert.Equal(t, 3, policy.maxAttempts)
		assert.Equal(t, 30*time.Minute, policy.duration)
	})

	t.Run("positive overrides replace the defaults", func(t *testing.T) {
		maxAttempts, lockoutMinutes := 5, 60
		policy := resolveLockoutPolicy(cfg, &entity.SecuritySettings{
			MaxFailedAttempts:      &maxAttempts,
			LockoutDurationMinutes: &lockoutMinutes,
		})

		assert.Equal(t, 5, policy.maxAttempts)
		assert.Equal(t, time.Hour, policy.duration)
	})

	t.Run("nil and non-positive overrides are ignored", func(t *testing.T) {
		zero := 0
		policy := resolveLockoutPolicy(cfg, &entity.SecuritySettings{
			MaxFailedAttempts: &zero,
		})

		assert.Equal(t, 3, policy.maxAttempts)
		assert.Equal(t, 30*time.Minute, policy.duration)
	})
}

func TestLockoutPolicy_ShouldLock(t *testing.T) {
	policy := lockoutPolicy{maxAttempts: 3, duration: 30 * time.Minute}

	assert.False(t, policy.shouldLock(2))
	assert.True(t, policy.shouldLock(3))
	assert.True(t, policy.shouldLock(4))
}

func TestLockoutPolicy_LockedUntil(t *testing.T) {
	policy := lockoutPolicy{maxAttempts: 3, duration: 30 * time.Minute}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(30*time.Minute), policy.lockedUntil(now))
}
