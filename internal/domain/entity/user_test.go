package entity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_IsCurrentlyLocked(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	until := now.Add(30 * time.Minute)

	unlocked := &User{}
	assert.False(t, unlocked.IsCurrentlyLocked(now))

	locked := &User{IsLocked: true, LockedUntil: &until}
	assert.True(t, locked.IsCurrentlyLocked(now))
	assert.False(t, locked.IsCurrentlyLocked(until.Add(time.Second)))

	// The flag alone is not enough without a window.
	flagOnly := &User{IsLocked: true}
	assert.False(t, flagOnly.IsCurrentlyLocked(now))
}

func TestUser_PushPasswordHistory(t *testing.T) {
	user := &User{}

	for i := range PasswordHistoryLimit + 2 {
		user.PushPasswordHistory(fmt.Sprintf("hash-%d", i))
	}

	assert.Len(t, user.PasswordHistory, PasswordHistoryLimit)
	// Most recent first, oldest entries trimmed.
	assert.Equal(t, "hash-6", user.PasswordHistory[0])
	assert.Equal(t, "hash-2", user.PasswordHistory[PasswordHistoryLimit-1])
}

func TestUser_MFARequired(t *testing.T) {
	assert.False(t, (&User{}).MFARequired())
	assert.True(t, (&User{MFAEnabled: true}).MFARequired())
	assert.True(t, (&User{SecuritySettings: &SecuritySettings{RequireMFA: true}}).MFARequired())
	assert.False(t, (&User{SecuritySettings: &SecuritySettings{}}).MFARequired())
}
