package auth

import (
	"context"
	"sync"

	"propguard/internal/domain/service"
)

// memoryChallengeStore is the in-process implementation of
// service.ChallengeStore. State is per-instance; horizontally scaled
// deployments should swap in a shared-cache implementation.
type memoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]service.Challenge
	clock      service.Clock
}

// NewMemoryChallengeStore is the constructor for memoryChallengeStore.
func NewMemoryChallengeStore(clock service.Clock) service.ChallengeStore {
	return &memoryChallengeStore{
		challenges: make(map[string]service.Challenge),
		clock:      clock,
	}
}

// Issue stores a challenge under key until its ExpiresAt passes.
func (s *memoryChallengeStore) Issue(_ context.Context, key string, challenge service.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	s.challenges[key] = challenge

	return nil
}

// Consume removes and returns the challenge for key, exactly once.
func (s *memoryChallengeStore) Consume(_ context.Context, key string) (service.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	challenge, ok := s.challenges[key]
	if !ok {
		return service.Challenge{}, false
	}
	delete(s.challenges, key)

	if s.clock().After(challenge.ExpiresAt) {
		return service.Challenge{}, false
	}

	return challenge, true
}

// sweepLocked drops expired entries. Callers must hold the mutex.
func (s *memoryChallengeStore) sweepLocked() {
	now := s.clock()
	for key, challenge := range s.challenges {
		if now.After(challenge.ExpiresAt) {
			delete(s.challenges, key)
		}
	}
}
