package service

import (
	"errors"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/pkg/cryptox"
	"github.com/chatterhq/gateway/pkg/ttlcache"
)

// DefaultChallengeTTL bounds how long an authorization attempt may sit
// between start and callback.
const DefaultChallengeTTL = 10 * time.Minute

// ErrInvalidState covers unknown, expired, replayed, and cross-provider
// states alike. Callers get no hint which one it was.
var ErrInvalidState = errors.New("invalid_state")

// PKCEService owns the in-flight authorization attempts. State doubles
// as the cache key, so consuming an entry both validates the callback
// and retires the state in one step.
type PKCEService struct {
	cache *ttlcache.Cache[domain.PKCEChallenge]
}

func NewPKCEService(ttl time.Duration, now func() time.Time) *PKCEService {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &PKCEService{cache: ttlcache.New[domain.PKCEChallenge](ttl, now)}
}

// Begin mints a state and a verifier/challenge pair for a new login
// attempt.
func (s *PKCEService) Begin(p domain.Provider) (state, challenge string, err error) {
	return s.begin(p, "")
}

// BeginLink is Begin for a signed-in user attaching a provider; the
// user id rides along so the callback knows whose account to link.
func (s *PKCEService) BeginLink(p domain.Provider, userID string) (state, challenge string, err error) {
	return s.begin(p, userID)
}

func (s *PKCEService) begin(p domain.Provider, linkUserID string) (state, challenge string, err error) {
	verifier, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", "", err
	}
	state, err = cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", "", err
	}

	challenge = cryptox.S256Challenge(verifier)
	s.cache.Put(state, domain.PKCEChallenge{
		Provider:   p,
		Challenge:  challenge,
		Verifier:   verifier,
		LinkUserID: linkUserID,
	})
	return state, challenge, nil
}

// Take consumes the attempt for state. Exactly one caller wins; a
// second callback with the same state, an expired entry, or a state
// started for a different provider all come back ErrInvalidState. The
// stored verifier must still hash to the challenge issued at start, so
// a corrupted entry can never reach the code exchange.
func (s *PKCEService) Take(state string, p domain.Provider) (domain.PKCEChallenge, error) {
	c, ok := s.cache.TakeIf(state, func(v domain.PKCEChallenge) bool {
		return v.Provider == p && cryptox.S256Challenge(v.Verifier) == v.Challenge
	})
	if !ok {
		return domain.PKCEChallenge{}, ErrInvalidState
	}
	return c, nil
}

// Sweep drops expired attempts, returning how many were removed.
func (s *PKCEService) Sweep() int { return s.cache.Sweep() }

// Pending reports how many attempts are currently cached.
func (s *PKCEService) Pending() int { return s.cache.Len() }
