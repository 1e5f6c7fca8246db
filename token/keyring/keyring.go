// Package keyring owns the provider's signing keys and their rotation.
//
// Readers load an immutable snapshot through an atomic pointer and never take a lock.
// Writers (Initialize, Rotate, Purge) are serialised and publish a fresh snapshot, so a
// reader holding a key from an older snapshot can keep using it.
package keyring

import (
	"context"
	"crypto"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/token/keys"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle position of a signing key.
type State int

const (
	// StateActive signs new tokens. There is at most one.
	StateActive State = iota
	// StateRetiring no longer signs but is still published for verification.
	StateRetiring
	// StateRetired is terminal; the key has been dropped from the ring.
	StateRetired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRetiring:
		return "retiring"
	case StateRetired:
		return "retired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SigningKey is a key pair together with its lifecycle state. Values are never
// mutated once published.
type SigningKey struct {
	*keys.KeyPair
	State       State
	ActivatedAt time.Time
	RetiredAt   time.Time // zero while active
}

// VerificationKey is the public half of a published key.
type VerificationKey struct {
	KeyID     string
	Algorithm string
	PublicKey crypto.PublicKey
	State     State
}

// JWK encodes the key for a JWKS document.
func (k VerificationKey) JWK() jose.JSONWebKey {
	return keys.PublicJWK(k.KeyID, k.Algorithm, k.PublicKey)
}

// Generator creates the next key pair.
type Generator func() (*keys.KeyPair, error)

// snapshot is replaced wholesale on every write. retiring is ordered newest first.
type snapshot struct {
	active   *SigningKey
	retiring []*SigningKey
}

type KeyRing struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex

	generate         Generator
	initialKey       *keys.KeyPair
	tokenMaxLifetime time.Duration
	rotationInterval time.Duration
	purgeInterval    time.Duration
	nowFunc          func() time.Time

	onRotate func(active *SigningKey)
	onChange func(counts map[State]int)

	lifecycleMu sync.Mutex
	stopCh      chan struct{}
	doneCh      chan struct{}
}

type Option func(*KeyRing)

func WithGenerator(gen Generator) Option {
	return func(k *KeyRing) {
		k.generate = gen
	}
}

// WithInitialKey makes Initialize activate kp instead of generating a key.
func WithInitialKey(kp *keys.KeyPair) Option {
	return func(k *KeyRing) {
		k.initialKey = kp
	}
}

// WithTokenMaxLifetime sets how long a retiring key stays published.
func WithTokenMaxLifetime(d time.Duration) Option {
	return func(k *KeyRing) {
		k.tokenMaxLifetime = d
	}
}

func WithRotationInterval(d time.Duration) Option {
	return func(k *KeyRing) {
		k.rotationInterval = d
	}
}

func WithPurgeInterval(d time.Duration) Option {
	return func(k *KeyRing) {
		k.purgeInterval = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(k *KeyRing) {
		k.nowFunc = now
	}
}

// WithOnRotate registers a callback invoked after every successful rotation.
func WithOnRotate(fn func(active *SigningKey)) Option {
	return func(k *KeyRing) {
		k.onRotate = fn
	}
}

// WithOnChange registers a callback receiving the number of keys per state after each write.
func WithOnChange(fn func(counts map[State]int)) Option {
	return func(k *KeyRing) {
		k.onChange = fn
	}
}

func New(opts ...Option) *KeyRing {
	k := &KeyRing{
		generate: func() (*keys.KeyPair, error) {
			return keys.Generate(keys.RS256, 2048)
		},
		tokenMaxLifetime: 8 * time.Hour,
		rotationInterval: 24 * time.Hour,
		purgeInterval:    time.Minute,
		nowFunc:          time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	k.current.Store(&snapshot{})
	return k
}

// Initialize activates the first key. It fails with errors.ErrKeyUnavailable when no
// key can be loaded or generated; callers must not serve traffic in that case.
func (k *KeyRing) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrKeyUnavailable, err)
	}

	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	if k.current.Load().active != nil {
		return nil
	}

	kp := k.initialKey
	if kp == nil {
		var err error
		kp, err = k.generate()
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrKeyUnavailable, err)
		}
	}
	if kp == nil || kp.PrivateKey == nil {
		return fmt.Errorf("%w: generator returned no key", errors.ErrKeyUnavailable)
	}

	active := &SigningKey{KeyPair: kp, State: StateActive, ActivatedAt: k.nowFunc()}
	k.publish(&snapshot{active: active})

	log.Info().Str("kid", kp.KeyID).Str("alg", kp.Algorithm).Msg("signing key activated")
	return nil
}

// Rotate activates a freshly generated key and demotes the previous one to retiring.
// Expired retiring keys are purged in the same swap.
func (k *KeyRing) Rotate() (*SigningKey, error) {
	if k.current.Load().active == nil {
		return nil, fmt.Errorf("%w: ring not initialized", errors.ErrKeyUnavailable)
	}

	// Key generation can be slow; do it before taking the writer lock.
	kp, err := k.generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrKeyUnavailable, err)
	}
	if kp == nil || kp.PrivateKey == nil {
		return nil, fmt.Errorf("%w: generator returned no key", errors.ErrKeyUnavailable)
	}

	k.writeMu.Lock()
	now := k.nowFunc()
	prev := k.current.Load()

	demoted := *prev.active
	demoted.State = StateRetiring
	demoted.RetiredAt = now

	next := &snapshot{
		active:   &SigningKey{KeyPair: kp, State: StateActive, ActivatedAt: now},
		retiring: append([]*SigningKey{&demoted}, k.unexpired(prev.retiring, now)...),
	}
	k.publish(next)
	k.writeMu.Unlock()

	log.Info().
		Str("kid", kp.KeyID).
		Str("retiring_kid", demoted.KeyID).
		Int("published_keys", 1+len(next.retiring)).
		Msg("signing key rotated")

	if k.onRotate != nil {
		k.onRotate(next.active)
	}
	return next.active, nil
}

// Purge drops retiring keys whose tokens have all expired and returns how many were removed.
func (k *KeyRing) Purge() int {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	now := k.nowFunc()
	prev := k.current.Load()
	kept := k.unexpired(prev.retiring, now)
	removed := len(prev.retiring) - len(kept)
	if removed == 0 {
		return 0
	}

	k.publish(&snapshot{active: prev.active, retiring: kept})
	return removed
}

// unexpired returns the keys still inside their verification window. Only retiring
// keys are ever passed in, so the active key can never age out.
func (k *KeyRing) unexpired(retiring []*SigningKey, now time.Time) []*SigningKey {
	kept := make([]*SigningKey, 0, len(retiring))
	for _, key := range retiring {
		if !key.RetiredAt.Add(k.tokenMaxLifetime).After(now) {
			log.Info().Str("kid", key.KeyID).Stringer("state", StateRetired).Msg("signing key purged")
			continue
		}
		kept = append(kept, key)
	}
	return kept
}

// publish must be called with writeMu held.
func (k *KeyRing) publish(s *snapshot) {
	k.current.Store(s)
	if k.onChange != nil {
		counts := map[State]int{StateActive: 0, StateRetiring: len(s.retiring)}
		if s.active != nil {
			counts[StateActive] = 1
		}
		k.onChange(counts)
	}
}

// SigningKey returns the active key without blocking.
func (k *KeyRing) SigningKey() (*SigningKey, error) {
	active := k.current.Load().active
	if active == nil {
		return nil, fmt.Errorf("%w: no active key", errors.ErrKeyUnavailable)
	}
	return active, nil
}

// VerificationKeys lists all published keys, most recently activated first.
func (k *KeyRing) VerificationKeys() []VerificationKey {
	s := k.current.Load()
	out := make([]VerificationKey, 0, 1+len(s.retiring))
	if s.active != nil {
		out = append(out, toVerificationKey(s.active))
	}
	for _, key := range s.retiring {
		out = append(out, toVerificationKey(key))
	}
	return out
}

// VerificationKey looks up a published key by kid.
func (k *KeyRing) VerificationKey(kid string) (VerificationKey, bool) {
	for _, key := range k.VerificationKeys() {
		if key.KeyID == kid {
			return key, true
		}
	}
	return VerificationKey{}, false
}

func toVerificationKey(key *SigningKey) VerificationKey {
	return VerificationKey{
		KeyID:     key.KeyID,
		Algorithm: key.Algorithm,
		PublicKey: key.PublicKey,
		State:     key.State,
	}
}

// Start runs rotation and purging in the background until ctx is done or Stop is called.
func (k *KeyRing) Start(ctx context.Context) {
	k.lifecycleMu.Lock()
	defer k.lifecycleMu.Unlock()
	if k.stopCh != nil {
		return
	}
	k.stopCh = make(chan struct{})
	k.doneCh = make(chan struct{})

	go k.run(ctx, k.stopCh, k.doneCh)
	log.Info().
		Dur("rotation_interval", k.rotationInterval).
		Dur("purge_interval", k.purgeInterval).
		Msg("key rotation started")
}

// Stop ends the background worker and waits for it to exit.
func (k *KeyRing) Stop() {
	k.lifecycleMu.Lock()
	defer k.lifecycleMu.Unlock()
	if k.stopCh == nil {
		return
	}
	close(k.stopCh)
	<-k.doneCh
	k.stopCh, k.doneCh = nil, nil
	log.Info().Msg("key rotation stopped")
}

func (k *KeyRing) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	var rotateC <-chan time.Time
	if k.rotationInterval > 0 {
		rotation := time.NewTicker(k.rotationInterval)
		defer rotation.Stop()
		rotateC = rotation.C
	}

	var purgeC <-chan time.Time
	if k.purgeInterval > 0 {
		purge := time.NewTicker(k.purgeInterval)
		defer purge.Stop()
		purgeC = purge.C
	}

	for {
		select {
		case <-rotateC:
			if _, err := k.Rotate(); err != nil {
				// The previous active key keeps signing.
				log.Error().Err(err).Msg("signing key rotation failed")
			}
		case <-purgeC:
			if n := k.Purge(); n > 0 {
				log.Debug().Int("purged", n).Msg("retiring keys purged")
			}
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
