package realms

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/rs/zerolog/log"
)

// Registry routes a realm id to the Store that owns its credentials.
// Reads go through an immutable map that writers replace wholesale.
type Registry struct {
	realms  atomic.Pointer[map[string]Store]
	writeMu sync.Mutex
	timeout time.Duration
}

type Option func(*Registry)

// WithStoreTimeout bounds every store call made through a Handle.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.timeout = timeout
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	empty := map[string]Store{}
	r.realms.Store(&empty)
	return r
}

// ValidateRealmID accepts path-like ids such as "/test" or "/customers/eu".
func ValidateRealmID(realmID string) error {
	if len(realmID) < 2 || !strings.HasPrefix(realmID, "/") || strings.HasSuffix(realmID, "/") {
		return fmt.Errorf("%w: realm %q must look like /name", errors.ErrInvalidRequest, realmID)
	}
	if strings.ContainsAny(realmID, " \t\r\n") || strings.Contains(realmID, "//") {
		return fmt.Errorf("%w: realm %q contains invalid characters", errors.ErrInvalidRequest, realmID)
	}
	return nil
}

// Register adds or replaces a single realm.
func (r *Registry) Register(realmID string, store Store) error {
	if err := ValidateRealmID(realmID); err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("realm %s: store is nil", realmID)
	}
	r.update(func(m map[string]Store) {
		m[realmID] = store
	})
	return nil
}

func (r *Registry) Remove(realmID string) {
	r.update(func(m map[string]Store) {
		delete(m, realmID)
	})
}

// Replace swaps the complete mapping, e.g. after a provisioning reload.
func (r *Registry) Replace(realms map[string]Store) error {
	next := make(map[string]Store, len(realms))
	for id, store := range realms {
		if err := ValidateRealmID(id); err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("realm %s: store is nil", id)
		}
		next[id] = store
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.realms.Store(&next)
	return nil
}

func (r *Registry) update(mutate func(map[string]Store)) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current := *r.realms.Load()
	next := make(map[string]Store, len(current)+1)
	for id, store := range current {
		next[id] = store
	}
	mutate(next)
	r.realms.Store(&next)
}

// Resolve returns a handle for realmID or errors.ErrUnknownRealm.
func (r *Registry) Resolve(realmID string) (*Handle, error) {
	store, ok := (*r.realms.Load())[realmID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownRealm, realmID)
	}
	return &Handle{realm: realmID, store: store, timeout: r.timeout}, nil
}

// Realms lists the registered realm ids in sorted order.
func (r *Registry) Realms() []string {
	current := *r.realms.Load()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Handle is a realm-bound view of a Store.
type Handle struct {
	realm   string
	store   Store
	timeout time.Duration
}

func (h *Handle) Realm() string {
	return h.realm
}

func (h *Handle) ValidateUser(ctx context.Context, username, password string) ([]string, error) {
	return h.call(ctx, func(ctx context.Context) ([]string, error) {
		return h.store.ValidateUser(ctx, h.realm, username, password)
	})
}

func (h *Handle) ValidateClient(ctx context.Context, clientID, secret string) ([]string, error) {
	return h.call(ctx, func(ctx context.Context) ([]string, error) {
		return h.store.ValidateClient(ctx, h.realm, clientID, secret)
	})
}

type storeResult struct {
	scopes []string
	err    error
}

// call runs fn in its own goroutine so a store that ignores ctx cannot hold the caller
// past the deadline.
func (h *Handle) call(ctx context.Context, fn func(context.Context) ([]string, error)) ([]string, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	done := make(chan storeResult, 1)
	go func() {
		defer func() {
			// RecoverMiddleware cannot see panics on this goroutine.
			if r := recover(); r != nil {
				log.Error().Str("realm", h.realm).Interface("panic", r).Msg("credential store panicked")
				done <- storeResult{err: fmt.Errorf("%w: realm %s: store panicked", errors.ErrCredentialStoreUnavailable, h.realm)}
			}
		}()
		scopes, err := fn(ctx)
		done <- storeResult{scopes: scopes, err: err}
	}()

	select {
	case res := <-done:
		switch {
		case res.err == nil:
			return res.scopes, nil
		case errors.Is(res.err, errors.ErrInvalidCredentials), errors.Is(res.err, errors.ErrCredentialStoreUnavailable):
			return nil, res.err
		default:
			return nil, fmt.Errorf("%w: realm %s: %v", errors.ErrCredentialStoreUnavailable, h.realm, res.err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: realm %s: %v", errors.ErrCredentialStoreUnavailable, h.realm, ctx.Err())
	}
}
