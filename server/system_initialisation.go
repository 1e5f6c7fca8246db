package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/jrsteele09/planb-provider/clients"
	"github.com/jrsteele09/planb-provider/internal/config"
	"github.com/jrsteele09/planb-provider/realms"
	"github.com/jrsteele09/planb-provider/realms/seed"
	"github.com/jrsteele09/planb-provider/users"
	"github.com/rs/zerolog/log"
)

// Backend is the credential storage behind every realm.
type Backend struct {
	Users   users.Repo
	Clients clients.Repo
	// KnownRealms lists realms that already hold credentials, e.g. rows in sqlite.
	KnownRealms func(ctx context.Context) ([]string, error)
	// Ping reports whether the store is reachable. It backs the realm_store health check.
	Ping func(ctx context.Context) error
}

// InitialiseRealms seeds the backend and registers every realm it knows about.
// It returns the union of all entitled scopes, which discovery advertises.
func InitialiseRealms(ctx context.Context, cfg config.Config, registry *realms.Registry, backend Backend) ([]string, error) {
	// Step 1: Load the seed document
	seedFile, err := loadSeed(cfg)
	if err != nil {
		return nil, fmt.Errorf("[Server InitialiseRealms] failed to load seed: %w", err)
	}

	// Step 2: Write seeded users and clients
	if seedFile != nil {
		if err := seedFile.Apply(ctx, backend.Users, backend.Clients); err != nil {
			return nil, fmt.Errorf("[Server InitialiseRealms] failed to apply seed: %w", err)
		}
	}

	// Step 3: Collect realm ids from the seed, the configuration and the store
	ids := map[string]struct{}{}
	if seedFile != nil {
		for _, id := range seedFile.RealmIDs() {
			ids[id] = struct{}{}
		}
	}
	for _, id := range cfg.GetRealms() {
		ids[id] = struct{}{}
	}
	if backend.KnownRealms != nil {
		known, err := backend.KnownRealms(ctx)
		if err != nil {
			return nil, fmt.Errorf("[Server InitialiseRealms] failed to list stored realms: %w", err)
		}
		for _, id := range known {
			ids[id] = struct{}{}
		}
	}

	// Step 4: Publish the mapping in one swap
	store := realms.NewRepoStore(backend.Users, backend.Clients)
	mapping := make(map[string]realms.Store, len(ids))
	for id := range ids {
		mapping[id] = store
	}
	if err := registry.Replace(mapping); err != nil {
		return nil, fmt.Errorf("[Server InitialiseRealms] failed to register realms: %w", err)
	}

	scopes, err := entitledScopes(ctx, registry.Realms(), backend)
	if err != nil {
		return nil, fmt.Errorf("[Server InitialiseRealms] failed to collect scopes: %w", err)
	}

	log.Info().
		Strs("realms", registry.Realms()).
		Str("store", cfg.GetRealmStore()).
		Strs("scopes", scopes).
		Msg("realms registered")
	return scopes, nil
}

// loadSeed reads REALMS_FILE. The development realm, with its well-known klaus/test
// credential, is only seeded for an in-memory store in DEV.
func loadSeed(cfg config.Config) (*seed.File, error) {
	if path := cfg.GetRealmsFile(); path != "" {
		log.Info().Str("file", path).Msg("loading realm seed file")
		return seed.LoadFile(path)
	}
	if cfg.GetRealmStore() != config.StoreMemory {
		return nil, nil
	}
	if cfg.GetEnv() != devEnv {
		log.Warn().Str("env", cfg.GetEnv()).Msg("no REALMS_FILE configured, in-memory realms start empty")
		return nil, nil
	}
	log.Warn().Msg("no REALMS_FILE configured, seeding development realm /test")
	return seed.Dev(), nil
}

func entitledScopes(ctx context.Context, realmIDs []string, backend Backend) ([]string, error) {
	set := map[string]struct{}{}
	for _, realm := range realmIDs {
		userList, err := backend.Users.List(ctx, realm)
		if err != nil {
			return nil, err
		}
		for _, u := range userList {
			for _, s := range u.Scopes {
				set[s] = struct{}{}
			}
		}
		clientList, err := backend.Clients.List(ctx, realm)
		if err != nil {
			return nil, err
		}
		for _, c := range clientList {
			for _, s := range c.Scopes {
				set[s] = struct{}{}
			}
		}
	}

	scopes := make([]string, 0, len(set))
	for s := range set {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes, nil
}
