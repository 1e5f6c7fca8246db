package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	fakeclientrepo "github.com/jrsteele09/planb-provider/clients/fakerepo"
	"github.com/jrsteele09/planb-provider/internal/config"
	"github.com/jrsteele09/planb-provider/internal/logging"
	"github.com/jrsteele09/planb-provider/internal/metrics"
	"github.com/jrsteele09/planb-provider/realms"
	"github.com/jrsteele09/planb-provider/realms/sqlstore"
	"github.com/jrsteele09/planb-provider/server"
	"github.com/jrsteele09/planb-provider/token/keyring"
	"github.com/jrsteele09/planb-provider/token/keys"
	fakeuserrepo "github.com/jrsteele09/planb-provider/users/repofake"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("error running server")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var m *metrics.Metrics
	if c.GetMetricsEnabled() {
		m = metrics.New()
	}

	backend, closeStore, err := openBackend(c)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := realms.NewRegistry(realms.WithStoreTimeout(c.GetStoreTimeout()))
	scopes, err := server.InitialiseRealms(ctx, c, registry, backend)
	if err != nil {
		return err
	}

	ring, err := newKeyRing(c, m)
	if err != nil {
		return err
	}
	// No signing key means no tokens; refuse to listen.
	if err := ring.Initialize(ctx); err != nil {
		return fmt.Errorf("keyring.Initialize: %w", err)
	}
	ring.Start(ctx)
	defer ring.Stop()

	opts := []server.Option{server.WithMetrics(m), server.WithScopesSupported(scopes)}
	if backend.Ping != nil {
		opts = append(opts, server.WithHealthCheck("realm_store", backend.Ping))
	}
	handler, err := server.New(c, registry, ring, opts...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// openBackend selects the credential store named by REALM_STORE.
func openBackend(c config.Config) (server.Backend, func(), error) {
	switch c.GetRealmStore() {
	case config.StoreMemory:
		return server.Backend{
			Users:   fakeuserrepo.NewFakeUserRepo(),
			Clients: fakeclientrepo.NewFakeClientRepo(),
		}, func() {}, nil
	case config.StoreSQLite:
		store, err := sqlstore.NewStore(c.GetSQLiteDSN())
		if err != nil {
			return server.Backend{}, nil, fmt.Errorf("sqlstore.NewStore: %w", err)
		}
		if err := store.ApplyMigrations(); err != nil {
			_ = store.Close()
			return server.Backend{}, nil, fmt.Errorf("sqlstore.ApplyMigrations: %w", err)
		}
		log.Info().Str("dsn", c.GetSQLiteDSN()).Msg("using sqlite realm store")
		return server.Backend{
			Users:       store.Users(),
			Clients:     store.Clients(),
			KnownRealms: store.Realms,
			Ping:        store.Ping,
		}, func() { _ = store.Close() }, nil
	default:
		return server.Backend{}, nil, fmt.Errorf("unknown REALM_STORE %q", c.GetRealmStore())
	}
}

func newKeyRing(c config.Config, m *metrics.Metrics) (*keyring.KeyRing, error) {
	alg, bits := c.GetKeyAlgorithm(), c.GetKeyRSABits()
	opts := []keyring.Option{
		keyring.WithGenerator(func() (*keys.KeyPair, error) {
			return keys.Generate(alg, bits)
		}),
		keyring.WithTokenMaxLifetime(c.GetTokenLifetime()),
		keyring.WithRotationInterval(c.GetKeyRotationInterval()),
		keyring.WithPurgeInterval(c.GetKeyPurgeInterval()),
	}
	if m != nil {
		opts = append(opts, keyring.WithOnRotate(func(*keyring.SigningKey) {
			m.KeyRotations.Inc()
		}))
		opts = append(opts, keyring.WithOnChange(func(counts map[keyring.State]int) {
			for _, state := range []keyring.State{keyring.StateActive, keyring.StateRetiring} {
				m.SigningKeys.WithLabelValues(state.String()).Set(float64(counts[state]))
			}
		}))
	}

	if path := c.GetSigningKeyFile(); path != "" {
		kp, err := keys.LoadKeyPairFromFile(keys.NewKeyID(), path)
		if err != nil {
			return nil, fmt.Errorf("load signing key: %w", err)
		}
		opts = append(opts, keyring.WithInitialKey(kp))
	}
	return keyring.New(opts...), nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
