// Package app provides the commands of the planbtoken command-line client.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/planb-provider/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

const defaultProvider = "http://localhost:8080"

type globalOptions struct {
	provider string
	retries  uint
	debug    bool
}

// NewRootCmd creates the root command with its sub-commands.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:               "planbtoken",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Fetch and inspect tokens from a Plan B provider",
		Long: `planbtoken talks to a Plan B token provider. It reads the provider's OpenID discovery
document, exchanges user or client credentials for a token and can verify the token
against the published signing keys.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := "warn"
			if opts.debug {
				level = "debug"
			}
			log.Logger = logging.New(os.Stderr, "DEV", level)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.provider, "provider", "p", envOr("PLANB_PROVIDER", defaultProvider),
		"Provider base URL (can also be set via PLANB_PROVIDER env var)")
	rootCmd.PersistentFlags().UintVar(&opts.retries, "retries", 5, "Attempts made while the provider is unreachable")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newTokenCmd(opts))
	rootCmd.AddCommand(newDiscoveryCmd(opts))

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// retry runs op with exponential backoff. Errors returned by the provider itself are
// not retried, only failures to reach it.
func retry[T any](ctx context.Context, opts *globalOptions, what string, op func() (T, error)) (T, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 200 * time.Millisecond

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(max(opts.retries, 1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Debug().Err(err).Dur("retry_in", d).Msgf("%s failed", what)
		}),
	)
}

// discover loads the provider metadata, retrying while the provider starts.
func discover(ctx context.Context, opts *globalOptions) (*oidc.Provider, error) {
	provider, err := retry(ctx, opts, "discovery", func() (*oidc.Provider, error) {
		return oidc.NewProvider(ctx, opts.provider)
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", opts.provider, err)
	}
	return provider, nil
}
