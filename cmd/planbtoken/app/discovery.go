package app

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDiscoveryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discovery",
		Short: "Print the provider's OpenID discovery document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := discover(cmd.Context(), opts)
			if err != nil {
				return err
			}

			var raw json.RawMessage
			if err := provider.Claims(&raw); err != nil {
				return fmt.Errorf("read discovery document: %w", err)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return fmt.Errorf("format discovery document: %w", err)
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}
