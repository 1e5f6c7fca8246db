// Package main is the entry point for the planbtoken command
package main

import (
	"os"

	"github.com/jrsteele09/planb-provider/cmd/planbtoken/app"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("planbtoken failed")
		os.Exit(1)
	}
}
