package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/r-ddle/exile-ledger/ledgerservice"
)

func main() {
	if err := ledgerservice.Run(); err != nil {
		log.Error().Err(err).Msg("ledger-service exited with error")
		os.Exit(1)
	}
}
