// enginesis-stub serves a local stand-in for the Enginesis API so the
// client and the CLI can be exercised without the production service.
package main

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"enginesis-client/internal/config"
	"enginesis-client/internal/logging"
	"enginesis-client/internal/stubservice"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadStub()
	if err != nil {
		log.Fatal().Err(err).Msg("load stub config failed")
	}

	svc := stubservice.New(cfg)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Int("site_id", cfg.SiteID).Msg("stub service listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
