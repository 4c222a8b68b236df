package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/sony/gobreaker/v2"
	"gopkg.in/yaml.v3"

	"github.com/rs/zerolog"
	"github.com/training/demobank"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var cfg demobank.Config
	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()
	cfgfl, err := os.Open(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening config file")
	}
	if err = yaml.NewDecoder(cfgfl).Decode(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("error decoding config file")
	}

	var repo demobank.Repository
	if cfg.Database.ConnectionString == "" {
		logger.Info().Msg("no database configured, using in-memory store")
		repo = demobank.NewMemoryEndpoint()
	} else {
		repo, err = demobank.NewPostgresEndpoint(cfg.Database.ConnectionString, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("error starting database")
		}
	}

	svc, err := demobank.NewService(repo, cfg.SnowflakeNode, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting service")
	}

	if cfg.Seed.TestUser {
		seeder := &demobank.Seeder{Svc: svc, Log: &logger}
		if err = seeder.SeedTestUser(context.Background(), cfg.Seed.DemoAccounts); err != nil {
			logger.Fatal().Err(err).Msg("error seeding test user")
		}
	}

	inflight := cfg.Limits.InFlight
	if inflight <= 0 {
		inflight = 64
	}
	var wrapped demobank.Service = svc
	for _, mw := range []demobank.Middleware{
		demobank.NewCircuitBreakMiddleware(demobank.NewServiceBreaker(gobreaker.Settings{Name: "demobank"})),
		demobank.NewLimitMiddleware(demobank.NewServiceLimits(inflight)),
		demobank.NewValidationMiddleware(),
	} {
		wrapped = mw(wrapped)
	}
	hndlr := demobank.NewHTTPHandler(wrapped, &logger)

	listen := cfg.Listen
	if listen == "" {
		listen = ":3000"
	}
	logger.Info().Str("listen", listen).Msg("starting HTTP server")
	if err = http.ListenAndServe(listen, hndlr); err != nil {
		logger.Fatal().Err(err).Msg("HTTP server stopped")
	}
}
