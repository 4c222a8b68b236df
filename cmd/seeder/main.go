package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/training/demobank"
	"gopkg.in/yaml.v3"
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
	if cfg.Database.ConnectionString == "" {
		logger.Fatal().Msg("seeder requires database.conn_str")
	}

	pgendpt, err := demobank.NewPostgresEndpoint(cfg.Database.ConnectionString, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting database")
	}
	svc, err := demobank.NewService(pgendpt, cfg.SnowflakeNode, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting service")
	}

	seeder := &demobank.Seeder{Svc: svc, Log: &logger}
	if err = seeder.SeedTestUser(context.Background(), cfg.Seed.DemoAccounts); err != nil {
		logger.Fatal().Err(err).Msg("error seeding test user")
	}
}
