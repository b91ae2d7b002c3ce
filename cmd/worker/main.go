// Command worker retries tracking mirrors that the API could not apply inline.
package main

import (
	"food-marketplace-api/config"
	"food-marketplace-api/jobs"
	"food-marketplace-api/notify"
	"food-marketplace-api/services"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	config.InitLogger(cfg.App.Environment)
	if !cfg.Redis.Enabled() {
		log.Fatal().Msg("REDIS_ADDR is required to run the worker")
	}

	db, err := config.OpenDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}

	rdb := notify.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer rdb.Close()
	// Publishing through Redis wakes tracking streams served by the API
	svc := services.New(db, cfg, services.Deps{Notifier: notify.NewRedis(rdb)})

	concurrency := cfg.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := jobs.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, concurrency)

	log.Info().Int("concurrency", concurrency).Msg("Worker starting")
	// Run blocks until SIGTERM or SIGINT and then drains in-flight tasks
	if err := srv.Run(jobs.NewServeMux(svc.Tracking)); err != nil {
		log.Fatal().Err(err).Msg("Worker stopped")
	}
}
