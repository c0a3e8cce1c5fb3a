package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kevinotieno/wablast-backend/internal/config"
	"github.com/kevinotieno/wablast-backend/internal/db"
	"github.com/kevinotieno/wablast-backend/internal/gateway"
	"github.com/kevinotieno/wablast-backend/internal/lease"
	"github.com/kevinotieno/wablast-backend/internal/queue"
	"github.com/kevinotieno/wablast-backend/internal/repository"
	"github.com/kevinotieno/wablast-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("proc", "dispatcher").Logger()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	ledgerRepo := &repository.DeliveryLogRepository{DB: conn}
	audienceRepo := &repository.AudienceRepository{DB: conn}

	dispatcher := service.NewDispatcher(
		campaignRepo,
		ledgerRepo,
		service.NewAudienceResolver(audienceRepo),
		gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayTimeout),
		service.NewLeaseLocker(lease.NewManager(redisClient, cfg.LeaseTTL)),
		cfg.SendsPerMinute,
		log,
	)

	consumer, err := queue.NewConsumer(cfg.AMQPURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutdown requested, finishing current run")
		cancel()
	}()

	log.Info().Msg("dispatcher running, waiting for jobs")
	err = consumer.Run(func(job queue.DispatchJob) error {
		result, err := dispatcher.Dispatch(ctx, job.CampaignID)
		if err != nil {
			return err
		}
		log.Info().Int("campaign_id", job.CampaignID).
			Int("sent", result.SentCount).Int("failed", result.FailedCount).
			Bool("cancelled", result.Cancelled).Msg("dispatch job done")
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("consumer stopped")
	}
}
