package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kevinotieno/wablast-backend/internal/config"
	"github.com/kevinotieno/wablast-backend/internal/db"
	"github.com/kevinotieno/wablast-backend/internal/gateway"
	"github.com/kevinotieno/wablast-backend/internal/handler"
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
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("proc", "server").Logger()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	publisher, err := queue.NewAMQPPublisher(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer publisher.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	ledgerRepo := &repository.DeliveryLogRepository{DB: conn}
	assistantRepo := &repository.AssistantRepository{DB: conn}
	audienceRepo := &repository.AudienceRepository{DB: conn}

	gatewayClient := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayTimeout)
	leaseManager := lease.NewManager(redisClient, cfg.LeaseTTL)

	campaignService := &service.CampaignService{
		Campaigns: campaignRepo,
		Ledger:    ledgerRepo,
	}
	resolver := service.NewAudienceResolver(audienceRepo)
	dispatcher := service.NewDispatcher(
		campaignRepo, ledgerRepo, resolver, gatewayClient,
		service.NewLeaseLocker(leaseManager), cfg.SendsPerMinute, log,
	)
	sessionController := service.NewSessionController(assistantRepo, gatewayClient, log)

	campaignHandler := &handler.CampaignHandler{
		Service:    campaignService,
		Dispatcher: dispatcher,
		Publisher:  publisher,
		Log:        log,
	}
	sessionHandler := &handler.SessionHandler{
		Controller: sessionController,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Post("/campaigns", campaignHandler.CreateCampaign)
	r.Get("/campaigns", campaignHandler.ListCampaigns)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaign)
	r.Get("/campaigns/{id}/logs", campaignHandler.ListDeliveryLogs)
	r.Post("/campaigns/{id}/cancel", campaignHandler.CancelCampaign)
	r.Post("/campaigns/{id}/dispatch", campaignHandler.DispatchCampaign)
	r.Post("/campaigns/{id}/dispatch/sync", campaignHandler.DispatchCampaignSync)

	r.Post("/assistants/{id}/session", sessionHandler.SessionAction)
	r.Get("/assistants/{id}/qr", sessionHandler.FetchQR)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server running")
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
