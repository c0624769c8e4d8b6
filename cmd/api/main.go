package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"backoffice-marketsync-layer/internal/application"
	"backoffice-marketsync-layer/internal/application/job_handlers"
	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/infrastructure/encryption"
	"backoffice-marketsync-layer/internal/infrastructure/lock"
	"backoffice-marketsync-layer/internal/infrastructure/marketplace"
	"backoffice-marketsync-layer/internal/infrastructure/metrics"
	"backoffice-marketsync-layer/internal/infrastructure/pubsub"
	"backoffice-marketsync-layer/internal/infrastructure/queue"
	"backoffice-marketsync-layer/internal/infrastructure/repository"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	// Get configuration from environment
	mongoURI := getEnv("MONGODB_URI", "mongodb://localhost:27017")

	// Connect to MongoDB
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(getEnv("MONGODB_DATABASE", "marketsync"))

	// Get encryption key
	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		logger.Fatal().Msg("ENCRYPTION_KEY environment variable is required")
	}

	// Initialize infrastructure (implementations)
	vault, err := encryption.NewService(encryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	// Initialize repositories
	credRepo := repository.NewMongoCredentialRepository(db)
	jobRepo := repository.NewMongoRetryJobRepository(db)
	stockRepo := repository.NewMongoStockRepository(db)
	capRepo := repository.NewMongoCapabilityRepository(db)

	// Best-effort refresh lock; without Redis refreshes just may duplicate.
	var locker ports.RefreshLocker
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
		locker = lock.NewRedisLocker(redisClient, logger)
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, token refresh lock disabled")
	}

	// Initialize token lifecycle manager with per-provider OAuth material
	authConfigs := map[domain.Provider]marketplace.ProviderAuthConfig{
		domain.ProviderMeli: {
			TokenURL:     getEnv("MELI_TOKEN_URL", "https://api.mercadolibre.com/oauth/token"),
			ClientID:     os.Getenv("MELI_CLIENT_ID"),
			ClientSecret: os.Getenv("MELI_CLIENT_SECRET"),
		},
		domain.ProviderShopee: {
			TokenURL:    getEnv("SHOPEE_API_URL", "https://partner.shopeemobile.com"),
			PartnerID:   os.Getenv("SHOPEE_PARTNER_ID"),
			PartnerKey:  os.Getenv("SHOPEE_PARTNER_KEY"),
			RefreshPath: getEnv("SHOPEE_REFRESH_PATH", "/api/v2/auth/access_token/get"),
		},
	}
	tokenManager := marketplace.NewTokenManager(credRepo, vault, locker, authConfigs, logger)

	// Initialize provider clients
	meliClient := marketplace.NewClient(
		domain.ProviderMeli,
		getEnv("MELI_API_URL", "https://api.mercadolibre.com"),
		os.Getenv("MELI_CLIENT_ID"),
		os.Getenv("MELI_CLIENT_SECRET"),
		tokenManager,
		logger,
	)
	shopeeClient := marketplace.NewClient(
		domain.ProviderShopee,
		getEnv("SHOPEE_API_URL", "https://partner.shopeemobile.com"),
		os.Getenv("SHOPEE_PARTNER_ID"),
		os.Getenv("SHOPEE_PARTNER_KEY"),
		tokenManager,
		logger,
	)
	clients := map[domain.Provider]ports.MarketplaceClient{
		domain.ProviderMeli:   marketplace.NewMeliAdapter(meliClient),
		domain.ProviderShopee: marketplace.NewShopeeAdapter(shopeeClient),
	}

	// Shared outbound call limiter
	maxConcurrent := int64(5)
	if v := os.Getenv("MAX_CONCURRENT_CALLS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxConcurrent = n
		}
	}
	limiter := marketplace.NewLimiter(maxConcurrent)

	// Metrics and sync event pub/sub
	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	syncPubSub := pubsub.NewSyncPubSub(logger)

	// Initialize application services
	reconciler := application.NewStockReconciler(stockRepo, capRepo, logger)
	syncService := application.NewSyncService(
		credRepo,
		clients,
		reconciler,
		jobRepo,
		limiter,
		syncPubSub,
		recorder,
		logger,
	)
	credentialService := application.NewCredentialService(credRepo, vault, logger)

	// Initialize job dispatcher and register handlers
	jobDispatcher := application.NewJobDispatcher(logger)
	jobDispatcher.RegisterHandler(job_handlers.NewStockSyncHandler(syncService, logger))
	jobDispatcher.RegisterHandler(job_handlers.NewTokenRefreshHandler(credRepo, tokenManager, logger))

	// Queue consumer drains due retry jobs on a fixed schedule
	consumer := queue.NewConsumer(jobRepo, jobDispatcher, recorder, logger)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 30s", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := consumer.RunPass(ctx); err != nil {
			logger.Error().Err(err).Msg("Retry queue pass failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule queue consumer")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Organization ID middleware; skips public routes
	r.Use(createOrganizationIDMiddleware())

	// Public routes (no organization ID required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// Routes requiring organization ID
	r.Post("/sync/stock/{provider}", syncStockHandler(syncService, logger))
	r.Get("/sync/events", syncEventsHandler(syncPubSub, logger))
	r.Post("/jobs", enqueueJobHandler(jobRepo, logger))
	r.Get("/dead-letters", deadLettersHandler(jobRepo, logger))
	r.Put("/integrations/{provider}", configureIntegrationHandler(credentialService, logger))
	r.Get("/integrations/{provider}", getIntegrationHandler(credentialService, logger))
	r.Delete("/integrations/{provider}", removeIntegrationHandler(credentialService, logger))
	r.Get("/stock/{provider}/{itemId}", itemStockHandler(stockRepo, logger))

	port := getEnv("PORT", "8080")
	logger.Info().Str("port", port).Msg("Starting API server")
	logger.Info().Msg("Swagger documentation available at http://localhost:" + port + "/swagger/index.html")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// syncStockHandler triggers a stock sync pass for a list of items
func syncStockHandler(syncService *application.SyncService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orgID := domain.GetOrganizationIDFromContext(ctx)
		provider := domain.Provider(chi.URLParam(r, "provider"))

		var body struct {
			ItemIDs []string `json:"item_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(body.ItemIDs) == 0 {
			http.Error(w, "item_ids is required", http.StatusBadRequest)
			return
		}

		report, err := syncService.SyncStock(ctx, orgID, provider, body.ItemIDs)
		if err != nil {
			logger.Error().Err(err).Str("provider", string(provider)).Msg("Stock sync failed")
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

// syncEventsHandler streams sync events for the organization as SSE
func syncEventsHandler(syncPubSub *pubsub.SyncPubSub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orgID := domain.GetOrganizationIDFromContext(ctx)

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		filter := &pubsub.SyncEventFilter{OrganizationID: orgID}
		if provider := r.URL.Query().Get("provider"); provider != "" {
			filter.Providers = []domain.Provider{domain.Provider(provider)}
		}
		sub := syncPubSub.Subscribe(ctx, filter)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		for {
			select {
			case <-ctx.Done():
				return
			case event, open := <-sub.Events:
				if !open {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to marshal sync event")
					continue
				}
				if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// enqueueJobHandler inserts a retry job directly, mainly for re-driving
// dead-lettered work by hand
func enqueueJobHandler(jobRepo ports.RetryJobRepository, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orgID := domain.GetOrganizationIDFromContext(ctx)

		var body struct {
			Kind    string          `json:"kind"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Kind == "" {
			http.Error(w, "kind is required", http.StatusBadRequest)
			return
		}

		now := time.Now()
		job := &domain.RetryJob{
			ID:             uuid.NewString(),
			Kind:           body.Kind,
			OrganizationID: orgID,
			Payload:        body.Payload,
			MaxAttempts:    5,
			NextRetryAt:    now,
			Status:         domain.JobStatusPending,
			CreatedAt:      now,
		}
		if err := jobRepo.Enqueue(ctx, job); err != nil {
			logger.Error().Err(err).Str("kind", body.Kind).Msg("Failed to enqueue job")
			http.Error(w, "failed to enqueue job", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(job)
	}
}

// deadLettersHandler lists recent dead letters for the organization
func deadLettersHandler(jobRepo ports.RetryJobRepository, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orgID := domain.GetOrganizationIDFromContext(ctx)

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}

		records, err := jobRepo.ListDeadLetters(ctx, orgID, limit)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to list dead letters")
			http.Error(w, "failed to list dead letters", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []*domain.DeadLetterRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

// configureIntegrationHandler stores a provider credential
func configureIntegrationHandler(credentialService *application.CredentialService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orgID := domain.GetOrganizationIDFromContext(ctx)
		provider := domain.Provider(chi.URLParam(r, "provider"))

		var input application.ConfigureIntegrationInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		input.Provider = provider

		cred, err := credentialService.ConfigureIntegration(ctx, orgID, &input)
		if err != nil {
			logger.Error().Err(err).Str("provider", string(provider)).Msg("Failed to configure integration")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cred)
	}
}

// getIntegrationHandler returns the stored credential metadata
func getIntegrationHandler(credentialService *application.CredentialService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orgID := domain.GetOrganizationIDFromContext(ctx)
		provider := domain.Provider(chi.URLParam(r, "provider"))

		cred, err := credentialService.GetIntegration(ctx, orgID, provider)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cred)
	}
}

// removeIntegrationHandler deletes the stored credential
func removeIntegrationHandler(credentialService *application.CredentialService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orgID := domain.GetOrganizationIDFromContext(ctx)
		provider := domain.Provider(chi.URLParam(r, "provider"))

		if err := credentialService.RemoveIntegration(ctx, orgID, provider); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// itemStockHandler returns the current normalized rows for an item
func itemStockHandler(stockRepo ports.StockRepository, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orgID := domain.GetOrganizationIDFromContext(ctx)
		provider := domain.Provider(chi.URLParam(r, "provider"))
		itemID := chi.URLParam(r, "itemId")

		rows, err := stockRepo.ListItemRows(ctx, orgID, provider, itemID)
		if err != nil {
			logger.Error().Err(err).Str("itemId", itemID).Msg("Failed to list stock rows")
			http.Error(w, "failed to list stock rows", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []domain.WarehouseStockRow{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}
}

// createOrganizationIDMiddleware extracts the organization id from the
// X-Organization-ID header and stores it in the request context
func createOrganizationIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip middleware for public routes
			path := r.URL.Path
			if path == "/health" ||
				path == "/metrics" ||
				path == "/swagger/doc.json" ||
				(len(path) > 8 && path[:9] == "/swagger/") {
				next.ServeHTTP(w, r)
				return
			}

			orgID := r.Header.Get("X-Organization-ID")
			if orgID == "" {
				http.Error(w, "X-Organization-ID header is required", http.StatusBadRequest)
				return
			}

			ctx := domain.WithOrganizationID(r.Context(), orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
