// Package server assembles the knowledge hub: storage clients, repositories,
// services, handlers and the ingestion worker.
package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/fathmn/jokari-knowledge-hub/internal/chunking"
	"github.com/fathmn/jokari-knowledge-hub/internal/config"
	"github.com/fathmn/jokari-knowledge-hub/internal/db"
	"github.com/fathmn/jokari-knowledge-hub/internal/extractors"
	"github.com/fathmn/jokari-knowledge-hub/internal/handlers"
	"github.com/fathmn/jokari-knowledge-hub/internal/parsers"
	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
	"github.com/fathmn/jokari-knowledge-hub/internal/routes"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
	"github.com/fathmn/jokari-knowledge-hub/internal/services"
	"github.com/fathmn/jokari-knowledge-hub/internal/storage"
	"github.com/fathmn/jokari-knowledge-hub/internal/workers"
)

// corsMiddleware adds CORS headers to all responses
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Server owns the HTTP server and the background worker pool.
type Server struct {
	httpServer *http.Server
	pool       *workers.WorkerPool
	redis      *db.RedisClient
	logger     *log.Logger
}

// New builds a fully wired server from the configuration.
func New(cfg config.Config) (*Server, error) {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Printf("Connecting to Redis: %s:%d (DB: %d)", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB)
	redisClient, err := db.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if err := redisClient.Ping(ctx); err != nil {
		return nil, err
	}
	logger.Println("Redis connected")

	logger.Printf("Connecting to object storage: %s (bucket %s)", cfg.Minio.Endpoint, cfg.Minio.Bucket)
	blobs, err := storage.NewMinioStore(ctx, cfg.Minio, logger)
	if err != nil {
		return nil, err
	}
	logger.Println("Object storage ready")

	extractor, err := extractors.New(cfg.Extractor.Provider, cfg.Extractor.APIKey, cfg.Extractor.Model)
	if err != nil {
		return nil, err
	}
	logger.Printf("Extractor provider: %s", cfg.Extractor.Provider)

	// Repositories
	rdb := redisClient.GetClient()
	docRepo := repositories.NewRedisDocumentRepository(rdb)
	chunkRepo := repositories.NewRedisChunkRepository(rdb)
	recordRepo := repositories.NewRedisRecordRepository(rdb)
	evRepo := repositories.NewRedisEvidenceRepository(rdb)
	updateRepo := repositories.NewRedisUpdateRepository(rdb)
	auditRepo := repositories.NewRedisAuditRepository(rdb)
	attachmentRepo := repositories.NewRedisAttachmentRepository(rdb)
	jobRepo := repositories.NewRedisJobRepository(rdb)

	// Domain plumbing
	registry := schema.NewRegistry()
	parserRegistry := parsers.NewRegistry()
	chunker := chunking.NewChunker(chunking.DefaultConfig())
	embedder := chunking.NewHashEmbedder()

	// Services
	mergeService := services.NewMergeService(registry, recordRepo, updateRepo, logger)
	ingestionService := services.NewIngestionService(
		parserRegistry, chunker, embedder, extractor, registry, mergeService,
		blobs, docRepo, chunkRepo, recordRepo, evRepo, auditRepo, logger,
	)
	documentService := services.NewDocumentService(
		registry, parserRegistry, blobs,
		docRepo, chunkRepo, recordRepo, evRepo, updateRepo, auditRepo, attachmentRepo, jobRepo, logger,
	)
	reviewService := services.NewReviewService(
		registry, mergeService, blobs,
		docRepo, recordRepo, evRepo, updateRepo, auditRepo, attachmentRepo, logger,
	)
	searchService := services.NewSearchService(recordRepo, logger)
	dashboardService := services.NewDashboardService(
		registry, docRepo, recordRepo, updateRepo, auditRepo, jobRepo, logger,
	)

	// Handlers and routes
	h := &routes.Handlers{
		Document:  handlers.NewDocumentHandler(documentService, ingestionService, logger),
		Review:    handlers.NewReviewHandler(reviewService, logger),
		Knowledge: handlers.NewKnowledgeHandler(searchService, dashboardService, logger),
		Dashboard: handlers.NewDashboardHandler(dashboardService, logger),
	}

	router := mux.NewRouter()
	routes.RegisterRoutes(router, h)

	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("http://localhost:"+cfg.Port+"/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	// Ingestion worker
	workerConfig := workers.DefaultWorkerConfig("ingestion-worker")
	workerConfig.Concurrency = cfg.Worker.Concurrency
	workerConfig.PollInterval = cfg.Worker.PollInterval
	workerConfig.MaxRetries = cfg.Worker.MaxRetries
	workerConfig.RetryDelay = cfg.Worker.RetryDelay

	pool := workers.NewWorkerPool()
	pool.AddWorker(workers.NewIngestionWorker(workerConfig, jobRepo, ingestionService, logger))

	return &Server{
		httpServer: &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: corsMiddleware(router),
		},
		pool:   pool,
		redis:  redisClient,
		logger: logger,
	}, nil
}

// Start launches the workers and serves HTTP until the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.pool.StartAll(ctx); err != nil {
		return err
	}
	s.logger.Printf("Listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server and the workers.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Printf("HTTP shutdown error: %v", err)
	}
	if err := s.pool.StopAll(ctx); err != nil {
		s.logger.Printf("Worker shutdown error: %v", err)
	}
	return s.redis.Close()
}
