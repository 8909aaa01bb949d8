package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vox-agent-backend/internal/ai"
	"vox-agent-backend/internal/config"
	"vox-agent-backend/internal/logger"
	"vox-agent-backend/internal/telemetry"
	"vox-agent-backend/internal/vectorstore"
	"vox-agent-backend/middleware"
	"vox-agent-backend/routes"
	"vox-agent-backend/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Embedding provider is resolved once at startup; a dead model backend
	// degrades to the deterministic fallback instead of crashing.
	embedder, mode := ai.ResolveEmbedder(cfg)
	logger.Info("Embedding provider resolved", "mode", mode.String())

	store, err := vectorstore.Open(cfg.VectorDBPath(), cfg.CollectionName, embedder)
	if err != nil {
		log.Fatal("Failed to open vector store:", err)
	}
	defer store.Close()

	chunker := services.NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap)
	pipeline := services.NewIngestionPipeline(chunker, store)
	retriever := services.NewContextRetriever(store, cfg.RetrievalK)
	policy := services.NewResponsePolicy(cfg.MaxImageContext)
	llm := ai.NewLLMClient(cfg)
	processor := services.NewDocumentProcessor(services.NewOCRClient(cfg.OCRServiceURL))
	agent := services.NewAgent(processor, pipeline, retriever, policy, llm)
	audio := services.NewAudioService(cfg)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RateLimitMiddleware(cfg))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupRAGRoutes(router, cfg, agent, store, metrics)
	routes.SetupAudioRoutes(router, cfg, audio)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
